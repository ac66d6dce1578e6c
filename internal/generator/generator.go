// Package generator draws the next note a player is asked to identify.
package generator

import (
	"math/rand/v2"
	"time"

	"github.com/satindergrewal/notequest/internal/theory"
)

const (
	MinOctave = 3
	MaxOctave = 5

	// maxRetries bounds the repeat guard. The domain has 64 distinct pitches
	// so the guard practically never runs out.
	maxRetries = 16
)

// Generator produces random target notes between C3 and C5.
// It is not safe for concurrent use; the session serializes calls.
type Generator struct {
	rng *rand.Rand
}

// New returns a generator drawing from rng. A nil rng uses a time-seeded PCG.
func New(rng *rand.Rand) *Generator {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Generator{rng: rng}
}

// NewSeeded returns a generator with a deterministic sequence.
func NewSeeded(seed uint64) *Generator {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Draw returns one candidate note with no repeat check.
func (g *Generator) Draw() theory.Note {
	octave := MinOctave + g.rng.IntN(MaxOctave-MinOctave+1)
	if octave == MaxOctave {
		// C5 caps the playable range.
		return theory.Note{
			Letter:     theory.C,
			Octave:     MaxOctave,
			Accidental: theory.Natural,
			Clef:       theory.Treble,
			Duration:   theory.Quarter,
		}
	}

	clef := theory.Treble
	if octave < theory.ReferenceOctave {
		clef = theory.Bass
	}
	return theory.Note{
		Letter:     theory.Letters[g.rng.IntN(len(theory.Letters))],
		Octave:     octave,
		Accidental: theory.Accidentals[g.rng.IntN(len(theory.Accidentals))],
		Clef:       clef,
		Duration:   theory.Durations[g.rng.IntN(len(theory.Durations))],
	}
}

// Next returns a note whose pitch differs from the single entry in current,
// when there is one. current is the list of notes on screen.
func (g *Generator) Next(current []theory.Note) []theory.Note {
	n := g.Draw()
	if len(current) == 1 {
		for i := 0; i < maxRetries && theory.SamePitch(n, current[0]); i++ {
			n = g.Draw()
		}
	}
	return []theory.Note{n}
}
