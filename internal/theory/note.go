// Package theory models the notes the trainer asks about: letter names,
// accidentals, octaves and the numeric coordinates derived from them.
package theory

import (
	"fmt"
	"math"
)

// Letter is one of the seven diatonic note names.
type Letter int

const (
	C Letter = iota
	D
	E
	F
	G
	A
	B
)

// Letters lists the diatonic letters in staff order.
var Letters = []Letter{C, D, E, F, G, A, B}

var letterNames = [...]string{"C", "D", "E", "F", "G", "A", "B"}

// semitones from A in the same octave
var letterSemitones = [...]int{-9, -7, -5, -4, -2, 0, 2}

// Valid reports whether l is one of C through B.
func (l Letter) Valid() bool {
	return l >= C && l <= B
}

func (l Letter) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Letter(%d)", int(l))
	}
	return letterNames[l]
}

// Accidental raises or lowers a letter by a semitone.
type Accidental int

const (
	Natural Accidental = iota
	Sharp
	Flat
)

// Accidentals lists every accidental the generator may draw.
var Accidentals = []Accidental{Natural, Sharp, Flat}

func (a Accidental) String() string {
	switch a {
	case Natural:
		return ""
	case Sharp:
		return "#"
	case Flat:
		return "b"
	}
	return fmt.Sprintf("Accidental(%d)", int(a))
}

// Semitones returns the pitch adjustment of the accidental.
func (a Accidental) Semitones() int {
	switch a {
	case Sharp:
		return 1
	case Flat:
		return -1
	}
	return 0
}

// Clef selects the staff a note is drawn on. It never affects pitch.
type Clef int

const (
	Treble Clef = iota
	Bass
)

func (c Clef) String() string {
	if c == Bass {
		return "bass"
	}
	return "treble"
}

// Duration is the note-head shape. It is a rendering hint only.
type Duration int

const (
	Quarter Duration = iota
	Half
	Whole
)

// Durations lists every duration the generator may draw.
var Durations = []Duration{Quarter, Half, Whole}

func (d Duration) String() string {
	switch d {
	case Half:
		return "half"
	case Whole:
		return "whole"
	}
	return "quarter"
}

const (
	// ReferenceOctave is the octave of concert A and middle C.
	ReferenceOctave = 4
	// ReferenceMIDI is the MIDI number of A4.
	ReferenceMIDI = 69
	// ReferenceFrequency is the frequency of A4 in Hz.
	ReferenceFrequency = 440.0
)

// Note is an immutable symbolic note.
type Note struct {
	Letter     Letter
	Octave     int
	Accidental Accidental
	Clef       Clef
	Duration   Duration
}

// New returns a quarter note with the clef implied by its octave.
func New(l Letter, octave int, acc Accidental) Note {
	clef := Treble
	if octave < ReferenceOctave {
		clef = Bass
	}
	return Note{Letter: l, Octave: octave, Accidental: acc, Clef: clef}
}

// MIDIPitch returns the absolute pitch as a MIDI note number.
// Octave and accidental are not range checked. A note whose letter is not
// Valid has pitch -1, which no key produces.
func (n Note) MIDIPitch() int {
	if !n.Letter.Valid() {
		return -1
	}
	return ReferenceMIDI +
		letterSemitones[n.Letter] +
		(n.Octave-ReferenceOctave)*12 +
		n.Accidental.Semitones()
}

// StaffOffset returns the number of diatonic steps from middle C (C4).
// Accidentals do not move a note on the staff.
func (n Note) StaffOffset() int {
	return int(n.Letter) + (n.Octave-ReferenceOctave)*7
}

// Frequency returns the equal-tempered frequency in Hz.
func (n Note) Frequency() float64 {
	return MIDIFrequency(n.MIDIPitch())
}

// MIDIFrequency returns the equal-tempered frequency of a MIDI note number.
func MIDIFrequency(pitch int) float64 {
	return ReferenceFrequency * math.Pow(2, float64(pitch-ReferenceMIDI)/12)
}

// SamePitch reports whether a and b sound the same, regardless of spelling.
// Notes with an invalid letter match nothing.
func SamePitch(a, b Note) bool {
	if !a.Letter.Valid() || !b.Letter.Valid() {
		return false
	}
	return a.MIDIPitch() == b.MIDIPitch()
}

// String spells the note in scientific pitch notation, e.g. "F#4" or "Bb3".
func (n Note) String() string {
	return fmt.Sprintf("%s%s%d", n.Letter, n.Accidental, n.Octave)
}

// sharp spellings for the twelve pitch classes, starting at C
var pitchClassSpelling = [12]struct {
	letter Letter
	acc    Accidental
}{
	{C, Natural}, {C, Sharp}, {D, Natural}, {D, Sharp}, {E, Natural}, {F, Natural},
	{F, Sharp}, {G, Natural}, {G, Sharp}, {A, Natural}, {A, Sharp}, {B, Natural},
}

// FromMIDI spells a MIDI note number using sharps.
func FromMIDI(pitch int, clef Clef) Note {
	pc := ((pitch % 12) + 12) % 12
	octave := (pitch-pc)/12 - 1
	s := pitchClassSpelling[pc]
	return Note{Letter: s.letter, Octave: octave, Accidental: s.acc, Clef: clef}
}

// KeyNote spells a pressed key: sharps, with the clef implied by the octave.
func KeyNote(pitch int) Note {
	n := FromMIDI(pitch, Treble)
	return New(n.Letter, n.Octave, n.Accidental)
}
