// Package synth renders notes as additive piano-like tones.
package synth

import (
	"math"

	"github.com/satindergrewal/notequest/internal/theory"
)

const (
	// ToneDuration is the length of every rendered note in seconds.
	ToneDuration = 1.0
	// Gain scales the normalized harmonic sum.
	Gain = 0.3

	Attack       = 0.01
	Decay        = 0.1
	SustainLevel = 0.1
	Release      = 0.1
)

// Harmonics are the partial amplitudes for multiples 1..6 of the fundamental.
var Harmonics = [...]float64{1.0, 0.5, 0.3, 0.2, 0.15, 0.1}

// Peak returns the largest magnitude Render can produce at the given gain.
func Peak(gain float64) float64 {
	var sum float64
	for _, a := range Harmonics {
		sum += a
	}
	return gain * sum / float64(len(Harmonics))
}

// Envelope returns the ADSR amplitude at time t of a tone lasting total seconds.
func Envelope(t, total float64) float64 {
	switch {
	case t < 0:
		return 0
	case t < Attack:
		return t / Attack
	case t < Attack+Decay:
		return 1 - (1-SustainLevel)*(t-Attack)/Decay
	case t < total-Release:
		return SustainLevel
	case t <= total:
		return SustainLevel * (1 - (t-(total-Release))/Release)
	}
	return 0
}

// Options tune a render. The zero value renders ToneDuration at Gain.
type Options struct {
	Duration float64 // seconds
	Gain     float64
}

func (o Options) withDefaults() Options {
	if o.Duration <= 0 {
		o.Duration = ToneDuration
	}
	if o.Gain <= 0 {
		o.Gain = Gain
	}
	return o
}

// Samples returns the buffer length for a tone at sampleRate.
func Samples(sampleRate int, duration float64) int {
	return int(math.Round(float64(sampleRate) * duration))
}

// Render synthesizes n as mono float samples in [-1, 1].
func Render(n theory.Note, sampleRate int, opts Options) []float64 {
	if sampleRate <= 0 {
		return nil
	}
	opts = opts.withDefaults()

	f := n.Frequency()
	count := Samples(sampleRate, opts.Duration)
	out := make([]float64, count)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		var sum float64
		for h, amp := range Harmonics {
			sum += amp * math.Sin(2*math.Pi*f*float64(h+1)*t)
		}
		out[i] = sum / float64(len(Harmonics)) * opts.Gain * Envelope(t, opts.Duration)
	}
	return out
}

// ToInt16 converts float samples to 16-bit PCM, copying each sample to every
// channel of an interleaved buffer.
func ToInt16(mono []float64, channels int) []int16 {
	if channels < 1 {
		channels = 1
	}
	out := make([]int16, len(mono)*channels)
	for i, s := range mono {
		v := int16(math.Round(clamp(s) * math.MaxInt16))
		for c := 0; c < channels; c++ {
			out[i*channels+c] = v
		}
	}
	return out
}

func clamp(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
