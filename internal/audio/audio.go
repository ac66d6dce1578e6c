package audio

import (
	"encoding/binary"
	"time"

	"github.com/satindergrewal/notequest/internal/theory"
)

// Stream format. Local devices use their own native rate.
const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Sound is a rendered note ready for one output's format.
type Sound struct {
	Note    theory.Note
	Samples []int16 // interleaved
}

// Output is a destination for rendered notes. Submit replaces whatever the
// output is currently playing.
type Output interface {
	Name() string
	SampleRate() int
	Channels() int
	Submit(s Sound) error
	Close() error
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	putSamples(buf, samples)
	return buf
}

func putSamples(dst []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
}
