package audio

import "sync"

// Voice plays one sound at a time. A new sound replaces the current one,
// blending the two over a short smoothstep fade so the cut does not click.
type Voice struct {
	mu       sync.Mutex
	channels int
	fade     int // sample frames
	outgoing []int16

	cur     Sound
	curPos  int
	prev    []int16
	prevPos int
	fadePos int
}

// NewVoice returns a voice for interleaved buffers of the given channel
// count. fadeFrames of 0 cuts instantly.
func NewVoice(channels, fadeFrames int) *Voice {
	if channels < 1 {
		channels = 1
	}
	return &Voice{
		channels: channels,
		fade:     max(0, fadeFrames),
		outgoing: make([]int16, channels),
	}
}

// Play starts s, replacing anything still sounding.
func (v *Voice) Play(s Sound) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.prev = nil
	if v.fade > 0 && v.curPos < len(v.cur.Samples) {
		v.prev = v.cur.Samples
		v.prevPos = v.curPos
		v.fadePos = 0
	}
	v.cur = s
	v.curPos = 0
}

// Stop silences the voice immediately.
func (v *Voice) Stop() {
	v.mu.Lock()
	v.cur = Sound{}
	v.curPos = 0
	v.prev = nil
	v.mu.Unlock()
}

// Current returns the sound being played and how many sample frames of it
// have been read. ok is false when the voice is silent.
func (v *Voice) Current() (s Sound, played int, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.curPos >= len(v.cur.Samples) {
		return Sound{}, 0, false
	}
	return v.cur, v.curPos / v.channels, true
}

// Read fills out with the next interleaved samples, padding with silence.
func (v *Voice) Read(out []int16) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := v.channels
	frames := len(out) / ch
	for f := 0; f < frames; f++ {
		frame := out[f*ch : (f+1)*ch]
		for c := range frame {
			frame[c] = take(v.cur.Samples, &v.curPos)
		}
		if v.prev == nil {
			continue
		}
		for c := range v.outgoing {
			v.outgoing[c] = take(v.prev, &v.prevPos)
		}
		blend(frame, v.outgoing, frame, float64(v.fadePos+1)/float64(v.fade+1))
		v.fadePos++
		if v.fadePos >= v.fade {
			v.prev = nil
		}
	}
	clear(out[frames*ch:])
}

func take(buf []int16, pos *int) int16 {
	if *pos >= len(buf) {
		return 0
	}
	s := buf[*pos]
	*pos++
	return s
}
