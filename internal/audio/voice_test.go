package audio

import "testing"

func TestVoicePlaysThenSilence(t *testing.T) {
	v := NewVoice(1, 0)
	v.Play(Sound{Samples: []int16{1, 2, 3}})

	out := make([]int16, 5)
	v.Read(out)
	want := []int16{1, 2, 3, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
	if _, _, ok := v.Current(); ok {
		t.Error("voice still active after its sound ended")
	}
}

func TestVoiceLastWriterWins(t *testing.T) {
	v := NewVoice(1, 0)
	v.Play(Sound{Samples: []int16{1, 1, 1, 1, 1, 1}})
	out := make([]int16, 2)
	v.Read(out)

	v.Play(Sound{Samples: []int16{9, 9}})
	out = make([]int16, 4)
	v.Read(out)
	want := []int16{9, 9, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestVoiceCrossfade(t *testing.T) {
	v := NewVoice(2, 3)
	old := make([]int16, 20)
	for i := range old {
		old[i] = 1000
	}
	v.Play(Sound{Samples: old})
	v.Read(make([]int16, 4))

	incoming := make([]int16, 20)
	for i := range incoming {
		incoming[i] = 3000
	}
	v.Play(Sound{Samples: incoming})

	out := make([]int16, 10)
	v.Read(out)

	// the fade rises monotonically from the old level toward the new one
	prev := int16(1000)
	for f := 0; f < 3; f++ {
		l, r := out[f*2], out[f*2+1]
		if l != r {
			t.Errorf("frame %d channels differ: %d vs %d", f, l, r)
		}
		if l <= prev || l >= 3000 {
			t.Errorf("frame %d = %d, want between %d and 3000", f, l, prev)
		}
		prev = l
	}
	if out[6] != 3000 || out[8] != 3000 {
		t.Errorf("after fade = %d, %d, want 3000", out[6], out[8])
	}
}

func TestVoiceStop(t *testing.T) {
	v := NewVoice(2, 4)
	v.Play(Sound{Samples: []int16{5, 5, 5, 5}})
	v.Stop()
	out := []int16{7, 7, 7, 7}
	v.Read(out)
	for i, s := range out {
		if s != 0 {
			t.Errorf("out[%d] = %d after Stop, want 0", i, s)
		}
	}
}

func TestVoiceCurrentPosition(t *testing.T) {
	v := NewVoice(2, 0)
	v.Play(Sound{Samples: make([]int16, 8)})
	v.Read(make([]int16, 4))
	_, played, ok := v.Current()
	if !ok || played != 2 {
		t.Errorf("Current = %d, %v, want 2 frames played", played, ok)
	}
}

func TestVoicePartialFrameZeroed(t *testing.T) {
	v := NewVoice(2, 0)
	v.Play(Sound{Samples: []int16{4, 4, 4, 4}})
	out := []int16{1, 1, 1}
	v.Read(out)
	if out[0] != 4 || out[1] != 4 || out[2] != 0 {
		t.Errorf("out = %v, want [4 4 0]", out)
	}
}
