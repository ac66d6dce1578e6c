package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Listener kinds reported in Status.
const (
	KindHTTP   = "http"
	KindWebRTC = "webrtc"
)

// listenerBuffer holds about three seconds of 20ms frames.
const listenerBuffer = 150

// Source produces the mixed trainer output. *audio.Pipeline satisfies it.
type Source interface {
	Frames() <-chan []int16
	Status() (note string, position, duration time.Duration, playing bool)
}

// Status describes what the stream is carrying right now.
type Status struct {
	Note      string         `json:"note,omitempty"`
	Playing   bool           `json:"playing"`
	Position  float64        `json:"position"`
	Duration  float64        `json:"duration"`
	Level     float64        `json:"level"` // peak of the last frame, 0 to 1
	Frames    uint64         `json:"frames"`
	Dropped   uint64         `json:"dropped_frames"`
	Listeners map[string]int `json:"listeners"`
}

// Broadcaster fans the trainer's PCM frames out to remote listeners and
// reports which note they are hearing.
type Broadcaster struct {
	src Source

	mu        sync.RWMutex
	listeners map[*Listener]struct{}

	frames  atomic.Uint64
	dropped atomic.Uint64
	peak    atomic.Int32
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C    chan []int16
	Kind string

	done    chan struct{}
	dropped atomic.Uint64
}

// Dropped returns how many frames this listener missed by falling behind.
func (l *Listener) Dropped() uint64 {
	return l.dropped.Load()
}

// NewBroadcaster serves frames from src. A nil src yields an idle stream.
func NewBroadcaster(src Source) *Broadcaster {
	return &Broadcaster{
		src:       src,
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a listener of the given kind.
func (b *Broadcaster) Subscribe(kind string) *Listener {
	l := &Listener{
		C:    make(chan []int16, listenerBuffer),
		Kind: kind,
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes l and closes its done channel. Repeated calls are
// no-ops.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// ListenerCount returns the number of listeners of every kind.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Status reports the sounding note together with listener and frame counts.
func (b *Broadcaster) Status() Status {
	st := Status{
		Level:     float64(b.peak.Load()) / 32768,
		Frames:    b.frames.Load(),
		Dropped:   b.dropped.Load(),
		Listeners: map[string]int{KindHTTP: 0, KindWebRTC: 0},
	}
	if b.src != nil {
		note, pos, dur, playing := b.src.Status()
		st.Note = note
		st.Playing = playing
		st.Position = pos.Seconds()
		st.Duration = dur.Seconds()
	}

	b.mu.RLock()
	for l := range b.listeners {
		st.Listeners[l.Kind]++
	}
	b.mu.RUnlock()
	return st
}

// ServeHTTP writes Status as JSON.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(b.Status())
}

// Run forwards source frames until ctx ends or the source closes.
// A listener whose buffer is full misses the frame instead of stalling
// the others.
func (b *Broadcaster) Run(ctx context.Context) {
	if b.src == nil {
		<-ctx.Done()
		return
	}
	source := b.src.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.frames.Add(1)
			b.peak.Store(peak(frame))

			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					l.dropped.Add(1)
					b.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}

func peak(frame []int16) int32 {
	var p int32
	for _, s := range frame {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		p = max(p, v)
	}
	return p
}
