package audio

import (
	"context"
	"log/slog"
	"time"

	"github.com/satindergrewal/notequest/internal/clock"
	"github.com/satindergrewal/notequest/internal/synth"
	"github.com/satindergrewal/notequest/internal/theory"
)

// Recorder receives playback counters.
type Recorder interface {
	NotePlayed()
	PlaybackDropped()
	PlaybackFailed()
}

type nopRecorder struct{}

func (nopRecorder) NotePlayed()      {}
func (nopRecorder) PlaybackDropped() {}
func (nopRecorder) PlaybackFailed()  {}

// EngineConfig tunes the synthesis engine.
type EngineConfig struct {
	Gain     float64       // 0 selects synth.Gain
	RetryMin time.Duration // first device retry delay
	RetryMax time.Duration // longest device retry delay
}

// DeviceOpener opens the local playback device.
type DeviceOpener func() (Output, error)

type renderKey struct {
	pitch    int
	rate     int
	channels int
}

// Engine renders notes on a worker goroutine and hands them to its outputs.
// Sound is cosmetic: output failures are logged and counted, never returned.
type Engine struct {
	cfg  EngineConfig
	log  *slog.Logger
	clk  clock.Clock
	rec  Recorder
	reqs chan theory.Note

	outputs []Output
	open    DeviceOpener

	// owned by the worker
	device  Output
	retryAt time.Time
	backoff time.Duration
	cache   map[renderKey][]int16
}

// NewEngine creates an engine. Outputs and the device opener must be set
// before Run.
func NewEngine(cfg EngineConfig, clk clock.Clock, logger *slog.Logger) *Engine {
	if cfg.Gain <= 0 {
		cfg.Gain = synth.Gain
	}
	if cfg.RetryMin <= 0 {
		cfg.RetryMin = time.Second
	}
	if cfg.RetryMax < cfg.RetryMin {
		cfg.RetryMax = 30 * time.Second
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:   cfg,
		log:   logger.With("component", "synth"),
		clk:   clk,
		rec:   nopRecorder{},
		reqs:  make(chan theory.Note, 1),
		cache: make(map[renderKey][]int16),
	}
}

// SetRecorder installs a counter sink.
func (e *Engine) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	e.rec = r
}

// AddOutput adds an always-on output such as the stream pipeline.
func (e *Engine) AddOutput(o Output) {
	e.outputs = append(e.outputs, o)
}

// SetDevice sets the opener for the local device. It is called lazily on
// the next play and again after failures, with back-off.
func (e *Engine) SetDevice(open DeviceOpener) {
	e.open = open
}

// Play queues n for playback without blocking. A request still waiting for
// the worker is replaced by the newer one and counted as dropped.
func (e *Engine) Play(n theory.Note) {
	select {
	case e.reqs <- n:
		return
	default:
	}

	select {
	case old := <-e.reqs:
		e.rec.PlaybackDropped()
		e.log.Debug("dropped queued note", "note", old.String())
	default:
	}

	select {
	case e.reqs <- n:
	default:
		e.rec.PlaybackDropped()
		e.log.Debug("dropped note, synth busy", "note", n.String())
	}
}

// Run processes play requests until ctx is cancelled, then closes the
// device.
func (e *Engine) Run(ctx context.Context) {
	defer e.closeDevice()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-e.reqs:
			e.play(n)
		}
	}
}

// Render returns n as interleaved PCM for the given format.
func (e *Engine) Render(n theory.Note, rate, channels int) []int16 {
	key := renderKey{pitch: n.MIDIPitch(), rate: rate, channels: channels}
	if pcm, ok := e.cache[key]; ok {
		return pcm
	}
	pcm := synth.ToInt16(synth.Render(n, rate, synth.Options{Gain: e.cfg.Gain}), channels)
	e.cache[key] = pcm
	return pcm
}

func (e *Engine) play(n theory.Note) {
	e.ensureDevice()

	outs := e.outputs
	if e.device != nil {
		outs = append(outs[:len(outs):len(outs)], e.device)
	}

	played := false
	for _, o := range outs {
		s := Sound{Note: n, Samples: e.Render(n, o.SampleRate(), o.Channels())}
		if err := o.Submit(s); err != nil {
			e.log.Warn("playback failed", "output", o.Name(), "note", n.String(), "error", err)
			e.rec.PlaybackFailed()
			if o == e.device {
				e.closeDevice()
			}
			continue
		}
		played = true
	}
	if played {
		e.rec.NotePlayed()
	}
}

func (e *Engine) ensureDevice() {
	if e.open == nil || e.device != nil {
		return
	}
	now := e.clk.Now()
	if now.Before(e.retryAt) {
		return
	}

	dev, err := e.open()
	if err != nil {
		if e.backoff == 0 {
			e.backoff = e.cfg.RetryMin
		} else {
			e.backoff = min(e.backoff*2, e.cfg.RetryMax)
		}
		e.retryAt = now.Add(e.backoff)
		e.rec.PlaybackFailed()
		e.log.Warn("audio device unavailable, sound disabled", "error", err, "retry_in", e.backoff)
		return
	}

	e.device = dev
	e.backoff = 0
	e.retryAt = time.Time{}
	e.log.Info("audio device ready", "device", dev.Name(), "sample_rate", dev.SampleRate(), "channels", dev.Channels())
}

func (e *Engine) closeDevice() {
	if e.device == nil {
		return
	}
	if err := e.device.Close(); err != nil {
		e.log.Warn("close audio device", "error", err)
	}
	e.device = nil
}
