package audio

import (
	"context"
	"log/slog"
	"time"
)

// Pipeline is the stream output. It emits 20ms PCM frames at real-time rate,
// silence between notes, so listeners hear presses with a steady clock.
type Pipeline struct {
	voice        *Voice
	frameCh      chan []int16
	crossfadeDur time.Duration
	log          *slog.Logger
}

// NewPipeline creates a stream pipeline that crossfades replaced notes over
// crossfadeDuration.
func NewPipeline(crossfadeDuration time.Duration, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	fade := int(crossfadeDuration.Seconds() * SampleRate)
	return &Pipeline{
		voice:        NewVoice(Channels, fade),
		frameCh:      make(chan []int16, 100),
		crossfadeDur: crossfadeDuration,
		log:          logger.With("component", "pipeline"),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// CrossfadeDuration returns the note replacement fade.
func (p *Pipeline) CrossfadeDuration() time.Duration {
	return p.crossfadeDur
}

func (p *Pipeline) Name() string    { return "stream" }
func (p *Pipeline) SampleRate() int { return SampleRate }
func (p *Pipeline) Channels() int   { return Channels }

// Submit replaces the note being streamed.
func (p *Pipeline) Submit(s Sound) error {
	p.voice.Play(s)
	p.log.Debug("streaming note", "note", s.Note.String())
	return nil
}

// Silence cuts the current note.
func (p *Pipeline) Silence() {
	p.voice.Stop()
}

// Close silences the pipeline. Run owns the frame channel and closes it.
func (p *Pipeline) Close() error {
	p.Silence()
	return nil
}

// Status returns the note being streamed and its playback position.
func (p *Pipeline) Status() (note string, position, duration time.Duration, playing bool) {
	s, played, ok := p.voice.Current()
	if !ok {
		return "", 0, 0, false
	}
	position = time.Duration(played) * time.Second / SampleRate
	duration = time.Duration(len(s.Samples)/Channels) * time.Second / SampleRate
	return s.Note.String(), position, duration, true
}

// Run emits frames until ctx is cancelled, then closes the frame channel.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := make([]int16, FrameSamples)
		p.voice.Read(frame)

		select {
		case p.frameCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}
