// Package session runs a timed practice session: it draws target notes,
// scores key presses and completes after a fixed number of notes.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satindergrewal/notequest/internal/clock"
	"github.com/satindergrewal/notequest/internal/generator"
	"github.com/satindergrewal/notequest/internal/theory"
)

var (
	ErrInvalidNoteCount = errors.New("note count must be positive")
	ErrInvalidDuration  = errors.New("session duration must not be negative")
	ErrSessionActive    = errors.New("session already active")
	ErrNotActive        = errors.New("session not active")
)

// Attempt results reported to the Recorder.
const (
	ResultCorrect   = "correct"
	ResultIncorrect = "incorrect"
	ResultTimeout   = "timeout"
	ResultSkip      = "skip"
)

// Lifecycle events reported to the Recorder.
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventExpired   = "expired"
	EventEnded     = "ended"
	EventReset     = "reset"
)

// DurationOptions are the session caps offered to players, in minutes.
var DurationOptions = []int{10, 20, 30, 40, 50, 60}

// Config holds session timing.
type Config struct {
	NoteTimeout     time.Duration // per-note countdown ceiling
	SessionDuration time.Duration // optional wall-clock cap, 0 disables it
	SettleDelay     time.Duration // pause after a correct answer, 0 disables it
}

// DefaultConfig returns a 60 s countdown, no session cap and a 500 ms settle.
func DefaultConfig() Config {
	return Config{
		NoteTimeout: 60 * time.Second,
		SettleDelay: 500 * time.Millisecond,
	}
}

// Recorder receives gameplay counters, typically backed by metrics.
type Recorder interface {
	Attempt(result string)
	SessionEvent(event string)
	Score(score int)
}

type nopRecorder struct{}

func (nopRecorder) Attempt(string)      {}
func (nopRecorder) SessionEvent(string) {}
func (nopRecorder) Score(int)           {}

// Outcome describes what a submission did.
type Outcome int

const (
	Ignored Outcome = iota // arrived while the next note was settling
	Correct
	Incorrect
)

func (o Outcome) String() string {
	switch o {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	}
	return "ignored"
}

// Session is the practice state machine. All methods are safe for
// concurrent use; timer callbacks and submissions share one lock.
type Session struct {
	cfg Config
	gen *generator.Generator
	clk clock.Clock
	log *slog.Logger
	rec Recorder

	mu       sync.Mutex
	state    State
	id       string
	notes    []theory.Note
	score    int
	total    int
	correct  int
	index    int
	target   int
	remain   int
	feedback Feedback
	settling bool
	started  time.Time
	ended    time.Time
	deadline time.Time

	countdown task
	settle    task
	limit     task

	observers []func(Snapshot)
}

// New creates an idle session. A nil generator, clock or logger selects the
// default.
func New(cfg Config, gen *generator.Generator, clk clock.Clock, logger *slog.Logger) *Session {
	if cfg.NoteTimeout < time.Second {
		cfg.NoteTimeout = DefaultConfig().NoteTimeout
	}
	if gen == nil {
		gen = generator.New(nil)
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:       cfg,
		gen:       gen,
		clk:       clk,
		log:       logger.With("component", "session"),
		rec:       nopRecorder{},
		countdown: task{clk: clk},
		settle:    task{clk: clk},
		limit:     task{clk: clk},
	}
}

// SetRecorder installs a counter sink. Pass nil to disable.
func (s *Session) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	s.mu.Lock()
	s.rec = r
	s.mu.Unlock()
}

// OnChange registers fn to receive a snapshot after every change. fn runs
// outside the session lock and may call back into the session.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Config returns the session timing.
func (s *Session) Config() Config {
	return s.cfg
}

// Start begins a session of n notes using the configured duration cap.
func (s *Session) Start(n int) error {
	return s.StartFor(n, s.cfg.SessionDuration)
}

// StartFor begins a session of n notes with a wall-clock cap of d. A zero d
// leaves the session bounded by its note count alone. Starting from the
// complete state discards the finished run.
func (s *Session) StartFor(n int, d time.Duration) error {
	if n <= 0 {
		return fmt.Errorf("start %d notes: %w", n, ErrInvalidNoteCount)
	}
	if d < 0 {
		return fmt.Errorf("start for %v: %w", d, ErrInvalidDuration)
	}

	s.mu.Lock()
	if s.state == Active {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.clearLocked()
	s.state = Active
	s.id = uuid.NewString()
	s.target = n
	s.started = s.clk.Now()
	if d > 0 {
		s.deadline = s.started.Add(d)
		s.limit.schedule(d, s.onLimit)
	}
	s.nextNoteLocked()
	s.rec.SessionEvent(EventStarted)
	s.rec.Score(0)
	s.log.Info("session started", "id", s.id, "notes", n, "cap", d)
	s.unlockAndNotify()
	return nil
}

// Submit checks a candidate note against the target by pitch.
// Presses during the settle pause are ignored.
func (s *Session) Submit(candidate theory.Note) (Outcome, error) {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return Ignored, ErrNotActive
	}
	if s.settling || len(s.notes) == 0 {
		s.mu.Unlock()
		return Ignored, nil
	}

	target := s.notes[0]
	if !theory.SamePitch(candidate, target) {
		if s.score > 0 {
			s.score--
		}
		s.feedback = Negative
		s.rec.Attempt(ResultIncorrect)
		s.rec.Score(s.score)
		s.log.Debug("wrong note", "target", target.String(), "pressed", candidate.String())
		s.unlockAndNotify()
		return Incorrect, nil
	}

	s.score++
	s.total++
	s.correct++
	s.feedback = Positive
	s.rec.Attempt(ResultCorrect)
	s.rec.Score(s.score)
	s.advanceLocked()

	switch {
	case s.index >= s.target:
		s.completeLocked(EventCompleted)
	case s.cfg.SettleDelay > 0:
		s.settling = true
		s.countdown.cancel()
		s.settle.schedule(s.cfg.SettleDelay, s.onSettle)
	default:
		s.nextNoteLocked()
	}
	s.unlockAndNotify()
	return Correct, nil
}

// Skip gives up on the current note. It counts as an attempt without credit,
// exactly like a timeout.
func (s *Session) Skip() error {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return ErrNotActive
	}
	if s.settling {
		s.mu.Unlock()
		return nil
	}
	s.missLocked(ResultSkip)
	s.unlockAndNotify()
	return nil
}

// End completes an active session early and freezes its counters.
func (s *Session) End() error {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return ErrNotActive
	}
	s.completeLocked(EventEnded)
	s.unlockAndNotify()
	return nil
}

// Reset returns to idle and clears every counter. It aborts an active run.
func (s *Session) Reset() {
	s.mu.Lock()
	s.clearLocked()
	s.rec.SessionEvent(EventReset)
	s.rec.Score(0)
	s.unlockAndNotify()
}

func (s *Session) onTick(token uint64) {
	s.mu.Lock()
	if s.state != Active || !s.countdown.current(token) {
		s.mu.Unlock()
		return
	}
	s.remain--
	if s.remain > 0 {
		s.countdown.schedule(time.Second, s.onTick)
	} else {
		s.remain = 0
		s.missLocked(ResultTimeout)
	}
	s.unlockAndNotify()
}

func (s *Session) onSettle(token uint64) {
	s.mu.Lock()
	if s.state != Active || !s.settle.current(token) {
		s.mu.Unlock()
		return
	}
	s.settle.cancel()
	s.settling = false
	s.nextNoteLocked()
	s.unlockAndNotify()
}

func (s *Session) onLimit(token uint64) {
	s.mu.Lock()
	if s.state != Active || !s.limit.current(token) {
		s.mu.Unlock()
		return
	}
	s.completeLocked(EventExpired)
	s.unlockAndNotify()
}

// missLocked records an attempt without credit and moves on.
func (s *Session) missLocked(result string) {
	s.total++
	s.rec.Attempt(result)
	s.advanceLocked()
	if s.index >= s.target {
		s.completeLocked(EventCompleted)
		return
	}
	s.nextNoteLocked()
}

func (s *Session) advanceLocked() {
	s.index++
	if s.index > s.target {
		s.log.Error("note index past target, clamping", "index", s.index, "target", s.target)
		s.index = s.target
	}
}

func (s *Session) nextNoteLocked() {
	s.notes = s.gen.Next(s.notes)
	s.feedback = Neutral
	s.remain = int(s.cfg.NoteTimeout / time.Second)
	s.countdown.schedule(time.Second, s.onTick)
}

func (s *Session) completeLocked(event string) {
	s.cancelTimersLocked()
	s.state = Complete
	s.settling = false
	s.notes = nil
	s.ended = s.clk.Now()
	s.rec.SessionEvent(event)

	attrs := []any{"id", s.id, "reason", event, "correct", s.correct, "total", s.total, "score", s.score}
	if s.total > 0 {
		attrs = append(attrs, "accuracy", fmt.Sprintf("%.0f%%", 100*float64(s.correct)/float64(s.total)))
	}
	s.log.Info("session complete", attrs...)
}

func (s *Session) cancelTimersLocked() {
	s.countdown.cancel()
	s.settle.cancel()
	s.limit.cancel()
}

func (s *Session) clearLocked() {
	s.cancelTimersLocked()
	s.state = Idle
	s.id = ""
	s.notes = nil
	s.score = 0
	s.total = 0
	s.correct = 0
	s.index = 0
	s.target = 0
	s.remain = 0
	s.feedback = Neutral
	s.settling = false
	s.started = time.Time{}
	s.ended = time.Time{}
	s.deadline = time.Time{}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:               s.id,
		State:            s.state,
		Notes:            append([]theory.Note{}, s.notes...),
		Score:            s.score,
		Feedback:         s.feedback,
		FeedbackText:     s.feedback.Text(),
		Settling:         s.settling,
		RemainingSeconds: s.remain,
		CurrentIndex:     s.index,
		TargetNoteCount:  s.target,
		TotalAttempts:    s.total,
		CorrectAttempts:  s.correct,
		StartedAt:        s.started,
		EndedAt:          s.ended,
	}
	if acc, ok := snap.Accuracy(); ok {
		pct := acc * 100
		snap.AccuracyPct = &pct
	}

	now := s.clk.Now()
	if !s.started.IsZero() {
		end := now
		if !s.ended.IsZero() {
			end = s.ended
		}
		snap.Elapsed = end.Sub(s.started)
		snap.ElapsedSeconds = int(snap.Elapsed / time.Second)
	}
	if s.state == Active && !s.deadline.IsZero() {
		snap.SessionRemaining = max(0, s.deadline.Sub(now))
		snap.SessionRemainingSeconds = int((snap.SessionRemaining + time.Second - 1) / time.Second)
	}
	return snap
}

// unlockAndNotify releases the lock and delivers a snapshot to observers.
func (s *Session) unlockAndNotify() {
	snap := s.snapshotLocked()
	observers := s.observers
	s.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}
