package session

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/satindergrewal/notequest/internal/clock"
	"github.com/satindergrewal/notequest/internal/generator"
	"github.com/satindergrewal/notequest/internal/theory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingRecorder struct {
	mu       sync.Mutex
	attempts map[string]int
	events   []string
	score    int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{attempts: map[string]int{}}
}

func (r *countingRecorder) Attempt(result string) {
	r.mu.Lock()
	r.attempts[result]++
	r.mu.Unlock()
}

func (r *countingRecorder) SessionEvent(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *countingRecorder) Score(score int) {
	r.mu.Lock()
	r.score = score
	r.mu.Unlock()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, cfg Config) (*Session, *clock.Fake, *countingRecorder) {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	s := New(cfg, generator.NewSeeded(7), clk, quietLogger())
	rec := newCountingRecorder()
	s.SetRecorder(rec)
	return s, clk, rec
}

func noSettle() Config {
	cfg := DefaultConfig()
	cfg.SettleDelay = 0
	return cfg
}

// wrongNote returns a note that never matches target.
func wrongNote(target theory.Note) theory.Note {
	return theory.FromMIDI(target.MIDIPitch()+1, target.Clef)
}

func current(t *testing.T, s *Session) theory.Note {
	t.Helper()
	n, ok := s.Snapshot().Current()
	require.True(t, ok, "no current note")
	return n
}

func TestNewSessionIsIdle(t *testing.T) {
	s, _, _ := newTestSession(t, DefaultConfig())
	snap := s.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Empty(t, snap.Notes)
	assert.Equal(t, "Press the key!", snap.FeedbackText)
	_, ok := snap.Accuracy()
	assert.False(t, ok)
	assert.Nil(t, snap.AccuracyPct)
}

func TestStartRejectsInvalidCount(t *testing.T) {
	s, _, rec := newTestSession(t, DefaultConfig())
	for _, n := range []int{0, -1} {
		err := s.Start(n)
		require.ErrorIs(t, err, ErrInvalidNoteCount)
	}
	assert.Equal(t, Idle, s.Snapshot().State)
	assert.Empty(t, rec.events)

	require.ErrorIs(t, s.StartFor(5, -time.Second), ErrInvalidDuration)
	assert.Equal(t, Idle, s.Snapshot().State)
}

func TestStartWhileActive(t *testing.T) {
	s, _, _ := newTestSession(t, DefaultConfig())
	require.NoError(t, s.Start(3))
	id := s.Snapshot().ID

	require.ErrorIs(t, s.Start(3), ErrSessionActive)
	assert.Equal(t, id, s.Snapshot().ID)
}

func TestStartArmsFirstNote(t *testing.T) {
	s, _, rec := newTestSession(t, DefaultConfig())
	require.NoError(t, s.Start(5))

	snap := s.Snapshot()
	assert.Equal(t, Active, snap.State)
	assert.NotEmpty(t, snap.ID)
	assert.Len(t, snap.Notes, 1)
	assert.Equal(t, 60, snap.RemainingSeconds)
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.Equal(t, 5, snap.TargetNoteCount)
	assert.Equal(t, Neutral, snap.Feedback)
	assert.Equal(t, []string{EventStarted}, rec.events)
}

func TestFiveNoteScenario(t *testing.T) {
	s, clk, rec := newTestSession(t, noSettle())
	require.NoError(t, s.Start(5))

	for i := 0; i < 3; i++ {
		out, err := s.Submit(current(t, s))
		require.NoError(t, err)
		require.Equal(t, Correct, out)
	}
	clk.Advance(60 * time.Second)
	assert.Equal(t, 4, s.Snapshot().CurrentIndex)
	clk.Advance(60 * time.Second)

	snap := s.Snapshot()
	assert.Equal(t, Complete, snap.State)
	assert.Equal(t, 5, snap.TotalAttempts)
	assert.Equal(t, 3, snap.CorrectAttempts)
	assert.Equal(t, 5, snap.CurrentIndex)
	assert.Equal(t, 3, snap.Score)
	acc, ok := snap.Accuracy()
	require.True(t, ok)
	assert.InDelta(t, 0.6, acc, 1e-9)
	require.NotNil(t, snap.AccuracyPct)
	assert.InDelta(t, 60.0, *snap.AccuracyPct, 1e-9)

	assert.Equal(t, 3, rec.attempts[ResultCorrect])
	assert.Equal(t, 2, rec.attempts[ResultTimeout])
	assert.Equal(t, []string{EventStarted, EventCompleted}, rec.events)
	assert.Equal(t, 0, clk.Pending(), "timers left running after completion")
}

func TestCountdownTicksOncePerSecond(t *testing.T) {
	s, clk, _ := newTestSession(t, DefaultConfig())
	require.NoError(t, s.Start(2))

	clk.Advance(time.Second)
	assert.Equal(t, 59, s.Snapshot().RemainingSeconds)
	clk.Advance(9 * time.Second)
	assert.Equal(t, 50, s.Snapshot().RemainingSeconds)
	clk.Advance(500 * time.Millisecond)
	assert.Equal(t, 50, s.Snapshot().RemainingSeconds)
}

func TestTimeoutAdvancesAndRearms(t *testing.T) {
	s, clk, _ := newTestSession(t, DefaultConfig())
	require.NoError(t, s.Start(3))
	first := current(t, s)

	clk.Advance(60 * time.Second)
	snap := s.Snapshot()
	assert.Equal(t, Active, snap.State)
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.Equal(t, 1, snap.TotalAttempts)
	assert.Equal(t, 0, snap.CorrectAttempts)
	assert.Equal(t, 60, snap.RemainingSeconds)
	assert.False(t, theory.SamePitch(first, current(t, s)))
}

func TestScoreFloor(t *testing.T) {
	s, _, _ := newTestSession(t, DefaultConfig())
	require.NoError(t, s.Start(5))
	target := current(t, s)

	for i := 0; i < 3; i++ {
		out, err := s.Submit(wrongNote(target))
		require.NoError(t, err)
		assert.Equal(t, Incorrect, out)
	}
	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Score)
	assert.Equal(t, Negative, snap.Feedback)
	assert.Equal(t, "Try again!", snap.FeedbackText)
}

func TestIncorrectKeepsNoteAndCountdown(t *testing.T) {
	s, clk, _ := newTestSession(t, noSettle())
	require.NoError(t, s.Start(5))

	_, err := s.Submit(current(t, s))
	require.NoError(t, err)
	target := current(t, s)

	clk.Advance(10 * time.Second)
	_, err = s.Submit(wrongNote(target))
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Score)
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.Equal(t, 1, snap.TotalAttempts)
	assert.Equal(t, 50, snap.RemainingSeconds)
	assert.True(t, theory.SamePitch(target, snap.Notes[0]))
}

func TestEnharmonicCandidateIsCorrect(t *testing.T) {
	s, _, _ := newTestSession(t, noSettle())
	require.NoError(t, s.Start(2))
	target := current(t, s)

	// the same pitch spelled from its MIDI number, with the other clef
	other := theory.Bass
	if target.Clef == theory.Bass {
		other = theory.Treble
	}
	out, err := s.Submit(theory.FromMIDI(target.MIDIPitch(), other))
	require.NoError(t, err)
	assert.Equal(t, Correct, out)
}

func TestSettleDelay(t *testing.T) {
	s, clk, _ := newTestSession(t, DefaultConfig())
	require.NoError(t, s.Start(3))

	_, err := s.Submit(current(t, s))
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.True(t, snap.Settling)
	assert.Equal(t, Positive, snap.Feedback)
	assert.Equal(t, "Correct!", snap.FeedbackText)
	assert.Equal(t, 1, snap.CurrentIndex)

	// presses and skips during the pause change nothing
	out, err := s.Submit(snap.Notes[0])
	require.NoError(t, err)
	assert.Equal(t, Ignored, out)
	require.NoError(t, s.Skip())
	assert.Equal(t, 1, s.Snapshot().TotalAttempts)

	clk.Advance(499 * time.Millisecond)
	assert.True(t, s.Snapshot().Settling)

	clk.Advance(time.Millisecond)
	snap = s.Snapshot()
	assert.False(t, snap.Settling)
	assert.Equal(t, Neutral, snap.Feedback)
	assert.Equal(t, 60, snap.RemainingSeconds)
	assert.Len(t, snap.Notes, 1)
}

func TestSkipActsLikeTimeout(t *testing.T) {
	s, _, rec := newTestSession(t, DefaultConfig())
	require.NoError(t, s.Start(2))

	require.NoError(t, s.Skip())
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.Equal(t, 1, snap.TotalAttempts)
	assert.Equal(t, 0, snap.CorrectAttempts)
	assert.Equal(t, 60, snap.RemainingSeconds)

	require.NoError(t, s.Skip())
	assert.Equal(t, Complete, s.Snapshot().State)
	assert.Equal(t, 2, rec.attempts[ResultSkip])

	require.ErrorIs(t, s.Skip(), ErrNotActive)
}

func TestEndFreezesCounters(t *testing.T) {
	s, clk, rec := newTestSession(t, noSettle())
	require.NoError(t, s.Start(10))
	_, err := s.Submit(current(t, s))
	require.NoError(t, err)

	require.NoError(t, s.End())
	before := s.Snapshot()
	assert.Equal(t, Complete, before.State)
	assert.Empty(t, before.Notes)

	clk.Advance(5 * time.Minute)
	after := s.Snapshot()
	assert.Equal(t, before.RemainingSeconds, after.RemainingSeconds)
	assert.Equal(t, before.TotalAttempts, after.TotalAttempts)
	assert.Equal(t, before.Elapsed, after.Elapsed)

	_, err = s.Submit(theory.New(theory.C, 4, theory.Natural))
	require.ErrorIs(t, err, ErrNotActive)
	require.ErrorIs(t, s.End(), ErrNotActive)
	assert.Equal(t, []string{EventStarted, EventEnded}, rec.events)
}

func TestSessionCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionDuration = 10 * time.Minute
	s, clk, rec := newTestSession(t, cfg)
	require.NoError(t, s.Start(100))
	assert.Equal(t, 10*time.Minute, s.Snapshot().SessionRemaining)

	clk.Advance(10*time.Minute - 1500*time.Millisecond)
	snap := s.Snapshot()
	assert.Equal(t, 1500*time.Millisecond, snap.SessionRemaining)
	assert.Equal(t, 2, snap.SessionRemainingSeconds)
	assert.Equal(t, 598, snap.ElapsedSeconds)

	clk.Advance(500 * time.Millisecond)
	snap = s.Snapshot()
	assert.Equal(t, Active, snap.State)
	assert.Equal(t, time.Second, snap.SessionRemaining)

	clk.Advance(time.Second)
	snap = s.Snapshot()
	assert.Equal(t, Complete, snap.State)
	assert.Less(t, snap.CurrentIndex, snap.TargetNoteCount)
	assert.Zero(t, snap.SessionRemaining)
	assert.Zero(t, snap.SessionRemainingSeconds)
	assert.Contains(t, rec.events, EventExpired)
	assert.Equal(t, 10*time.Minute, snap.Elapsed)
	assert.Equal(t, 600, snap.ElapsedSeconds)
}

func TestSnapshotJSONCarriesTiming(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionDuration = 20 * time.Minute
	s, clk, _ := newTestSession(t, cfg)
	require.NoError(t, s.Start(50))
	clk.Advance(45 * time.Second)

	b, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, float64(45), out["elapsed_seconds"])
	assert.Equal(t, float64(20*60-45), out["session_remaining_seconds"])
	assert.NotContains(t, out, "Elapsed")
}

func TestNoteCountWinsOverCap(t *testing.T) {
	s, _, rec := newTestSession(t, noSettle())
	require.NoError(t, s.StartFor(1, time.Hour))
	_, err := s.Submit(current(t, s))
	require.NoError(t, err)
	assert.Equal(t, Complete, s.Snapshot().State)
	assert.Equal(t, []string{EventStarted, EventCompleted}, rec.events)
}

func TestResetClearsEverything(t *testing.T) {
	s, clk, _ := newTestSession(t, noSettle())
	require.NoError(t, s.Start(2))
	_, err := s.Submit(current(t, s))
	require.NoError(t, err)
	require.NoError(t, s.End())

	s.Reset()
	snap := s.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Empty(t, snap.ID)
	assert.Zero(t, snap.Score)
	assert.Zero(t, snap.TotalAttempts)
	assert.Zero(t, snap.CorrectAttempts)
	assert.Zero(t, snap.CurrentIndex)
	assert.Zero(t, snap.TargetNoteCount)
	assert.True(t, snap.StartedAt.IsZero())
	assert.True(t, snap.EndedAt.IsZero())
	assert.Equal(t, 0, clk.Pending())

	require.NoError(t, s.Start(4))
	assert.Equal(t, 4, s.Snapshot().TargetNoteCount)
}

func TestResetAbortsActiveSession(t *testing.T) {
	s, clk, _ := newTestSession(t, DefaultConfig())
	require.NoError(t, s.Start(3))
	s.Reset()
	assert.Equal(t, 0, clk.Pending())
	clk.Advance(2 * time.Minute)
	assert.Equal(t, Idle, s.Snapshot().State)
}

func TestStartAfterComplete(t *testing.T) {
	s, _, _ := newTestSession(t, DefaultConfig())
	require.NoError(t, s.Start(1))
	require.NoError(t, s.Skip())
	require.Equal(t, Complete, s.Snapshot().State)

	require.NoError(t, s.Start(2))
	snap := s.Snapshot()
	assert.Equal(t, Active, snap.State)
	assert.Zero(t, snap.TotalAttempts)
}

func TestCancelIsIdempotent(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	fired := 0
	tk := task{clk: clk}
	tk.schedule(time.Second, func(token uint64) {
		if tk.current(token) {
			fired++
		}
	})

	tk.cancel()
	tk.cancel()
	assert.False(t, tk.pending())

	clk.Advance(2 * time.Second)
	assert.Zero(t, fired)
}

func TestStaleTokenIgnored(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	var tokens []uint64
	tk := task{clk: clk}
	tk.schedule(time.Second, func(token uint64) { tokens = append(tokens, token) })
	stale := tk.gen
	tk.schedule(time.Second, func(token uint64) { tokens = append(tokens, token) })

	assert.False(t, tk.current(stale))
	clk.Advance(time.Second)
	require.Len(t, tokens, 1)
	assert.True(t, tk.current(tokens[0]))
}

func TestEndTwiceDoesNotDoubleCount(t *testing.T) {
	s, clk, rec := newTestSession(t, DefaultConfig())
	require.NoError(t, s.Start(3))
	clk.Advance(5 * time.Second)

	require.NoError(t, s.End())
	remaining := s.Snapshot().RemainingSeconds
	require.ErrorIs(t, s.End(), ErrNotActive)
	assert.Equal(t, remaining, s.Snapshot().RemainingSeconds)
	assert.Equal(t, []string{EventStarted, EventEnded}, rec.events)
}

func TestOnChangeRunsOutsideLock(t *testing.T) {
	s, _, _ := newTestSession(t, noSettle())
	var got []Snapshot
	s.OnChange(func(snap Snapshot) {
		// would deadlock if observers ran under the session lock
		_ = s.Snapshot()
		got = append(got, snap)
	})

	require.NoError(t, s.Start(2))
	_, err := s.Submit(current(t, s))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, Active, got[0].State)
	assert.Equal(t, 0, got[0].CurrentIndex)
	assert.Equal(t, 1, got[1].CurrentIndex)
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _, _ := newTestSession(t, DefaultConfig())
	require.NoError(t, s.Start(2))
	snap := s.Snapshot()
	snap.Notes[0] = theory.New(theory.C, 9, theory.Natural)
	assert.NotEqual(t, 9, current(t, s).Octave)
}

func TestConcurrentSkipsNeverOvercount(t *testing.T) {
	s, _, _ := newTestSession(t, DefaultConfig())
	require.NoError(t, s.Start(50))

	var wg sync.WaitGroup
	var mu sync.Mutex
	rejected := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Skip(); errors.Is(err, ErrNotActive) {
				mu.Lock()
				rejected++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, Complete, snap.State)
	assert.Equal(t, 50, snap.TotalAttempts)
	assert.Equal(t, 50, snap.CurrentIndex)
	assert.Equal(t, 50, rejected)
}

func TestRealClockSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SettleDelay = 10 * time.Millisecond
	s := New(cfg, nil, nil, quietLogger())
	require.NoError(t, s.Start(2))

	_, err := s.Submit(current(t, s))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return !s.Snapshot().Settling
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.End())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "State(7)", State(7).String())
	assert.Equal(t, "negative", Negative.String())
	assert.Equal(t, "ignored", Ignored.String())
}
