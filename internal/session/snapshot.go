package session

import (
	"encoding"
	"fmt"
	"time"

	"github.com/satindergrewal/notequest/internal/theory"
)

// State is the session lifecycle phase.
type State int

const (
	Idle State = iota
	Active
	Complete
)

var stateNames = [...]string{"idle", "active", "complete"}

func (s State) String() string {
	if s < Idle || s > Complete {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Feedback is the result of the latest key press, shown next to the score.
type Feedback int

const (
	Neutral Feedback = iota // no attempt on the current note yet
	Positive
	Negative
)

// Text returns the message displayed for the feedback.
func (f Feedback) Text() string {
	switch f {
	case Positive:
		return "Correct!"
	case Negative:
		return "Try again!"
	}
	return "Press the key!"
}

func (f Feedback) String() string {
	switch f {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	}
	return "neutral"
}

func (f Feedback) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

var (
	_ encoding.TextMarshaler = State(0)
	_ encoding.TextMarshaler = Feedback(0)
)

// Snapshot is an immutable copy of the session taken after a change.
type Snapshot struct {
	ID    string `json:"id,omitempty"`
	State State  `json:"state"`

	// Notes holds the current target; it is empty unless the session is
	// active and has exactly one element otherwise.
	Notes []theory.Note `json:"notes"`

	Score        int      `json:"score"`
	Feedback     Feedback `json:"feedback"`
	FeedbackText string   `json:"feedback_text"`
	Settling     bool     `json:"settling"`

	RemainingSeconds int `json:"remaining_seconds"`
	CurrentIndex     int `json:"current_index"`
	TargetNoteCount  int `json:"target_note_count"`
	TotalAttempts    int `json:"total_attempts"`
	CorrectAttempts  int `json:"correct_attempts"`

	// AccuracyPct is set only when at least one attempt was made.
	AccuracyPct *float64 `json:"accuracy,omitempty"`

	StartedAt time.Time `json:"started_at,omitzero"`
	EndedAt   time.Time `json:"ended_at,omitzero"`

	Elapsed        time.Duration `json:"-"`
	ElapsedSeconds int           `json:"elapsed_seconds"`

	// SessionRemaining is the time left on the wall-clock cap, zero when
	// no cap is armed. The seconds field rounds up so a running cap never
	// reads 0.
	SessionRemaining        time.Duration `json:"-"`
	SessionRemainingSeconds int           `json:"session_remaining_seconds"`
}

// Current returns the target note.
func (s Snapshot) Current() (theory.Note, bool) {
	if len(s.Notes) == 0 {
		return theory.Note{}, false
	}
	return s.Notes[0], true
}

// Accuracy returns correct/total attempts as a fraction in [0,1].
// ok is false when there were no attempts.
func (s Snapshot) Accuracy() (float64, bool) {
	if s.TotalAttempts == 0 {
		return 0, false
	}
	return float64(s.CorrectAttempts) / float64(s.TotalAttempts), true
}
