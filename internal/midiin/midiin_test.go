package midiin

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/satindergrewal/notequest/internal/session"
	"github.com/satindergrewal/notequest/internal/theory"
)

type recorder struct {
	played    []theory.Note
	submitted []theory.Note
	err       error
}

func (r *recorder) Play(n theory.Note) { r.played = append(r.played, n) }

func (r *recorder) Submit(n theory.Note) (session.Outcome, error) {
	r.submitted = append(r.submitted, n)
	if r.err != nil {
		return session.Ignored, r.err
	}
	return session.Correct, nil
}

func newHandler(r *recorder) *Handler {
	return NewHandler(r, r, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNoteOnPresses(t *testing.T) {
	r := &recorder{}
	newHandler(r).HandleMessage(midi.NoteOn(0, 66, 100), 0)

	require.Len(t, r.played, 1)
	require.Len(t, r.submitted, 1)
	assert.Equal(t, "F#4", r.submitted[0].String())
	assert.Equal(t, theory.Treble, r.submitted[0].Clef)
	assert.Equal(t, r.played[0], r.submitted[0])
}

func TestOtherMessagesIgnored(t *testing.T) {
	r := &recorder{}
	h := newHandler(r)
	h.HandleMessage(midi.NoteOn(0, 60, 0), 0)
	h.HandleMessage(midi.NoteOff(0, 60), 0)
	h.HandleMessage(midi.ControlChange(0, 64, 127), 0)

	assert.Empty(t, r.played)
	assert.Empty(t, r.submitted)
}

func TestPressWhileIdleStillPlays(t *testing.T) {
	r := &recorder{err: session.ErrNotActive}
	newHandler(r).Press(48)

	require.Len(t, r.played, 1)
	assert.Equal(t, theory.Bass, r.played[0].Clef)
}

func TestNilPlayer(t *testing.T) {
	r := &recorder{}
	NewHandler(nil, r, nil).Press(60)
	assert.Len(t, r.submitted, 1)
}

func TestMatchPort(t *testing.T) {
	names := []string{"Midi Through:Midi Through Port-0 14:0", "Keystation 49 MK3:Keystation 49 MK3 MIDI 1 24:0"}

	i, ok := matchPort(names, "keystation")
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = matchPort(names, "launchkey")
	assert.False(t, ok)
}
