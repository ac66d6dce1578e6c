// Package midiin feeds a hardware MIDI keyboard into the trainer.
package midiin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/satindergrewal/notequest/internal/session"
	"github.com/satindergrewal/notequest/internal/theory"
)

// ErrPortNotFound is returned when no input matches the requested name.
var ErrPortNotFound = errors.New("midi input not found")

// Player sounds a pressed key.
type Player interface {
	Play(n theory.Note)
}

// Submitter scores a pressed key.
type Submitter interface {
	Submit(n theory.Note) (session.Outcome, error)
}

// Handler turns note-on messages into key presses.
type Handler struct {
	player Player
	sess   Submitter
	log    *slog.Logger
}

// NewHandler creates a handler. player may be nil.
func NewHandler(player Player, sess Submitter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{player: player, sess: sess, log: logger.With("component", "midi")}
}

// HandleMessage is a midi.ListenTo receiver. Only note-on with a non-zero
// velocity counts as a press.
func (h *Handler) HandleMessage(msg midi.Message, timestampms int32) {
	var ch, key, vel uint8
	if !msg.GetNoteStart(&ch, &key, &vel) {
		return
	}
	h.log.Debug("note on", "ch", ch, "key", key, "vel", vel)
	h.Press(int(key))
}

// Press plays the key and submits it.
func (h *Handler) Press(pitch int) {
	n := theory.KeyNote(pitch)
	if h.player != nil {
		h.player.Play(n)
	}
	outcome, err := h.sess.Submit(n)
	if err != nil {
		if !errors.Is(err, session.ErrNotActive) {
			h.log.Warn("submit", "note", n.String(), "error", err)
		}
		return
	}
	h.log.Debug("press", "note", n.String(), "outcome", outcome.String())
}

// ListPorts returns the names of the available MIDI inputs.
func ListPorts() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("midi driver: %w", err)
	}
	defer drv.Close()

	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("list midi inputs: %w", err)
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

// matchPort picks the first name containing want, ignoring case.
func matchPort(names []string, want string) (int, bool) {
	want = strings.ToLower(want)
	for i, name := range names {
		if strings.Contains(strings.ToLower(name), want) {
			return i, true
		}
	}
	return 0, false
}

// Listen opens the first input whose name contains port and delivers its
// messages to h until ctx is cancelled.
func Listen(ctx context.Context, port string, h *Handler) error {
	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("midi driver: %w", err)
	}
	defer drv.Close()

	ins, err := drv.Ins()
	if err != nil {
		return fmt.Errorf("list midi inputs: %w", err)
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	i, ok := matchPort(names, port)
	if !ok {
		return fmt.Errorf("%q: %w", port, ErrPortNotFound)
	}

	in := ins[i]
	if err := in.Open(); err != nil {
		return fmt.Errorf("open midi input %q: %w", names[i], err)
	}
	defer in.Close()

	stop, err := midi.ListenTo(in, h.HandleMessage, midi.HandleError(func(err error) {
		h.log.Warn("midi listener error", "device", names[i], "error", err)
	}))
	if err != nil {
		return fmt.Errorf("listen to %q: %w", names[i], err)
	}
	defer stop()

	h.log.Info("midi input connected", "device", names[i])
	<-ctx.Done()
	h.log.Info("midi input closed", "device", names[i])
	return nil
}
