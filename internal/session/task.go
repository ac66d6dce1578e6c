package session

import (
	"time"

	"github.com/satindergrewal/notequest/internal/clock"
)

// task is a cancellable one-shot callback. Every schedule hands the callback
// a token; a callback whose token is no longer current must do nothing.
// task is not synchronized; the session lock guards it.
type task struct {
	clk   clock.Clock
	gen   uint64
	timer clock.Timer
}

func (t *task) schedule(d time.Duration, f func(token uint64)) {
	t.cancel()
	token := t.gen
	t.timer = t.clk.AfterFunc(d, func() { f(token) })
}

// cancel stops any pending run. Calling it again is a no-op.
func (t *task) cancel() {
	if t.timer == nil {
		return
	}
	t.timer.Stop()
	t.timer = nil
	t.gen++
}

func (t *task) current(token uint64) bool {
	return t.timer != nil && token == t.gen
}

func (t *task) pending() bool {
	return t.timer != nil
}
