package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/gorilla/websocket"

	"github.com/satindergrewal/notequest/internal/session"
)

// EventDebounce coalesces bursts of session changes into one push.
const EventDebounce = 50 * time.Millisecond

const writeWait = 5 * time.Second

type subscriber struct {
	conn *websocket.Conn
	send chan session.Snapshot
}

// eventHub pushes the session's state to websocket subscribers.
type eventHub struct {
	log      *slog.Logger
	current  func() session.Snapshot
	upgrader websocket.Upgrader
	debounce func(func())

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool
}

func newEventHub(current func() session.Snapshot, wait time.Duration, logger *slog.Logger) *eventHub {
	return &eventHub{
		log:     logger.With("feed", "events"),
		current: current,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS is open for the whole API
			},
		},
		debounce: debounce.New(wait),
		clients:  make(map[*subscriber]struct{}),
	}
}

// publish schedules a push. Observers may deliver snapshots out of order,
// so the pushed state is read from the session at flush time and the
// argument only signals a change.
func (h *eventHub) publish(session.Snapshot) {
	h.debounce(h.flush)
}

func (h *eventHub) flush() {
	snap := h.current()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		offer(c, snap)
	}
}

// offer replaces an unsent snapshot with the newer one. Caller holds h.mu.
func offer(c *subscriber, snap session.Snapshot) {
	select {
	case c.send <- snap:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- snap:
	default:
	}
}

// ServeHTTP upgrades to a websocket, sends the current snapshot and then
// every debounced change until the client goes away.
func (h *eventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", "error", err)
		return
	}

	c := &subscriber{conn: conn, send: make(chan session.Snapshot, 1)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	offer(c, h.current())
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("subscriber connected", "remote", r.RemoteAddr, "total", n)

	go h.writeLoop(c)

	// Drain client frames so close and ping are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
	h.log.Debug("subscriber disconnected", "remote", r.RemoteAddr)
}

func (h *eventHub) writeLoop(c *subscriber) {
	defer c.conn.Close()
	for snap := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(snap); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *eventHub) remove(c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *eventHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
