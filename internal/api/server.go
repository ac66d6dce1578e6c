// Package api exposes the practice session over HTTP and a websocket event
// feed.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/satindergrewal/notequest/internal/session"
	"github.com/satindergrewal/notequest/internal/theory"
)

// maxBody bounds JSON request bodies.
const maxBody = 4 << 10

var errBadRequest = errors.New("bad request")

// Player sounds a pressed key.
type Player interface {
	Play(n theory.Note)
}

// Server routes API requests to a session.
type Server struct {
	sess    *session.Session
	player  Player
	metrics http.Handler
	log     *slog.Logger
	events  *eventHub
	router  *mux.Router

	defaultNotes int
}

// NewServer wires the routes. player and metrics may be nil.
func NewServer(sess *session.Session, player Player, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sess:    sess,
		player:  player,
		metrics: metrics,
		log:     logger.With("component", "api"),
	}
	s.events = newEventHub(sess.Snapshot, EventDebounce, s.log)
	sess.OnChange(s.events.publish)

	r := mux.NewRouter().StrictSlash(true)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/keyboard", s.handleKeyboard).Methods(http.MethodGet)
	api.HandleFunc("/options", s.handleOptions).Methods(http.MethodGet)
	api.HandleFunc("/session/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/session/end", s.handleEnd).Methods(http.MethodPost)
	api.HandleFunc("/session/skip", s.handleSkip).Methods(http.MethodPost)
	api.HandleFunc("/session/reset", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/press", s.handlePress).Methods(http.MethodPost)
	api.Handle("/events", s.events).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	s.router = r
	return s
}

// SetDefaultNotes sets the note count used when a start request omits it.
func (s *Server) SetDefaultNotes(n int) {
	s.defaultNotes = n
}

// Handle mounts an extra handler, such as the audio streams.
func (s *Server) Handle(path string, h http.Handler) {
	s.router.Handle(path, h)
}

// Handler returns the router behind a permissive CORS policy so a page
// served elsewhere can drive the trainer.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Close disconnects all event subscribers.
func (s *Server) Close() {
	s.events.close()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Snapshot())
}

func (s *Server) handleKeyboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, theory.Keyboard())
}

type optionsResponse struct {
	DurationMinutes    []int `json:"duration_minutes"`
	NoteTimeoutSeconds int   `json:"note_timeout_seconds"`
	SettleDelayMillis  int64 `json:"settle_delay_ms"`
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	cfg := s.sess.Config()
	writeJSON(w, http.StatusOK, optionsResponse{
		DurationMinutes:    session.DurationOptions,
		NoteTimeoutSeconds: int(cfg.NoteTimeout / time.Second),
		SettleDelayMillis:  cfg.SettleDelay.Milliseconds(),
	})
}

type startRequest struct {
	Notes   *int `json:"notes,omitempty"`
	Minutes *int `json:"minutes,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	notes := s.defaultNotes
	if req.Notes != nil {
		notes = *req.Notes
	}

	var err error
	switch {
	case req.Minutes == nil:
		err = s.sess.Start(notes)
	case *req.Minutes != 0 && !slices.Contains(session.DurationOptions, *req.Minutes):
		err = fmt.Errorf("minutes must be 0 or one of %v: %w", session.DurationOptions, errBadRequest)
	default:
		err = s.sess.StartFor(notes, time.Duration(*req.Minutes)*time.Minute)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sess.Snapshot())
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.sess.End())
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.sess.Skip())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.sess.Reset()
	s.respond(w, nil)
}

type pressRequest struct {
	Note string `json:"note,omitempty"`
	MIDI *int   `json:"midi,omitempty"`
}

type pressResponse struct {
	Note     theory.Note      `json:"note"`
	Outcome  string           `json:"outcome"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// handlePress sounds the key, then scores it. The key plays even when no
// session is running.
func (s *Server) handlePress(w http.ResponseWriter, r *http.Request) {
	var req pressRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var n theory.Note
	switch {
	case req.MIDI != nil:
		if *req.MIDI < 0 || *req.MIDI > 127 {
			writeError(w, fmt.Errorf("midi %d out of range: %w", *req.MIDI, errBadRequest))
			return
		}
		n = theory.KeyNote(*req.MIDI)
	case req.Note != "":
		var err error
		if n, err = theory.ParseNote(req.Note); err != nil {
			writeError(w, err)
			return
		}
	default:
		writeError(w, fmt.Errorf("note or midi required: %w", errBadRequest))
		return
	}

	if s.player != nil {
		s.player.Play(n)
	}
	outcome, err := s.sess.Submit(n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pressResponse{
		Note:     n,
		Outcome:  outcome.String(),
		Snapshot: s.sess.Snapshot(),
	})
}

func (s *Server) respond(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sess.Snapshot())
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode body: %v: %w", err, errBadRequest)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, theory.ErrInvalidNote),
		errors.Is(err, session.ErrInvalidNoteCount),
		errors.Is(err, session.ErrInvalidDuration):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionActive),
		errors.Is(err, session.ErrNotActive):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
