// Package metrics exposes trainer counters in Prometheus format.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the trainer's collectors and the registry serving them.
type Metrics struct {
	Attempts       *prometheus.CounterVec
	Sessions       *prometheus.CounterVec
	NotesPlayed    prometheus.Counter
	PlaybackDrops  prometheus.Counter
	PlaybackErrors prometheus.Counter
	CurrentScore   prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the metrics and registers them on a fresh registry.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("register trainer metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.Attempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notequest_attempts_total",
		Help: "Key presses and note resolutions by result",
	}, []string{"result"})

	m.Sessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notequest_sessions_total",
		Help: "Session lifecycle events",
	}, []string{"event"})

	m.NotesPlayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notequest_notes_played_total",
		Help: "Notes rendered and submitted to an audio output",
	})

	m.PlaybackDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notequest_playback_dropped_total",
		Help: "Play requests dropped because the synth worker was busy",
	})

	m.PlaybackErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notequest_playback_errors_total",
		Help: "Audio output failures, including device initialization",
	})

	m.CurrentScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notequest_score",
		Help: "Score of the current session",
	})
}

// Registry returns the underlying registry so other collectors can join it.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Attempts.Describe(ch)
	m.Sessions.Describe(ch)
	m.NotesPlayed.Describe(ch)
	m.PlaybackDrops.Describe(ch)
	m.PlaybackErrors.Describe(ch)
	m.CurrentScore.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Attempts.Collect(ch)
	m.Sessions.Collect(ch)
	m.NotesPlayed.Collect(ch)
	m.PlaybackDrops.Collect(ch)
	m.PlaybackErrors.Collect(ch)
	m.CurrentScore.Collect(ch)
}

// Handler serves the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Attempt counts a note resolution or key press.
func (m *Metrics) Attempt(result string) { m.Attempts.WithLabelValues(result).Inc() }

// SessionEvent counts a lifecycle transition.
func (m *Metrics) SessionEvent(event string) { m.Sessions.WithLabelValues(event).Inc() }

// Score records the current session score.
func (m *Metrics) Score(score int) { m.CurrentScore.Set(float64(score)) }

// NotePlayed counts a note sent to an output.
func (m *Metrics) NotePlayed() { m.NotesPlayed.Inc() }

// PlaybackDropped counts a play request that was discarded.
func (m *Metrics) PlaybackDropped() { m.PlaybackDrops.Inc() }

// PlaybackFailed counts an output error.
func (m *Metrics) PlaybackFailed() { m.PlaybackErrors.Inc() }
