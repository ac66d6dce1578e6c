package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Session
	Notes          int           // notes per session
	NoteTimeout    time.Duration // per-note countdown
	SessionMinutes int           // wall-clock cap, 0 disables it
	SettleDelay    time.Duration // pause after a correct answer

	// Audio
	SampleRate int     // requested device rate, 0 uses the device's native rate
	Gain       float64 // synth output gain
	Device     bool    // play on the local sound card
	Stream     bool    // serve /stream and /offer
	Crossfade  time.Duration

	// MIDI input port name substring, empty disables MIDI
	MIDIPort string

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // text or json
}

// SessionMinuteOptions are the accepted non-zero values of SessionMinutes.
var SessionMinuteOptions = []int{10, 20, 30, 40, 50, 60}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port: envInt("NOTEQUEST_PORT", 8080),

		Notes:          envInt("NOTEQUEST_NOTES", 20),
		NoteTimeout:    envDuration("NOTEQUEST_NOTE_TIMEOUT", 60*time.Second),
		SessionMinutes: envInt("NOTEQUEST_SESSION_MINUTES", 0),
		SettleDelay:    envDuration("NOTEQUEST_SETTLE_DELAY", 500*time.Millisecond),

		SampleRate: envInt("NOTEQUEST_SAMPLE_RATE", 0),
		Gain:       envFloat("NOTEQUEST_GAIN", 0.3),
		Device:     envBool("NOTEQUEST_DEVICE", true),
		Stream:     envBool("NOTEQUEST_STREAM", true),
		Crossfade:  envDuration("NOTEQUEST_CROSSFADE", 10*time.Millisecond),

		MIDIPort: envStr("NOTEQUEST_MIDI_PORT", ""),

		LogLevel:  envStr("NOTEQUEST_LOG_LEVEL", "info"),
		LogFormat: envStr("NOTEQUEST_LOG_FORMAT", "text"),
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Notes <= 0 {
		errs = append(errs, fmt.Errorf("notes must be positive, got %d", c.Notes))
	}
	if c.NoteTimeout < time.Second {
		errs = append(errs, fmt.Errorf("note timeout must be at least 1s, got %v", c.NoteTimeout))
	}
	if c.SessionMinutes != 0 && !slices.Contains(SessionMinuteOptions, c.SessionMinutes) {
		errs = append(errs, fmt.Errorf("session minutes must be 0 or one of %v, got %d", SessionMinuteOptions, c.SessionMinutes))
	}
	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("settle delay must not be negative, got %v", c.SettleDelay))
	}
	if c.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("sample rate must not be negative, got %d", c.SampleRate))
	}
	if c.Gain <= 0 || c.Gain > 1 {
		errs = append(errs, fmt.Errorf("gain must be in (0, 1], got %v", c.Gain))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// SessionDuration returns the wall-clock cap.
func (c Config) SessionDuration() time.Duration {
	return time.Duration(c.SessionMinutes) * time.Minute
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("90s", "1m") or plain seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
