package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/satindergrewal/notequest/internal/api"
	"github.com/satindergrewal/notequest/internal/audio"
	"github.com/satindergrewal/notequest/internal/clock"
	"github.com/satindergrewal/notequest/internal/config"
	"github.com/satindergrewal/notequest/internal/generator"
	"github.com/satindergrewal/notequest/internal/metrics"
	"github.com/satindergrewal/notequest/internal/midiin"
	"github.com/satindergrewal/notequest/internal/session"
	"github.com/satindergrewal/notequest/internal/stream"
)

func serveCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the trainer server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	f.IntVar(&cfg.Notes, "notes", cfg.Notes, "notes per session when a start request omits the count")
	f.DurationVar(&cfg.NoteTimeout, "note-timeout", cfg.NoteTimeout, "per-note countdown")
	f.IntVar(&cfg.SessionMinutes, "session-minutes", cfg.SessionMinutes, "wall-clock session cap in minutes, 0 disables it")
	f.DurationVar(&cfg.SettleDelay, "settle-delay", cfg.SettleDelay, "pause after a correct answer")
	f.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "device sample rate, 0 uses the native rate")
	f.Float64Var(&cfg.Gain, "gain", cfg.Gain, "synth output gain")
	f.BoolVar(&cfg.Device, "device", cfg.Device, "play on the local sound card")
	f.BoolVar(&cfg.Stream, "stream", cfg.Stream, "serve /stream and /offer")
	f.StringVar(&cfg.MIDIPort, "midi-port", cfg.MIDIPort, "MIDI input name to listen on")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := slog.Default()

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	sess := session.New(session.Config{
		NoteTimeout:     cfg.NoteTimeout,
		SessionDuration: cfg.SessionDuration(),
		SettleDelay:     cfg.SettleDelay,
	}, generator.New(nil), clock.Real(), logger)
	sess.SetRecorder(m)

	engine := audio.NewEngine(audio.EngineConfig{Gain: cfg.Gain}, clock.Real(), logger)
	engine.SetRecorder(m)

	srv := api.NewServer(sess, engine, m.Handler(), logger)
	srv.SetDefaultNotes(cfg.Notes)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Stream {
		// Audio pipeline and fan-out to HTTP and WebRTC listeners
		pipeline := audio.NewPipeline(cfg.Crossfade, logger)
		engine.AddOutput(pipeline)
		broadcaster := stream.NewBroadcaster(pipeline)
		g.Go(func() error {
			pipeline.Run(ctx)
			return nil
		})
		g.Go(func() error {
			broadcaster.Run(ctx)
			return nil
		})

		srv.Handle("/stream", stream.NewHTTPHandler(broadcaster, logger))
		srv.Handle("/offer", stream.NewWebRTCHandler(broadcaster, logger))
		srv.Handle("/api/audio", broadcaster)
	}

	if cfg.Device {
		engine.SetDevice(func() (audio.Output, error) {
			d, err := audio.OpenDevice(audio.DeviceConfig{
				SampleRate: cfg.SampleRate,
				Channels:   audio.Channels,
				Crossfade:  cfg.Crossfade,
			}, logger)
			if err != nil {
				return nil, err
			}
			return d, nil
		})
	}
	g.Go(func() error {
		engine.Run(ctx)
		return nil
	})

	if cfg.MIDIPort != "" {
		h := midiin.NewHandler(engine, sess, logger)
		g.Go(func() error {
			// A missing keyboard is not fatal; the on-screen keys still work.
			if err := midiin.Listen(ctx, cfg.MIDIPort, h); err != nil {
				logger.Warn("midi input unavailable", "port", cfg.MIDIPort, "error", err)
			}
			return nil
		})
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		sess.Reset()
		srv.Close()
		return server.Close()
	})
	g.Go(func() error {
		logger.Info("notequest live", "addr", addr, "device", cfg.Device, "stream", cfg.Stream)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
