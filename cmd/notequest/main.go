package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/notequest/internal/config"
	"github.com/satindergrewal/notequest/internal/logging"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCommand(&cfg).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// rootCommand builds the CLI. Flags default to the environment and override
// it when set.
func rootCommand(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "notequest",
		Short:        "Pitch recognition trainer",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		return nil
	}

	root.AddCommand(
		serveCommand(cfg),
		renderCommand(cfg),
		devicesCommand(),
		midiPortsCommand(),
	)
	return root
}
