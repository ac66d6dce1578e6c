package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/notequest/internal/audio"
	"github.com/satindergrewal/notequest/internal/config"
	"github.com/satindergrewal/notequest/internal/synth"
	"github.com/satindergrewal/notequest/internal/theory"
)

func renderCommand(cfg *config.Config) *cobra.Command {
	var (
		output   string
		rate     int
		channels int
		duration float64
	)
	cmd := &cobra.Command{
		Use:   "render NOTE",
		Short: "Write a synthesized note to a WAV file",
		Example: `  notequest render F#4 -o fsharp4.wav
  notequest render Bb3 --channels 2 --duration 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := theory.ParseNote(args[0])
			if err != nil {
				return err
			}
			if rate <= 0 || channels <= 0 {
				return fmt.Errorf("rate and channels must be positive")
			}
			if output == "" {
				output = wavName(n)
			}

			mono := synth.Render(n, rate, synth.Options{Duration: duration, Gain: cfg.Gain})
			if err := audio.SaveWAV(output, synth.ToInt16(mono, channels), rate, channels); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %.2f Hz, %d frames -> %s\n",
				n, n.Frequency(), len(mono), output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "output file (default <note>.wav)")
	f.IntVar(&rate, "rate", audio.SampleRate, "sample rate in Hz")
	f.IntVar(&channels, "channels", 1, "channel count")
	f.Float64Var(&duration, "duration", synth.ToneDuration, "tone length in seconds")
	return cmd
}

// wavName spells sharps as "s" so the name is shell friendly.
func wavName(n theory.Note) string {
	return strings.ReplaceAll(n.String(), "#", "s") + ".wav"
}
