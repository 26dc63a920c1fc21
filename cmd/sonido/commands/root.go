package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-instrument/cmd/sonido/internal/output"
	"github.com/RyanBlaney/sonido-instrument/config"
	"github.com/RyanBlaney/sonido-instrument/logging"
)

var (
	// Global flags
	logLevel string
	logFile  string
	noColor  bool

	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "sonido",
	Short: "Instrument classification feature pipeline",
	Long: `sonido - mel-spectrogram features and calibrated instrument decisions.

Audio is decoded to mono 44.1 kHz, turned into a normalized mel-spectrogram
tensor in the layout the model expects, scored by an ONNX model and reduced
to a label or "unknown" using confidence and entropy thresholds.

Examples:
  # Inspect the tensor a preset produces
  sonido features recording.wav --preset image_minmax --summary

  # Classify with a model contract file
  sonido classify recording.wav -c khaen.yaml

  # Check the decision rule on a raw output vector
  sonido decide --labels khaen,pin,sing --output 0.92,0.05,0.03`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// setupLogging routes logs to stderr (or --log-file) so stdout carries
// only command output.
func setupLogging() error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		logCloser = f
	}

	logging.SetGlobalLogger(logging.NewWriterLogger(w, level))
	if noColor {
		color.NoColor = true
		logging.DisableColors()
	}
	return nil
}

// loadConfig resolves --config and --preset. A config file takes
// precedence; its own preset field picks the base.
func loadConfig(path, preset string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if preset == "" {
		preset = config.DefaultPreset
	}
	return config.Preset(preset)
}

// writeResult renders v, using table when it is the chosen format.
func writeResult(v any, table output.Tabler, format, file string) error {
	opts := output.Options{Format: output.Format(format), File: file}
	if opts.Format == output.FormatTable {
		return output.Write(table, opts)
	}
	return output.Write(v, opts)
}
