package commands

import (
	"context"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-instrument/classify"
	"github.com/RyanBlaney/sonido-instrument/classify/onnx"
	"github.com/RyanBlaney/sonido-instrument/logging"
	"github.com/RyanBlaney/sonido-instrument/pipeline"
)

var classifyFlags struct {
	config  string
	model   string
	library string
	timeout time.Duration
	format  string
	output  string
}

var classifyCmd = &cobra.Command{
	Use:   "classify <file.wav> [file.wav...]",
	Short: "Classify WAV files with an ONNX model",
	Long: `Run the full pipeline: decode, extract features, score with the ONNX
model named in the config and apply the decision thresholds.

When the config declares no input shape, the model is opened with the
shape produced for the first file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.StringVarP(&classifyFlags.config, "config", "c", "", "model contract file (yaml or json)")
	f.StringVarP(&classifyFlags.model, "model", "m", "", "ONNX model path (overrides config)")
	f.StringVar(&classifyFlags.library, "onnxruntime", "", "path to the onnxruntime shared library")
	f.DurationVar(&classifyFlags.timeout, "timeout", 0, "per-file time budget (0 for none)")
	f.StringVarP(&classifyFlags.format, "format", "f", "table", "output format (table, yaml, json, msgpack)")
	f.StringVarP(&classifyFlags.output, "output", "o", "", "output file (default stdout)")
	classifyCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(classifyFlags.config, "")
	if err != nil {
		return err
	}
	if err := cfg.RequireLabels(); err != nil {
		return err
	}
	if classifyFlags.model != "" {
		cfg.Model.Path = classifyFlags.model
	}
	if classifyFlags.library != "" {
		cfg.Model.SharedLibraryPath = classifyFlags.library
	}

	logger := logging.WithFields(logging.Fields{
		"command": "classify",
		"model":   cfg.Model.Path,
	})

	first, err := decodeForConfig(args[0], cfg.Features.Engine.SampleRate)
	if err != nil {
		return err
	}

	shape := cfg.Model.InputShape
	if len(shape) == 0 {
		shape, err = cfg.InputShape(len(first.PCM))
		if err != nil {
			return err
		}
		cfg.Model.InputShape = shape
	}

	model, err := onnx.Open(onnx.Config{
		Path:              cfg.Model.Path,
		InputName:         cfg.Model.InputName,
		OutputName:        cfg.Model.OutputName,
		InputShape:        shape,
		OutputSize:        len(cfg.Labels),
		SharedLibraryPath: cfg.Model.SharedLibraryPath,
	})
	if err != nil {
		return err
	}
	defer model.Close()

	history := classify.NewHistory(max(cfg.HistorySize, len(args)))
	p, err := pipeline.New(cfg, model, pipeline.WithHistory(history))
	if err != nil {
		return err
	}

	for i, path := range args {
		samples := first.PCM
		if i > 0 {
			audio, err := decodeForConfig(path, cfg.Features.Engine.SampleRate)
			if err != nil {
				return err
			}
			samples = audio.PCM
		}

		result, err := classifyOne(cmd.Context(), p, samples)
		if err != nil {
			logger.Error(err, "classification failed", logging.Fields{"file": path})
			return err
		}
		logger.Info("classified", logging.Fields{
			"file":  path,
			"label": result.Decision.Label,
		})
	}

	results := history.Recent()
	slices.Reverse(results)
	if len(results) == 1 {
		return writeResult(results[0], resultView{results[0]}, classifyFlags.format, classifyFlags.output)
	}
	return writeResult(results, resultsView(results), classifyFlags.format, classifyFlags.output)
}

func classifyOne(ctx context.Context, p *pipeline.Pipeline, samples []float64) (*classify.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if classifyFlags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, classifyFlags.timeout)
		defer cancel()
	}
	return p.Classify(ctx, samples)
}
