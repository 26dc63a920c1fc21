package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-instrument/cmd/sonido/internal/output"
	"github.com/RyanBlaney/sonido-instrument/features"
	"github.com/RyanBlaney/sonido-instrument/logging"
	"github.com/RyanBlaney/sonido-instrument/pipeline"
	"github.com/RyanBlaney/sonido-instrument/transcode"
)

var featuresFlags struct {
	config    string
	preset    string
	format    string
	output    string
	summary   bool
	selfCheck bool
}

// selfCheckTolerance bounds the relative FFT deviation --self-check accepts.
const selfCheckTolerance = 1e-9

var featuresCmd = &cobra.Command{
	Use:   "features <file.wav>",
	Short: "Extract the model input tensor from a WAV file",
	Long: `Decode a WAV file and compute the feature tensor described by the
configuration: single-shot mel-spectrogram or fixed segment slots.

Use --format msgpack -o tensor.msgpack to hand the tensor to another
inference runtime.`,
	Args: cobra.ExactArgs(1),
	RunE: runFeatures,
}

func init() {
	f := featuresCmd.Flags()
	f.StringVarP(&featuresFlags.config, "config", "c", "", "model contract file (yaml or json)")
	f.StringVarP(&featuresFlags.preset, "preset", "p", "", "built-in preset when no config is given")
	f.StringVarP(&featuresFlags.format, "format", "f", "yaml", "output format (yaml, json, msgpack, table)")
	f.StringVarP(&featuresFlags.output, "output", "o", "", "output file (default stdout)")
	f.BoolVar(&featuresFlags.summary, "summary", false, "print shape and value range instead of the data")
	f.BoolVar(&featuresFlags.selfCheck, "self-check", false, "verify the spectrogram FFT against an independent implementation")

	rootCmd.AddCommand(featuresCmd)
}

// tensorSummary describes a tensor without its data.
type tensorSummary struct {
	File           string  `json:"file" yaml:"file" msgpack:"file"`
	Shape          []int64 `json:"shape" yaml:"shape" msgpack:"shape"`
	Layout         string  `json:"layout" yaml:"layout" msgpack:"layout"`
	Normalization  string  `json:"normalization" yaml:"normalization" msgpack:"normalization"`
	Frames         int     `json:"frames" yaml:"frames" msgpack:"frames"`
	Mels           int     `json:"mels" yaml:"mels" msgpack:"mels"`
	Segments       int     `json:"segments,omitempty" yaml:"segments,omitempty" msgpack:"segments,omitempty"`
	ActiveSegments int     `json:"active_segments,omitempty" yaml:"active_segments,omitempty" msgpack:"active_segments,omitempty"`
	Min            float64 `json:"min" yaml:"min" msgpack:"min"`
	Max            float64 `json:"max" yaml:"max" msgpack:"max"`
	Mean           float64 `json:"mean" yaml:"mean" msgpack:"mean"`
}

func summarize(file string, t *features.Tensor) tensorSummary {
	data := t.Float64()
	s := tensorSummary{
		File:           file,
		Shape:          t.Shape,
		Layout:         string(t.Layout),
		Normalization:  string(t.Normalization),
		Frames:         t.Frames,
		Mels:           t.Mels,
		Segments:       t.Segments,
		ActiveSegments: t.ActiveSegments,
	}
	if len(data) > 0 {
		s.Min = floats.Min(data)
		s.Max = floats.Max(data)
		s.Mean = floats.Sum(data) / float64(len(data))
	}
	return s
}

func (s tensorSummary) Tables() []output.Table {
	rows := [][]string{
		{"file", s.File},
		{"shape", fmt.Sprint(s.Shape)},
		{"layout", s.Layout},
		{"normalization", s.Normalization},
		{"frames", fmt.Sprint(s.Frames)},
		{"mels", fmt.Sprint(s.Mels)},
	}
	if s.Segments > 0 {
		rows = append(rows, []string{"segments", fmt.Sprintf("%d (%d active)", s.ActiveSegments, s.Segments)})
	}
	rows = append(rows,
		[]string{"min", fmt.Sprintf("%.4f", s.Min)},
		[]string{"max", fmt.Sprintf("%.4f", s.Max)},
		[]string{"mean", fmt.Sprintf("%.4f", s.Mean)},
	)
	return []output.Table{{Title: "Features", Headers: []string{"field", "value"}, Rows: rows}}
}

func runFeatures(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(featuresFlags.config, featuresFlags.preset)
	if err != nil {
		return err
	}

	audio, err := decodeForConfig(args[0], cfg.Features.Engine.SampleRate)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, nil)
	if err != nil {
		return err
	}
	if featuresFlags.selfCheck {
		dev, err := p.Engine().SelfCheck(audio.PCM)
		if err != nil {
			return fmt.Errorf("self-check: %w", err)
		}
		if dev > selfCheckTolerance {
			return fmt.Errorf("self-check: FFT deviation %g exceeds %g", dev, selfCheckTolerance)
		}
		logging.Info("fft self-check passed", logging.Fields{"deviation": dev})
	}

	tensor, err := p.Features(audio.PCM)
	if err != nil {
		return err
	}

	summary := summarize(args[0], tensor)
	if featuresFlags.summary || featuresFlags.format == string(output.FormatTable) {
		return writeResult(summary, summary, featuresFlags.format, featuresFlags.output)
	}
	return writeResult(tensor, summary, featuresFlags.format, featuresFlags.output)
}

// decodeForConfig decodes a WAV file at the engine's sample rate.
func decodeForConfig(path string, sampleRate int) (*transcode.AudioData, error) {
	if sampleRate <= 0 {
		sampleRate = features.SampleRate
	}
	dec := transcode.NewDecoder(&transcode.DecoderConfig{TargetSampleRate: sampleRate})
	return dec.DecodeFile(path)
}
