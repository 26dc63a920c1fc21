package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-instrument/cmd/sonido/internal/output"
	"github.com/RyanBlaney/sonido-instrument/config"
)

var presetsFlags struct {
	duration time.Duration
	show     string
	format   string
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the built-in model contracts",
	Long: `List every preset with its layout, normalization and the input shape it
produces for a clip of --duration. Use --show to print a preset as a config
file to start from.`,
	Args: cobra.NoArgs,
	RunE: runPresets,
}

func init() {
	f := presetsCmd.Flags()
	f.DurationVarP(&presetsFlags.duration, "duration", "d", 3*time.Second, "clip duration used for single-shot shapes")
	f.StringVar(&presetsFlags.show, "show", "", "print the named preset as YAML")
	f.StringVarP(&presetsFlags.format, "format", "f", "table", "output format (table, yaml, json)")

	rootCmd.AddCommand(presetsCmd)
}

type presetInfo struct {
	Name          string  `json:"name" yaml:"name"`
	Mode          string  `json:"mode" yaml:"mode"`
	Layout        string  `json:"layout" yaml:"layout"`
	Shape         string  `json:"shape" yaml:"shape"`
	Normalization string  `json:"normalization" yaml:"normalization"`
	InputShape    []int64 `json:"input_shape" yaml:"input_shape"`
	Confidence    float64 `json:"confidence" yaml:"confidence"`
	Entropy       float64 `json:"entropy" yaml:"entropy"`
}

type presetList []presetInfo

func (l presetList) Tables() []output.Table {
	rows := make([][]string, 0, len(l))
	for _, p := range l {
		rows = append(rows, []string{
			p.Name, p.Mode, p.Layout, p.Normalization,
			fmt.Sprint(p.InputShape),
			fmt.Sprintf("%.2f / %.2f", p.Confidence, p.Entropy),
		})
	}
	return []output.Table{{
		Title:   "Presets",
		Headers: []string{"name", "mode", "layout", "normalization", "input shape", "thresholds"},
		Rows:    rows,
	}}
}

func runPresets(cmd *cobra.Command, args []string) error {
	if presetsFlags.show != "" {
		cfg, err := config.Preset(presetsFlags.show)
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	var list presetList
	for _, name := range config.PresetNames() {
		cfg, err := config.Preset(name)
		if err != nil {
			return err
		}
		samples := int(presetsFlags.duration.Seconds() * float64(cfg.Features.Engine.SampleRate))
		shape, err := cfg.InputShape(samples)
		if err != nil {
			return fmt.Errorf("preset %s: %w", name, err)
		}
		e := cfg.Features.Engine
		list = append(list, presetInfo{
			Name:          name,
			Mode:          string(cfg.Features.Mode),
			Layout:        string(e.Layout),
			Shape:         string(e.Shape),
			Normalization: string(e.Normalization),
			InputShape:    shape,
			Confidence:    cfg.Decision.Confidence,
			Entropy:       cfg.Decision.Entropy,
		})
	}
	return writeResult(list, list, presetsFlags.format, "")
}
