package config

import (
	"fmt"
	"sort"

	"github.com/RyanBlaney/sonido-instrument/algorithms/common"
	"github.com/RyanBlaney/sonido-instrument/classify"
	"github.com/RyanBlaney/sonido-instrument/features"
)

// Preset names. Each one is a model contract observed in deployment.
const (
	// PresetFlatDB is a frame-major, flat, max-relative dB spectrogram.
	PresetFlatDB = "flat_db"

	// PresetImageMinMax is a mel-major [1, mels, frames, 1] min-max image.
	PresetImageMinMax = "image_minmax"

	// PresetSegmented feeds [1, segments, dim] to an attention model.
	PresetSegmented = "segmented"

	DefaultPreset = PresetFlatDB
)

var presets = map[string]func() *Config{
	PresetFlatDB: func() *Config {
		return base(PresetFlatDB)
	},
	PresetImageMinMax: func() *Config {
		cfg := base(PresetImageMinMax)
		cfg.Features.Engine.Layout = features.MelMajor
		cfg.Features.Engine.Shape = features.ShapeImage
		cfg.Features.Engine.Normalization = common.MinMax
		cfg.Decision = classify.Thresholds{Confidence: 0.90, Entropy: 0.10}
		return cfg
	},
	PresetSegmented: func() *Config {
		cfg := base(PresetSegmented)
		cfg.Features.Mode = ModeSegmented
		return cfg
	},
}

func base(name string) *Config {
	return &Config{
		Version: CurrentVersion,
		Preset:  name,
		Features: FeatureConfig{
			Mode:     ModeSingle,
			Engine:   features.DefaultEngineConfig(),
			Segments: features.DefaultSegmentConfig(),
		},
		Decision:    classify.DefaultThresholds(),
		HistorySize: classify.DefaultHistorySize,
	}
}

// Preset returns a fresh copy of the named preset.
func Preset(name string) (*Config, error) {
	build, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %v)", name, PresetNames())
	}
	return build(), nil
}

// PresetNames lists the presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
