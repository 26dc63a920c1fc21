// Package config holds the deployment contract between the feature
// pipeline and a trained model: feature parameters, tensor layout,
// decision thresholds and labels.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/RyanBlaney/sonido-instrument/classify"
	"github.com/RyanBlaney/sonido-instrument/features"
)

// CurrentVersion is the contract version written by this build.
const CurrentVersion = 1

// Mode selects single-shot or segmented feature extraction.
type Mode string

const (
	// ModeSingle extracts one spectrogram for the whole buffer.
	ModeSingle Mode = "single"

	// ModeSegmented extracts a fixed number of segment vectors.
	ModeSegmented Mode = "segmented"
)

// FeatureConfig selects and parameterizes feature extraction.
type FeatureConfig struct {
	Mode     Mode                   `json:"mode" yaml:"mode"`
	Engine   features.EngineConfig  `json:"engine" yaml:"engine"`
	Segments features.SegmentConfig `json:"segments" yaml:"segments"`
}

// ModelConfig locates the model and declares its tensor contract.
type ModelConfig struct {
	Path              string  `json:"path,omitempty" yaml:"path,omitempty"`
	InputName         string  `json:"input_name,omitempty" yaml:"input_name,omitempty"`
	OutputName        string  `json:"output_name,omitempty" yaml:"output_name,omitempty"`
	InputShape        []int64 `json:"input_shape,omitempty" yaml:"input_shape,omitempty"`
	SharedLibraryPath string  `json:"shared_library_path,omitempty" yaml:"shared_library_path,omitempty"`
}

// Config is the complete pipeline configuration.
type Config struct {
	Version     int                 `json:"version" yaml:"version"`
	Preset      string              `json:"preset,omitempty" yaml:"preset,omitempty"`
	Features    FeatureConfig       `json:"features" yaml:"features"`
	Decision    classify.Thresholds `json:"decision" yaml:"decision"`
	Labels      []string            `json:"labels" yaml:"labels"`
	Model       ModelConfig         `json:"model" yaml:"model"`
	HistorySize int                 `json:"history_size,omitempty" yaml:"history_size,omitempty"`
}

// DefaultConfig returns the flat_db preset without labels.
func DefaultConfig() *Config {
	cfg, _ := Preset(DefaultPreset)
	return cfg
}

// Load reads a YAML or JSON file. The file is overlaid on the preset it
// names (or the default preset) and the result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration. ext picks the format (".json", ".yaml",
// ".yml"); anything else is tried as YAML, then as JSON.
func Parse(data []byte, ext string) (*Config, error) {
	unmarshal := unmarshalFor(ext)

	var head struct {
		Preset string `json:"preset" yaml:"preset"`
	}
	if err := unmarshal(data, &head); err != nil {
		return nil, err
	}

	name := head.Preset
	if name == "" {
		name = DefaultPreset
	}
	cfg, err := Preset(name)
	if err != nil {
		return nil, err
	}

	if err := unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshalFor(ext string) func([]byte, any) error {
	switch strings.ToLower(ext) {
	case ".json":
		return json.Unmarshal
	case ".yaml", ".yml":
		return yaml.Unmarshal
	default:
		return func(data []byte, v any) error {
			yamlErr := yaml.Unmarshal(data, v)
			if yamlErr == nil {
				return nil
			}
			if jsonErr := json.Unmarshal(data, v); jsonErr != nil {
				return errors.Join(yamlErr, jsonErr)
			}
			return nil
		}
	}
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Validate checks every section. Labels may be empty for feature-only use;
// RequireLabels enforces them.
func (c *Config) Validate() error {
	if c.Version > CurrentVersion {
		return fmt.Errorf("config version %d is newer than supported version %d", c.Version, CurrentVersion)
	}

	if err := c.Features.Engine.Validate(); err != nil {
		return fmt.Errorf("features.engine: %w", err)
	}
	switch c.Features.Mode {
	case ModeSingle:
	case ModeSegmented:
		if err := c.Features.Segments.Validate(); err != nil {
			return fmt.Errorf("features.segments: %w", err)
		}
	default:
		return fmt.Errorf("features.mode: unknown mode %q", c.Features.Mode)
	}

	if err := c.Decision.Validate(); err != nil {
		return fmt.Errorf("decision: %w", err)
	}

	seen := make(map[string]bool, len(c.Labels))
	for i, label := range c.Labels {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("labels[%d] is empty", i)
		}
		if seen[label] {
			return fmt.Errorf("duplicate label %q", label)
		}
		seen[label] = true
	}

	if c.HistorySize < 0 {
		return fmt.Errorf("history_size must not be negative, got %d", c.HistorySize)
	}
	return nil
}

// RequireLabels fails with classify.ErrNoLabels when no labels are set.
func (c *Config) RequireLabels() error {
	if len(c.Labels) == 0 {
		return classify.ErrNoLabels
	}
	return nil
}

// InputShape returns the tensor shape the pipeline emits for a buffer of
// the given number of samples.
func (c *Config) InputShape(samples int) ([]int64, error) {
	engine, err := features.NewEngine(c.Features.Engine)
	if err != nil {
		return nil, err
	}

	if c.Features.Mode == ModeSegmented {
		seg, err := features.NewSegmentExtractor(engine, c.Features.Segments)
		if err != nil {
			return nil, err
		}
		return []int64{1, int64(c.Features.Segments.MaxSegments), int64(seg.FeatureDim())}, nil
	}

	ecfg := engine.Config()
	rows, cols := int64(engine.ExpectedFrames(samples)), int64(ecfg.NumMels)
	if ecfg.Layout == features.MelMajor {
		rows, cols = cols, rows
	}
	switch ecfg.Shape {
	case features.ShapeMatrix:
		return []int64{1, rows, cols}, nil
	case features.ShapeImage:
		return []int64{1, rows, cols, 1}, nil
	default:
		return []int64{1, rows * cols}, nil
	}
}
