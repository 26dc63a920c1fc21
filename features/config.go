package features

import (
	"fmt"

	"github.com/RyanBlaney/sonido-instrument/algorithms/common"
	"github.com/RyanBlaney/sonido-instrument/algorithms/spectral"
	"github.com/RyanBlaney/sonido-instrument/algorithms/windowing"
)

// SampleRate is the rate every buffer fed to the pipeline is expected at.
const SampleRate = 44100

// Layout is the order in which the mel-spectrogram is flattened.
type Layout string

const (
	// FrameMajor emits [frame][mel], row-major.
	FrameMajor Layout = "frame_major"

	// MelMajor emits the transpose, [mel][frame].
	MelMajor Layout = "mel_major"
)

// Shape is the tensor shape handed to the model (batch dimension included).
type Shape string

const (
	// ShapeFlat is [1, rows*cols].
	ShapeFlat Shape = "flat"

	// ShapeMatrix is [1, rows, cols].
	ShapeMatrix Shape = "matrix"

	// ShapeImage is [1, rows, cols, 1], a single-channel image.
	ShapeImage Shape = "image"
)

// EngineConfig fixes every numeric choice of the feature extraction. It
// is part of the contract with the deployed model: the same values must
// be used at training and inference time.
type EngineConfig struct {
	SampleRate    int                      `json:"sample_rate" yaml:"sample_rate"`
	FFTSize       int                      `json:"fft_size" yaml:"fft_size"`
	HopLength     int                      `json:"hop_length" yaml:"hop_length"`
	NumMels       int                      `json:"num_mels" yaml:"num_mels"`
	FMin          float64                  `json:"f_min" yaml:"f_min"`
	FMax          float64                  `json:"f_max" yaml:"f_max"` // 0 means Nyquist
	Window        windowing.Type           `json:"window" yaml:"window"`
	Normalization common.NormalizationType `json:"normalization" yaml:"normalization"`
	Epsilon       float64                  `json:"epsilon" yaml:"epsilon"`
	Layout        Layout                   `json:"layout" yaml:"layout"`
	Shape         Shape                    `json:"shape" yaml:"shape"`

	// Workers > 1 spreads STFT frames over goroutines; output is identical.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// DefaultEngineConfig returns the max-relative dB, frame-major preset.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SampleRate:    SampleRate,
		FFTSize:       2048,
		HopLength:     512,
		NumMels:       128,
		FMin:          0,
		FMax:          SampleRate / 2,
		Window:        windowing.TypeHann,
		Normalization: common.MaxRelativeDB,
		Epsilon:       common.DefaultEpsilon,
		Layout:        FrameMajor,
		Shape:         ShapeFlat,
	}
}

// withDefaults fills zero values from DefaultEngineConfig.
func (c EngineConfig) withDefaults() EngineConfig {
	d := DefaultEngineConfig()
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	if c.FFTSize == 0 {
		c.FFTSize = d.FFTSize
	}
	if c.HopLength == 0 {
		c.HopLength = d.HopLength
	}
	if c.NumMels == 0 {
		c.NumMels = d.NumMels
	}
	if c.FMax == 0 {
		c.FMax = float64(c.SampleRate) / 2
	}
	if c.Window == "" {
		c.Window = d.Window
	}
	if c.Normalization == "" {
		c.Normalization = d.Normalization
	}
	if c.Epsilon == 0 {
		c.Epsilon = d.Epsilon
	}
	if c.Layout == "" {
		c.Layout = d.Layout
	}
	if c.Shape == "" {
		c.Shape = d.Shape
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c EngineConfig) Validate() error {
	c = c.withDefaults()

	if !spectral.IsPowerOfTwo(c.FFTSize) {
		return fmt.Errorf("%w: %d", ErrNonPowerOfTwoFFTSize, c.FFTSize)
	}
	if c.SampleRate < 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.HopLength < 0 {
		return fmt.Errorf("hop length must be positive, got %d", c.HopLength)
	}
	if c.NumMels < 0 {
		return fmt.Errorf("number of mel bands must be positive, got %d", c.NumMels)
	}
	if c.FMin < 0 || c.FMax <= c.FMin {
		return fmt.Errorf("invalid frequency range [%g, %g]", c.FMin, c.FMax)
	}
	if c.FMax > float64(c.SampleRate)/2 {
		return fmt.Errorf("f_max %g exceeds Nyquist %g", c.FMax, float64(c.SampleRate)/2)
	}
	if c.Epsilon < 0 {
		return fmt.Errorf("epsilon must be positive, got %g", c.Epsilon)
	}
	if _, err := common.ParseNormalizationType(string(c.Normalization)); err != nil {
		return err
	}
	switch c.Layout {
	case FrameMajor, MelMajor:
	default:
		return fmt.Errorf("unknown layout %q", c.Layout)
	}
	switch c.Shape {
	case ShapeFlat, ShapeMatrix, ShapeImage:
	default:
		return fmt.Errorf("unknown shape %q", c.Shape)
	}
	switch c.Window {
	case windowing.TypeHann, windowing.TypeHamming:
	default:
		return fmt.Errorf("unsupported window %q", c.Window)
	}
	return nil
}
