package features

import (
	"fmt"

	"github.com/RyanBlaney/sonido-instrument/algorithms/common"
	"github.com/RyanBlaney/sonido-instrument/algorithms/spectral"
	"github.com/RyanBlaney/sonido-instrument/algorithms/windowing"
	"github.com/RyanBlaney/sonido-instrument/logging"
)

// Engine turns a mono sample buffer into a normalized mel-spectrogram.
//
// The window and filterbank are computed once in NewEngine and never
// written again, so one Engine may serve concurrent calls on independent
// buffers; every call allocates its own scratch space.
//
// Pipeline per call:
//  1. frame with fftSize/hopLength, zero padding past the buffer end
//  2. window every frame
//  3. FFT and keep fftSize/2+1 bins
//  4. power = re² + im²
//  5. project onto the mel filterbank
//  6. 10·log10(mel + ε)
//  7. normalize (max-relative dB, min-max or none)
//  8. flatten in the configured layout
type Engine struct {
	cfg        EngineConfig
	window     windowing.Window
	filterBank *spectral.MelFilterBank
	stft       *spectral.STFT
	power      *spectral.PowerSpectrum
	normalizer *common.Normalizer
	logger     logging.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger overrides the engine logger.
func WithEngineLogger(logger logging.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// MelSpectrogram is the normalized spectrogram, indexed [frame][mel].
type MelSpectrogram struct {
	Values        [][]float64              `json:"values"`
	Frames        int                      `json:"frames"`
	Mels          int                      `json:"mels"`
	Normalization common.NormalizationType `json:"normalization"`
}

// Flatten emits the spectrogram in the given layout as model input.
func (m *MelSpectrogram) Flatten(layout Layout) []float32 {
	out := make([]float32, m.Frames*m.Mels)
	switch layout {
	case MelMajor:
		for f, row := range m.Values {
			for b, v := range row {
				out[b*m.Frames+f] = float32(v)
			}
		}
	default:
		for f, row := range m.Values {
			for b, v := range row {
				out[f*m.Mels+b] = float32(v)
			}
		}
	}
	return out
}

// NewEngine validates cfg and precomputes the window and filterbank.
func NewEngine(cfg EngineConfig, opts ...EngineOption) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	window, err := windowing.New(cfg.Window, cfg.FFTSize, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	filterBank, err := spectral.NewMelFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.FMin, cfg.FMax)
	if err != nil {
		return nil, fmt.Errorf("failed to create mel filter bank: %w", err)
	}

	e := &Engine{
		cfg:        cfg,
		window:     window,
		filterBank: filterBank,
		power:      spectral.NewPowerSpectrum(),
		normalizer: common.NewNormalizer(cfg.Normalization, cfg.Epsilon),
		logger: logging.WithFields(logging.Fields{
			"component": "spectrogram_engine",
		}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.stft = spectral.NewSTFT(spectral.WithWorkers(cfg.Workers), spectral.WithLogger(e.logger))

	e.logger.Debug("engine initialized", logging.Fields{
		"fft_size":      cfg.FFTSize,
		"hop_length":    cfg.HopLength,
		"num_mels":      cfg.NumMels,
		"normalization": cfg.Normalization,
		"layout":        cfg.Layout,
		"shape":         cfg.Shape,
	})

	return e, nil
}

// Config returns the effective configuration (defaults applied).
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// FilterBank exposes the precomputed filterbank.
func (e *Engine) FilterBank() *spectral.MelFilterBank {
	return e.filterBank
}

// ExpectedFrames is the frame count for a buffer of n samples.
func (e *Engine) ExpectedFrames(n int) int {
	return spectral.NumFrames(n, e.cfg.FFTSize, e.cfg.HopLength)
}

// FeatureDim is the flattened feature length for a buffer of n samples.
func (e *Engine) FeatureDim(n int) int {
	return e.ExpectedFrames(n) * e.cfg.NumMels
}

// MelSpectrogram runs steps 1-7.
func (e *Engine) MelSpectrogram(buffer []float64) (*MelSpectrogram, error) {
	if len(buffer) == 0 {
		return nil, ErrEmptyBuffer
	}

	stft, err := e.stft.ComputeWithWindow(buffer, e.cfg.FFTSize, e.cfg.HopLength, e.cfg.SampleRate, e.window)
	if err != nil {
		return nil, fmt.Errorf("failed to compute STFT: %w", err)
	}

	numFrames := stft.TimeFrames
	numMels := e.filterBank.NumMels()

	// mel power for the whole spectrogram, frame-major, so normalization
	// sees global extremes
	mel := make([]float64, numFrames*numMels)
	for f, power := range e.power.ComputeFromSTFT(stft) {
		e.filterBank.ApplyTo(mel[f*numMels:(f+1)*numMels], power)
	}

	normalized := e.normalizer.Normalize(mel)

	values := make([][]float64, numFrames)
	for f := range values {
		values[f] = normalized[f*numMels : (f+1)*numMels : (f+1)*numMels]
	}

	e.logger.Debug("mel spectrogram computed", logging.Fields{
		"samples": len(buffer),
		"frames":  numFrames,
		"mels":    numMels,
	})

	return &MelSpectrogram{
		Values:        values,
		Frames:        numFrames,
		Mels:          numMels,
		Normalization: e.normalizer.Method(),
	}, nil
}

// SelfCheck recomputes the STFT of buffer with an independent FFT and
// returns the largest relative bin difference.
func (e *Engine) SelfCheck(buffer []float64) (float64, error) {
	if len(buffer) == 0 {
		return 0, ErrEmptyBuffer
	}
	return e.stft.CrossCheck(buffer, e.cfg.FFTSize, e.cfg.HopLength, e.cfg.SampleRate, e.window)
}

// FeatureVector is the flattened spectrogram in the configured layout.
func (e *Engine) FeatureVector(buffer []float64) ([]float32, error) {
	spec, err := e.MelSpectrogram(buffer)
	if err != nil {
		return nil, err
	}
	return spec.Flatten(e.cfg.Layout), nil
}

// ComputeMelSpectrogram runs the full pipeline and shapes the result for
// the model.
func (e *Engine) ComputeMelSpectrogram(buffer []float64) (*Tensor, error) {
	spec, err := e.MelSpectrogram(buffer)
	if err != nil {
		return nil, err
	}

	rows, cols := spec.Frames, spec.Mels
	if e.cfg.Layout == MelMajor {
		rows, cols = cols, rows
	}

	return &Tensor{
		Data:          spec.Flatten(e.cfg.Layout),
		Shape:         shapeFor(e.cfg.Shape, rows, cols),
		Layout:        e.cfg.Layout,
		Normalization: spec.Normalization,
		Frames:        spec.Frames,
		Mels:          spec.Mels,
	}, nil
}
