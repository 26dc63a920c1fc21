// Package onnx runs an ONNX classifier through ONNX Runtime and exposes
// it as a classify.Model.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/RyanBlaney/sonido-instrument/classify"
	"github.com/RyanBlaney/sonido-instrument/features"
	"github.com/RyanBlaney/sonido-instrument/logging"
)

// Config describes the model file and its tensor contract.
type Config struct {
	Path       string  `json:"path" yaml:"path"`
	InputName  string  `json:"input_name" yaml:"input_name"`
	OutputName string  `json:"output_name" yaml:"output_name"`
	InputShape []int64 `json:"input_shape" yaml:"input_shape"`

	// OutputSize is the length of the score vector, one per label.
	OutputSize int `json:"output_size" yaml:"output_size"`

	// SharedLibraryPath locates libonnxruntime; empty uses the default
	// lookup of the runtime bindings.
	SharedLibraryPath string `json:"shared_library_path,omitempty" yaml:"shared_library_path,omitempty"`
}

// Validate checks that the contract is complete and fully static.
func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("model path is required")
	}
	if c.InputName == "" || c.OutputName == "" {
		return errors.New("model input and output names are required")
	}
	if len(c.InputShape) == 0 {
		return errors.New("model input shape is required")
	}
	for _, d := range c.InputShape {
		if d <= 0 {
			return fmt.Errorf("model input shape %v must be fully static", c.InputShape)
		}
	}
	if c.OutputSize <= 0 {
		return fmt.Errorf("model output size must be positive, got %d", c.OutputSize)
	}
	return nil
}

var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(sharedLibraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 {
		if sharedLibraryPath != "" {
			ort.SetSharedLibraryPath(sharedLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()

	envRefs--
	if envRefs == 0 {
		ort.DestroyEnvironment()
	}
}

// Model is a single ONNX Runtime session with preallocated input and
// output tensors. Predict calls are serialized.
type Model struct {
	mu      sync.Mutex
	cfg     Config
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	logger  logging.Logger
	closed  bool
}

var _ classify.Model = (*Model)(nil)

// Open loads the model and allocates its tensors.
func Open(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := acquireEnvironment(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	m := &Model{
		cfg: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "onnx_model",
			"model":     cfg.Path,
		}),
	}

	var err error
	m.input, err = ort.NewEmptyTensor[float32](ort.NewShape(cfg.InputShape...))
	if err != nil {
		m.cleanup()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	m.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.OutputSize)))
	if err != nil {
		m.cleanup()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	m.session, err = ort.NewAdvancedSession(
		cfg.Path,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{m.input},
		[]ort.Value{m.output},
		nil,
	)
	if err != nil {
		m.cleanup()
		return nil, fmt.Errorf("failed to create session for %s: %w", cfg.Path, err)
	}

	m.logger.Info("model loaded", logging.Fields{
		"input_shape": cfg.InputShape,
		"output_size": cfg.OutputSize,
	})
	return m, nil
}

// InputShape returns the declared input shape.
func (m *Model) InputShape() []int64 {
	return m.cfg.InputShape
}

// Predict copies the tensor into the session input, runs the model and
// returns a copy of the output scores.
func (m *Model) Predict(ctx context.Context, input *features.Tensor) ([]float64, error) {
	if err := input.CheckShape(m.cfg.InputShape); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New("model is closed")
	}

	copy(m.input.GetData(), input.Data)
	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := m.output.GetData()
	scores := make([]float64, len(out))
	for i, v := range out {
		scores[i] = float64(v)
	}
	return scores, nil
}

// Close destroys the session and tensors. It is safe to call twice.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.cleanup()
	m.closed = true
	m.logger.Debug("model closed")
	return nil
}

func (m *Model) cleanup() {
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	for _, t := range []*ort.Tensor[float32]{m.input, m.output} {
		if t != nil {
			t.Destroy()
		}
	}
	m.input, m.output = nil, nil
	releaseEnvironment()
}
