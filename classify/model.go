package classify

import (
	"context"

	"github.com/RyanBlaney/sonido-instrument/features"
)

// Model is the external inference engine: a feature tensor in, one score
// per label out. The output may be probabilities or logits; Decide
// accepts both.
//
// Implementations must be safe for concurrent use.
type Model interface {
	// Predict runs the model on a single batch-1 tensor.
	Predict(ctx context.Context, input *features.Tensor) ([]float64, error)

	// Close releases any resources held by the model (e.g., ONNX session).
	Close() error
}

// ModelFunc adapts a plain function to Model. Close is a no-op.
type ModelFunc func(ctx context.Context, input *features.Tensor) ([]float64, error)

// Predict calls f.
func (f ModelFunc) Predict(ctx context.Context, input *features.Tensor) ([]float64, error) {
	return f(ctx, input)
}

// Close does nothing.
func (f ModelFunc) Close() error {
	return nil
}
