package features

import (
	"fmt"
	"slices"

	"github.com/RyanBlaney/sonido-instrument/algorithms/common"
)

// Tensor is a freshly allocated model input. Data is laid out row-major
// according to Shape; the remaining fields describe how it was produced.
type Tensor struct {
	Data          []float32                `json:"data" msgpack:"data"`
	Shape         []int64                  `json:"shape" msgpack:"shape"`
	Layout        Layout                   `json:"layout,omitempty" msgpack:"layout,omitempty"`
	Normalization common.NormalizationType `json:"normalization" msgpack:"normalization"`
	Frames        int                      `json:"frames,omitempty" msgpack:"frames,omitempty"`
	Mels          int                      `json:"mels" msgpack:"mels"`

	// Segmented tensors only.
	Segments       int `json:"segments,omitempty" msgpack:"segments,omitempty"`
	ActiveSegments int `json:"active_segments,omitempty" msgpack:"active_segments,omitempty"`
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.Data)
}

// Float64 returns a widened copy of the data.
func (t *Tensor) Float64() []float64 {
	return common.Float64s(t.Data)
}

// Validate checks that the shape accounts for every element.
func (t *Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return fmt.Errorf("%w: tensor has no shape", ErrShapeMismatch)
	}
	n := int64(1)
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("%w: non-positive dimension in %v", ErrShapeMismatch, t.Shape)
		}
		n *= d
	}
	if n != int64(len(t.Data)) {
		return fmt.Errorf("%w: shape %v holds %d elements, data has %d", ErrShapeMismatch, t.Shape, n, len(t.Data))
	}
	return nil
}

// CheckShape compares against a model-declared input shape. A -1 entry in
// expected matches any size, as in ONNX dynamic axes.
func (t *Tensor) CheckShape(expected []int64) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if len(expected) == 0 {
		return nil
	}
	if len(expected) != len(t.Shape) {
		return fmt.Errorf("%w: got %v, model expects %v", ErrShapeMismatch, t.Shape, expected)
	}
	for i, d := range expected {
		if d >= 0 && d != t.Shape[i] {
			return fmt.Errorf("%w: got %v, model expects %v", ErrShapeMismatch, t.Shape, expected)
		}
	}
	return nil
}

// SameShape reports whether two shapes are identical.
func SameShape(a, b []int64) bool {
	return slices.Equal(a, b)
}

// shapeFor builds the batch-1 shape for a rows x cols feature matrix.
func shapeFor(s Shape, rows, cols int) []int64 {
	r, c := int64(rows), int64(cols)
	switch s {
	case ShapeMatrix:
		return []int64{1, r, c}
	case ShapeImage:
		return []int64{1, r, c, 1}
	default:
		return []int64{1, r * c}
	}
}
