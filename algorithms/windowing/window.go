package windowing

import (
	"fmt"
	"math"
)

// Type names a window function.
type Type string

const (
	TypeHann    Type = "hann"
	TypeHamming Type = "hamming"
)

// Window is a precomputed, read-only coefficient table.
type Window interface {
	Apply(signal []float64) []float64
	ApplyInPlace(signal []float64) error
	GetCoefficients() []float64
	GetSize() int
	GetType() string
}

// New builds a window of the given type. Analysis windows for feature
// extraction are symmetric (N-1 denominator).
func New(t Type, size int, symmetric bool) (Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}

	switch t {
	case TypeHann, "":
		return NewHann(size, symmetric), nil
	case TypeHamming:
		return NewHamming(size, symmetric), nil
	default:
		return nil, fmt.Errorf("unsupported window type %q", t)
	}
}

// table holds the coefficients shared by every window kind.
type table struct {
	size         int
	symmetric    bool
	coefficients []float64
}

// cosineTable fills a0 - a1*cos(2πi/d), d = N-1 when symmetric, N otherwise.
// A single-sample window is [1].
func cosineTable(size int, symmetric bool, a0, a1 float64) table {
	t := table{
		size:         size,
		symmetric:    symmetric,
		coefficients: make([]float64, size),
	}
	if size == 1 {
		t.coefficients[0] = 1
		return t
	}

	denominator := float64(size)
	if symmetric {
		denominator = float64(size - 1)
	}

	for i := range size {
		t.coefficients[i] = a0 - a1*math.Cos(2*math.Pi*float64(i)/denominator)
	}
	return t
}

// Apply applies the window to a signal (creates new array)
func (t *table) Apply(signal []float64) []float64 {
	if len(signal) != t.size {
		return nil
	}

	windowed := make([]float64, t.size)
	for i, c := range t.coefficients {
		windowed[i] = signal[i] * c
	}

	return windowed
}

// ApplyInPlace applies the window to a signal in-place
func (t *table) ApplyInPlace(signal []float64) error {
	if len(signal) != t.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), t.size)
	}

	for i, c := range t.coefficients {
		signal[i] *= c
	}

	return nil
}

// GetCoefficients returns a copy of the window coefficients
func (t *table) GetCoefficients() []float64 {
	coeffs := make([]float64, len(t.coefficients))
	copy(coeffs, t.coefficients)
	return coeffs
}

// GetSize returns the window size
func (t *table) GetSize() int {
	return t.size
}

// IsSymmetric reports whether the N-1 denominator was used.
func (t *table) IsSymmetric() bool {
	return t.symmetric
}
