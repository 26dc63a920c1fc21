package features

import "errors"

var (
	// ErrEmptyBuffer is returned when a sample buffer has no samples.
	ErrEmptyBuffer = errors.New("features: empty sample buffer")

	// ErrNonPowerOfTwoFFTSize is returned by NewEngine when the configured
	// FFT size is not a power of two.
	ErrNonPowerOfTwoFFTSize = errors.New("features: fft size is not a power of two")

	// ErrShapeMismatch is returned when a tensor does not match the shape
	// its consumer declared.
	ErrShapeMismatch = errors.New("features: tensor shape mismatch")
)
