package spectral

import (
	"errors"
	"fmt"

	"github.com/mjibson/go-dsp/fft"
)

// ErrInvalidLength is returned when a transform input is not a power of two.
var ErrInvalidLength = errors.New("fft: length is not a power of two")

// FFT is a radix-2 Cooley-Tukey transform. The forward transform is
// unnormalized: an impulse maps to a flat spectrum of magnitude 1.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n (1 for n <= 1).
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Compute transforms a real-valued sequence. The caller pads to a power of
// two; any other length fails with ErrInvalidLength.
func (f *FFT) Compute(x []float64) ([]complex128, error) {
	if !IsPowerOfTwo(len(x)) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, len(x))
	}

	c := make([]complex128, len(x))
	for i, v := range x {
		c[i] = complex(v, 0)
	}
	return radix2(c), nil
}

// Transform transforms a complex-valued sequence. The input is not modified.
func (f *FFT) Transform(x []complex128) ([]complex128, error) {
	if !IsPowerOfTwo(len(x)) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, len(x))
	}

	c := make([]complex128, len(x))
	copy(c, x)
	return radix2(c), nil
}

// radix2 is the recursive decimation-in-time step. len(x) is a power of two.
func radix2(x []complex128) []complex128 {
	n := len(x)
	if n == 1 {
		return x
	}

	half := n / 2
	even := make([]complex128, half)
	odd := make([]complex128, half)
	for i := range half {
		even[i] = x[2*i]
		odd[i] = x[2*i+1]
	}

	even = radix2(even)
	odd = radix2(odd)

	out := make([]complex128, n)
	for k := range half {
		t := Twiddle(k, n) * odd[k]
		out[k] = even[k] + t
		out[k+half] = even[k] - t
	}
	return out
}

// Reference transforms x with go-dsp's real FFT. It follows the same
// length contract as Compute and serves as an independent cross-check.
func (f *FFT) Reference(x []float64) ([]complex128, error) {
	if !IsPowerOfTwo(len(x)) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, len(x))
	}
	return fft.FFTReal(x), nil
}
