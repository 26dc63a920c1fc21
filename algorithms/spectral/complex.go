package spectral

import (
	"math"
	"math/cmplx"
)

// complex128 already provides addition, subtraction and multiplication;
// these helpers cover the rest of what the transform and the power
// spectrum need.

// Magnitude returns |c|.
func Magnitude(c complex128) float64 {
	return cmplx.Abs(c)
}

// Power returns re² + im² without the square root.
func Power(c complex128) float64 {
	re, im := real(c), imag(c)
	return re*re + im*im
}

// Twiddle returns e^(-2πik/n).
func Twiddle(k, n int) complex128 {
	angle := -2 * math.Pi * float64(k) / float64(n)
	return complex(math.Cos(angle), math.Sin(angle))
}
