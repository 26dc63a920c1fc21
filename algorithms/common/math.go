package common

// PadOrTruncate returns a copy of v with exactly dim elements: zero padded
// when v is shorter, cut when it is longer.
func PadOrTruncate(v []float32, dim int) []float32 {
	if dim < 0 {
		dim = 0
	}
	out := make([]float32, dim)
	copy(out, v)
	return out
}

// Clamp limits value to [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Float64s widens a float32 slice.
func Float64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
