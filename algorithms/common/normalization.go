package common

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultEpsilon keeps log10 away from zero power.
const DefaultEpsilon = 1e-10

// NormalizationType selects how mel power is turned into model features.
type NormalizationType string

const (
	// MaxRelativeDB is 10·log10((mel+ε)/(max+ε)); every value is <= 0.
	MaxRelativeDB NormalizationType = "max_relative_db"

	// MinMax converts to dB and rescales with the global min/max into [0,1].
	MinMax NormalizationType = "min_max"

	// None converts to dB and stops there.
	None NormalizationType = "none"
)

// ParseNormalizationType validates a policy name. Empty selects MaxRelativeDB.
func ParseNormalizationType(s string) (NormalizationType, error) {
	switch t := NormalizationType(s); t {
	case MaxRelativeDB, MinMax, None:
		return t, nil
	case "":
		return MaxRelativeDB, nil
	default:
		return "", fmt.Errorf("unknown normalization %q", s)
	}
}

// Normalizer applies log compression followed by one normalization policy
// over a whole spectrogram at once.
type Normalizer struct {
	method  NormalizationType
	epsilon float64
}

// NewNormalizer creates a new normalizer
func NewNormalizer(method NormalizationType, epsilon float64) *Normalizer {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Normalizer{
		method:  method,
		epsilon: epsilon,
	}
}

// Method returns the configured policy.
func (n *Normalizer) Method() NormalizationType {
	return n.method
}

// Normalize maps mel power values to features. The input is not modified.
func (n *Normalizer) Normalize(melPower []float64) []float64 {
	if len(melPower) == 0 {
		return []float64{}
	}

	switch n.method {
	case MinMax:
		return MinMaxNormalize(PowerToDB(melPower, n.epsilon))
	case None:
		return PowerToDB(melPower, n.epsilon)
	default:
		return MaxRelativeDBNormalize(melPower, n.epsilon)
	}
}

// PowerToDB returns 10·log10(p+ε) for every value.
func PowerToDB(power []float64, epsilon float64) []float64 {
	out := make([]float64, len(power))
	for i, p := range power {
		out[i] = 10 * math.Log10(p+epsilon)
	}
	return out
}

// MaxRelativeDBNormalize returns 10·log10((p+ε)/(max+ε)) using the global max.
func MaxRelativeDBNormalize(power []float64, epsilon float64) []float64 {
	if len(power) == 0 {
		return []float64{}
	}

	ref := floats.Max(power) + epsilon
	out := make([]float64, len(power))
	for i, p := range power {
		out[i] = 10 * math.Log10((p+epsilon)/ref)
	}
	return out
}

// MinMaxNormalize normalizes data to [0, 1] range
func MinMaxNormalize(data []float64) []float64 {
	if len(data) == 0 {
		return []float64{}
	}

	lo := floats.Min(data)
	hi := floats.Max(data)

	normalized := make([]float64, len(data))
	if math.Abs(hi-lo) < 1e-10 {
		// Handle constant data
		return normalized
	}

	span := hi - lo
	for i, val := range data {
		normalized[i] = Clamp((val-lo)/span, 0, 1)
	}

	return normalized
}
