package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ShannonBits returns −Σ p·log2(p). Zero entries contribute nothing.
func ShannonBits(p []float64) float64 {
	if len(p) == 0 {
		return 0
	}
	// stat.Entropy works in nats
	return stat.Entropy(p) / math.Ln2
}

// MaxEntropyBits is log2(n), the entropy of a uniform distribution over n
// outcomes.
func MaxEntropyBits(n int) float64 {
	if n <= 1 {
		return 0
	}
	return math.Log2(float64(n))
}

// NormalizedEntropy divides the Shannon entropy of p by log2(n). With a
// single outcome there is no uncertainty to measure and the result is 0.
func NormalizedEntropy(p []float64, n int) float64 {
	maxH := MaxEntropyBits(n)
	if maxH == 0 {
		return 0
	}
	return ShannonBits(p) / maxH
}

// Softmax returns exp(x_i)/Σexp(x_j), computed via log-sum-exp so large
// logits do not overflow. All-equal input yields a uniform distribution.
func Softmax(x []float64) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	lse := floats.LogSumExp(x)
	p := make([]float64, len(x))
	for i, v := range x {
		p[i] = math.Exp(v - lse)
	}
	return p
}

// ArgMax returns the index and value of the largest element. Ties resolve
// to the lowest index. An empty slice returns (-1, 0).
func ArgMax(x []float64) (int, float64) {
	if len(x) == 0 {
		return -1, 0
	}
	idx := floats.MaxIdx(x)
	return idx, x[idx]
}

// LooksNormalized reports whether x can be read as a probability
// distribution: no negative entries and a sum within [lo, hi].
func LooksNormalized(x []float64, lo, hi float64) bool {
	for _, v := range x {
		if v < 0 || math.IsNaN(v) {
			return false
		}
	}
	sum := floats.Sum(x)
	return sum >= lo && sum <= hi
}
