package stats

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestShannonBits(t *testing.T) {
	tests := []struct {
		name string
		p    []float64
		want float64
	}{
		{"one-hot", []float64{0, 1, 0}, 0},
		{"fair coin", []float64{0.5, 0.5}, 1},
		{"uniform 4", []float64{0.25, 0.25, 0.25, 0.25}, 2},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		if got := ShannonBits(tt.p); !scalar.EqualWithinAbs(got, tt.want, 1e-12) {
			t.Errorf("%s: ShannonBits = %g, want %g", tt.name, got, tt.want)
		}
	}
}

func TestNormalizedEntropyBounds(t *testing.T) {
	if got := NormalizedEntropy([]float64{1, 0, 0}, 3); got != 0 {
		t.Errorf("one-hot = %g, want 0", got)
	}
	u := []float64{0.2, 0.2, 0.2, 0.2, 0.2}
	if got := NormalizedEntropy(u, 5); !scalar.EqualWithinAbs(got, 1, 1e-12) {
		t.Errorf("uniform = %g, want 1", got)
	}
	if got := NormalizedEntropy([]float64{1}, 1); got != 0 {
		t.Errorf("single label = %g, want 0", got)
	}
	skew := []float64{0.7, 0.2, 0.1}
	if got := NormalizedEntropy(skew, 3); got <= 0 || got >= 1 {
		t.Errorf("skewed = %g, want in (0,1)", got)
	}
}

func TestSoftmax(t *testing.T) {
	p := Softmax([]float64{0, 0, 0, 0})
	for i, v := range p {
		if !scalar.EqualWithinAbs(v, 0.25, 1e-15) {
			t.Errorf("p[%d] = %g, want 0.25", i, v)
		}
	}

	p = Softmax([]float64{1000, 0})
	if math.IsNaN(p[0]) || !scalar.EqualWithinAbs(p[0], 1, 1e-12) {
		t.Errorf("large logit p[0] = %g, want 1", p[0])
	}

	p = Softmax([]float64{1, 2, 3})
	sum := p[0] + p[1] + p[2]
	if !scalar.EqualWithinAbs(sum, 1, 1e-12) || !(p[2] > p[1] && p[1] > p[0]) {
		t.Errorf("softmax(1,2,3) = %v", p)
	}
}

func TestArgMaxFirstWins(t *testing.T) {
	idx, v := ArgMax([]float64{0.3, 0.4, 0.4, 0.1})
	if idx != 1 || v != 0.4 {
		t.Errorf("ArgMax = (%d, %g), want (1, 0.4)", idx, v)
	}
	if idx, _ := ArgMax(nil); idx != -1 {
		t.Errorf("empty ArgMax index = %d", idx)
	}
}

func TestLooksNormalized(t *testing.T) {
	if !LooksNormalized([]float64{0.92, 0.05, 0.03}, 0.9, 1.1) {
		t.Error("probabilities rejected")
	}
	if LooksNormalized([]float64{0, 0, 0}, 0.9, 1.1) {
		t.Error("all-zero accepted")
	}
	if LooksNormalized([]float64{1.5, -0.5}, 0.9, 1.1) {
		t.Error("negative entries accepted")
	}
}
