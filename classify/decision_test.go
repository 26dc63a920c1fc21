package classify

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

var instruments = []string{"khaen", "pin", "sing"}

func TestDecideConfidentPrediction(t *testing.T) {
	raw := []float64{0.92, 0.05, 0.03}

	// H = 0.4785 bits, log2(3) = 1.585
	wantNorm := -(0.92*math.Log2(0.92) + 0.05*math.Log2(0.05) + 0.03*math.Log2(0.03)) / math.Log2(3)

	d, err := Decide(raw, instruments, Thresholds{Confidence: 0.85, Entropy: 0.35})
	if err != nil {
		t.Fatal(err)
	}
	if d.IsUnknown || d.Label != "khaen" || d.Predicted != "khaen" {
		t.Fatalf("got label=%q unknown=%v, want khaen", d.Label, d.IsUnknown)
	}
	if d.Confidence != 0.92 {
		t.Errorf("confidence = %g, want 0.92", d.Confidence)
	}
	if !scalar.EqualWithinAbs(d.NormalizedEntropy, wantNorm, 1e-12) {
		t.Errorf("normalized entropy = %g, want %g", d.NormalizedEntropy, wantNorm)
	}
	if !scalar.EqualWithinAbs(d.NormalizedEntropy, 0.3019, 1e-4) {
		t.Errorf("normalized entropy = %g, want ~0.3019", d.NormalizedEntropy)
	}
	if d.UsedSoftmax {
		t.Error("softmax applied to a normalized vector")
	}
	if d.RunnerUp == nil || d.RunnerUp.Label != "pin" || d.RunnerUp.Probability != 0.05 {
		t.Errorf("runner up = %+v, want pin 0.05", d.RunnerUp)
	}
}

func TestDecideEntropyRejects(t *testing.T) {
	// confident top class, but the tail is spread enough to exceed 0.15
	d, err := Decide([]float64{0.92, 0.05, 0.03}, instruments, DefaultThresholds())
	if err != nil {
		t.Fatal(err)
	}
	if !d.IsUnknown || d.Label != UnknownLabel {
		t.Fatalf("got label=%q unknown=%v, want unknown", d.Label, d.IsUnknown)
	}
	if d.Predicted != "khaen" {
		t.Errorf("predicted = %q, want khaen", d.Predicted)
	}
}

func TestDecideLowConfidence(t *testing.T) {
	d, err := Decide([]float64{0.4, 0.35, 0.25}, instruments, Thresholds{Confidence: 0.85, Entropy: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !d.IsUnknown {
		t.Fatal("0.4 < 0.85 must be unknown regardless of entropy")
	}
	if d.Confidence != 0.4 || d.Predicted != "khaen" {
		t.Errorf("confidence=%g predicted=%q", d.Confidence, d.Predicted)
	}
}

func TestDecideOneHot(t *testing.T) {
	d, err := Decide([]float64{0, 1, 0}, instruments, DefaultThresholds())
	if err != nil {
		t.Fatal(err)
	}
	if d.IsUnknown || d.Label != "pin" {
		t.Fatalf("got label=%q unknown=%v, want pin", d.Label, d.IsUnknown)
	}
	if d.Entropy != 0 || d.NormalizedEntropy != 0 {
		t.Errorf("entropy = %g / %g, want 0", d.Entropy, d.NormalizedEntropy)
	}
}

func TestDecideUniform(t *testing.T) {
	for _, n := range []int{2, 3, 7, 16} {
		labels := make([]string, n)
		raw := make([]float64, n)
		for i := range n {
			labels[i] = string(rune('a' + i))
			raw[i] = 1 / float64(n)
		}
		d, err := Decide(raw, labels, DefaultThresholds())
		if err != nil {
			t.Fatal(err)
		}
		if !scalar.EqualWithinAbs(d.NormalizedEntropy, 1, 1e-9) {
			t.Errorf("n=%d: normalized entropy = %g, want 1", n, d.NormalizedEntropy)
		}
		if !d.IsUnknown {
			t.Errorf("n=%d: uniform output must be unknown", n)
		}
	}
}

func TestDecideAllZero(t *testing.T) {
	d, err := Decide([]float64{0, 0, 0}, instruments, DefaultThresholds())
	if err != nil {
		t.Fatal(err)
	}
	if !d.IsUnknown || d.Label != UnknownLabel || d.Predicted != "" {
		t.Fatalf("got label=%q predicted=%q, want unknown", d.Label, d.Predicted)
	}
	if d.Confidence != 0 {
		t.Errorf("confidence = %g, want 0", d.Confidence)
	}
	if !scalar.EqualWithinAbs(d.NormalizedEntropy, 1, 1e-9) {
		t.Errorf("normalized entropy = %g, want 1", d.NormalizedEntropy)
	}
	for label, p := range d.Probabilities {
		if p != 0 {
			t.Errorf("probability of %q = %g, want 0", label, p)
		}
	}
}

func TestDecideNonFinite(t *testing.T) {
	tests := []struct {
		name string
		raw  []float64
	}{
		{"nan top", []float64{math.NaN(), 0.05, 0.03}},
		{"nan runner up", []float64{0.92, math.NaN(), 0.03}},
		{"positive inf", []float64{math.Inf(1), 0.05, 0.03}},
		{"negative inf", []float64{0.92, math.Inf(-1), 0.03}},
		{"all nan", []float64{math.NaN(), math.NaN(), math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(tt.raw, instruments, Thresholds{Confidence: 0, Entropy: 1})
			if err != nil {
				t.Fatal(err)
			}
			if !d.IsUnknown || d.Label != UnknownLabel || d.Predicted != "" {
				t.Fatalf("got label=%q predicted=%q unknown=%v, want unknown", d.Label, d.Predicted, d.IsUnknown)
			}
			if d.Confidence != 0 {
				t.Errorf("confidence = %g, want 0", d.Confidence)
			}
			if d.NormalizedEntropy != 1 || !scalar.EqualWithinAbs(d.Entropy, math.Log2(3), 1e-12) {
				t.Errorf("entropy = %g (normalized %g), want uniform", d.Entropy, d.NormalizedEntropy)
			}
			for label, p := range d.Probabilities {
				if p != 0 {
					t.Errorf("probability of %q = %g, want 0", label, p)
				}
			}
		})
	}
}

func TestDecideSingleLabel(t *testing.T) {
	d, err := Decide([]float64{3.2}, []string{"khaen"}, DefaultThresholds())
	if err != nil {
		t.Fatal(err)
	}
	if d.NormalizedEntropy != 0 || math.IsNaN(d.NormalizedEntropy) {
		t.Errorf("normalized entropy = %g, want 0", d.NormalizedEntropy)
	}
	if d.IsUnknown || d.Confidence != 1 {
		t.Errorf("got unknown=%v confidence=%g", d.IsUnknown, d.Confidence)
	}
	if d.RunnerUp != nil {
		t.Errorf("runner up = %+v, want nil", d.RunnerUp)
	}

	zero, err := Decide([]float64{0}, []string{"khaen"}, DefaultThresholds())
	if err != nil {
		t.Fatal(err)
	}
	if !zero.IsUnknown || zero.NormalizedEntropy != 0 {
		t.Errorf("all-zero single label: unknown=%v entropy=%g", zero.IsUnknown, zero.NormalizedEntropy)
	}
}

func TestDecideSoftmaxSafetyNet(t *testing.T) {
	tests := []struct {
		name string
		raw  []float64
	}{
		{"logits", []float64{6, 1, 0.5}},
		{"negative", []float64{1.5, -0.2, -0.3}},
		{"underweight", []float64{0.5, 0.2, 0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(tt.raw, instruments, DefaultThresholds())
			if err != nil {
				t.Fatal(err)
			}
			if !d.UsedSoftmax {
				t.Fatal("softmax not applied")
			}
			sum := 0.0
			for _, p := range d.Probabilities {
				sum += p
			}
			if !scalar.EqualWithinAbs(sum, 1, 1e-12) {
				t.Errorf("probabilities sum to %g", sum)
			}
			if d.Predicted != "khaen" {
				t.Errorf("predicted = %q, want khaen", d.Predicted)
			}
			if d.NormalizedEntropy < 0 || d.NormalizedEntropy > 1 {
				t.Errorf("normalized entropy %g outside [0,1]", d.NormalizedEntropy)
			}
		})
	}
}

func TestDecideAlignsOutput(t *testing.T) {
	long, err := Decide([]float64{0.98, 0.01, 0.01, 12}, instruments, DefaultThresholds())
	if err != nil {
		t.Fatal(err)
	}
	if long.UsedSoftmax || long.Label != "khaen" || len(long.Probabilities) != 3 {
		t.Errorf("truncation: softmax=%v label=%q n=%d", long.UsedSoftmax, long.Label, len(long.Probabilities))
	}

	short, err := Decide([]float64{0.95, 0.05}, instruments, DefaultThresholds())
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := short.Probabilities["sing"]; !ok || p != 0 {
		t.Errorf("missing label padded to %g (present=%v), want 0", p, ok)
	}
}

func TestDecideTiesPickFirst(t *testing.T) {
	d, err := Decide([]float64{0.5, 0.5}, []string{"pin", "khaen"}, DefaultThresholds())
	if err != nil {
		t.Fatal(err)
	}
	if d.Predicted != "pin" {
		t.Errorf("predicted = %q, want pin", d.Predicted)
	}
	if d.RunnerUp == nil || d.RunnerUp.Label != "khaen" {
		t.Errorf("runner up = %+v, want khaen", d.RunnerUp)
	}
	if got := d.Top(5); len(got) != 2 || got[0].Label != "pin" {
		t.Errorf("Top(5) = %+v", got)
	}
}

func TestDecideDeterministic(t *testing.T) {
	raw := []float64{2.3, -0.7, 1.1}
	a, err := Decide(raw, instruments, DefaultThresholds())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Decide(raw, instruments, DefaultThresholds())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("decisions differ:\n%+v\n%+v", a, b)
	}
	if raw[0] != 2.3 || raw[1] != -0.7 || raw[2] != 1.1 {
		t.Error("raw output modified")
	}
}

func TestDecideNoLabels(t *testing.T) {
	if _, err := Decide([]float64{1}, nil, DefaultThresholds()); !errors.Is(err, ErrNoLabels) {
		t.Fatalf("err = %v, want ErrNoLabels", err)
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatal(err)
	}
	for _, th := range []Thresholds{{-0.1, 0.1}, {0.9, 1.5}, {1.01, 0}} {
		if err := th.Validate(); !errors.Is(err, ErrInvalidThresholds) {
			t.Errorf("%+v: err = %v", th, err)
		}
	}
}
