package spectral

import (
	"math"
	"testing"
)

func TestMelConversion(t *testing.T) {
	// 2595 * log10(1 + 1000/700) ≈ 1000.0
	mel := HzToMel(1000)
	if math.Abs(mel-1000) > 0.5 {
		t.Errorf("HzToMel(1000) = %f, want ~1000", mel)
	}
	if hz := MelToHz(mel); math.Abs(hz-1000) > 1e-9 {
		t.Errorf("MelToHz(HzToMel(1000)) = %f, want 1000", hz)
	}
}

func TestMelFilterBankRowSums(t *testing.T) {
	tests := []struct {
		name             string
		numMels, fftSize int
		sampleRate       int
		fMin, fMax       float64
	}{
		{"default", 128, 2048, 44100, 0, 22050},
		{"speech", 40, 512, 16000, 20, 7600},
		{"narrow", 64, 1024, 44100, 100, 8000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, err := NewMelFilterBank(tt.numMels, tt.fftSize, tt.sampleRate, tt.fMin, tt.fMax)
			if err != nil {
				t.Fatal(err)
			}
			if fb.NumMels() != tt.numMels || fb.NumBins() != tt.fftSize/2+1 {
				t.Fatalf("shape %dx%d", fb.NumMels(), fb.NumBins())
			}
			for m, s := range fb.RowSums() {
				if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
					t.Errorf("row %d sum = %g", m, s)
				}
			}
		})
	}
}

func TestMelFilterBankTriangles(t *testing.T) {
	fb, err := NewMelFilterBank(10, 512, 16000, 0, 8000)
	if err != nil {
		t.Fatal(err)
	}
	edges := fb.Edges()
	for m := range fb.NumMels() {
		row := fb.Row(m)
		left, center, right := edges[m], edges[m+1], edges[m+2]
		if row[center] != 1 {
			t.Errorf("filter %d: centre weight %g, want 1", m, row[center])
		}
		for k, w := range row {
			if w < 0 || w > 1 {
				t.Errorf("filter %d bin %d: weight %g outside [0,1]", m, k, w)
			}
			if (k <= left || k >= right) && k != center && w != 0 {
				t.Errorf("filter %d bin %d: weight %g outside support [%d,%d]", m, k, w, left, right)
			}
		}
	}
}

func TestMelFilterBankDegenerate(t *testing.T) {
	fb, err := NewMelFilterBank(200, 2048, 44100, 0, 50)
	if err != nil {
		t.Fatal(err)
	}
	for m, s := range fb.RowSums() {
		if s < 1 || math.IsNaN(s) || math.IsInf(s, 0) {
			t.Fatalf("row %d sum = %g, want finite >= 1", m, s)
		}
	}

	power := make([]float64, fb.NumBins())
	for i := range power {
		power[i] = 1
	}
	for m, v := range fb.Apply(power) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("band %d = %g", m, v)
		}
	}
}

func TestMelFilterBankRejectsBadInput(t *testing.T) {
	cases := []struct {
		numMels, fftSize, sr int
		fMin, fMax           float64
	}{
		{0, 2048, 44100, 0, 22050},
		{128, 0, 44100, 0, 22050},
		{128, 2048, 0, 0, 22050},
		{128, 2048, 44100, 500, 100},
		{128, 2048, 44100, -1, 100},
	}
	for _, c := range cases {
		if _, err := NewMelFilterBank(c.numMels, c.fftSize, c.sr, c.fMin, c.fMax); err == nil {
			t.Errorf("NewMelFilterBank(%+v) expected error", c)
		}
	}
}

func TestMelFilterBankApply(t *testing.T) {
	fb, err := NewMelFilterBank(8, 64, 8000, 0, 4000)
	if err != nil {
		t.Fatal(err)
	}
	power := make([]float64, fb.NumBins())
	power[10] = 2

	out := fb.Apply(power)
	for m := range out {
		want := 2 * fb.Row(m)[10]
		if math.Abs(out[m]-want) > 1e-12 {
			t.Errorf("band %d = %g, want %g", m, out[m], want)
		}
	}
}
