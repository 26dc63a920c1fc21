package spectral

import (
	"fmt"
	"math"
)

// HzToMel converts frequency in Hz to mel scale (HTK formula).
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// MelFilterBank is a numMels x (fftSize/2+1) matrix of triangular filters.
// It is immutable after construction and safe for concurrent use.
//
// Collapsed bins: the centre bin of every filter carries weight 1.0 and
// each slope is only drawn when it spans at least one bin. A filter whose
// three edge bins coincide degenerates to a unit impulse, so every row
// sums to a finite value >= 1.
type MelFilterBank struct {
	numMels    int
	fftSize    int
	sampleRate int
	fMin       float64
	fMax       float64
	edges      []int
	weights    [][]float64
}

// NewMelFilterBank builds the filter matrix.
func NewMelFilterBank(numMels, fftSize, sampleRate int, fMin, fMax float64) (*MelFilterBank, error) {
	if numMels <= 0 {
		return nil, fmt.Errorf("invalid number of mel bands: %d", numMels)
	}
	if fftSize <= 0 {
		return nil, fmt.Errorf("invalid FFT size: %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if fMin < 0 || fMax <= fMin {
		return nil, fmt.Errorf("invalid frequency range [%g, %g]", fMin, fMax)
	}

	lowMel := HzToMel(fMin)
	highMel := HzToMel(fMax)

	// numMels+2 equally spaced points, mapped back to Hz and then to bins
	edges := make([]int, numMels+2)
	melStep := (highMel - lowMel) / float64(numMels+1)
	for i := range edges {
		hz := MelToHz(lowMel + float64(i)*melStep)
		bin := int(math.Round(hz * float64(fftSize) / float64(sampleRate)))
		edges[i] = max(0, min(bin, fftSize-1))
	}

	width := fftSize/2 + 1
	weights := make([][]float64, numMels)
	for m := range weights {
		row := make([]float64, width)
		left, center, right := edges[m], edges[m+1], edges[m+2]

		for k := left + 1; k < center && k < width; k++ {
			row[k] = float64(k-left) / float64(center-left)
		}
		if center < width {
			row[center] = 1.0
		}
		for k := center + 1; k < right && k < width; k++ {
			row[k] = float64(right-k) / float64(right-center)
		}

		weights[m] = row
	}

	return &MelFilterBank{
		numMels:    numMels,
		fftSize:    fftSize,
		sampleRate: sampleRate,
		fMin:       fMin,
		fMax:       fMax,
		edges:      edges,
		weights:    weights,
	}, nil
}

// Apply projects a power spectrum (length fftSize/2+1) onto the mel bands.
func (fb *MelFilterBank) Apply(powerSpectrum []float64) []float64 {
	out := make([]float64, fb.numMels)
	fb.ApplyTo(out, powerSpectrum)
	return out
}

// ApplyTo is Apply writing into dst, which must hold NumMels values.
func (fb *MelFilterBank) ApplyTo(dst, powerSpectrum []float64) {
	for m, filter := range fb.weights {
		sum := 0.0
		for k := 0; k < len(filter) && k < len(powerSpectrum); k++ {
			if w := filter[k]; w != 0 {
				sum += powerSpectrum[k] * w
			}
		}
		dst[m] = sum
	}
}

// NumMels returns the number of mel bands (rows).
func (fb *MelFilterBank) NumMels() int {
	return fb.numMels
}

// NumBins returns the number of FFT bins per row.
func (fb *MelFilterBank) NumBins() int {
	return fb.fftSize/2 + 1
}

// Edges returns a copy of the numMels+2 filter edge bins.
func (fb *MelFilterBank) Edges() []int {
	out := make([]int, len(fb.edges))
	copy(out, fb.edges)
	return out
}

// Row returns a copy of filter m.
func (fb *MelFilterBank) Row(m int) []float64 {
	out := make([]float64, len(fb.weights[m]))
	copy(out, fb.weights[m])
	return out
}

// RowSums returns the total weight of every filter.
func (fb *MelFilterBank) RowSums() []float64 {
	sums := make([]float64, fb.numMels)
	for m, row := range fb.weights {
		for _, w := range row {
			sums[m] += w
		}
	}
	return sums
}
