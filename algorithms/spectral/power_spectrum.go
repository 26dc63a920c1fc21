package spectral

// PowerSpectrum converts complex spectra into power (re² + im²). No
// scaling is applied, matching the unnormalized forward transform.
type PowerSpectrum struct {
	// No state needed - stateless calculation
}

// NewPowerSpectrum creates a new power spectrum calculator
func NewPowerSpectrum() *PowerSpectrum {
	return &PowerSpectrum{}
}

// FromComplex computes the power of every bin.
func (ps *PowerSpectrum) FromComplex(spectrum []complex128) []float64 {
	power := make([]float64, len(spectrum))
	for i, c := range spectrum {
		power[i] = Power(c)
	}
	return power
}

// ComputeFromSTFT computes the power spectrogram (Time x Frequency).
func (ps *PowerSpectrum) ComputeFromSTFT(stftResult *STFTResult) [][]float64 {
	power := make([][]float64, stftResult.TimeFrames)

	for t := 0; t < stftResult.TimeFrames; t++ {
		power[t] = ps.FromComplex(stftResult.Spectra[t])
	}

	return power
}
