package windowing

// Hamming is w[i] = 0.54 − 0.46·cos(2πi/(N−1)) in its symmetric form.
type Hamming struct {
	table
}

// NewHamming creates a new Hamming window
func NewHamming(size int, symmetric bool) *Hamming {
	return &Hamming{table: cosineTable(size, symmetric, 0.54, 0.46)}
}

// GetType returns the window type
func (h *Hamming) GetType() string {
	return string(TypeHamming)
}
