package windowing

// Hann is w[i] = 0.5·(1 − cos(2πi/(N−1))) in its symmetric form.
type Hann struct {
	table
}

// NewHann creates a new Hann window
func NewHann(size int, symmetric bool) *Hann {
	return &Hann{table: cosineTable(size, symmetric, 0.5, 0.5)}
}

// GetType returns the window type
func (h *Hann) GetType() string {
	return string(TypeHann)
}
