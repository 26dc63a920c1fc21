package spectral

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-instrument/logging"
)

// Window is the windowing contract the STFT needs.
type Window interface {
	ApplyInPlace(signal []float64) error
	GetSize() int
}

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft     *FFT
	workers int
	logger  logging.Logger
}

// STFTOption configures an STFT.
type STFTOption func(*STFT)

// WithWorkers fans frames out over n goroutines. n <= 1 keeps the
// computation on the calling goroutine; n < 0 picks a count from the
// workload and runtime.NumCPU.
func WithWorkers(n int) STFTOption {
	return func(s *STFT) {
		s.workers = n
	}
}

// WithLogger sets the logger used for frame-level diagnostics.
func WithLogger(logger logging.Logger) STFTOption {
	return func(s *STFT) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// STFTResult holds the positive-frequency half of every frame spectrum.
type STFTResult struct {
	Spectra        [][]complex128 `json:"-"`               // Time x Frequency complex matrix
	TimeFrames     int            `json:"time_frames"`     // Number of time frames
	FreqBins       int            `json:"freq_bins"`       // FFT size/2 + 1
	SampleRate     int            `json:"sample_rate"`     // Sample rate
	WindowSize     int            `json:"window_size"`     // Analysis window length
	FFTSize        int            `json:"fft_size"`        // Transform length (power of two)
	HopSize        int            `json:"hop_size"`        // Hop size between frames
	FreqResolution float64        `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64        `json:"time_resolution"` // Time resolution (seconds/frame)
}

// NewSTFT creates a new STFT calculator
func NewSTFT(opts ...STFTOption) *STFT {
	s := &STFT{
		fft:     NewFFT(),
		workers: 1,
		logger: logging.WithFields(logging.Fields{
			"component": "stft",
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NumFrames returns floor((length-windowSize)/hopSize)+1 for signals at
// least one window long, 1 for a shorter non-empty signal (a single
// zero-padded frame) and 0 for an empty one.
func NumFrames(length, windowSize, hopSize int) int {
	switch {
	case length <= 0 || windowSize <= 0 || hopSize <= 0:
		return 0
	case length < windowSize:
		return 1
	default:
		return (length-windowSize)/hopSize + 1
	}
}

// ComputeWithWindow frames the signal, applies window to each frame, zero
// pads it to the next power of two and keeps the non-redundant half of
// the spectrum. Samples past the end of the signal read as 0.
func (s *STFT) ComputeWithWindow(signal []float64, windowSize int, hopSize int, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	if window != nil && window.GetSize() != windowSize {
		return nil, fmt.Errorf("window length (%d) doesn't match window size (%d)", window.GetSize(), windowSize)
	}

	numFrames := NumFrames(len(signal), windowSize, hopSize)
	fftSize := NextPowerOfTwo(windowSize)
	freqBins := fftSize/2 + 1

	spectra := make([][]complex128, numFrames)

	workers := s.workerCount(numFrames)
	if workers <= 1 {
		frame := make([]float64, fftSize)
		for i := range numFrames {
			spec, err := s.frameSpectrum(frame, signal, i*hopSize, windowSize, freqBins, window)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			spectra[i] = spec
		}
	} else if err := s.computeParallel(spectra, signal, windowSize, hopSize, fftSize, freqBins, window, workers); err != nil {
		return nil, err
	}

	s.logger.Debug("stft computed", logging.Fields{
		"frames":  numFrames,
		"bins":    freqBins,
		"workers": workers,
	})

	return &STFTResult{
		Spectra:        spectra,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		FFTSize:        fftSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(fftSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// frameSpectrum fills frame (len fftSize) from signal[start:], windows the
// first windowSize samples and returns the first freqBins FFT bins.
func (s *STFT) frameSpectrum(frame, signal []float64, start, windowSize, freqBins int, window Window) ([]complex128, error) {
	clear(frame)
	if start < len(signal) {
		end := min(start+windowSize, len(signal))
		copy(frame, signal[start:end])
	}

	if window != nil {
		if err := window.ApplyInPlace(frame[:windowSize]); err != nil {
			return nil, err
		}
	}

	full, err := s.fft.Compute(frame)
	if err != nil {
		return nil, err
	}
	bins := make([]complex128, freqBins)
	copy(bins, full)
	return bins, nil
}

// CrossCheck computes the STFT and recomputes every frame with the go-dsp
// transform. It returns the largest bin difference relative to the
// largest magnitude in the spectrogram.
func (s *STFT) CrossCheck(signal []float64, windowSize, hopSize, sampleRate int, window Window) (float64, error) {
	res, err := s.ComputeWithWindow(signal, windowSize, hopSize, sampleRate, window)
	if err != nil {
		return 0, err
	}

	var maxDiff, peak float64
	frame := make([]float64, res.FFTSize)
	for i, spectrum := range res.Spectra {
		clear(frame)
		if start := i * hopSize; start < len(signal) {
			copy(frame, signal[start:min(start+windowSize, len(signal))])
		}
		if window != nil {
			if err := window.ApplyInPlace(frame[:windowSize]); err != nil {
				return 0, fmt.Errorf("frame %d: %w", i, err)
			}
		}

		ref, err := s.fft.Reference(frame)
		if err != nil {
			return 0, fmt.Errorf("frame %d: %w", i, err)
		}
		for k, c := range spectrum {
			peak = max(peak, Magnitude(ref[k]))
			maxDiff = max(maxDiff, Magnitude(c-ref[k]))
		}
	}

	if peak == 0 {
		return maxDiff, nil
	}
	return maxDiff / peak, nil
}

func (s *STFT) computeParallel(spectra [][]complex128, signal []float64, windowSize, hopSize, fftSize, freqBins int, window Window, workers int) error {
	jobs := make(chan int, len(spectra))
	for i := range spectra {
		jobs <- i
	}
	close(jobs)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frame := make([]float64, fftSize)

			for idx := range jobs {
				spec, err := s.frameSpectrum(frame, signal, idx*hopSize, windowSize, freqBins, window)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("frame %d: %w", idx, err)
					}
					mu.Unlock()
					continue
				}
				spectra[idx] = spec
			}
		}()
	}

	wg.Wait()
	return firstErr
}

// workerCount resolves the configured worker count for a workload.
func (s *STFT) workerCount(numFrames int) int {
	if s.workers >= 0 {
		return min(s.workers, numFrames)
	}

	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	// For medium workloads, use most CPUs
	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
