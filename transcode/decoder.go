// Package transcode reads audio into the mono 44.1 kHz float buffers the
// feature pipeline consumes.
package transcode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/RyanBlaney/sonido-instrument/logging"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// ErrInvalidWAV is returned for input that is not a readable PCM WAV file.
var ErrInvalidWAV = errors.New("invalid WAV file")

// AudioData holds decoded mono PCM in [-1, 1].
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // always 1 after decoding
	Duration   time.Duration `json:"duration"`

	// Properties of the source before downmix and resampling.
	SourceSampleRate int `json:"source_sample_rate"`
	SourceChannels   int `json:"source_channels"`
	SourceBitDepth   int `json:"source_bit_depth,omitempty"`
}

// DecoderConfig controls output format of the decoder.
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate" yaml:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration" yaml:"max_duration"` // 0 means no limit
}

// DefaultDecoderConfig returns 44.1 kHz output with no duration limit.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 44100,
		MaxDuration:      0,
	}
}

// Decoder converts WAV or raw float input to mono PCM.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	if config.TargetSampleRate <= 0 {
		config.TargetSampleRate = DefaultDecoderConfig().TargetSampleRate
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// DecodeFile decodes a WAV file.
func (d *Decoder) DecodeFile(filename string) (*AudioData, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer f.Close()

	data, err := d.DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return data, nil
}

// DecodeWAV decodes integer PCM WAV data.
func (d *Decoder) DecodeWAV(r io.ReadSeeker) (*AudioData, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: unsupported audio format %d", ErrInvalidWAV, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not read PCM buffer: %w", err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if channels <= 0 || bitDepth <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %d bits", ErrInvalidWAV, channels, bitDepth)
	}

	d.logger.Debug("wav header read", logging.Fields{
		"sample_rate": dec.SampleRate,
		"channels":    channels,
		"bit_depth":   bitDepth,
		"samples":     len(buf.Data),
	})

	data, err := d.finish(intBufferToMono(buf, channels, bitDepth), int(dec.SampleRate), channels)
	if err != nil {
		return nil, err
	}
	data.SourceBitDepth = bitDepth
	return data, nil
}

// DecodeRawFloat32 reads interleaved little-endian float32 PCM.
func (d *Decoder) DecodeRawFloat32(r io.Reader, sampleRate, channels int) (*AudioData, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid raw format: %d Hz, %d channels", sampleRate, channels)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw PCM: %w", err)
	}
	if len(raw)%(4*channels) != 0 {
		return nil, fmt.Errorf("raw PCM length %d is not a whole number of %d-channel float32 frames", len(raw), channels)
	}

	frames := len(raw) / (4 * channels)
	mono := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			off := (i*channels + c) * 4
			sum += float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[off:])))
		}
		mono[i] = sum / float64(channels)
	}

	return d.finish(mono, sampleRate, channels)
}

// finish trims, resamples and wraps mono samples.
func (d *Decoder) finish(mono []float64, sampleRate, channels int) (*AudioData, error) {
	if len(mono) == 0 {
		return nil, errors.New("no audio samples decoded")
	}

	if d.config.MaxDuration > 0 {
		limit := int(d.config.MaxDuration.Seconds() * float64(sampleRate))
		if limit > 0 && len(mono) > limit {
			mono = mono[:limit]
		}
	}

	out := mono
	if sampleRate != d.config.TargetSampleRate {
		var err error
		out, err = Resample(mono, sampleRate, d.config.TargetSampleRate)
		if err != nil {
			return nil, err
		}
		d.logger.Debug("resampled", logging.Fields{
			"from":    sampleRate,
			"to":      d.config.TargetSampleRate,
			"samples": len(out),
		})
	}

	return &AudioData{
		PCM:              out,
		SampleRate:       d.config.TargetSampleRate,
		Channels:         1,
		Duration:         time.Duration(float64(len(out)) / float64(d.config.TargetSampleRate) * float64(time.Second)),
		SourceSampleRate: sampleRate,
		SourceChannels:   channels,
	}, nil
}

// Resample converts mono samples between rates.
func Resample(samples []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return samples, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(fromRate),
		OutputRate: float64(toRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	out, err := r.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("failed to resample %d -> %d Hz: %w", fromRate, toRate, err)
	}
	return out, nil
}

// intBufferToMono averages the channels and scales by bit depth. 8-bit
// WAV samples are unsigned.
func intBufferToMono(buf *audio.IntBuffer, channels, bitDepth int) []float64 {
	scale := math.Exp2(float64(bitDepth - 1))
	offset := 0.0
	if bitDepth == 8 {
		offset = 128
	}

	frames := len(buf.Data) / channels
	mono := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += (float64(buf.Data[i*channels+c]) - offset) / scale
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}
