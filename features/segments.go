package features

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-instrument/algorithms/common"
	"github.com/RyanBlaney/sonido-instrument/logging"
)

// SegmentConfig describes the fixed segment slots of attention-style models.
type SegmentConfig struct {
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
	OverlapFraction float64 `json:"overlap_fraction" yaml:"overlap_fraction"`
	MaxSegments     int     `json:"max_segments" yaml:"max_segments"`

	// FeatureDim is the per-segment vector length the model declares.
	// 0 derives it from the engine: frames(segment) × mels.
	FeatureDim int `json:"feature_dim,omitempty" yaml:"feature_dim,omitempty"`
}

// DefaultSegmentConfig returns 3 s segments with 50% overlap and 10 slots.
func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		DurationSeconds: 3.0,
		OverlapFraction: 0.5,
		MaxSegments:     10,
	}
}

// Validate checks the segment parameters.
func (c SegmentConfig) Validate() error {
	if c.DurationSeconds <= 0 {
		return fmt.Errorf("segment duration must be positive, got %g", c.DurationSeconds)
	}
	if c.OverlapFraction < 0 || c.OverlapFraction >= 1 {
		return fmt.Errorf("overlap fraction must be in [0, 1), got %g", c.OverlapFraction)
	}
	if c.MaxSegments <= 0 {
		return fmt.Errorf("max segments must be positive, got %d", c.MaxSegments)
	}
	if c.FeatureDim < 0 {
		return fmt.Errorf("feature dimension must not be negative, got %d", c.FeatureDim)
	}
	return nil
}

// SegmentExtractor splits a long buffer into overlapping segments and
// extracts one fixed-length feature vector per segment.
type SegmentExtractor struct {
	engine     *Engine
	cfg        SegmentConfig
	segmentLen int
	hop        int
	featureDim int
	logger     logging.Logger
}

// NewSegmentExtractor validates cfg against the engine's sample rate.
func NewSegmentExtractor(engine *Engine, cfg SegmentConfig) (*SegmentExtractor, error) {
	if engine == nil {
		return nil, fmt.Errorf("segment extractor requires an engine")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	segmentLen := int(math.Round(cfg.DurationSeconds * float64(engine.cfg.SampleRate)))
	if segmentLen <= 0 {
		return nil, fmt.Errorf("segment of %g s holds no samples", cfg.DurationSeconds)
	}
	hop := max(1, int(math.Round(float64(segmentLen)*(1-cfg.OverlapFraction))))

	featureDim := cfg.FeatureDim
	if featureDim == 0 {
		featureDim = engine.FeatureDim(segmentLen)
	}

	return &SegmentExtractor{
		engine:     engine,
		cfg:        cfg,
		segmentLen: segmentLen,
		hop:        hop,
		featureDim: featureDim,
		logger: logging.WithFields(logging.Fields{
			"component": "segment_extractor",
		}),
	}, nil
}

// SegmentLength is the segment size in samples.
func (s *SegmentExtractor) SegmentLength() int {
	return s.segmentLen
}

// Hop is the distance between segment starts in samples.
func (s *SegmentExtractor) Hop() int {
	return s.hop
}

// FeatureDim is the per-segment vector length.
func (s *SegmentExtractor) FeatureDim() int {
	return s.featureDim
}

// SegmentCount is the number of real segments a buffer of n samples
// yields. Windows that would run past the end are dropped.
func (s *SegmentExtractor) SegmentCount(n int) int {
	if n < s.segmentLen {
		return 0
	}
	return min(s.cfg.MaxSegments, 1+(n-s.segmentLen)/s.hop)
}

// Extract returns exactly MaxSegments vectors of FeatureDim values. Real
// segments come first; the remaining slots are zero vectors.
func (s *SegmentExtractor) Extract(buffer []float64) ([][]float32, int, error) {
	if len(buffer) == 0 {
		return nil, 0, ErrEmptyBuffer
	}

	active := s.SegmentCount(len(buffer))
	out := make([][]float32, s.cfg.MaxSegments)

	for i := range active {
		start := i * s.hop
		vec, err := s.engine.FeatureVector(buffer[start : start+s.segmentLen])
		if err != nil {
			return nil, 0, fmt.Errorf("segment %d: %w", i, err)
		}
		out[i] = common.PadOrTruncate(vec, s.featureDim)
	}
	for i := active; i < len(out); i++ {
		out[i] = make([]float32, s.featureDim)
	}

	s.logger.Debug("segments extracted", logging.Fields{
		"samples":     len(buffer),
		"active":      active,
		"slots":       s.cfg.MaxSegments,
		"feature_dim": s.featureDim,
	})

	return out, active, nil
}

// Tensor packs the segments as [1, MaxSegments, FeatureDim].
func (s *SegmentExtractor) Tensor(buffer []float64) (*Tensor, error) {
	segments, active, err := s.Extract(buffer)
	if err != nil {
		return nil, err
	}

	data := make([]float32, 0, len(segments)*s.featureDim)
	for _, seg := range segments {
		data = append(data, seg...)
	}

	ecfg := s.engine.Config()
	return &Tensor{
		Data:           data,
		Shape:          []int64{1, int64(len(segments)), int64(s.featureDim)},
		Layout:         ecfg.Layout,
		Normalization:  ecfg.Normalization,
		Frames:         s.engine.ExpectedFrames(s.segmentLen),
		Mels:           ecfg.NumMels,
		Segments:       len(segments),
		ActiveSegments: active,
	}, nil
}
