// Package pipeline wires feature extraction, the external model and the
// decision into a single call.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-instrument/classify"
	"github.com/RyanBlaney/sonido-instrument/config"
	"github.com/RyanBlaney/sonido-instrument/features"
	"github.com/RyanBlaney/sonido-instrument/logging"
)

// Pipeline turns a mono buffer into a classification result. The engine
// and segment extractor are immutable after New, so Classify may be
// called concurrently.
type Pipeline struct {
	cfg        *config.Config
	engine     *features.Engine
	segments   *features.SegmentExtractor
	model      classify.Model
	aggregator *classify.Aggregator
	history    *classify.History
	modelName  string
	logger     logging.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger overrides the pipeline logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithAggregator replaces the default result aggregator.
func WithAggregator(a *classify.Aggregator) Option {
	return func(p *Pipeline) {
		if a != nil {
			p.aggregator = a
		}
	}
}

// WithHistory records every result in h.
func WithHistory(h *classify.History) Option {
	return func(p *Pipeline) {
		p.history = h
	}
}

// WithModelName sets the model name reported in result metadata.
func WithModelName(name string) Option {
	return func(p *Pipeline) {
		p.modelName = name
	}
}

// New builds the feature extractors described by cfg. model may be nil
// for feature-only use.
func New(cfg *config.Config, model classify.Model, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires a config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &Pipeline{
		cfg:        cfg,
		model:      model,
		aggregator: classify.NewAggregator(),
		modelName:  cfg.Model.Path,
		logger: logging.WithFields(logging.Fields{
			"component": "pipeline",
			"preset":    cfg.Preset,
		}),
	}
	for _, opt := range opts {
		opt(p)
	}

	engineLogger := p.logger.WithFields(logging.Fields{"component": "spectrogram_engine"})
	engine, err := features.NewEngine(cfg.Features.Engine, features.WithEngineLogger(engineLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to create spectrogram engine: %w", err)
	}
	p.engine = engine

	if cfg.Features.Mode == config.ModeSegmented {
		p.segments, err = features.NewSegmentExtractor(engine, cfg.Features.Segments)
		if err != nil {
			return nil, fmt.Errorf("failed to create segment extractor: %w", err)
		}
	}

	return p, nil
}

// Engine returns the spectrogram engine.
func (p *Pipeline) Engine() *features.Engine {
	return p.engine
}

// History returns the result history, or nil.
func (p *Pipeline) History() *classify.History {
	return p.history
}

// Features extracts the model input tensor for samples.
func (p *Pipeline) Features(samples []float64) (*features.Tensor, error) {
	if p.segments != nil {
		return p.segments.Tensor(samples)
	}
	return p.engine.ComputeMelSpectrogram(samples)
}

// Classify extracts features, runs the model and decides. The work runs
// on its own goroutine; if ctx ends first, ctx.Err() is returned and the
// result is discarded.
//
// Precondition failures (empty buffer, missing labels, tensor shape not
// matching the declared model input) are returned as errors. A model
// failure is logged and replaced by the fallback result.
func (p *Pipeline) Classify(ctx context.Context, samples []float64) (*classify.Result, error) {
	if err := p.cfg.RequireLabels(); err != nil {
		return nil, err
	}
	if p.model == nil {
		return nil, errors.New("pipeline has no model")
	}

	type outcome struct {
		result *classify.Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		r, err := p.classify(ctx, samples)
		done <- outcome{r, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		if p.history != nil {
			p.history.Add(out.result)
		}
		return out.result, nil
	}
}

func (p *Pipeline) classify(ctx context.Context, samples []float64) (*classify.Result, error) {
	start := time.Now()
	logger := p.logger.WithContext(ctx)

	tensor, err := p.Features(samples)
	if err != nil {
		return nil, err
	}
	if err := tensor.CheckShape(p.cfg.Model.InputShape); err != nil {
		return nil, err
	}

	meta := classify.Metadata{
		Model:      p.modelName,
		Preset:     p.cfg.Preset,
		InputShape: tensor.Shape,
		Samples:    len(samples),
	}

	raw, err := p.model.Predict(ctx, tensor)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("inference failed, using fallback result", logging.Fields{
			"error": err.Error(),
		})
		meta.Duration = time.Since(start)
		return p.aggregator.Fallback(p.cfg.Labels, err.Error(), p.cfg.Decision, meta), nil
	}

	if len(raw) != len(p.cfg.Labels) {
		logger.Warn("model output length differs from label count", logging.Fields{
			"outputs": len(raw),
			"labels":  len(p.cfg.Labels),
		})
	}

	decision, err := classify.Decide(raw, p.cfg.Labels, p.cfg.Decision)
	if err != nil {
		return nil, err
	}
	meta.Duration = time.Since(start)

	logger.Debug("classified", logging.Fields{
		"label":              decision.Label,
		"confidence":         decision.Confidence,
		"normalized_entropy": decision.NormalizedEntropy,
		"duration_ms":        meta.Duration.Milliseconds(),
	})

	return p.aggregator.Wrap(decision, meta), nil
}
