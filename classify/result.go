package classify

import (
	"time"

	"github.com/google/uuid"
)

// Metadata describes the contract a decision was produced under.
type Metadata struct {
	Model      string        `json:"model,omitempty" yaml:"model,omitempty" msgpack:"model,omitempty"`
	Preset     string        `json:"preset,omitempty" yaml:"preset,omitempty" msgpack:"preset,omitempty"`
	InputShape []int64       `json:"input_shape,omitempty" yaml:"input_shape,omitempty" msgpack:"input_shape,omitempty"`
	Samples    int           `json:"samples" yaml:"samples" msgpack:"samples"`
	Duration   time.Duration `json:"duration" yaml:"duration" msgpack:"duration"`
}

// Result is a decision stamped for the caller.
type Result struct {
	ID        string    `json:"id" yaml:"id" msgpack:"id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp" msgpack:"timestamp"`
	Decision  *Decision `json:"decision" yaml:"decision" msgpack:"decision"`
	Metadata  Metadata  `json:"metadata" yaml:"metadata" msgpack:"metadata"`

	// Fallback is set when the model failed and the result is synthetic.
	Fallback bool   `json:"fallback,omitempty" yaml:"fallback,omitempty" msgpack:"fallback,omitempty"`
	Reason   string `json:"reason,omitempty" yaml:"reason,omitempty" msgpack:"reason,omitempty"`
}

// Aggregator stamps decisions with an ID and a timestamp.
type Aggregator struct {
	now   func() time.Time
	newID func() string
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithIDGenerator replaces the random UUID generator.
func WithIDGenerator(newID func() string) AggregatorOption {
	return func(a *Aggregator) {
		if newID != nil {
			a.newID = newID
		}
	}
}

// NewAggregator creates an Aggregator using time.Now and UUIDv4 IDs.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Wrap stamps a decision.
func (a *Aggregator) Wrap(decision *Decision, meta Metadata) *Result {
	return &Result{
		ID:        a.newID(),
		Timestamp: a.now(),
		Decision:  decision,
		Metadata:  meta,
	}
}

// Fallback builds the deterministic "unknown, zero confidence, zero
// probabilities" result substituted when inference fails. th is reported
// as the operating point.
func (a *Aggregator) Fallback(labels []string, reason string, th Thresholds, meta Metadata) *Result {
	decision, err := Decide(make([]float64, len(labels)), labels, th)
	if err != nil {
		decision = &Decision{
			Label:         UnknownLabel,
			IsUnknown:     true,
			Probabilities: map[string]float64{},
			Thresholds:    th,
		}
	}

	r := a.Wrap(decision, meta)
	r.Fallback = true
	r.Reason = reason
	return r
}

// FallbackResult is Aggregator.Fallback with the default aggregator and
// thresholds.
func FallbackResult(labels []string, reason string) *Result {
	return NewAggregator().Fallback(labels, reason, DefaultThresholds(), Metadata{})
}
