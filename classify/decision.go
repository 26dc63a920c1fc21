package classify

import (
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-instrument/algorithms/stats"
)

// UnknownLabel is reported when the model output is not trusted.
const UnknownLabel = "unknown"

// Raw outputs summing inside [normalizedLow, normalizedHigh] are read as
// probabilities; anything else is treated as logits.
const (
	normalizedLow  = 0.9
	normalizedHigh = 1.1
)

// Thresholds are the operating point of the unknown rejection.
type Thresholds struct {
	// Confidence is the minimum top probability for a known result.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Entropy is the maximum normalized entropy for a known result.
	Entropy float64 `json:"entropy" yaml:"entropy"`
}

// DefaultThresholds returns confidence 0.85 and entropy 0.15.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Confidence: 0.85,
		Entropy:    0.15,
	}
}

// Validate checks that both thresholds lie in [0, 1].
func (t Thresholds) Validate() error {
	if t.Confidence < 0 || t.Confidence > 1 || t.Entropy < 0 || t.Entropy > 1 {
		return fmt.Errorf("%w: confidence=%g entropy=%g", ErrInvalidThresholds, t.Confidence, t.Entropy)
	}
	return nil
}

// LabelProbability pairs a label with its probability.
type LabelProbability struct {
	Label       string  `json:"label" yaml:"label" msgpack:"label"`
	Probability float64 `json:"probability" yaml:"probability" msgpack:"probability"`
}

// Decision is the outcome of Decide.
type Decision struct {
	// Label is the predicted label, or UnknownLabel when rejected.
	Label     string `json:"label" yaml:"label" msgpack:"label"`
	IsUnknown bool   `json:"is_unknown" yaml:"is_unknown" msgpack:"is_unknown"`

	// Predicted is the arg-max label even when the result is rejected. It
	// is empty when the output carries no evidence.
	Predicted string `json:"predicted" yaml:"predicted" msgpack:"predicted"`

	Confidence        float64 `json:"confidence" yaml:"confidence" msgpack:"confidence"`
	Entropy           float64 `json:"entropy" yaml:"entropy" msgpack:"entropy"`
	NormalizedEntropy float64 `json:"normalized_entropy" yaml:"normalized_entropy" msgpack:"normalized_entropy"`

	Probabilities map[string]float64 `json:"probabilities" yaml:"probabilities" msgpack:"probabilities"`
	Ranked        []LabelProbability `json:"ranked" yaml:"ranked" msgpack:"ranked"`
	RunnerUp      *LabelProbability  `json:"runner_up,omitempty" yaml:"runner_up,omitempty" msgpack:"runner_up,omitempty"`

	UsedSoftmax bool       `json:"used_softmax" yaml:"used_softmax" msgpack:"used_softmax"`
	Thresholds  Thresholds `json:"thresholds" yaml:"thresholds" msgpack:"thresholds"`
}

// Decide turns a raw model output into a calibrated decision.
//
// The output is aligned to labels (truncated, or zero padded when short).
// If it does not already look like a distribution, softmax is applied.
// The result is unknown when the top probability is below th.Confidence
// or the normalized entropy is above th.Entropy.
//
// An all-zero output, or one holding NaN or ±Inf, carries no evidence: it
// is reported as unknown with no predicted label, confidence 0 and zero
// probabilities, while the entropy is that of the uniform distribution.
//
// Decide is pure; equal inputs give bit-identical results.
func Decide(rawOutput []float64, labels []string, th Thresholds) (*Decision, error) {
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}

	aligned := make([]float64, len(labels))
	copy(aligned, rawOutput)

	probs := aligned
	usedSoftmax := false
	if !stats.LooksNormalized(aligned, normalizedLow, normalizedHigh) {
		probs = stats.Softmax(aligned)
		usedSoftmax = true
	}

	maxIdx, maxProb := stats.ArgMax(probs)
	entropy := stats.ShannonBits(probs)
	normEntropy := stats.NormalizedEntropy(probs, len(labels))
	predicted := labels[maxIdx]

	noEvidence := allZero(aligned) || !allFinite(aligned) ||
		!isFinite(maxProb) || !isFinite(normEntropy)
	if noEvidence {
		probs = make([]float64, len(labels))
		maxProb = 0
		entropy = stats.MaxEntropyBits(len(labels))
		normEntropy = 0
		if entropy > 0 {
			normEntropy = 1
		}
		predicted = ""
	}

	unknown := noEvidence || maxProb < th.Confidence || normEntropy > th.Entropy

	d := &Decision{
		Label:             predicted,
		IsUnknown:         unknown,
		Predicted:         predicted,
		Confidence:        maxProb,
		Entropy:           entropy,
		NormalizedEntropy: normEntropy,
		Probabilities:     make(map[string]float64, len(labels)),
		Ranked:            rank(labels, probs),
		UsedSoftmax:       usedSoftmax,
		Thresholds:        th,
	}
	if unknown {
		d.Label = UnknownLabel
	}
	for i, label := range labels {
		d.Probabilities[label] = probs[i]
	}
	if len(d.Ranked) > 1 {
		runnerUp := d.Ranked[1]
		d.RunnerUp = &runnerUp
	}

	return d, nil
}

// Top returns the n most probable entries.
func (d *Decision) Top(n int) []LabelProbability {
	return d.Ranked[:min(n, len(d.Ranked))]
}

// rank sorts labels by descending probability, keeping label order on ties.
func rank(labels []string, probs []float64) []LabelProbability {
	ranked := make([]LabelProbability, len(labels))
	for i, label := range labels {
		ranked[i] = LabelProbability{Label: label, Probability: probs[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Probability > ranked[j].Probability
	})
	return ranked
}

func allZero(x []float64) bool {
	for _, v := range x {
		if v != 0 {
			return false
		}
	}
	return true
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
