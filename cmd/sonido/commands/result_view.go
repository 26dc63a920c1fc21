package commands

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-instrument/classify"
	"github.com/RyanBlaney/sonido-instrument/cmd/sonido/internal/output"
)

const barWidth = 24

// resultView renders a classification result as tables.
type resultView struct {
	result *classify.Result
}

func (v resultView) Tables() []output.Table {
	d := v.result.Decision

	status := "known"
	if d.IsUnknown {
		status = "unknown"
	}
	if v.result.Fallback {
		status = "fallback: " + v.result.Reason
	}

	summary := [][]string{
		{"label", d.Label},
		{"status", status},
		{"predicted", d.Predicted},
		{"confidence", fmt.Sprintf("%.4f (min %.2f)", d.Confidence, d.Thresholds.Confidence)},
		{"normalized entropy", fmt.Sprintf("%.4f (max %.2f)", d.NormalizedEntropy, d.Thresholds.Entropy)},
	}
	if d.RunnerUp != nil {
		summary = append(summary, []string{"runner up", fmt.Sprintf("%s %.4f", d.RunnerUp.Label, d.RunnerUp.Probability)})
	}
	if d.UsedSoftmax {
		summary = append(summary, []string{"softmax", "applied to raw output"})
	}
	if v.result.Metadata.Duration > 0 {
		summary = append(summary, []string{"duration", v.result.Metadata.Duration.Round(time.Microsecond).String()})
	}

	probs := make([][]string, 0, len(d.Ranked))
	for _, lp := range d.Ranked {
		probs = append(probs, []string{lp.Label, fmt.Sprintf("%.4f", lp.Probability), output.Bar(lp.Probability, barWidth)})
	}

	return []output.Table{
		{Title: "Decision", Headers: []string{"field", "value"}, Rows: summary},
		{Title: "Probabilities", Headers: []string{"label", "p", ""}, Rows: probs},
	}
}

// resultsView renders several results, one table pair each.
type resultsView []*classify.Result

func (v resultsView) Tables() []output.Table {
	var tables []output.Table
	for _, r := range v {
		tables = append(tables, resultView{r}.Tables()...)
	}
	return tables
}
