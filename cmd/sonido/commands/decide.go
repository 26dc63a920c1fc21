package commands

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-instrument/classify"
)

var decideFlags struct {
	config     string
	labels     []string
	raw        []float64
	confidence float64
	entropy    float64
	format     string
	output     string
}

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Apply the decision rule to a raw model output",
	Long: `Turn a raw model output vector (probabilities or logits) into a
decision. Labels and thresholds come from flags or from a config file.`,
	Args: cobra.NoArgs,
	RunE: runDecide,
}

func init() {
	th := classify.DefaultThresholds()
	f := decideCmd.Flags()
	f.StringVarP(&decideFlags.config, "config", "c", "", "model contract file for labels and thresholds")
	f.StringSliceVarP(&decideFlags.labels, "labels", "l", nil, "comma-separated labels")
	f.Float64SliceVar(&decideFlags.raw, "output", nil, "comma-separated raw model output")
	f.Float64Var(&decideFlags.confidence, "confidence", th.Confidence, "minimum top probability")
	f.Float64Var(&decideFlags.entropy, "entropy", th.Entropy, "maximum normalized entropy")
	f.StringVarP(&decideFlags.format, "format", "f", "table", "output format (table, yaml, json, msgpack)")
	f.StringVarP(&decideFlags.output, "out", "o", "", "output file (default stdout)")
	decideCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(decideCmd)
}

func runDecide(cmd *cobra.Command, args []string) error {
	labels := decideFlags.labels
	th := classify.Thresholds{Confidence: decideFlags.confidence, Entropy: decideFlags.entropy}

	if decideFlags.config != "" {
		cfg, err := loadConfig(decideFlags.config, "")
		if err != nil {
			return err
		}
		if len(labels) == 0 {
			labels = cfg.Labels
		}
		if !cmd.Flags().Changed("confidence") {
			th.Confidence = cfg.Decision.Confidence
		}
		if !cmd.Flags().Changed("entropy") {
			th.Entropy = cfg.Decision.Entropy
		}
	}
	if err := th.Validate(); err != nil {
		return err
	}

	decision, err := classify.Decide(decideFlags.raw, labels, th)
	if err != nil {
		return err
	}
	result := classify.NewAggregator().Wrap(decision, classify.Metadata{})
	return writeResult(result, resultView{result}, decideFlags.format, decideFlags.output)
}
