package cli

import (
	"fmt"
	"io"

	"github.com/ppiankov/dastgate/internal/aggregator"
	"github.com/ppiankov/dastgate/internal/reporter"
	"github.com/spf13/cobra"
)

var (
	tuneInput  string
	tuneOutput string
	tuneJSON   string
	tuneLimit  int
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Summarize recurring findings into scanner tuning guidance",
	Long: `Tune groups findings by scanner and rule, picks the most frequent ones
and suggests where to tune them: the ZAP rule config, the Nuclei template
selection, or the policy.

Writes a markdown summary and a JSON artifact that 'dastgate report
--tuning-json' embeds.

Example:
  dastgate tune --input reports/evaluation.json \
    --output reports/tuning.md --json reports/tuning.json --limit 5`,
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().StringVar(&tuneInput, "input", "",
		"evaluation JSON path (required)")
	tuneCmd.Flags().StringVarP(&tuneOutput, "output", "o", "",
		"markdown summary output path (required)")
	tuneCmd.Flags().StringVar(&tuneJSON, "json", "",
		"JSON summary output path (required)")
	tuneCmd.Flags().IntVar(&tuneLimit, "limit", 0,
		"top findings to highlight (default: config tuning_limit)")
}

func runTune(cmd *cobra.Command, args []string) error {
	if tuneInput == "" || tuneOutput == "" || tuneJSON == "" {
		return &ValidationError{Message: "--input, --output and --json are required"}
	}

	limit := tuneLimit
	if limit <= 0 {
		limit = cfg.TuningLimit
	}

	eval, err := loadEvaluation(tuneInput)
	if err != nil {
		return err
	}

	summary := aggregator.BuildTuningSummary(eval, limit, now())
	suggestions := aggregator.Suggestions(summary.TopFindings, configHints())
	logVerbose("Found %d recurring finding(s)", len(summary.TopFindings))

	if err := reporter.WriteFile(tuneOutput, func(w io.Writer) error {
		return reporter.NewTuningReporter(w).Generate(summary, suggestions)
	}); err != nil {
		return err
	}
	if err := reporter.WriteJSONFile(tuneJSON, summary); err != nil {
		return err
	}

	fmt.Printf("Tuning guidance written to %s and %s\n", tuneOutput, tuneJSON)
	return nil
}
