package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ppiankov/dastgate/internal/guard"
	"github.com/ppiankov/dastgate/internal/models"
	"github.com/ppiankov/dastgate/internal/storage"
	"github.com/spf13/cobra"
)

var (
	regressionCurrent   string
	regressionPrevious  string
	regressionThreshold int
)

var regressionCmd = &cobra.Command{
	Use:   "regression",
	Short: "Fail when the risk score grew too much since the previous run",
	Long: `Regression compares the current evaluation's risk score with a previous
one and exits 1 when it increased by more than --threshold.

Without --previous, the latest stored run older than the current
evaluation is used. When no previous evaluation exists the check is
skipped.

Example:
  dastgate regression --current reports/evaluation.json \
    --previous baseline/evaluation.json --threshold 5`,
	RunE: runRegression,
}

func init() {
	regressionCmd.Flags().StringVar(&regressionCurrent, "current", "",
		"current evaluation JSON (required)")
	regressionCmd.Flags().StringVar(&regressionPrevious, "previous", "",
		"previous evaluation JSON (default: latest stored run)")
	regressionCmd.Flags().IntVar(&regressionThreshold, "threshold", -1,
		"allowed risk score increase (default: config regression_threshold)")
}

func runRegression(cmd *cobra.Command, args []string) error {
	if regressionCurrent == "" {
		return &ValidationError{Message: "--current is required"}
	}

	threshold := regressionThreshold
	if threshold < 0 {
		threshold = cfg.RegressionThreshold
	}

	current, err := loadEvaluation(regressionCurrent)
	if err != nil {
		return err
	}

	previous, err := previousEvaluation(current)
	if err != nil {
		return err
	}

	var previousRisk *int
	if previous != nil {
		previousRisk = &previous.RiskScore
	}

	result, err := guard.CheckRegression(current.RiskScore, previousRisk, threshold)
	if result.Skipped {
		fmt.Println("No previous evaluation found, skipping regression check.")
		return nil
	}

	fmt.Printf("Current risk score: %d, previous: %d, delta: %d\n",
		result.Current, result.Previous, result.Delta)
	if err != nil {
		return err
	}

	fmt.Println("Regression guard passed.")
	return nil
}

// previousEvaluation loads --previous, or the latest stored run before
// current. A missing previous evaluation yields (nil, nil).
func previousEvaluation(current *models.Evaluation) (*models.Evaluation, error) {
	if regressionPrevious != "" {
		prev, err := storage.LoadFile(regressionPrevious)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, &ValidationError{Message: err.Error()}
		}
		return prev, nil
	}

	storagePath, err := cfg.GetStoragePath()
	if err != nil {
		return nil, err
	}

	prev, err := storage.NewLocal(storagePath).GetLatestBefore(current.AnalysisTime)
	if errors.Is(err, storage.ErrNoRuns) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	logVerbose("Comparing with stored run from %s", prev.AnalysisTime.Format("2006-01-02 15:04:05"))
	return prev, nil
}
