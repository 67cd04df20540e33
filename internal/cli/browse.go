package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/dastgate/internal/aggregator"
	"github.com/ppiankov/dastgate/internal/models"
	"github.com/ppiankov/dastgate/internal/storage"
	"github.com/ppiankov/dastgate/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var browseHistoryRuns int

// isTerminal and runTUI are swapped in tests.
var (
	isTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
	runTUI     = tui.Run
)

var browseCmd = &cobra.Command{
	Use:   "browse [evaluation.json]",
	Short: "Explore an evaluation's findings interactively",
	Long: `Browse opens a terminal UI over the findings of an evaluation: search,
filter by scanner or severity, sort, and inspect details.

Without an argument the latest stored run is opened. Stored history, when
available, adds the risk trend and sparkline to the header.

Example:
  dastgate browse reports/evaluation.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().IntVar(&browseHistoryRuns, "last", 10,
		"stored runs used for the risk sparkline")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	if !isTerminal() {
		return &ValidationError{Message: "browse requires an interactive terminal"}
	}

	store, err := openStorage()
	if err != nil {
		return err
	}

	var eval *models.Evaluation
	if len(args) == 1 {
		eval, err = loadEvaluation(args[0])
	} else {
		eval, err = store.GetLatestRun()
		if errors.Is(err, storage.ErrNoRuns) {
			return &ValidationError{Message: "no evaluation given and no stored runs found"}
		}
	}
	if err != nil {
		return err
	}

	trend, history := historyContext(store, eval, browseHistoryRuns)
	return runTUI(eval, trend, history)
}

// historyContext returns the trend against the previous stored run and the
// recent history summary. Either is nil when storage has nothing to offer.
func historyContext(store storage.Storage, eval *models.Evaluation, lastN int) (*models.RiskTrend, *models.TrendSummary) {
	var trend *models.RiskTrend
	if prev, err := store.GetLatestBefore(eval.AnalysisTime); err == nil {
		trend = aggregator.CalculateTrend(eval, prev)
	} else if !errors.Is(err, storage.ErrNoRuns) {
		logVerbose("No trend available: %v", err)
	}

	var history *models.TrendSummary
	if runs, err := store.GetLastNRuns(lastN); err == nil {
		history = aggregator.AnalyzeHistory(runs)
	} else if !errors.Is(err, storage.ErrNoRuns) {
		logVerbose("No history available: %v", err)
	}

	return trend, history
}

func openStorage() (*storage.LocalStorage, error) {
	storagePath, err := cfg.GetStoragePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get storage path: %w", err)
	}
	return storage.NewLocal(storagePath), nil
}
