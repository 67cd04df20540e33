package cli

import (
	"errors"
	"os"
	"time"

	"github.com/ppiankov/dastgate/internal/aggregator"
	"github.com/ppiankov/dastgate/internal/models"
	"github.com/ppiankov/dastgate/internal/reporter"
	"github.com/ppiankov/dastgate/internal/storage"
	"github.com/spf13/cobra"
)

var (
	historyLast   int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored evaluations and the risk trend",
	Long: `History lists evaluations stored with 'dastgate evaluate --store',
oldest first, with a risk sparkline, verdict counts and per-scanner
finding changes.

Example:
  dastgate history --last 7
  dastgate history --format json`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLast, "last", 7,
		"number of stored runs to show (0 = all)")
	historyCmd.Flags().StringVar(&historyFormat, "format", "text",
		"output format: text or json")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyFormat != "text" && historyFormat != "json" {
		return &ValidationError{Message: "invalid format: " + historyFormat + " (must be text or json)"}
	}

	store, err := openStorage()
	if err != nil {
		return err
	}

	runs, err := store.GetLastNRuns(historyLast)
	if err != nil && !errors.Is(err, storage.ErrNoRuns) {
		return err
	}
	logVerbose("Loaded %d stored run(s) from %s", len(runs), store.GetStoragePath())

	if historyFormat == "json" {
		return reporter.NewJSONReporter(os.Stdout, true).Generate(historySummary(runs))
	}
	return reporter.NewTextReporter(os.Stdout).GenerateHistory(runs)
}

type historyRun struct {
	AnalysisTime  time.Time     `json:"analysis_time"`
	AppName       string        `json:"app_name"`
	Status        models.Status `json:"status"`
	RiskScore     int           `json:"risk_score"`
	TotalFindings int           `json:"total_findings"`
}

type historyOutput struct {
	Summary *models.TrendSummary `json:"summary"`
	Runs    []historyRun         `json:"runs"`
}

func historySummary(runs []*models.Evaluation) historyOutput {
	out := historyOutput{
		Summary: aggregator.AnalyzeHistory(runs),
		Runs:    make([]historyRun, 0, len(runs)),
	}
	for _, run := range runs {
		out.Runs = append(out.Runs, historyRun{
			AnalysisTime:  run.AnalysisTime,
			AppName:       run.AppName,
			Status:        run.Status,
			RiskScore:     run.RiskScore,
			TotalFindings: run.TotalFindings,
		})
	}
	return out
}
