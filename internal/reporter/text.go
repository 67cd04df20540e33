package reporter

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ppiankov/dastgate/internal/aggregator"
	"github.com/ppiankov/dastgate/internal/models"
)

// TextReporter prints human-readable summaries to a terminal
type TextReporter struct {
	writer io.Writer
}

// NewTextReporter creates a new text reporter
func NewTextReporter(writer io.Writer) *TextReporter {
	return &TextReporter{
		writer: writer,
	}
}

// Generate prints an evaluation summary, with a trend when a previous
// run is known.
func (r *TextReporter) Generate(eval *models.Evaluation, trend *models.RiskTrend) error {
	r.printf("Evaluation complete: %s\n", eval.Status)
	r.printf("Risk score: %d", eval.RiskScore)
	if trend != nil {
		r.printf(" %s %+d from previous run", aggregator.GetTrendIndicator(trend.Direction), trend.Delta)
	}
	r.printf("\n")
	r.printf("Findings: %d (critical %d, high %d, medium %d, low %d, info %d)\n",
		eval.TotalFindings,
		eval.SeverityCounts.Critical,
		eval.SeverityCounts.High,
		eval.SeverityCounts.Medium,
		eval.SeverityCounts.Low,
		eval.SeverityCounts.Info)
	if eval.PolicyReference != "" {
		r.printf("Policy reference: %s\n", eval.PolicyReference)
	}

	for _, v := range eval.Violations {
		r.printf("  violation: %s\n", v)
	}

	return nil
}

// GenerateHistory prints stored runs (oldest first) with a risk sparkline.
func (r *TextReporter) GenerateHistory(runs []*models.Evaluation) error {
	if len(runs) == 0 {
		r.printf("No stored evaluations.\n")
		return nil
	}

	summary := aggregator.AnalyzeHistory(runs)

	r.printf("Evaluation History (%s, %d runs)\n", summary.TimeRange, summary.RunsAnalyzed)
	r.printf("--------------------------------------------------\n")
	r.printf("  Risk: %s\n", aggregator.RenderSparkline(summary.RiskSparkline))
	r.printf("  Status: PASS %d, WARN %d, FAIL %d\n",
		summary.StatusCounts[models.StatusPass],
		summary.StatusCounts[models.StatusWarn],
		summary.StatusCounts[models.StatusFail])

	if len(summary.BySource) > 0 {
		sources := make([]string, 0, len(summary.BySource))
		for src := range summary.BySource {
			sources = append(sources, string(src))
		}
		sort.Strings(sources)
		r.printf("\nFindings by scanner (first → last):\n")
		for _, src := range sources {
			st := summary.BySource[models.Source(src)]
			r.printf("  %s: %d → %d (%+d)\n", src, st.PreviousFindings, st.CurrentFindings, st.Change)
		}
	}

	r.printf("\nRuns:\n")
	for _, run := range runs {
		r.printf("  %s  %-4s  risk %3d  findings %d  %s\n",
			formatTimestamp(run.AnalysisTime), run.Status, run.RiskScore, run.TotalFindings, run.AppName)
	}

	if len(runs) >= 2 {
		trend := aggregator.CalculateTrend(runs[len(runs)-1], runs[len(runs)-2])
		r.printf("\nLatest change: %s %s (%d → %d)\n",
			trend.Direction, aggregator.GetTrendIndicator(trend.Direction), trend.PreviousRisk, trend.CurrentRisk)
	}

	return nil
}

// printf is a helper to write formatted output
func (r *TextReporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.writer, format, args...)
}

// formatTimestamp formats a timestamp for display
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
