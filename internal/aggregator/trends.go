package aggregator

import (
	"fmt"
	"strings"

	"github.com/ppiankov/dastgate/internal/models"
)

// CalculateTrend compares the risk of two evaluations.
// Returns nil when there is no previous evaluation.
func CalculateTrend(current, previous *models.Evaluation) *models.RiskTrend {
	if current == nil || previous == nil {
		return nil
	}

	trend := &models.RiskTrend{
		PreviousRisk:     previous.RiskScore,
		CurrentRisk:      current.RiskScore,
		Delta:            current.RiskScore - previous.RiskScore,
		PreviousFindings: previous.TotalFindings,
		CurrentFindings:  current.TotalFindings,
		ComparedWith:     previous.AnalysisTime,
	}

	switch {
	case trend.Delta < 0:
		trend.Direction = models.TrendImproving
	case trend.Delta > 0:
		trend.Direction = models.TrendDegrading
	default:
		trend.Direction = models.TrendStable
	}

	return trend
}

// AnalyzeHistory summarizes evaluations ordered oldest first.
func AnalyzeHistory(runs []*models.Evaluation) *models.TrendSummary {
	if len(runs) == 0 {
		return nil
	}

	summary := &models.TrendSummary{
		RunsAnalyzed:  len(runs),
		RiskSparkline: make([]int, len(runs)),
		StatusCounts:  make(map[models.Status]int),
		BySource:      make(map[models.Source]*models.SourceTrend),
	}

	if len(runs) > 1 {
		earliest := runs[0].AnalysisTime
		latest := runs[len(runs)-1].AnalysisTime
		days := int(latest.Sub(earliest).Hours() / 24)
		summary.TimeRange = fmt.Sprintf("Last %d days", days)
	} else {
		summary.TimeRange = "Single run"
	}

	for i, run := range runs {
		summary.RiskSparkline[i] = run.RiskScore
		summary.StatusCounts[run.Status]++
	}

	if len(runs) >= 2 {
		first := countBySource(runs[0].Findings)
		last := countBySource(runs[len(runs)-1].Findings)
		for src := range first {
			if _, ok := last[src]; !ok {
				last[src] = 0
			}
		}
		for src, current := range last {
			previous := first[src]
			summary.BySource[src] = &models.SourceTrend{
				Source:           src,
				CurrentFindings:  current,
				PreviousFindings: previous,
				Change:           current - previous,
			}
		}
	}

	return summary
}

func countBySource(findings []models.Finding) map[models.Source]int {
	counts := make(map[models.Source]int)
	for _, f := range findings {
		counts[f.Origin()]++
	}
	return counts
}

// RenderSparkline converts values to a unicode sparkline with a
// first→last suffix. A flat series renders as mid-height bars.
func RenderSparkline(values []int) string {
	if len(values) == 0 {
		return ""
	}

	bars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	var b strings.Builder
	for _, v := range values {
		if hi == lo {
			b.WriteRune(bars[len(bars)/2])
			continue
		}
		idx := (v - lo) * (len(bars) - 1) / (hi - lo)
		b.WriteRune(bars[idx])
	}

	fmt.Fprintf(&b, " [%d→%d]", values[0], values[len(values)-1])
	return b.String()
}

// GetTrendIndicator returns a visual indicator for trend direction
func GetTrendIndicator(direction string) string {
	switch direction {
	case models.TrendImproving:
		return "↓"
	case models.TrendDegrading:
		return "↑"
	case models.TrendStable:
		return "→"
	default:
		return "?"
	}
}
