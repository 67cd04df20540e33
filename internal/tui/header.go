package tui

import (
	"fmt"
	"strings"

	"github.com/ppiankov/dastgate/internal/aggregator"
	"github.com/ppiankov/dastgate/internal/models"
)

// headerHeight is the number of terminal lines the header occupies.
const headerHeight = 5

// renderHeader produces the header string from an evaluation.
func renderHeader(eval *models.Evaluation, trend *models.RiskTrend, sparkline []int, width int) string {
	var b strings.Builder

	// Line 1: verdict and risk
	status := string(eval.Status)
	if status == "" {
		status = "UNKNOWN"
	}
	b.WriteString(fmt.Sprintf("dastgate  Verdict: %s  Risk: %d",
		statusStyle(status).Render(status), eval.RiskScore))

	if trend != nil {
		b.WriteString(fmt.Sprintf("  %s %+d", aggregator.GetTrendIndicator(trend.Direction), trend.Delta))
	}
	b.WriteString("\n")

	// Line 2: app and totals
	b.WriteString(fmt.Sprintf("App: %s  Findings: %d  Violations: %d",
		eval.AppName, eval.TotalFindings, len(eval.Violations)))
	b.WriteString("\n")

	// Line 3: severity breakdown
	sevParts := make([]string, 0, len(models.Severities))
	for _, sev := range models.Severities {
		if count := eval.SeverityCounts.Get(sev); count > 0 {
			label := fmt.Sprintf("%s:%d", string(sev)[:1], count)
			sevParts = append(sevParts, severityStyle(string(sev)).Render(label))
		}
	}
	if len(sevParts) > 0 {
		b.WriteString(strings.Join(sevParts, "  "))
	}
	b.WriteString("\n")

	// Line 4: risk sparkline
	if len(sparkline) > 0 {
		b.WriteString("Risk trend: ")
		b.WriteString(aggregator.RenderSparkline(sparkline))
	}

	return styleHeader.Width(width).Render(b.String())
}
