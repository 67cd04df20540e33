package tui

import (
	"fmt"
	"strings"

	"github.com/ppiankov/dastgate/internal/models"
)

// detailHeight is the fixed number of lines for the detail panel.
const detailHeight = 5

// renderDetail produces the detail view for a selected finding.
func renderDetail(f *models.Finding, width int) string {
	if f == nil {
		return styleDetailPanel.Width(width).Render("No finding selected")
	}

	var b strings.Builder
	textWidth := width - 16
	if textWidth < 20 {
		textWidth = 20
	}

	sev := strings.ToUpper(string(f.Severity))
	b.WriteString(fmt.Sprintf("%s  %s / %s (rule %s)\n", severityStyle(sev).Render(sev), f.Origin(), f.Name, f.Rule()))
	b.WriteString(fmt.Sprintf("Location: %s\n", f.Where()))

	if f.Description != "" {
		b.WriteString(fmt.Sprintf("Description: %s\n", truncate(oneLine(f.Description), textWidth)))
	}
	if f.Solution != "" {
		b.WriteString(fmt.Sprintf("Solution: %s\n", truncate(oneLine(f.Solution), textWidth)))
	}

	parts := make([]string, 0, 2)
	if f.Instances > 0 {
		parts = append(parts, fmt.Sprintf("Instances: %d", f.Instances))
	}
	if f.Confidence != "" {
		parts = append(parts, fmt.Sprintf("Confidence: %s", f.Confidence))
	}
	if len(parts) > 0 {
		b.WriteString(strings.Join(parts, "  "))
	}

	return styleDetailPanel.Width(width).Render(b.String())
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
