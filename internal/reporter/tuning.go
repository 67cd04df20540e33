package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/dastgate/internal/models"
)

// TuningReporter renders the standalone tuning guidance document
type TuningReporter struct {
	writer io.Writer
}

// NewTuningReporter creates a new tuning reporter
func NewTuningReporter(writer io.Writer) *TuningReporter {
	return &TuningReporter{writer: writer}
}

// Generate writes the tuning markdown for a summary and its suggestions.
func (r *TuningReporter) Generate(summary *models.TuningSummary, suggestions []string) error {
	if summary == nil {
		summary = &models.TuningSummary{}
	}

	lines := []string{fmt.Sprintf("### Automated tuning guidance (generated %s)", summary.GeneratedAt), ""}
	if len(suggestions) == 0 {
		lines = append(lines, "- No recurring findings detected; keep the baseline config as-is.")
	}
	for i, s := range suggestions {
		lines = append(lines, fmt.Sprintf("- **%d.** %s", i+1, s))
	}

	if len(summary.Violations) > 0 {
		lines = append(lines, "", "**Recent violations:**")
		for _, v := range summary.Violations {
			lines = append(lines, "- "+v)
		}
	}
	if len(summary.Recommendations) > 0 {
		lines = append(lines, "", "**Policy recommendations:**")
		for _, rec := range summary.Recommendations {
			lines = append(lines, "- "+rec)
		}
	}

	_, err := io.WriteString(r.writer, strings.Join(lines, "\n"))
	return err
}
