package aggregator

import (
	"fmt"

	"github.com/ppiankov/dastgate/internal/models"
)

// mediumThreshold mirrors the WARN band of the severity rules.
const mediumThreshold = 3

// DedupeOrdered drops repeated strings, keeping first-seen order.
func DedupeOrdered(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// NextSteps returns the recommendation bullets for a verdict. Explicit
// recommendations are deduplicated; otherwise bullets are synthesized
// from the severity counts. Operational bullets are always appended.
func NextSteps(verdict *models.Verdict, evaluationPath string, hints Hints) []string {
	hints = hints.withDefaults()
	if evaluationPath == "" {
		evaluationPath = "reports/evaluation.json"
	}

	var steps []string
	if verdict != nil && len(verdict.Recommendations) > 0 {
		steps = append(steps, DedupeOrdered(verdict.Recommendations)...)
	} else {
		var counts models.SeverityCounts
		risk := 0
		if verdict != nil {
			counts = verdict.SeverityCounts
			risk = verdict.RiskScore
		}
		if counts.Critical > 0 || counts.High > 0 {
			steps = append(steps, "Resolve the critical/high severity findings and rerun the scan to confirm they are gone.")
		}
		if counts.Medium > 0 {
			steps = append(steps, fmt.Sprintf("Reduce the %d medium findings keeping the risk score above %d (%d).",
				counts.Medium, mediumThreshold*4, risk))
		}
		if counts.Total() == 0 {
			steps = append(steps, "Keep scanning on every change to catch regressions early.")
		}
	}

	steps = append(steps,
		fmt.Sprintf("Inspect `%s` to understand which rule produced each recommendation.", evaluationPath),
		fmt.Sprintf("Tune `%s`, `%s`, or `%s` when findings are expected noise.",
			hints.ZAPConfig, hints.NucleiTemplates, hints.PolicyFile),
		"Harden the affected routes (request validation, auth checks, headers) and rerun the scan to collapse recurrent findings.",
	)
	return steps
}
