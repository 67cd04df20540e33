package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/dastgate/internal/models"
)

// ValidationError represents a validation failure
type ValidationError struct {
	Artifact string
	Errors   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid %s:\n  - %s", e.Artifact, strings.Join(e.Errors, "\n  - "))
}

// Validator checks artifacts written by earlier pipeline steps
type Validator struct {
	now func() time.Time
}

// New creates a new validator
func New() *Validator {
	return &Validator{now: time.Now}
}

// WithClock overrides the reference time for timestamp checks.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// ValidateEvaluation checks an evaluation artifact for internal
// consistency. Unknown statuses are reported but the artifact stays usable.
func (v *Validator) ValidateEvaluation(eval *models.Evaluation) error {
	if eval == nil {
		return &ValidationError{Artifact: "evaluation", Errors: []string{"evaluation is empty"}}
	}

	var errors []string

	if strings.TrimSpace(eval.AppName) == "" {
		errors = append(errors, "Missing required field: app_name")
	}
	if !eval.Status.IsKnown() {
		errors = append(errors, fmt.Sprintf("Unknown status: %q", eval.Status))
	}
	if eval.RiskScore < 0 {
		errors = append(errors, fmt.Sprintf("risk_score cannot be negative: %d", eval.RiskScore))
	}
	if eval.TotalFindings != len(eval.Findings) {
		errors = append(errors, fmt.Sprintf("total_findings is %d but %d finding(s) are listed",
			eval.TotalFindings, len(eval.Findings)))
	}

	for _, sev := range models.Severities {
		if n := eval.SeverityCounts.Get(sev); n < 0 {
			errors = append(errors, fmt.Sprintf("severity_counts.%s cannot be negative: %d", sev, n))
		}
	}

	for i, f := range eval.Findings {
		if f.Name == "" && f.RuleID == "" && f.TemplateID == "" {
			errors = append(errors, fmt.Sprintf("Finding %d: no name or rule", i))
		}
	}

	if eval.AnalysisTime.IsZero() {
		errors = append(errors, "Missing required field: analysis_time")
	} else if err := ValidateTimestamp(eval.AnalysisTime, v.now()); err != nil {
		errors = append(errors, fmt.Sprintf("Invalid analysis_time: %v", err))
	}

	if len(errors) > 0 {
		return &ValidationError{Artifact: "evaluation", Errors: errors}
	}

	return nil
}

// ValidateTuningSummary checks a tuning artifact before it is embedded
// in a report.
func (v *Validator) ValidateTuningSummary(summary *models.TuningSummary) error {
	if summary == nil {
		return &ValidationError{Artifact: "tuning summary", Errors: []string{"tuning summary is empty"}}
	}

	var errors []string

	if strings.TrimSpace(summary.GeneratedAt) == "" {
		errors = append(errors, "Missing required field: generated_at")
	}

	for i, r := range summary.TopFindings {
		if r.Rule == "" {
			errors = append(errors, fmt.Sprintf("Top finding %d: missing rule", i))
		}
		if r.Count <= 0 {
			errors = append(errors, fmt.Sprintf("Top finding %d: count must be positive, got %d", i, r.Count))
		}
	}

	if len(errors) > 0 {
		return &ValidationError{Artifact: "tuning summary", Errors: errors}
	}

	return nil
}

// ValidateTimestamp rejects timestamps more than an hour ahead of now.
// Old timestamps are fine: baselines may be kept indefinitely.
func ValidateTimestamp(t, now time.Time) error {
	if t.After(now.Add(1 * time.Hour)) {
		return fmt.Errorf("timestamp is in the future: %v", t)
	}
	return nil
}
