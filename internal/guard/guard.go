// Package guard implements the terminal pass/fail checks run against
// evaluations: policy drift on a canonical input and run-over-run
// risk regression.
package guard

import (
	"fmt"

	"github.com/ppiankov/dastgate/internal/models"
)

// DefaultRegressionThreshold is the allowed risk increase between runs.
const DefaultRegressionThreshold = 5

// Defaults for the drift check.
const (
	DefaultExpectedStatus = models.StatusPass
	DefaultMaxRisk        = 5
)

// StatusMismatchError is returned when the canonical input produces an
// unexpected status.
type StatusMismatchError struct {
	Got      models.Status
	Expected models.Status
}

func (e *StatusMismatchError) Error() string {
	return fmt.Sprintf("unexpected policy status: %s (expected %s)", e.Got, e.Expected)
}

// RiskExceededError is returned when the canonical risk score is over the limit.
type RiskExceededError struct {
	Risk    int
	MaxRisk int
}

func (e *RiskExceededError) Error() string {
	return fmt.Sprintf("risk score %d exceeded max allowed %d", e.Risk, e.MaxRisk)
}

// RegressionError is returned when risk grew by more than the allowed delta.
type RegressionError struct {
	Current   int
	Previous  int
	Delta     int
	Threshold int
}

func (e *RegressionError) Error() string {
	return fmt.Sprintf("risk score increased by %d (%d -> %d) which exceeds the threshold of %d",
		e.Delta, e.Previous, e.Current, e.Threshold)
}

// CheckDrift verifies a verdict for the canonical input. The status must
// match exactly and the risk score must not exceed maxRisk.
func CheckDrift(verdict *models.Verdict, expected models.Status, maxRisk int) error {
	if verdict == nil {
		return fmt.Errorf("no verdict to check")
	}
	if verdict.Status != expected {
		return &StatusMismatchError{Got: verdict.Status, Expected: expected}
	}
	if verdict.RiskScore > maxRisk {
		return &RiskExceededError{Risk: verdict.RiskScore, MaxRisk: maxRisk}
	}
	return nil
}

// RegressionResult describes a regression check that did not fail.
type RegressionResult struct {
	Skipped  bool
	Current  int
	Previous int
	Delta    int
}

// CheckRegression compares the current risk score with a previous one.
// A nil previous skips the check. Only an increase above allowed fails.
func CheckRegression(current int, previous *int, allowed int) (*RegressionResult, error) {
	if previous == nil {
		return &RegressionResult{Skipped: true, Current: current}, nil
	}

	delta := current - *previous
	result := &RegressionResult{Current: current, Previous: *previous, Delta: delta}
	if delta > allowed {
		return result, &RegressionError{
			Current:   current,
			Previous:  *previous,
			Delta:     delta,
			Threshold: allowed,
		}
	}
	return result, nil
}
