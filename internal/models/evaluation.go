package models

import (
	"strings"
	"time"
)

// Status is the policy verdict
type Status string

const (
	StatusPass Status = "PASS"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

// IsKnown reports whether the status is one of PASS, WARN or FAIL.
func (s Status) IsKnown() bool {
	switch s {
	case StatusPass, StatusWarn, StatusFail:
		return true
	default:
		return false
	}
}

// ParseStatus upper-cases a status string. Unknown values are kept as-is
// so they can be reported rather than silently rewritten.
func ParseStatus(s string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(s)))
}

// SeverityCounts holds the number of findings per severity.
// All five keys are always serialized.
type SeverityCounts struct {
	Critical int `json:"CRITICAL" yaml:"CRITICAL"`
	High     int `json:"HIGH" yaml:"HIGH"`
	Medium   int `json:"MEDIUM" yaml:"MEDIUM"`
	Low      int `json:"LOW" yaml:"LOW"`
	Info     int `json:"INFO" yaml:"INFO"`
}

// Get returns the count for a severity (0 for unknown levels).
func (c SeverityCounts) Get(sev Severity) int {
	switch sev {
	case SeverityCritical:
		return c.Critical
	case SeverityHigh:
		return c.High
	case SeverityMedium:
		return c.Medium
	case SeverityLow:
		return c.Low
	case SeverityInfo:
		return c.Info
	default:
		return 0
	}
}

// Add increments the counter for a severity.
func (c *SeverityCounts) Add(sev Severity, n int) {
	switch ParseSeverity(string(sev)) {
	case SeverityCritical:
		c.Critical += n
	case SeverityHigh:
		c.High += n
	case SeverityMedium:
		c.Medium += n
	case SeverityLow:
		c.Low += n
	default:
		c.Info += n
	}
}

// Total returns the sum over all levels.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}

// CountSeverities tallies findings by severity.
func CountSeverities(findings []Finding) SeverityCounts {
	var c SeverityCounts
	for _, f := range findings {
		c.Add(f.Severity, 1)
	}
	return c
}

// PolicyInput is the document handed to the policy engine
type PolicyInput struct {
	AppName  string    `json:"app_name"`
	Findings []Finding `json:"findings"`
}

// Verdict is the decision returned by the policy engine
type Verdict struct {
	Status          Status         `json:"status"`
	RiskScore       int            `json:"risk_score"`
	SeverityCounts  SeverityCounts `json:"severity_counts"`
	Violations      []string       `json:"violations"`
	Recommendations []string       `json:"recommendations"`
}

// Evaluation is the persisted artifact of one scan run
type Evaluation struct {
	AppName         string         `json:"app_name"`
	Status          Status         `json:"status"`
	RiskScore       int            `json:"risk_score"`
	SeverityCounts  SeverityCounts `json:"severity_counts"`
	TotalFindings   int            `json:"total_findings"`
	Findings        []Finding      `json:"findings"`
	Violations      []string       `json:"violations"`
	Recommendations []string       `json:"recommendations"`
	PolicyReference string         `json:"policy_reference"`
	AnalysisTime    time.Time      `json:"analysis_time"`
}

// NewEvaluation combines a verdict with the findings that produced it.
func NewEvaluation(appName string, findings []Finding, verdict *Verdict, policyRef string, now time.Time) *Evaluation {
	if findings == nil {
		findings = []Finding{}
	}
	return &Evaluation{
		AppName:         appName,
		Status:          verdict.Status,
		RiskScore:       verdict.RiskScore,
		SeverityCounts:  verdict.SeverityCounts,
		TotalFindings:   len(findings),
		Findings:        findings,
		Violations:      nonNil(verdict.Violations),
		Recommendations: nonNil(verdict.Recommendations),
		PolicyReference: policyRef,
		AnalysisTime:    now.UTC(),
	}
}

// Verdict extracts the policy decision from a stored evaluation.
func (e *Evaluation) Verdict() *Verdict {
	return &Verdict{
		Status:          e.Status,
		RiskScore:       e.RiskScore,
		SeverityCounts:  e.SeverityCounts,
		Violations:      e.Violations,
		Recommendations: e.Recommendations,
	}
}

// TuningRecord summarizes one recurring (source, rule) pair
type TuningRecord struct {
	Source      Source   `json:"source"`
	Rule        string   `json:"rule"`
	Name        string   `json:"name"`
	Count       int      `json:"count"`
	Severity    Severity `json:"severity"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
}

// TuningSummary is the persisted tuning artifact
type TuningSummary struct {
	GeneratedAt     string         `json:"generated_at"`
	TopFindings     []TuningRecord `json:"top_findings"`
	Violations      []string       `json:"violations"`
	Recommendations []string       `json:"recommendations"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
