package models

import "strings"

// Source identifies the scanner that produced a finding
type Source string

const (
	SourceZAP     Source = "ZAP"
	SourceNuclei  Source = "Nuclei"
	SourceUnknown Source = "Unknown"
)

// Severity is the normalized issue level
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Severities lists every level from most to least severe
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

// UnknownLocation is used when a scanner gives no usable URL or host
const UnknownLocation = "Unknown"

// ParseSeverity maps a scanner severity string onto one of the five levels.
// Matching is case-insensitive. Unrecognized strings degrade to INFO.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return SeverityCritical
	case "HIGH":
		return SeverityHigh
	case "MEDIUM", "MODERATE":
		return SeverityMedium
	case "LOW":
		return SeverityLow
	default:
		// INFO, INFORMATIONAL, empty and anything unexpected
		return SeverityInfo
	}
}

// IsKnown reports whether s is one of the five levels.
func (s Severity) IsKnown() bool {
	return SeverityWeight(string(s)) > 0
}

// SeverityWeight returns the ranking weight of a severity string.
// Unknown values weigh 0 so they sort after everything else.
func SeverityWeight(s string) int {
	switch Severity(strings.ToUpper(s)) {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Finding is one normalized security issue, independent of the scanner
// that reported it. Scanner-specific extras are optional pass-through.
type Finding struct {
	Source      Source   `json:"source"`
	Name        string   `json:"name"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Solution    string   `json:"solution"`
	Location    string   `json:"location"`
	RuleID      string   `json:"rule_id,omitempty"`     // ZAP plugin id
	TemplateID  string   `json:"template_id,omitempty"` // Nuclei template id
	Instances   int      `json:"instances,omitempty"`
	Confidence  string   `json:"confidence,omitempty"`
	MatchedAt   string   `json:"matched_at,omitempty"`
	Scanner     Source   `json:"scanner"`
}

// Rule returns the scanner rule identifier, falling back to the finding name.
func (f Finding) Rule() string {
	if f.RuleID != "" {
		return f.RuleID
	}
	if f.TemplateID != "" {
		return f.TemplateID
	}
	return f.Name
}

// Origin returns the scanner that produced the finding.
func (f Finding) Origin() Source {
	if f.Scanner != "" {
		return f.Scanner
	}
	if f.Source != "" {
		return f.Source
	}
	return SourceUnknown
}

// Where returns the best known location of the finding.
func (f Finding) Where() string {
	if f.Location != "" {
		return f.Location
	}
	if f.MatchedAt != "" {
		return f.MatchedAt
	}
	return UnknownLocation
}

// IsCriticalOrHigh reports whether the finding belongs in the spotlight.
func (f Finding) IsCriticalOrHigh() bool {
	sev := Severity(strings.ToUpper(string(f.Severity)))
	return sev == SeverityCritical || sev == SeverityHigh
}
