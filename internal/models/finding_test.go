package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"critical", SeverityCritical},
		{"High", SeverityHigh},
		{"MEDIUM", SeverityMedium},
		{"moderate", SeverityMedium},
		{" low ", SeverityLow},
		{"info", SeverityInfo},
		{"Informational", SeverityInfo},
		{"", SeverityInfo},
		{"bogus", SeverityInfo},
	}

	for _, tt := range tests {
		if got := ParseSeverity(tt.in); got != tt.want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSeverityAlwaysInFixedSet(t *testing.T) {
	valid := map[Severity]bool{}
	for _, s := range Severities {
		valid[s] = true
	}
	for _, in := range []string{"x", "CRIT", "none", "unknown", "Info (High)", "9"} {
		if got := ParseSeverity(in); !valid[got] {
			t.Errorf("ParseSeverity(%q) = %q, outside the fixed set", in, got)
		}
	}
}

func TestSeverityWeight(t *testing.T) {
	tests := map[string]int{
		"CRITICAL": 5,
		"high":     4,
		"Medium":   3,
		"LOW":      2,
		"INFO":     1,
		"BANANA":   0,
		"":         0,
	}
	for in, want := range tests {
		if got := SeverityWeight(in); got != want {
			t.Errorf("SeverityWeight(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestFindingRuleFallback(t *testing.T) {
	if got := (Finding{RuleID: "10038", TemplateID: "x", Name: "n"}).Rule(); got != "10038" {
		t.Errorf("Rule() = %q, want rule id", got)
	}
	if got := (Finding{TemplateID: "tech-detect", Name: "n"}).Rule(); got != "tech-detect" {
		t.Errorf("Rule() = %q, want template id", got)
	}
	if got := (Finding{Name: "Missing header"}).Rule(); got != "Missing header" {
		t.Errorf("Rule() = %q, want name", got)
	}
}

func TestFindingOriginAndWhere(t *testing.T) {
	f := Finding{Source: SourceNuclei}
	if f.Origin() != SourceNuclei {
		t.Errorf("Origin() = %q", f.Origin())
	}
	if (Finding{}).Origin() != SourceUnknown {
		t.Error("empty finding should have unknown origin")
	}
	if got := (Finding{MatchedAt: "https://a/b"}).Where(); got != "https://a/b" {
		t.Errorf("Where() = %q", got)
	}
	if got := (Finding{}).Where(); got != UnknownLocation {
		t.Errorf("Where() = %q", got)
	}
}

func TestCountSeverities(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityHigh},
		{Severity: SeverityHigh},
		{Severity: SeverityInfo},
		{Severity: "weird"},
	}
	c := CountSeverities(findings)
	if c.High != 2 || c.Info != 2 || c.Total() != 4 {
		t.Errorf("unexpected counts: %+v", c)
	}
}

func TestSeverityCountsAlwaysSerializesAllKeys(t *testing.T) {
	data, err := json.Marshal(SeverityCounts{High: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{"CRITICAL", "HIGH", "MEDIUM", "LOW", "INFO"} {
		if !strings.Contains(string(data), `"`+key+`"`) {
			t.Errorf("expected key %s in %s", key, data)
		}
	}
}

func TestStatusIsKnown(t *testing.T) {
	for _, s := range []Status{StatusPass, StatusWarn, StatusFail} {
		if !s.IsKnown() {
			t.Errorf("%s should be known", s)
		}
	}
	if Status("MAYBE").IsKnown() {
		t.Error("MAYBE should not be known")
	}
	if ParseStatus(" warn ") != StatusWarn {
		t.Error("ParseStatus should upper-case and trim")
	}
}

func TestNewEvaluation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	v := &Verdict{Status: StatusWarn, RiskScore: 7}
	ev := NewEvaluation("shop", []Finding{{Name: "a"}, {Name: "b"}}, v, "policies/severity-rules.rego", now)

	if ev.TotalFindings != 2 {
		t.Errorf("TotalFindings = %d, want 2", ev.TotalFindings)
	}
	if ev.AnalysisTime.Location() != time.UTC {
		t.Error("analysis time should be UTC")
	}
	if ev.Violations == nil || ev.Recommendations == nil {
		t.Error("lists should be non-nil so they serialize as []")
	}
	if ev.Verdict().RiskScore != 7 {
		t.Error("Verdict() should round-trip the risk score")
	}
}

func TestSeverityIsKnown(t *testing.T) {
	for _, sev := range Severities {
		if !sev.IsKnown() {
			t.Errorf("%s should be known", sev)
		}
	}
	if Severity("URGENT").IsKnown() {
		t.Error("URGENT should not be known")
	}
}
