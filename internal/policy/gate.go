package policy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/dastgate/internal/models"
	"gopkg.in/yaml.v3"
)

// GateFileNames are the file names searched by FindGateFile.
var GateFileNames = []string{".dastgate-gate.yaml", ".dastgate-gate.yml"}

// Gate defines local enforcement rules applied on top of the OPA verdict.
type Gate struct {
	Version string    `yaml:"version"`
	Rules   GateRules `yaml:"rules"`
}

// GateRules contains all configurable gate rules.
type GateRules struct {
	MaxRiskScore *int     `yaml:"max_risk_score,omitempty"`
	MaxFindings  *int     `yaml:"max_findings,omitempty"`
	MaxCritical  *int     `yaml:"max_critical,omitempty"`
	MaxHigh      *int     `yaml:"max_high,omitempty"`
	FailOnStatus []string `yaml:"fail_on_status,omitempty"`
}

// Violation is a single gate failure.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Result holds the outcome of a gate check.
type Result struct {
	Pass       bool        `json:"pass"`
	Violations []Violation `json:"violations"`
}

// LoadGate reads a gate file. A missing file yields (nil, nil).
func LoadGate(path string) (*Gate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read gate file: %w", err)
	}

	var g Gate
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse gate file: %w", err)
	}

	return &g, nil
}

// FindGateFile searches for a gate file in dir and its parents up to the
// filesystem root. Returns "" when none exists.
func FindGateFile(dir string) string {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = wd
	}

	for {
		for _, name := range GateFileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// Evaluate checks an evaluation against the gate rules.
func (g *Gate) Evaluate(eval *models.Evaluation) *Result {
	if g == nil || eval == nil {
		return &Result{Pass: true}
	}

	var violations []Violation

	if g.Rules.MaxRiskScore != nil && eval.RiskScore > *g.Rules.MaxRiskScore {
		violations = append(violations, Violation{
			Rule:    "max_risk_score",
			Message: fmt.Sprintf("risk score %d exceeds limit %d", eval.RiskScore, *g.Rules.MaxRiskScore),
		})
	}

	if g.Rules.MaxFindings != nil && eval.TotalFindings > *g.Rules.MaxFindings {
		violations = append(violations, Violation{
			Rule:    "max_findings",
			Message: fmt.Sprintf("total findings %d exceeds limit %d", eval.TotalFindings, *g.Rules.MaxFindings),
		})
	}

	if g.Rules.MaxCritical != nil && eval.SeverityCounts.Critical > *g.Rules.MaxCritical {
		violations = append(violations, Violation{
			Rule:    "max_critical",
			Message: fmt.Sprintf("critical findings %d exceeds limit %d", eval.SeverityCounts.Critical, *g.Rules.MaxCritical),
		})
	}

	if g.Rules.MaxHigh != nil && eval.SeverityCounts.High > *g.Rules.MaxHigh {
		violations = append(violations, Violation{
			Rule:    "max_high",
			Message: fmt.Sprintf("high findings %d exceeds limit %d", eval.SeverityCounts.High, *g.Rules.MaxHigh),
		})
	}

	for _, s := range g.Rules.FailOnStatus {
		if models.ParseStatus(s) == eval.Status {
			violations = append(violations, Violation{
				Rule:    "fail_on_status",
				Message: fmt.Sprintf("status %s is not allowed", eval.Status),
			})
			break
		}
	}

	return &Result{
		Pass:       len(violations) == 0,
		Violations: violations,
	}
}

// Summary joins violation messages for a single error line.
func (r *Result) Summary() string {
	msgs := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, "; ")
}
