package reporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/dastgate/internal/aggregator"
	"github.com/ppiankov/dastgate/internal/models"
)

// SpotlightLimit is how many critical/high findings are listed in full.
const SpotlightLimit = 5

// TruncateLimit bounds description and solution text in the spotlight.
const TruncateLimit = 150

const defaultPolicyReference = "policies/severity-rules.rego"

// Artifact file names referenced from the report.
const (
	ZAPJSONArtifact    = "zap-report.json"
	ZAPHTMLArtifact    = "zap-report.html"
	NucleiJSONArtifact = "nuclei-report.json"
	EvaluationArtifact = "evaluation.json"
)

// Options carries the optional inputs of a markdown report.
type Options struct {
	Tuning         *models.TuningSummary
	StorageURL     string
	ArtifactsURL   string
	EvaluationPath string
	Hints          aggregator.Hints
	SurfaceLimit   int
	Now            time.Time
}

// MarkdownReporter renders the scan summary posted to pull requests
type MarkdownReporter struct {
	writer io.Writer
}

// NewMarkdownReporter creates a new markdown reporter
func NewMarkdownReporter(writer io.Writer) *MarkdownReporter {
	return &MarkdownReporter{writer: writer}
}

// Generate writes the report. Every section is always present; absent
// optional inputs render as placeholders.
func (r *MarkdownReporter) Generate(eval *models.Evaluation, opts Options) error {
	_, err := io.WriteString(r.writer, RenderMarkdown(eval, opts))
	return err
}

// RenderMarkdown builds the report document.
func RenderMarkdown(eval *models.Evaluation, opts Options) string {
	if eval == nil {
		eval = &models.Evaluation{}
	}
	if opts.EvaluationPath == "" {
		opts.EvaluationPath = "reports/" + EvaluationArtifact
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	counts := eval.SeverityCounts

	var b strings.Builder
	p := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
	}

	p("\n## DAST Security Scan Report\n\n")
	p("**Application:** %s  \n", eval.AppName)
	p("**Current verdict:** %s  \n", StatusBadge(eval.Status))
	p("**Scan time (UTC):** %s  \n", now.UTC().Format(aggregator.TimestampFormat))
	p("**Calculated risk score:** %d\n\n", eval.RiskScore)
	p("---\n\n")

	p("### Issue snapshot\n\n")
	p("| Severity | Count |\n")
	p("|----------|-------|\n")
	p("| Critical | %d |\n", counts.Critical)
	p("| High | %d |\n", counts.High)
	p("| Medium | %d |\n", counts.Medium)
	p("| Low | %d |\n", counts.Low)
	p("| Info | %d |\n\n", counts.Info)
	p("**Total findings:** %d\n\n", eval.TotalFindings)
	p("---\n\n")

	p("### What should happen now?\n\n%s\n\n", StatusMessage(eval, opts))
	p("---\n\n")

	p("### Critical / High findings in focus\n\n%s\n\n", criticalHighDetails(eval.Findings))
	p("---\n\n")

	p("### Attack surface highlights\n\n%s\n\n", attackSurface(eval.Findings, opts.SurfaceLimit))
	p("---\n\n")

	p("### Recommended next steps\n\n%s\n\n", bullets(aggregator.NextSteps(eval.Verdict(), opts.EvaluationPath, opts.Hints)))
	p("---\n\n")

	p("### Automated tuning guidance\n\n%s\n\n", tuningSection(opts.Tuning))
	p("---\n\n")

	p("### Artifacts\n\n%s\n", artifactSummary(opts.ArtifactsURL, opts.StorageURL))

	return b.String()
}

// StatusBadge returns the verdict badge. Unknown statuses never fail.
func StatusBadge(status models.Status) string {
	switch status {
	case models.StatusPass:
		return "**PASS** - No critical issues detected"
	case models.StatusWarn:
		return "**WARN** - Review recommended"
	case models.StatusFail:
		return "**FAIL** - Critical issues detected"
	default:
		return "UNKNOWN STATUS"
	}
}

// StatusMessage is the narrative under "What should happen now?".
func StatusMessage(eval *models.Evaluation, opts Options) string {
	counts := eval.SeverityCounts
	var fragments []string

	switch eval.Status {
	case models.StatusFail:
		fragments = append(fragments, fmt.Sprintf(
			"%d critical and %d high severity findings are blocking a merge (risk score %d).",
			counts.Critical, counts.High, eval.RiskScore))
	case models.StatusWarn:
		fragments = append(fragments, fmt.Sprintf(
			"%d medium severity findings triggered a WARN state (risk score %d).",
			counts.Medium, eval.RiskScore))
	default:
		status := string(eval.Status)
		if status == "" {
			status = "UNKNOWN"
		}
		fragments = append(fragments, fmt.Sprintf("Status is %s with risk score %d.", status, eval.RiskScore))
	}

	if len(eval.Violations) > 0 {
		fragments = append(fragments, fmt.Sprintf("Violations: %s.", strings.Join(eval.Violations, ", ")))
	}
	if len(eval.Recommendations) > 0 {
		fragments = append(fragments, fmt.Sprintf("Automatic guidance: %s.",
			strings.Join(aggregator.DedupeOrdered(eval.Recommendations), ", ")))
	}

	policyRef := eval.PolicyReference
	if policyRef == "" {
		policyRef = defaultPolicyReference
	}
	evalPath := opts.EvaluationPath
	if evalPath == "" {
		evalPath = "reports/" + EvaluationArtifact
	}
	fragments = append(fragments, fmt.Sprintf(
		"Consult `%s` and `%s` for the underlying data, and adjust thresholds if needed.", evalPath, policyRef))

	if opts.StorageURL != "" {
		fragments = append(fragments, fmt.Sprintf("Reports are stored at %s.", opts.StorageURL))
	} else if opts.ArtifactsURL != "" {
		fragments = append(fragments, fmt.Sprintf("Workflow artifacts are available at %s.", opts.ArtifactsURL))
	}

	return strings.Join(fragments, " ")
}

func criticalHighDetails(findings []models.Finding) string {
	var focus []models.Finding
	for _, f := range findings {
		if f.IsCriticalOrHigh() {
			focus = append(focus, f)
		}
	}
	if len(focus) == 0 {
		return "_No critical or high severity findings._"
	}

	var details []string
	for i, f := range focus {
		if i == SpotlightLimit {
			break
		}
		details = append(details, fmt.Sprintf(
			"\n**%d. [%s] %s**\n- **Source:** %s\n- **Description:** %s\n- **Solution:** %s\n",
			i+1, strings.ToUpper(string(f.Severity)), f.Name, f.Origin(),
			Truncate(f.Description, TruncateLimit), Truncate(f.Solution, TruncateLimit)))
	}
	if len(focus) > SpotlightLimit {
		details = append(details, fmt.Sprintf(
			"\n_... and %d more. See full report in artifacts._", len(focus)-SpotlightLimit))
	}
	return strings.Join(details, "\n")
}

// Truncate cuts s to limit runes, appending "..." only when text was cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func attackSurface(findings []models.Finding, limit int) string {
	clusters := aggregator.TopClusters(aggregator.AttackSurface(findings), limit)
	if len(clusters) == 0 {
		return "_No attack surface highlights available._"
	}

	lines := make([]string, 0, len(clusters))
	for _, c := range clusters {
		lines = append(lines, fmt.Sprintf("- `%s` (%s): %d findings from %s.",
			c.Location, c.Severity, c.Count, strings.Join(c.Scanners(), ", ")))
	}
	return strings.Join(lines, "\n")
}

func tuningSection(t *models.TuningSummary) string {
	if t == nil {
		return "- No automated tuning guidance is available yet."
	}

	generated := t.GeneratedAt
	if generated == "" {
		generated = "unknown"
	}
	lines := []string{"Generated at " + generated}

	if len(t.TopFindings) == 0 {
		lines = append(lines, "- No high-frequency findings to tune.")
	}
	for i, rec := range t.TopFindings {
		lines = append(lines, fmt.Sprintf("- **%d.** %s rule %s hit %d times (severity %s).",
			i+1, rec.Source, rec.Rule, rec.Count, rec.Severity))
	}

	if len(t.Violations) > 0 {
		lines = append(lines, "", "Violations:")
		for _, v := range t.Violations {
			lines = append(lines, "- "+v)
		}
	}
	if len(t.Recommendations) > 0 {
		lines = append(lines, "", "Recommendations:")
		for _, rec := range aggregator.DedupeOrdered(t.Recommendations) {
			lines = append(lines, "- "+rec)
		}
	}

	return strings.Join(lines, "\n")
}

func artifactSummary(artifactsURL, storageURL string) string {
	if storageURL != "" {
		base := strings.TrimRight(storageURL, "/")
		return strings.Join([]string{
			fmt.Sprintf("- [Download ZAP JSON](%s/%s)", base, ZAPJSONArtifact),
			fmt.Sprintf("- [Download ZAP HTML](%s/%s)", base, ZAPHTMLArtifact),
			fmt.Sprintf("- [Download Nuclei JSON](%s/%s)", base, NucleiJSONArtifact),
			fmt.Sprintf("- [Download OPA evaluation](%s/%s)", base, EvaluationArtifact),
		}, "\n")
	}
	if artifactsURL != "" {
		return strings.Join([]string{
			fmt.Sprintf("- [Open the workflow artifacts page](%s) (select the bundle for the latest run)", artifactsURL),
			fmt.Sprintf("- ZAP report: `%s`, `%s` (on the artifacts page)", ZAPJSONArtifact, ZAPHTMLArtifact),
			fmt.Sprintf("- Nuclei report: `%s`", NucleiJSONArtifact),
			fmt.Sprintf("- OPA evaluation: `%s`", EvaluationArtifact),
		}, "\n")
	}
	return "- Full ZAP/Nuclei/evaluation artifacts are attached to the workflow run for deeper inspection."
}

func bullets(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}
