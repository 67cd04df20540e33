package aggregator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/dastgate/internal/models"
)

// DefaultTuningLimit is how many recurring findings are summarized.
const DefaultTuningLimit = 3

// TimestampFormat is used for tuning and report timestamps.
const TimestampFormat = "2006-01-02 15:04 UTC"

// Hints are the configuration files tuning suggestions point at.
type Hints struct {
	ZAPConfig       string
	NucleiTemplates string
	PolicyFile      string
}

// DefaultHints returns the stock config file locations.
func DefaultHints() Hints {
	return Hints{
		ZAPConfig:       "configs/zap-config.conf",
		NucleiTemplates: "configs/nuclei-templates.yaml",
		PolicyFile:      "policies/severity-rules.rego",
	}
}

func (h Hints) withDefaults() Hints {
	d := DefaultHints()
	if h.ZAPConfig == "" {
		h.ZAPConfig = d.ZAPConfig
	}
	if h.NucleiTemplates == "" {
		h.NucleiTemplates = d.NucleiTemplates
	}
	if h.PolicyFile == "" {
		h.PolicyFile = d.PolicyFile
	}
	return h
}

// SummarizeRecurring counts findings per (scanner, rule) and returns the
// top n records by count. Ties keep first-seen order. Each record carries
// the first finding seen for its key. n <= 0 uses DefaultTuningLimit.
func SummarizeRecurring(findings []models.Finding, n int) []models.TuningRecord {
	if n <= 0 {
		n = DefaultTuningLimit
	}

	type entry struct {
		record    models.TuningRecord
		firstSeen int
	}

	index := make(map[string]int)
	var entries []entry

	for _, f := range findings {
		source := f.Origin()
		rule := f.Rule()
		key := string(source) + ":" + rule

		i, ok := index[key]
		if !ok {
			name := f.Name
			if name == "" {
				name = "Unknown"
			}
			sev := f.Severity
			if sev == "" {
				sev = models.SeverityInfo
			}
			i = len(entries)
			index[key] = i
			entries = append(entries, entry{
				firstSeen: i,
				record: models.TuningRecord{
					Source:      source,
					Rule:        rule,
					Name:        name,
					Severity:    sev,
					Location:    f.Where(),
					Description: f.Description,
				},
			})
		}
		entries[i].record.Count++
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].record.Count != entries[j].record.Count {
			return entries[i].record.Count > entries[j].record.Count
		}
		return entries[i].firstSeen < entries[j].firstSeen
	})

	if n > len(entries) {
		n = len(entries)
	}
	records := make([]models.TuningRecord, 0, n)
	for _, e := range entries[:n] {
		records = append(records, e.record)
	}
	return records
}

// Suggestion renders one tuning suggestion for a recurring record.
func Suggestion(r models.TuningRecord, hints Hints) string {
	hints = hints.withDefaults()
	base := fmt.Sprintf("%s rule %s (%s) triggered %d times at %s.",
		r.Source, r.Rule, r.Name, r.Count, r.Location)

	switch strings.ToLower(string(r.Source)) {
	case "zap":
		return base + fmt.Sprintf(" Consider adjusting `%s` (IGNORE/WARN/FAIL) or adding a suppression.", hints.ZAPConfig)
	case "nuclei":
		return base + fmt.Sprintf(" Refine `%s` to align template selection with this endpoint.", hints.NucleiTemplates)
	default:
		return base + " Review whether this finding can be tuned or requires further investigation."
	}
}

// Suggestions renders a suggestion per record, in order.
func Suggestions(records []models.TuningRecord, hints Hints) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, Suggestion(r, hints))
	}
	return out
}

// BuildTuningSummary assembles the tuning artifact for an evaluation.
func BuildTuningSummary(eval *models.Evaluation, n int, now time.Time) *models.TuningSummary {
	summary := &models.TuningSummary{
		GeneratedAt:     now.UTC().Format(TimestampFormat),
		TopFindings:     []models.TuningRecord{},
		Violations:      []string{},
		Recommendations: []string{},
	}
	if eval == nil {
		return summary
	}

	summary.TopFindings = SummarizeRecurring(eval.Findings, n)
	if eval.Violations != nil {
		summary.Violations = eval.Violations
	}
	if eval.Recommendations != nil {
		summary.Recommendations = eval.Recommendations
	}
	return summary
}
