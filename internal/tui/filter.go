package tui

import (
	"sort"
	"strings"

	"github.com/ppiankov/dastgate/internal/models"
)

// filterState holds current active filters.
type filterState struct {
	Source     string
	Severity   string
	SearchText string
}

// sortField enumerates columns that can be sorted.
type sortField int

const (
	sortBySeverity sortField = iota
	sortBySource
	sortByName
	sortByLocation
	sortByRule
)

// sortFieldCount is the total number of sortable columns.
const sortFieldCount = 5

// applyFilters returns findings matching all active filters.
func applyFilters(findings []models.Finding, f filterState) []models.Finding {
	result := make([]models.Finding, 0, len(findings))
	searchLower := strings.ToLower(f.SearchText)

	for _, finding := range findings {
		if f.Source != "" && string(finding.Origin()) != f.Source {
			continue
		}
		if f.Severity != "" && !strings.EqualFold(string(finding.Severity), f.Severity) {
			continue
		}
		if searchLower != "" && !matchesSearch(finding, searchLower) {
			continue
		}
		result = append(result, finding)
	}
	return result
}

func matchesSearch(f models.Finding, searchLower string) bool {
	for _, field := range []string{
		string(f.Origin()), f.Name, string(f.Severity), f.Where(), f.Rule(), f.Description,
	} {
		if strings.Contains(strings.ToLower(field), searchLower) {
			return true
		}
	}
	return false
}

// sortFindings sorts a slice of findings in place by the given field.
func sortFindings(findings []models.Finding, field sortField) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		switch field {
		case sortBySeverity:
			return models.SeverityWeight(string(a.Severity)) > models.SeverityWeight(string(b.Severity))
		case sortBySource:
			return a.Origin() < b.Origin()
		case sortByName:
			return a.Name < b.Name
		case sortByLocation:
			return a.Where() < b.Where()
		case sortByRule:
			return a.Rule() < b.Rule()
		default:
			return false
		}
	})
}

// uniqueSources returns deduplicated, sorted scanner names.
func uniqueSources(findings []models.Finding) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, f := range findings {
		src := string(f.Origin())
		if !seen[src] {
			seen[src] = true
			sources = append(sources, src)
		}
	}
	sort.Strings(sources)
	return sources
}

// nextSeverity cycles "" → CRITICAL → ... → INFO → "".
func nextSeverity(current string) string {
	if current == "" {
		return string(models.Severities[0])
	}
	for i, sev := range models.Severities {
		if string(sev) == current && i+1 < len(models.Severities) {
			return string(models.Severities[i+1])
		}
	}
	return ""
}

// sortFieldName returns a human-readable name for the sort field.
func sortFieldName(f sortField) string {
	switch f {
	case sortBySeverity:
		return "severity"
	case sortBySource:
		return "scanner"
	case sortByName:
		return "name"
	case sortByLocation:
		return "location"
	case sortByRule:
		return "rule"
	default:
		return "unknown"
	}
}
