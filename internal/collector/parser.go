package collector

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/dastgate/internal/models"
)

// zapReport mirrors the parts of the ZAP JSON report we use
type zapReport struct {
	Site []zapSite `json:"site"`
}

type zapSite struct {
	Name   string     `json:"@name"`
	Alerts []zapAlert `json:"alerts"`
}

type zapAlert struct {
	Name       string        `json:"name"`
	Alert      string        `json:"alert"`
	RiskDesc   string        `json:"riskdesc"`
	Desc       string        `json:"desc"`
	Solution   string        `json:"solution"`
	PluginID   flexString    `json:"pluginId"`
	PluginIDLc flexString    `json:"pluginid"`
	Confidence flexString    `json:"confidence"`
	Instances  []zapInstance `json:"instances"`
}

type zapInstance struct {
	URI           string `json:"uri"`
	RequestHeader string `json:"requestHeader"`
}

// ParseZAP converts a ZAP JSON report into findings.
// Each alert yields exactly one finding regardless of its instance count.
func ParseZAP(data []byte) ([]models.Finding, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var report zapReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse ZAP report: %w", err)
	}

	var findings []models.Finding
	for _, site := range report.Site {
		for _, alert := range site.Alerts {
			findings = append(findings, zapFinding(alert))
		}
	}

	return findings, nil
}

func zapFinding(alert zapAlert) models.Finding {
	name := alert.Name
	if name == "" {
		name = alert.Alert
	}
	if name == "" {
		name = "Unknown"
	}

	location := ""
	if len(alert.Instances) > 0 {
		first := alert.Instances[0]
		location = first.URI
		if location == "" {
			location = first.RequestHeader
		}
	}
	if location == "" {
		location = models.UnknownLocation
	}

	ruleID := string(alert.PluginID)
	if ruleID == "" {
		ruleID = string(alert.PluginIDLc)
	}

	return models.Finding{
		Source:      models.SourceZAP,
		Name:        name,
		Severity:    models.ParseSeverity(riskLevel(alert.RiskDesc)),
		Description: alert.Desc,
		Solution:    alert.Solution,
		Location:    location,
		RuleID:      ruleID,
		Instances:   len(alert.Instances),
		Confidence:  string(alert.Confidence),
		Scanner:     models.SourceZAP,
	}
}

// flexString accepts a JSON string or number. ZAP versions disagree on
// whether plugin ids and confidence levels are quoted.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = flexString(num.String())
		return nil
	}
	*s = ""
	return nil
}

// riskLevel takes the first token of a riskdesc such as "High (Medium)".
func riskLevel(riskDesc string) string {
	fields := strings.Fields(riskDesc)
	if len(fields) == 0 {
		return string(models.SeverityInfo)
	}
	return strings.ToUpper(fields[0])
}

// nucleiEntry mirrors one Nuclei JSON result
type nucleiEntry struct {
	TemplateID string     `json:"template-id"`
	Host       string     `json:"host"`
	MatchedAt  string     `json:"matched-at"`
	Info       nucleiInfo `json:"info"`
}

type nucleiInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Severity    string     `json:"severity"`
	Description string     `json:"description"`
	Remediation string     `json:"remediation"`
	Reference   references `json:"reference"`
}

// references accepts either a single string or a list of strings.
type references []string

func (r *references) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*r = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*r = []string{single}
		}
		return nil
	}
	// Anything else (null, numbers) carries no usable reference.
	*r = nil
	return nil
}

// ParseNuclei converts Nuclei output into findings. The payload may be a
// single JSON object, a JSON array, or newline-delimited JSON objects.
func ParseNuclei(data []byte) ([]models.Finding, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	// Stage 1: the whole payload as one JSON value.
	entries, ok := decodeWhole(trimmed)
	if !ok {
		// Stage 2: one JSON value per line, skipping what does not parse.
		entries = decodeLines(trimmed)
	}

	var findings []models.Finding
	for _, raw := range entries {
		var entry nucleiEntry
		if !isObject(raw) {
			continue
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		findings = append(findings, nucleiFinding(entry))
	}

	return findings, nil
}

// decodeWhole parses the payload as a single value. Arrays are flattened
// into their elements, any other value becomes a one-element list.
func decodeWhole(data []byte) ([]json.RawMessage, bool) {
	var payload json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false
	}

	if payload[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(payload, &list); err != nil {
			return nil, false
		}
		return list, true
	}

	return []json.RawMessage{payload}, true
}

// decodeLines parses newline-delimited JSON, dropping unparseable lines.
func decodeLines(data []byte) []json.RawMessage {
	var entries []json.RawMessage

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var raw json.RawMessage
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}
		entries = append(entries, append(json.RawMessage(nil), raw...))
	}

	return entries
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func nucleiFinding(entry nucleiEntry) models.Finding {
	info := entry.Info

	name := info.Name
	if name == "" {
		name = "Unknown"
	}

	severity := info.Severity
	if severity == "" {
		severity = "info"
	}

	location := entry.MatchedAt
	if location == "" {
		location = entry.Host
	}
	if location == "" && len(info.Reference) > 0 {
		location = info.Reference[0]
	}
	if location == "" {
		location = models.UnknownLocation
	}

	solution := info.Remediation
	if solution == "" {
		solution = "Review and patch"
	}

	templateID := info.ID
	if templateID == "" {
		templateID = entry.TemplateID
	}

	return models.Finding{
		Source:      models.SourceNuclei,
		Name:        name,
		Severity:    models.ParseSeverity(severity),
		Description: info.Description,
		Solution:    solution,
		Location:    location,
		TemplateID:  templateID,
		MatchedAt:   entry.MatchedAt,
		Scanner:     models.SourceNuclei,
	}
}
