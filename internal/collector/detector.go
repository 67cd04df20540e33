package collector

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/dastgate/internal/models"
)

// DetectScanner identifies which scanner produced a report
// It uses a two-phase approach:
// 1. Whole-payload structure (ZAP has a top-level "site" list, Nuclei
//    results carry "template-id" or "info")
// 2. First parseable line, for newline-delimited Nuclei output
func DetectScanner(data []byte) (models.Source, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return models.SourceUnknown, fmt.Errorf("empty report")
	}

	// Phase 1: whole payload
	if entries, ok := decodeWhole(trimmed); ok {
		for _, raw := range entries {
			if src := detectByStructure(raw); src != models.SourceUnknown {
				return src, nil
			}
		}
		if len(entries) == 0 {
			// An empty array is what nuclei -json-export writes for a clean run
			return models.SourceNuclei, nil
		}
		return models.SourceUnknown, fmt.Errorf("unrecognized report structure")
	}

	// Phase 2: line-delimited
	for _, raw := range decodeLines(trimmed) {
		if src := detectByStructure(raw); src != models.SourceUnknown {
			return src, nil
		}
	}

	return models.SourceUnknown, fmt.Errorf("unable to detect scanner from report content")
}

// detectByStructure inspects the keys of a single JSON object.
func detectByStructure(raw json.RawMessage) models.Source {
	if !isObject(raw) {
		return models.SourceUnknown
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return models.SourceUnknown
	}

	if _, ok := keys["site"]; ok {
		return models.SourceZAP
	}
	if _, ok := keys["@programName"]; ok {
		return models.SourceZAP
	}

	if _, ok := keys["template-id"]; ok {
		return models.SourceNuclei
	}
	if _, ok := keys["matched-at"]; ok {
		return models.SourceNuclei
	}
	if _, ok := keys["info"]; ok {
		return models.SourceNuclei
	}

	return models.SourceUnknown
}

// ParseReport parses report data with the parser for the given scanner
func ParseReport(data []byte, source models.Source) ([]models.Finding, error) {
	switch source {
	case models.SourceZAP:
		return ParseZAP(data)
	case models.SourceNuclei:
		return ParseNuclei(data)
	default:
		return nil, fmt.Errorf("unsupported scanner: %s", source)
	}
}
