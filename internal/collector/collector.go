package collector

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ppiankov/dastgate/internal/models"
)

// ReportSource names one scanner report on disk. An empty Scanner means
// the scanner is detected from the report content.
type ReportSource struct {
	Path    string
	Scanner models.Source
}

// Config holds configuration for the collector
type Config struct {
	Verbose bool
	// Logf receives progress lines when Verbose is set
	Logf func(format string, args ...interface{})
}

// Collector reads scanner reports and normalizes them into findings
type Collector struct {
	config Config
}

// New creates a new collector with the given configuration
func New(config Config) *Collector {
	if config.Logf == nil {
		config.Logf = func(string, ...interface{}) {}
	}
	return &Collector{
		config: config,
	}
}

// ReadReport reads a report file. A missing or empty file is not an
// error: both yield nil data so the scanner simply contributes nothing.
func ReadReport(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	return data, nil
}

// Collect reads every source in order and returns the combined findings.
func (c *Collector) Collect(sources []ReportSource) ([]models.Finding, error) {
	findings := []models.Finding{}

	for _, src := range sources {
		found, err := c.collectOne(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Path, err)
		}
		findings = append(findings, found...)
	}

	return findings, nil
}

// collectOne reads and parses a single report
func (c *Collector) collectOne(src ReportSource) ([]models.Finding, error) {
	data, err := ReadReport(src.Path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		c.logf("Skipping %s: report missing or empty", src.Path)
		return nil, nil
	}

	scanner := src.Scanner
	if scanner == "" {
		scanner, err = DetectScanner(data)
		if err != nil {
			return nil, fmt.Errorf("failed to detect scanner: %w", err)
		}
	}

	findings, err := ParseReport(data, scanner)
	if err != nil {
		return nil, err
	}

	c.logf("Collected %d %s finding(s) from %s", len(findings), scanner, src.Path)
	return findings, nil
}

func (c *Collector) logf(format string, args ...interface{}) {
	if c.config.Verbose {
		c.config.Logf(format, args...)
	}
}
