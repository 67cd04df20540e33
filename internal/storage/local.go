package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/dastgate/internal/models"
)

const (
	runsDirName   = "runs"
	runFileSuffix = "-evaluation.json"
	timeLayout    = "2006-01-02T15-04-05"
)

// LocalStorage implements Storage interface using local filesystem
type LocalStorage struct {
	baseDir string
}

// NewLocal creates a new local storage instance
func NewLocal(baseDir string) *LocalStorage {
	return &LocalStorage{
		baseDir: baseDir,
	}
}

// SaveEvaluation writes an evaluation to runs/<timestamp>-evaluation.json
// and returns the file path.
func (s *LocalStorage) SaveEvaluation(eval *models.Evaluation) (string, error) {
	if err := s.EnsureDirectoryExists(); err != nil {
		return "", fmt.Errorf("failed to create runs directory: %w", err)
	}

	path := s.runPath(eval.AnalysisTime)

	data, err := json.MarshalIndent(eval, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal evaluation: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return path, nil
}

// LoadEvaluation loads the evaluation stored for a timestamp
func (s *LocalStorage) LoadEvaluation(timestamp time.Time) (*models.Evaluation, error) {
	return LoadFile(s.runPath(timestamp))
}

// GetLatestRun retrieves the most recent evaluation
func (s *LocalStorage) GetLatestRun() (*models.Evaluation, error) {
	timestamps, err := s.ListRuns()
	if err != nil {
		return nil, err
	}

	if len(timestamps) == 0 {
		return nil, ErrNoRuns
	}

	return s.LoadEvaluation(timestamps[len(timestamps)-1])
}

// GetLatestBefore retrieves the most recent evaluation stored strictly
// before t. Timestamps are compared at second precision.
func (s *LocalStorage) GetLatestBefore(t time.Time) (*models.Evaluation, error) {
	timestamps, err := s.ListRuns()
	if err != nil {
		return nil, err
	}

	cutoff := t.UTC().Truncate(time.Second)
	for i := len(timestamps) - 1; i >= 0; i-- {
		if timestamps[i].Before(cutoff) {
			return s.LoadEvaluation(timestamps[i])
		}
	}

	return nil, ErrNoRuns
}

// GetLastNRuns retrieves the last N evaluations, oldest first
func (s *LocalStorage) GetLastNRuns(n int) ([]*models.Evaluation, error) {
	timestamps, err := s.ListRuns()
	if err != nil {
		return nil, err
	}

	if len(timestamps) == 0 {
		return nil, ErrNoRuns
	}

	start := len(timestamps) - n
	if start < 0 || n <= 0 {
		start = 0
	}

	selected := timestamps[start:]
	evals := make([]*models.Evaluation, 0, len(selected))

	for _, timestamp := range selected {
		eval, err := s.LoadEvaluation(timestamp)
		if err != nil {
			// Skip runs that fail to load but continue with others
			continue
		}
		evals = append(evals, eval)
	}

	return evals, nil
}

// ListRuns returns all available run timestamps sorted chronologically
func (s *LocalStorage) ListRuns() ([]time.Time, error) {
	runsDir := filepath.Join(s.baseDir, runsDirName)

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []time.Time{}, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var timestamps []time.Time

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), runFileSuffix) {
			continue
		}

		// Format: 2006-01-02T15-04-05-evaluation.json
		timestamp, err := time.Parse(timeLayout, strings.TrimSuffix(entry.Name(), runFileSuffix))
		if err != nil {
			continue
		}

		timestamps = append(timestamps, timestamp)
	}

	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i].Before(timestamps[j])
	})

	return timestamps, nil
}

// LoadFile reads an evaluation artifact from any path.
func LoadFile(path string) (*models.Evaluation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("evaluation not found: %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var eval models.Evaluation
	if err := json.Unmarshal(data, &eval); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evaluation %s: %w", path, err)
	}

	return &eval, nil
}

func (s *LocalStorage) runPath(t time.Time) string {
	return filepath.Join(s.baseDir, runsDirName, t.UTC().Format(timeLayout)+runFileSuffix)
}

// GetStoragePath returns the full path to the storage directory
func (s *LocalStorage) GetStoragePath() string {
	return s.baseDir
}

// EnsureDirectoryExists creates the storage directory if it doesn't exist
func (s *LocalStorage) EnsureDirectoryExists() error {
	return os.MkdirAll(filepath.Join(s.baseDir, runsDirName), 0o755)
}
