package storage

import (
	"errors"
	"time"

	"github.com/ppiankov/dastgate/internal/models"
)

// ErrNoRuns is returned when no evaluation has been stored yet.
var ErrNoRuns = errors.New("no runs found")

// Storage defines the interface for persisting evaluations
type Storage interface {
	// SaveEvaluation stores an evaluation keyed by its analysis time
	SaveEvaluation(eval *models.Evaluation) (string, error)

	// LoadEvaluation loads the evaluation stored for a timestamp
	LoadEvaluation(timestamp time.Time) (*models.Evaluation, error)

	// GetLatestRun retrieves the most recent evaluation
	GetLatestRun() (*models.Evaluation, error)

	// GetLatestBefore retrieves the most recent evaluation strictly before t
	GetLatestBefore(t time.Time) (*models.Evaluation, error)

	// GetLastNRuns retrieves the last N evaluations, oldest first
	GetLastNRuns(n int) ([]*models.Evaluation, error)

	// ListRuns returns all available run timestamps
	ListRuns() ([]time.Time, error)
}
