package models

import "time"

// Trend directions
const (
	TrendImproving = "improving"
	TrendDegrading = "degrading"
	TrendStable    = "stable"
)

// RiskTrend represents the risk change between two evaluations
type RiskTrend struct {
	Direction        string    `json:"direction"`
	PreviousRisk     int       `json:"previous_risk"`
	CurrentRisk      int       `json:"current_risk"`
	Delta            int       `json:"delta"`
	PreviousFindings int       `json:"previous_findings"`
	CurrentFindings  int       `json:"current_findings"`
	ComparedWith     time.Time `json:"compared_with"`
}

// TrendSummary provides historical analysis over stored evaluations
type TrendSummary struct {
	TimeRange     string                  `json:"time_range"`
	RunsAnalyzed  int                     `json:"runs_analyzed"`
	RiskSparkline []int                   `json:"risk_sparkline"`
	StatusCounts  map[Status]int          `json:"status_counts"`
	BySource      map[Source]*SourceTrend `json:"by_source"`
}

// SourceTrend represents the finding count change for one scanner
type SourceTrend struct {
	Source           Source `json:"source"`
	CurrentFindings  int    `json:"current_findings"`
	PreviousFindings int    `json:"previous_findings"`
	Change           int    `json:"change"`
}
