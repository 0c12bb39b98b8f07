package analytics

import (
	"time"

	"callqa-server/pkg/analyzer"
)

// AnalysisEvent is one finished call analysis entering the pipeline.
type AnalysisEvent struct {
	Source     string
	Filename   string
	Result     *analyzer.Result
	ReceivedAt time.Time
	Metadata   map[string]interface{}
}

// Alert flags a finished call that needs attention.
type Alert struct {
	Type     string                 `json:"type"`
	Severity string                 `json:"severity"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Stats are rolling aggregates over every analysis from one source.
type Stats struct {
	TotalAnalyses      int     `json:"totalAnalyses"`
	AverageScore       float64 `json:"averageScore"`
	RecentAverageScore float64 `json:"recentAverageScore"`
	ObjectiveRate      float64 `json:"objectiveRate"`
	DegradedAnalyses   int     `json:"degradedAnalyses"`
	AlertCount         int     `json:"alertCount"`
}

// Snapshot is what subscribers receive for each analysis.
type Snapshot struct {
	AnalysisID string           `json:"analysisId"`
	Source     string           `json:"source"`
	Filename   string           `json:"filename,omitempty"`
	Summary    analyzer.Summary `json:"summary"`
	Alerts     []Alert          `json:"alerts"`
	Stats      Stats            `json:"stats"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}
