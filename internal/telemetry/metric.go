package telemetry

import (
	"maps"
	"time"
)

// Metric records one operation from start to completion.
type Metric struct {
	CorrelationID string         `json:"correlationId"`
	Operation     string         `json:"operation"`
	StartTime     time.Time      `json:"startTime"`
	EndTime       time.Time      `json:"endTime,omitzero"`
	Duration      time.Duration  `json:"duration"`
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Finished reports whether the metric has been ended or failed.
func (m Metric) Finished() bool {
	return !m.EndTime.IsZero()
}

func (m Metric) clone() Metric {
	m.Metadata = maps.Clone(m.Metadata)
	return m
}

// OperationStats aggregates finished metrics sharing an operation name.
type OperationStats struct {
	Count    int64 `json:"count"`
	Failures int64 `json:"failures"`
	// AverageDuration is the mean duration in milliseconds.
	AverageDuration float64 `json:"averageDuration"`
}

// Stats is an aggregate view over finished operations.
type Stats struct {
	TotalOperations      int64                     `json:"totalOperations"`
	SuccessfulOperations int64                     `json:"successfulOperations"`
	FailedOperations     int64                     `json:"failedOperations"`
	SuccessRate          float64                   `json:"successRate"`
	ActiveOperations     int                       `json:"activeOperations"`
	HistorySize          int                       `json:"historySize"`
	OperationStats       map[string]OperationStats `json:"operationStats"`
}

func successRate(successful, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(successful) / float64(total)
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
