package models

import "time"

// RunSummary describes one batch run over many (route, direction) pairs.
type RunSummary struct {
	RunID           string         `json:"runId"`
	StartedAt       time.Time      `json:"startedAt"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
	Status          string         `json:"status"`     // "running", "completed", "cancelled"
	Processed       int            `json:"processed"`  // pairs fetched and written
	Skipped         int            `json:"skipped"`    // pairs whose output file already existed
	Failed          int            `json:"failed"`     // pairs that returned an error
	Empty           int            `json:"empty"`      // pairs that loaded but had no station entries
	StopsSaved      int            `json:"stopsSaved"` // rows written across all files
	DurationSeconds float64        `json:"durationSeconds"`
	Failures        []RouteFailure `json:"failures,omitempty"`
}

// RouteFailure records a single pair that failed during a batch run.
type RouteFailure struct {
	RouteID   string    `json:"routeId"`
	Direction Direction `json:"direction"`
	Error     string    `json:"error"`
}
