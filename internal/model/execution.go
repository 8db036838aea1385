package model

import "time"

// Execution status constants for persisted history records.
const (
	ExecQueued     = "queued"
	ExecRunning    = "running"
	ExecResolved   = "resolved"
	ExecRejected   = "rejected"
	ExecFailed     = "failed"
	ExecTimedOut   = "timed_out"
	ExecSuperseded = "superseded"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	ExecQueued: {
		ExecRunning:    true,
		ExecFailed:     true,
		ExecSuperseded: true,
	},
	ExecRunning: {
		ExecResolved: true,
		ExecRejected: true,
		ExecFailed:   true,
		ExecTimedOut: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether status ends an execution record.
func IsTerminal(status string) bool {
	switch status {
	case ExecResolved, ExecRejected, ExecFailed, ExecTimedOut, ExecSuperseded:
		return true
	}
	return false
}

// Execution is the persisted record of one accepted submission.
type Execution struct {
	ID                 string     `json:"id"`
	Operation          string     `json:"operation"`
	CorrelationID      string     `json:"correlation_id,omitempty"`
	Status             string     `json:"status"`
	Value              string     `json:"value,omitempty"`
	SimpleDisplayValue string     `json:"simple_display_value,omitempty"`
	Error              string     `json:"error,omitempty"`
	DurationMS         *float64   `json:"duration_ms,omitempty"`
	QueuedAt           time.Time  `json:"queued_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
}
