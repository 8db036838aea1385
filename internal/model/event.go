package model

import "time"

// Event bus topics.
const (
	TopicLifecycle = "operation:lifecycle"
	TopicHostEvent = "host:event"
)

// EventType identifies a lifecycle transition of a submission.
type EventType string

// Lifecycle event types.
const (
	EventQueued     EventType = "queued"
	EventStarted    EventType = "started"
	EventCompleted  EventType = "completed"
	EventFailed     EventType = "failed"
	EventSuperseded EventType = "superseded"
	EventHost       EventType = "host"
)

// Event is published on the bus for every lifecycle transition and for
// every event raised by the host.
type Event struct {
	Type          EventType        `json:"type"`
	SubmissionID  string           `json:"submission_id,omitempty"`
	Operation     string           `json:"operation"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	Result        *ExecutionResult `json:"result,omitempty"`
	Error         string           `json:"error,omitempty"`
	TimedOut      bool             `json:"timed_out,omitempty"`
	DurationMS    *float64         `json:"duration_ms,omitempty"`

	// Host events only.
	Data               string `json:"data,omitempty"`
	SimpleDisplayValue string `json:"simple_display_value,omitempty"`

	At time.Time `json:"at"`
}
