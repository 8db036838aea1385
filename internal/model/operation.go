package model

import "time"

// Operation identifiers understood by the default registry.
const (
	OpCreateSession  = "createSession"
	OpNotifyEvent    = "notifyEvent"
	OpCreateTab      = "createTab"
	OpGetTabs        = "getTabs"
	OpSetPresence    = "setPresence"
	OpGetPresence    = "getPresence"
	OpGetEnvironment = "getEnvironment"
	OpSetMode        = "setMode"
	OpGetMode        = "getMode"
	OpSetWidth       = "setWidth"
	OpGetWidth       = "getWidth"
)

// OperationNames lists every built-in operation identifier.
var OperationNames = []string{
	OpCreateSession,
	OpNotifyEvent,
	OpCreateTab,
	OpGetTabs,
	OpSetPresence,
	OpGetPresence,
	OpGetEnvironment,
	OpSetMode,
	OpGetMode,
	OpSetWidth,
	OpGetWidth,
}

// ResultStatus tags an ExecutionResult.
type ResultStatus string

// Result status values.
const (
	StatusResolved ResultStatus = "RESOLVED"
	StatusRejected ResultStatus = "REJECTED"
)

// ExecutionContext is handed to a strategy for a single execution.
type ExecutionContext struct {
	CorrelationID string `json:"correlation_id"`
}

// OperationResult is the payload of an execution. Duration, TimeStamp and
// CorrelationID are stamped by the engine; strategies leave them empty.
type OperationResult struct {
	Value              string     `json:"value"`
	SimpleDisplayValue string     `json:"simple_display_value,omitempty"`
	Error              string     `json:"error,omitempty"`
	Duration           string     `json:"duration,omitempty"`
	TimeStamp          *time.Time `json:"timestamp,omitempty"`
	CorrelationID      string     `json:"correlation_id,omitempty"`
}

// ExecutionResult is what a strategy returns when it completes.
type ExecutionResult struct {
	Status ResultStatus     `json:"status"`
	Result *OperationResult `json:"result,omitempty"`
}

// Resolved builds a resolved result carrying value.
func Resolved(value string) ExecutionResult {
	return ExecutionResult{
		Status: StatusResolved,
		Result: &OperationResult{Value: value},
	}
}

// Rejected builds a rejected result carrying value and an error message.
func Rejected(value, errMsg string) ExecutionResult {
	return ExecutionResult{
		Status: StatusRejected,
		Result: &OperationResult{Value: value, Error: errMsg},
	}
}
