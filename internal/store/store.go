// Package store persists the execution history of submitted operations.
package store

import (
	"context"
	"errors"

	"github.com/seantiz/hostrunner/internal/model"
)

var (
	// ErrNotFound is returned when an execution is not found.
	ErrNotFound = errors.New("execution not found")
	// ErrInvalidTransition is returned when an execution status transition is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ExecutionFilter narrows ListExecutions. Empty fields match everything.
type ExecutionFilter struct {
	Operation string
	Status    string
	Limit     int
	Offset    int
}

// ExecutionStats holds aggregate execution statistics.
type ExecutionStats struct {
	Total            int            `json:"total"`
	CountByStatus    map[string]int `json:"count_by_status"`
	CountByOperation map[string]int `json:"count_by_operation"`
	AvgDurationMS    float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for executions.
type Store interface {
	CreateExecution(ctx context.Context, e *model.Execution) error
	GetExecution(ctx context.Context, id string) (*model.Execution, error)
	ListExecutions(ctx context.Context, f ExecutionFilter) ([]*model.Execution, int, error)
	UpdateExecutionStatus(ctx context.Context, id, status string) error
	UpdateExecution(ctx context.Context, e *model.Execution) error
	GetExecutionStats(ctx context.Context) (*ExecutionStats, error)
	Close() error
}
