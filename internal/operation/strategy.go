package operation

import (
	"context"

	"github.com/seantiz/hostrunner/internal/model"
)

// Strategy performs one named host operation.
type Strategy interface {
	// Execute runs the operation once. ctx carries the engine's deadline;
	// strategies must not retry and must not stamp duration, timestamp or
	// correlation id on the result.
	Execute(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error)

func (f StrategyFunc) Execute(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error) {
	return f(ctx, ec)
}

// Descriptor is the caller-facing description of an operation.
type Descriptor struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Reads       []string `json:"reads,omitempty"`
}
