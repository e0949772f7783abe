package engine

import (
	"context"
	"time"

	"github.com/rendis/flowgpt/internal/store"
)

// Store is the slice of the persistence layer the engine reads and writes.
// Satisfied by store.Store and test mocks.
type Store interface {
	GetPipeline(ctx context.Context, id int64) (*store.Pipeline, error)
	ListEdges(ctx context.Context, pipelineID int64) ([]*store.Edge, error)
	GetNode(ctx context.Context, id int64) (*store.Node, error)

	CreateExecution(ctx context.Context, exec *store.Execution) error
	GetExecution(ctx context.Context, id int64) (*store.Execution, error)
	SetCurrentNode(ctx context.Context, executionID, nodeID int64) error
	CompleteExecution(ctx context.Context, id int64, output string, completedAt time.Time) error

	UpsertStep(ctx context.Context, step *store.ExecutionStep) error
	ListSteps(ctx context.Context, executionID int64) ([]*store.ExecutionStep, error)
}

var _ Store = (store.Store)(nil)
