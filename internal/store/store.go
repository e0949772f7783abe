package store

import (
	"context"
	"time"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Nodes
	CreateNode(ctx context.Context, node *Node) error
	GetNode(ctx context.Context, id int64) (*Node, error)
	UpdateNode(ctx context.Context, id int64, update NodeUpdate) error
	DeleteNode(ctx context.Context, id int64) error
	ListNodes(ctx context.Context) ([]*Node, error)

	// Pipelines
	CreatePipeline(ctx context.Context, p *Pipeline) error
	GetPipeline(ctx context.Context, id int64) (*Pipeline, error)
	UpdatePipeline(ctx context.Context, id int64, update PipelineUpdate) error
	DeletePipeline(ctx context.Context, id int64) error
	ListPipelines(ctx context.Context, filter PipelineFilter) ([]*Pipeline, error)

	// Edges, ordered by their order field
	CreateEdge(ctx context.Context, edge *Edge) error
	DeleteEdge(ctx context.Context, pipelineID, edgeID int64) error
	ListEdges(ctx context.Context, pipelineID int64) ([]*Edge, error)

	// Executions
	CreateExecution(ctx context.Context, exec *Execution) error
	GetExecution(ctx context.Context, id int64) (*Execution, error)
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error)
	SetCurrentNode(ctx context.Context, executionID, nodeID int64) error
	CompleteExecution(ctx context.Context, id int64, output string, completedAt time.Time) error
	PruneExecutions(ctx context.Context, completedBefore time.Time) ([]int64, error)
	ExecutionIDsForNode(ctx context.Context, nodeID int64) ([]int64, error)

	// Execution Steps
	UpsertStep(ctx context.Context, step *ExecutionStep) error
	ListSteps(ctx context.Context, executionID int64) ([]*ExecutionStep, error)

	// Contacts
	CreateContact(ctx context.Context, c *Contact) error
	ListContacts(ctx context.Context, filter ContactFilter) ([]*Contact, error)
	MarkContactRead(ctx context.Context, id int64) error

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
