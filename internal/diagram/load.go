package diagram

import (
	"context"

	"github.com/rendis/flowgpt/internal/store"
)

// Source is the read access Load needs. store.Store satisfies it.
type Source interface {
	GetPipeline(ctx context.Context, id int64) (*store.Pipeline, error)
	ListEdges(ctx context.Context, pipelineID int64) ([]*store.Edge, error)
	ListNodes(ctx context.Context) ([]*store.Node, error)
	GetExecution(ctx context.Context, id int64) (*store.Execution, error)
	ListSteps(ctx context.Context, executionID int64) ([]*store.ExecutionStep, error)
}

// Load reads a pipeline and builds its diagram. A non-zero executionID draws
// that execution's pipeline with its status overlay and pipelineID is ignored.
func Load(ctx context.Context, src Source, pipelineID, executionID int64) (*DiagramModel, error) {
	var run *Run
	if executionID != 0 {
		exec, err := src.GetExecution(ctx, executionID)
		if err != nil {
			return nil, err
		}
		steps, err := src.ListSteps(ctx, executionID)
		if err != nil {
			return nil, err
		}
		run = &Run{Execution: exec, Steps: steps}
		pipelineID = exec.PipelineID
	}

	p, err := src.GetPipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	edges, err := src.ListEdges(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	nodes, err := src.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	types := make(map[int64]string, len(nodes))
	for _, n := range nodes {
		types[n.ID] = n.NodeType
	}

	return Build(Input{Title: p.Name, Edges: edges, NodeTypes: types, Run: run}), nil
}
