package engine

import (
	"context"

	"github.com/rendis/flowgpt/internal/ops"
	"github.com/rendis/flowgpt/internal/store"
	"github.com/rendis/flowgpt/internal/validation"
	"github.com/rendis/flowgpt/pkg/schema"
)

// PlanStep is one position of a Plan: a node with its parsed operation, or
// the terminal marker that closes the sequence.
type PlanStep struct {
	Node      *store.Node
	Operation ops.Operation
	Terminal  bool
}

// Plan is the ordered execution sequence of a pipeline.
type Plan struct {
	PipelineID   int64
	PipelineName string
	Steps        []PlanStep
}

// Nodes returns the plan's node steps without the terminal marker.
func (p *Plan) Nodes() []PlanStep {
	if n := len(p.Steps); n > 0 && p.Steps[n-1].Terminal {
		return p.Steps[:n-1]
	}
	return p.Steps
}

// GraphBuilder turns a pipeline's stored edges into a Plan. It only reads.
type GraphBuilder struct {
	store Store
}

// NewGraphBuilder returns a builder reading pipelines from s.
func NewGraphBuilder(s Store) *GraphBuilder {
	return &GraphBuilder{store: s}
}

// Build assembles the execution sequence for pipelineID. Every failure is a
// CONFIGURATION_ERROR and happens before anything is written.
func (b *GraphBuilder) Build(ctx context.Context, pipelineID int64) (*Plan, error) {
	pipeline, err := b.store.GetPipeline(ctx, pipelineID)
	if err != nil {
		if schema.IsCode(err, schema.ErrCodeNotFound) {
			return nil, schema.NewErrorf(schema.ErrCodeConfiguration,
				"Pipeline with id %d does not exist", pipelineID).WithCause(err)
		}
		return nil, err
	}

	edges, err := b.store.ListEdges(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration,
			"Pipeline %s has no edges defined", pipeline.Name)
	}

	// Resolve every referenced node in first-appearance order.
	steps := make(map[int64]PlanStep)
	for _, e := range edges {
		for _, id := range [2]int64{e.SourceID, e.TargetID} {
			if _, ok := steps[id]; ok {
				continue
			}
			step, err := b.resolve(ctx, pipeline, id)
			if err != nil {
				return nil, err
			}
			steps[id] = step
		}
	}

	start, end := chainEnds(edges)

	links := make([]validation.Link, len(edges))
	next := make(map[int64]int64, len(edges))
	for i, e := range edges {
		links[i] = validation.Link{Source: e.SourceID, Target: e.TargetID}
		next[e.SourceID] = e.TargetID
	}
	if result := validation.ValidateChain(links); !result.Valid() {
		return nil, chainError(pipeline, result)
	}

	plan := &Plan{PipelineID: pipeline.ID, PipelineName: pipeline.Name}
	for cur := start; ; cur = next[cur] {
		plan.Steps = append(plan.Steps, steps[cur])
		if cur == end {
			break
		}
	}
	plan.Steps = append(plan.Steps, PlanStep{Terminal: true})
	return plan, nil
}

func (b *GraphBuilder) resolve(ctx context.Context, pipeline *store.Pipeline, nodeID int64) (PlanStep, error) {
	node, err := b.store.GetNode(ctx, nodeID)
	if err != nil {
		if schema.IsCode(err, schema.ErrCodeNotFound) {
			return PlanStep{}, schema.NewErrorf(schema.ErrCodeConfiguration,
				"Node %d referenced by pipeline %s does not exist", nodeID, pipeline.Name).
				WithNode(nodeID).WithCause(err)
		}
		return PlanStep{}, err
	}
	op, err := ops.Parse(ops.Kind(node.NodeType), node.Config)
	if err != nil {
		fe := schema.NewError(schema.ErrCodeConfiguration, schema.MessageOf(err)).WithNode(nodeID).WithCause(err)
		return PlanStep{}, fe
	}
	return PlanStep{Node: node, Operation: op}, nil
}

// chainEnds picks the start node (first edge, by order, whose source is
// never a target) and the end node (first edge whose target is never a
// source). Without such edges it falls back to the first edge's source and
// the last edge's target.
func chainEnds(edges []*store.Edge) (start, end int64) {
	sources := make(map[int64]bool, len(edges))
	targets := make(map[int64]bool, len(edges))
	for _, e := range edges {
		sources[e.SourceID] = true
		targets[e.TargetID] = true
	}

	start, end = edges[0].SourceID, edges[len(edges)-1].TargetID
	for _, e := range edges {
		if !targets[e.SourceID] {
			start = e.SourceID
			break
		}
	}
	for _, e := range edges {
		if !sources[e.TargetID] {
			end = e.TargetID
			break
		}
	}
	return start, end
}

func chainError(pipeline *store.Pipeline, result *schema.ValidationResult) error {
	cause := result.ToError()
	if issue, ok := result.First(schema.ErrCodeCycleDetected); ok {
		cause = schema.NewError(schema.ErrCodeCycleDetected, issue.Message)
	}
	return schema.NewErrorf(schema.ErrCodeConfiguration,
		"Pipeline %s is not a simple chain: %s", pipeline.Name, result.Summary()).
		WithDetails(map[string]any{"errors": result.Errors}).
		WithCause(cause)
}
