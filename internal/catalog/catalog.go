package catalog

import (
	"context"
	"log/slog"

	"github.com/rendis/flowgpt/internal/expressions"
	"github.com/rendis/flowgpt/internal/store"
	"github.com/rendis/flowgpt/internal/validation"
	"github.com/rendis/flowgpt/pkg/schema"
)

// Catalog is the write path for pipeline definitions and contact messages.
// Every mutation is validated before it reaches the store; reads pass
// straight through.
type Catalog struct {
	store      store.Store
	validator  validation.Validator
	conditions *expressions.ExprEngine
	logger     *slog.Logger
}

// New returns a Catalog validating with v before writing to s. A nil logger
// falls back to slog.Default.
func New(s store.Store, v validation.Validator, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		store:      s,
		validator:  v,
		conditions: expressions.NewExprEngine(),
		logger:     logger,
	}
}

// --- Nodes ---

func (c *Catalog) CreateNode(ctx context.Context, node *store.Node) error {
	if node.Config == nil {
		node.Config = map[string]any{}
	}
	if err := c.validator.ValidateNode(node.Name, node.NodeType, node.Config); err != nil {
		return err
	}
	if err := c.store.CreateNode(ctx, node); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "node created", "node_id", node.ID, "node_type", node.NodeType)
	return nil
}

// UpdateNode validates the node as it will look after update is applied.
func (c *Catalog) UpdateNode(ctx context.Context, id int64, update store.NodeUpdate) (*store.Node, error) {
	current, err := c.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}

	name, nodeType, config := current.Name, current.NodeType, current.Config
	if update.Name != nil {
		name = *update.Name
	}
	if update.NodeType != nil {
		nodeType = *update.NodeType
	}
	if update.Config != nil {
		config = update.Config
	}
	if err := c.validator.ValidateNode(name, nodeType, config); err != nil {
		return nil, err
	}

	if err := c.store.UpdateNode(ctx, id, update); err != nil {
		return nil, err
	}
	return c.store.GetNode(ctx, id)
}

func (c *Catalog) GetNode(ctx context.Context, id int64) (*store.Node, error) {
	return c.store.GetNode(ctx, id)
}

func (c *Catalog) ListNodes(ctx context.Context) ([]*store.Node, error) {
	return c.store.ListNodes(ctx)
}

// DeleteNode removes a node together with every edge touching it. Recorded
// steps of the node go with it; executions pointing at it lose their
// current node.
func (c *Catalog) DeleteNode(ctx context.Context, id int64) error {
	if err := c.store.DeleteNode(ctx, id); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "node deleted", "node_id", id)
	return nil
}

// --- Pipelines ---

func (c *Catalog) CreatePipeline(ctx context.Context, p *store.Pipeline) error {
	if err := c.validator.ValidatePipeline(p.Name, p.Description); err != nil {
		return err
	}
	return c.store.CreatePipeline(ctx, p)
}

func (c *Catalog) UpdatePipeline(ctx context.Context, id int64, update store.PipelineUpdate) (*store.Pipeline, error) {
	current, err := c.store.GetPipeline(ctx, id)
	if err != nil {
		return nil, err
	}
	name, desc := current.Name, current.Description
	if update.Name != nil {
		name = *update.Name
	}
	if update.Description != nil {
		desc = *update.Description
	}
	if err := c.validator.ValidatePipeline(name, desc); err != nil {
		return nil, err
	}
	if err := c.store.UpdatePipeline(ctx, id, update); err != nil {
		return nil, err
	}
	return c.store.GetPipeline(ctx, id)
}

func (c *Catalog) GetPipeline(ctx context.Context, id int64) (*store.Pipeline, error) {
	return c.store.GetPipeline(ctx, id)
}

// ListPipelines returns active pipelines by name, or all of them when
// includeInactive is set.
func (c *Catalog) ListPipelines(ctx context.Context, includeInactive bool) ([]*store.Pipeline, error) {
	return c.store.ListPipelines(ctx, store.PipelineFilter{ActiveOnly: !includeInactive})
}

func (c *Catalog) DeletePipeline(ctx context.Context, id int64) error {
	return c.store.DeletePipeline(ctx, id)
}

// PipelineDetail is a pipeline together with its edges in order.
type PipelineDetail struct {
	*store.Pipeline
	Edges []*store.Edge `json:"edges"`
}

func (c *Catalog) DescribePipeline(ctx context.Context, id int64) (*PipelineDetail, error) {
	p, err := c.store.GetPipeline(ctx, id)
	if err != nil {
		return nil, err
	}
	edges, err := c.store.ListEdges(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PipelineDetail{Pipeline: p, Edges: edges}, nil
}

// --- Edges ---

// AddEdge links two existing nodes inside a pipeline. The edge must keep the
// pipeline a simple chain and its condition, when present, must compile.
func (c *Catalog) AddEdge(ctx context.Context, edge *store.Edge) error {
	if edge.Order < 0 {
		return schema.NewErrorf(schema.ErrCodeValidation, "edge order must be >= 0, got %d", edge.Order)
	}
	if err := c.conditions.CheckCondition(edge.Condition); err != nil {
		return err
	}

	if _, err := c.store.GetPipeline(ctx, edge.PipelineID); err != nil {
		return err
	}
	for _, id := range [2]int64{edge.SourceID, edge.TargetID} {
		if _, err := c.store.GetNode(ctx, id); err != nil {
			return err
		}
	}

	existing, err := c.store.ListEdges(ctx, edge.PipelineID)
	if err != nil {
		return err
	}
	links := make([]validation.Link, len(existing))
	for i, e := range existing {
		links[i] = validation.Link{Source: e.SourceID, Target: e.TargetID}
	}
	if err := validation.CheckEdge(links, validation.Link{Source: edge.SourceID, Target: edge.TargetID}); err != nil {
		return err
	}

	if err := c.store.CreateEdge(ctx, edge); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "edge created",
		"pipeline_id", edge.PipelineID, "source_id", edge.SourceID, "target_id", edge.TargetID)
	return nil
}

func (c *Catalog) RemoveEdge(ctx context.Context, pipelineID, edgeID int64) error {
	return c.store.DeleteEdge(ctx, pipelineID, edgeID)
}

// --- Contacts ---

func (c *Catalog) SubmitContact(ctx context.Context, contact *store.Contact) error {
	if err := c.validator.ValidateContact(contact.Name, contact.Email, contact.Phone, contact.Message); err != nil {
		return err
	}
	return c.store.CreateContact(ctx, contact)
}

func (c *Catalog) ListContacts(ctx context.Context, filter store.ContactFilter) ([]*store.Contact, error) {
	return c.store.ListContacts(ctx, filter)
}

func (c *Catalog) MarkContactRead(ctx context.Context, id int64) error {
	return c.store.MarkContactRead(ctx, id)
}
