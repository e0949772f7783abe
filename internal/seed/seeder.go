package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rendis/flowgpt/internal/catalog"
	"github.com/rendis/flowgpt/internal/engine"
	"github.com/rendis/flowgpt/internal/store"
)

// Options controls a seeding run.
type Options struct {
	// RunSamples executes every sample text through every seeded pipeline.
	RunSamples bool
}

// Result summarizes what a seeding run created.
type Result struct {
	Skipped    bool `json:"skipped"`
	Nodes      int  `json:"nodes"`
	Pipelines  int  `json:"pipelines"`
	Edges      int  `json:"edges"`
	Contacts   int  `json:"contacts"`
	Executions int  `json:"executions"`
	Failures   int  `json:"failures"`
}

// Seeder writes a seed File through the catalog so every row passes the
// same validation as API writes.
type Seeder struct {
	catalog  *catalog.Catalog
	executor *engine.Executor
	now      func() time.Time
	logger   *slog.Logger
}

// NewSeeder builds a seeder. executor may be nil when samples are never run.
func NewSeeder(c *catalog.Catalog, executor *engine.Executor, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{catalog: c, executor: executor, now: time.Now, logger: logger}
}

// Seed loads f unless the database already holds nodes, in which case
// nothing is written and Result.Skipped is set.
func (s *Seeder) Seed(ctx context.Context, f *File, opts Options) (*Result, error) {
	existing, err := s.catalog.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		s.logger.InfoContext(ctx, "sample data already exists, skipping", "nodes", len(existing))
		return &Result{Skipped: true}, nil
	}
	if opts.RunSamples && s.executor == nil {
		return nil, fmt.Errorf("run samples: no executor configured")
	}

	res := &Result{}
	nodeIDs := make(map[string]int64, len(f.Nodes))
	for _, nb := range f.Nodes {
		config, err := nb.ConfigMap()
		if err != nil {
			return res, err
		}
		node := &store.Node{Name: nb.Name, NodeType: nb.Type, Description: nb.Description, Config: config}
		if err := s.catalog.CreateNode(ctx, node); err != nil {
			return res, fmt.Errorf("create node %q: %w", nb.Key, err)
		}
		nodeIDs[nb.Key] = node.ID
		res.Nodes++
	}

	var pipelines []*store.Pipeline
	for _, pb := range f.Pipelines {
		p := &store.Pipeline{Name: pb.Name, Description: pb.Description, IsActive: pb.IsActive()}
		if err := s.catalog.CreatePipeline(ctx, p); err != nil {
			return res, fmt.Errorf("create pipeline %q: %w", pb.Key, err)
		}
		res.Pipelines++
		pipelines = append(pipelines, p)

		for i := 0; i+1 < len(pb.Steps); i++ {
			edge := &store.Edge{
				PipelineID: p.ID,
				SourceID:   nodeIDs[pb.Steps[i]],
				TargetID:   nodeIDs[pb.Steps[i+1]],
				Order:      i,
			}
			if err := s.catalog.AddEdge(ctx, edge); err != nil {
				return res, fmt.Errorf("link %s -> %s in pipeline %q: %w", pb.Steps[i], pb.Steps[i+1], pb.Key, err)
			}
			res.Edges++
		}
	}

	now := s.now()
	for _, cb := range f.Contacts {
		contact := &store.Contact{
			Name:      cb.Name,
			Email:     cb.Email,
			Phone:     cb.Phone,
			Message:   cb.Message,
			CreatedAt: now.AddDate(0, 0, -cb.DaysAgo),
			IsRead:    cb.IsRead,
		}
		if err := s.catalog.SubmitContact(ctx, contact); err != nil {
			return res, fmt.Errorf("create contact %q: %w", cb.Email, err)
		}
		res.Contacts++
	}

	if opts.RunSamples {
		s.runSamples(ctx, pipelines, f.Samples, res)
	}

	s.logger.InfoContext(ctx, "sample data created",
		"nodes", res.Nodes, "pipelines", res.Pipelines, "contacts", res.Contacts, "executions", res.Executions)
	return res, nil
}

// runSamples executes each sample through each pipeline. A failing run is
// counted and logged; it does not stop the others.
func (s *Seeder) runSamples(ctx context.Context, pipelines []*store.Pipeline, samples []*SampleBlock, res *Result) {
	for _, p := range pipelines {
		for _, sample := range samples {
			out, err := s.executor.Execute(ctx, p.ID, sample.Text)
			if out != nil {
				res.Executions++
			}
			if err != nil {
				res.Failures++
				s.logger.WarnContext(ctx, "sample execution failed",
					"pipeline", p.Name, "sample", sample.Key, "error", err)
			}
		}
	}
}
