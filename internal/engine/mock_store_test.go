package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rendis/flowgpt/internal/store"
	"github.com/rendis/flowgpt/pkg/schema"
)

// mockStore is a minimal in-memory Store for testing.
type mockStore struct {
	mu         sync.Mutex
	nextID     int64
	nodes      map[int64]*store.Node
	pipelines  map[int64]*store.Pipeline
	edges      map[int64][]*store.Edge
	executions map[int64]*store.Execution
	steps      map[int64]map[int]*store.ExecutionStep // exec id -> sequence -> step
	writes     int

	failUpsert     error
	failSetCurrent error
	failComplete   error

	// honorCtx makes writes fail on a done context, as database/sql does.
	honorCtx bool
}

func newMockStore() *mockStore {
	return &mockStore{
		nodes:      make(map[int64]*store.Node),
		pipelines:  make(map[int64]*store.Pipeline),
		edges:      make(map[int64][]*store.Edge),
		executions: make(map[int64]*store.Execution),
		steps:      make(map[int64]map[int]*store.ExecutionStep),
	}
}

func (m *mockStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *mockStore) addNode(name, nodeType string, config map[string]any) *store.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	if config == nil {
		config = map[string]any{}
	}
	n := &store.Node{ID: m.id(), Name: name, NodeType: nodeType, Config: config}
	m.nodes[n.ID] = n
	return n
}

func (m *mockStore) addPipeline(name string) *store.Pipeline {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &store.Pipeline{ID: m.id(), Name: name, IsActive: true}
	m.pipelines[p.ID] = p
	return p
}

func (m *mockStore) addEdge(p *store.Pipeline, src, dst *store.Node, order int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[p.ID] = append(m.edges[p.ID], &store.Edge{
		ID: m.id(), PipelineID: p.ID, SourceID: src.ID, TargetID: dst.ID, Order: order,
		SourceName: src.Name, TargetName: dst.Name,
	})
}

// chain creates a pipeline linking nodes in the given order.
func (m *mockStore) chain(name string, nodes ...*store.Node) *store.Pipeline {
	p := m.addPipeline(name)
	for i := 0; i+1 < len(nodes); i++ {
		m.addEdge(p, nodes[i], nodes[i+1], i)
	}
	return p
}

func (m *mockStore) deleteNode(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, id)
}

func (m *mockStore) executionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.executions)
}

func (m *mockStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *mockStore) GetPipeline(_ context.Context, id int64) (*store.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pipelines[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "pipeline %d not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) ListEdges(_ context.Context, pipelineID int64) ([]*store.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.Edge, 0, len(m.edges[pipelineID]))
	for _, e := range m.edges[pipelineID] {
		cp := *e
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *mockStore) GetNode(_ context.Context, id int64) (*store.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "node %d not found", id)
	}
	cp := *n
	return &cp, nil
}

func (m *mockStore) CreateExecution(_ context.Context, exec *store.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pipelines[exec.PipelineID]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "pipeline %d not found", exec.PipelineID)
	}
	m.writes++
	exec.ID = m.id()
	cp := *exec
	cp.PipelineName = p.Name
	m.executions[exec.ID] = &cp
	return nil
}

func (m *mockStore) GetExecution(_ context.Context, id int64) (*store.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "execution %d not found", id)
	}
	cp := *e
	if cp.CurrentNodeID != nil {
		if n, ok := m.nodes[*cp.CurrentNodeID]; ok {
			cp.CurrentNodeName = n.Name
		}
	}
	return &cp, nil
}

func (m *mockStore) SetCurrentNode(ctx context.Context, executionID, nodeID int64) error {
	if err := m.ctxErr(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetCurrent != nil {
		return m.failSetCurrent
	}
	e, ok := m.executions[executionID]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "execution %d not found", executionID)
	}
	m.writes++
	if _, ok := m.nodes[nodeID]; ok {
		id := nodeID
		e.CurrentNodeID = &id
	}
	return nil
}

func (m *mockStore) CompleteExecution(ctx context.Context, id int64, output string, completedAt time.Time) error {
	if err := m.ctxErr(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failComplete != nil {
		return m.failComplete
	}
	e, ok := m.executions[id]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "execution %d not found", id)
	}
	m.writes++
	e.IsComplete = true
	e.OutputData = &output
	e.CompletedAt = &completedAt
	return nil
}

func (m *mockStore) UpsertStep(ctx context.Context, step *store.ExecutionStep) error {
	if err := m.ctxErr(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsert != nil {
		return m.failUpsert
	}
	if _, ok := m.executions[step.ExecutionID]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "execution %d not found", step.ExecutionID)
	}
	if _, ok := m.nodes[step.NodeID]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "node %d not found", step.NodeID)
	}
	m.writes++
	if m.steps[step.ExecutionID] == nil {
		m.steps[step.ExecutionID] = make(map[int]*store.ExecutionStep)
	}
	if prev, ok := m.steps[step.ExecutionID][step.Sequence]; ok {
		step.ID = prev.ID
	} else {
		step.ID = m.id()
	}
	cp := *step
	m.steps[step.ExecutionID][step.Sequence] = &cp
	return nil
}

func (m *mockStore) ListSteps(_ context.Context, executionID int64) ([]*store.ExecutionStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.ExecutionStep, 0, len(m.steps[executionID]))
	for _, s := range m.steps[executionID] {
		cp := *s
		if n, ok := m.nodes[s.NodeID]; ok {
			cp.NodeName = n.Name
			cp.NodeType = n.NodeType
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (m *mockStore) ctxErr(ctx context.Context) error {
	if !m.honorCtx {
		return nil
	}
	return ctx.Err()
}

var errDisk = errors.New("disk I/O error")

var _ Store = (*mockStore)(nil)
