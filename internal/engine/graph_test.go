package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowgpt/internal/ops"
	"github.com/rendis/flowgpt/pkg/schema"
)

func planNodeIDs(p *Plan) []int64 {
	var ids []int64
	for _, s := range p.Nodes() {
		ids = append(ids, s.Node.ID)
	}
	return ids
}

func requireConfigError(t *testing.T, err error) *schema.FlowError {
	t.Helper()
	require.Error(t, err)
	fe, ok := err.(*schema.FlowError)
	require.True(t, ok, "expected *schema.FlowError, got %T", err)
	assert.Equal(t, schema.ErrCodeConfiguration, fe.Code)
	return fe
}

func TestBuild_SimpleChain(t *testing.T) {
	m := newMockStore()
	clean := m.addNode("Text Cleaner", "clean_text", map[string]any{"remove_urls": true})
	sum := m.addNode("Basic Summarizer", "summary", map[string]any{"num_sentences": 2})
	tr := m.addNode("Spanish Translator", "translate", nil)
	p := m.chain("Spanish Translation Pipeline", clean, sum, tr)

	plan, err := NewGraphBuilder(m).Build(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, p.ID, plan.PipelineID)
	assert.Equal(t, "Spanish Translation Pipeline", plan.PipelineName)
	require.Len(t, plan.Steps, 4)
	assert.True(t, plan.Steps[3].Terminal)
	assert.Nil(t, plan.Steps[3].Node)
	assert.Equal(t, []int64{clean.ID, sum.ID, tr.ID}, planNodeIDs(plan))

	assert.Equal(t, ops.CleanText{RemoveURLs: true}, plan.Steps[0].Operation)
	assert.Equal(t, ops.Translate{TargetLanguage: "spanish"}, plan.Steps[2].Operation)
}

func TestBuild_TopologyBeatsOrderField(t *testing.T) {
	m := newMockStore()
	a := m.addNode("A", "clean_text", nil)
	b := m.addNode("B", "uppercase", nil)
	c := m.addNode("C", "summary", nil)
	p := m.addPipeline("p")
	m.addEdge(p, b, c, 0)
	m.addEdge(p, a, b, 1)

	plan, err := NewGraphBuilder(m).Build(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, planNodeIDs(plan))
}

func TestBuild_SingleEdge(t *testing.T) {
	m := newMockStore()
	a := m.addNode("A", "uppercase", nil)
	b := m.addNode("B", "email", nil)
	p := m.chain("p", a, b)

	plan, err := NewGraphBuilder(m).Build(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID}, planNodeIDs(plan))
	assert.Len(t, plan.Steps, 3)
}

func TestBuild_UnknownPipeline(t *testing.T) {
	m := newMockStore()
	_, err := NewGraphBuilder(m).Build(context.Background(), 99)

	fe := requireConfigError(t, err)
	assert.Equal(t, "Pipeline with id 99 does not exist", fe.Message)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestBuild_NoEdges(t *testing.T) {
	m := newMockStore()
	p := m.addPipeline("Empty Pipeline")

	_, err := NewGraphBuilder(m).Build(context.Background(), p.ID)
	fe := requireConfigError(t, err)
	assert.Equal(t, "Pipeline Empty Pipeline has no edges defined", fe.Message)
	assert.Zero(t, m.writeCount())
}

func TestBuild_UnknownNodeType(t *testing.T) {
	m := newMockStore()
	a := m.addNode("A", "clean_text", nil)
	b := m.addNode("Sentiment", "sentiment", nil)
	p := m.chain("p", a, b)

	_, err := NewGraphBuilder(m).Build(context.Background(), p.ID)
	fe := requireConfigError(t, err)
	assert.Equal(t, "Unknown node type: sentiment", fe.Message)
	assert.Equal(t, b.ID, fe.NodeID)
	assert.Zero(t, m.writeCount())
}

func TestBuild_BadNodeConfig(t *testing.T) {
	m := newMockStore()
	a := m.addNode("A", "summary", map[string]any{"max_chars": -3})
	b := m.addNode("B", "uppercase", nil)
	p := m.chain("p", a, b)

	_, err := NewGraphBuilder(m).Build(context.Background(), p.ID)
	fe := requireConfigError(t, err)
	assert.Equal(t, a.ID, fe.NodeID)
	assert.Contains(t, fe.Message, "max_chars")
}

func TestBuild_MissingNode(t *testing.T) {
	m := newMockStore()
	a := m.addNode("A", "uppercase", nil)
	b := m.addNode("B", "uppercase", nil)
	p := m.chain("p", a, b)
	m.deleteNode(b.ID)

	_, err := NewGraphBuilder(m).Build(context.Background(), p.ID)
	fe := requireConfigError(t, err)
	assert.Contains(t, fe.Message, "does not exist")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestBuild_Cycle(t *testing.T) {
	m := newMockStore()
	a := m.addNode("A", "uppercase", nil)
	b := m.addNode("B", "uppercase", nil)
	c := m.addNode("C", "uppercase", nil)
	p := m.chain("Loop", a, b, c)
	m.addEdge(p, c, a, 2)

	_, err := NewGraphBuilder(m).Build(context.Background(), p.ID)
	fe := requireConfigError(t, err)
	assert.Contains(t, fe.Message, "Pipeline Loop is not a simple chain")
	assert.True(t, schema.IsCode(err, schema.ErrCodeCycleDetected))
}

func TestBuild_Branch(t *testing.T) {
	m := newMockStore()
	a := m.addNode("A", "clean_text", nil)
	b := m.addNode("B", "uppercase", nil)
	c := m.addNode("C", "summary", nil)
	p := m.addPipeline("Fork")
	m.addEdge(p, a, b, 0)
	m.addEdge(p, a, c, 1)

	_, err := NewGraphBuilder(m).Build(context.Background(), p.ID)
	fe := requireConfigError(t, err)
	assert.Contains(t, fe.Message, "outgoing edges")
	assert.False(t, schema.IsCode(err, schema.ErrCodeCycleDetected))
}

func TestBuild_Disconnected(t *testing.T) {
	m := newMockStore()
	a := m.addNode("A", "clean_text", nil)
	b := m.addNode("B", "uppercase", nil)
	c := m.addNode("C", "summary", nil)
	d := m.addNode("D", "email", nil)
	p := m.addPipeline("Split")
	m.addEdge(p, a, b, 0)
	m.addEdge(p, c, d, 1)

	_, err := NewGraphBuilder(m).Build(context.Background(), p.ID)
	fe := requireConfigError(t, err)
	assert.Contains(t, fe.Message, "start nodes")
}

func TestChainEnds_Fallbacks(t *testing.T) {
	m := newMockStore()
	a := m.addNode("A", "uppercase", nil)
	b := m.addNode("B", "uppercase", nil)
	p := m.addPipeline("p")
	m.addEdge(p, a, b, 0)
	m.addEdge(p, b, a, 1)

	edges, err := m.ListEdges(context.Background(), p.ID)
	require.NoError(t, err)
	start, end := chainEnds(edges)
	assert.Equal(t, a.ID, start)
	assert.Equal(t, a.ID, end)
}
