package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowgpt/internal/engine"
	"github.com/rendis/flowgpt/internal/ops"
	"github.com/rendis/flowgpt/internal/store"
	"github.com/rendis/flowgpt/pkg/schema"
)

// --- Fakes ---

type fakeRunner struct {
	result *engine.Result
	err    error
	calls  []int64
	inputs []string
}

func (f *fakeRunner) Execute(_ context.Context, pipelineID int64, input string) (*engine.Result, error) {
	f.calls = append(f.calls, pipelineID)
	f.inputs = append(f.inputs, input)
	return f.result, f.err
}

type fakeStatuses map[int64]*engine.Status

func (f fakeStatuses) Get(_ context.Context, id int64) (*engine.Status, error) {
	st, ok := f[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "execution %d not found", id)
	}
	return st, nil
}

type fakePipelines struct {
	pipelines []*store.Pipeline
	lastAll   bool
}

func (f *fakePipelines) ListPipelines(_ context.Context, includeInactive bool) ([]*store.Pipeline, error) {
	f.lastAll = includeInactive
	var out []*store.Pipeline
	for _, p := range f.pipelines {
		if p.IsActive || includeInactive {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- Helper ---

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

// --- Tests ---

func TestExecuteTool(t *testing.T) {
	state := ops.NewState("HELLO", 3, 11, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	runner := &fakeRunner{result: &engine.Result{ExecutionID: 11, State: state}}
	s := NewFlowServer(FlowServerDeps{Runner: runner})

	req := buildRequest("flowgpt.execute", map[string]any{
		"pipeline_id": float64(3),
		"input_text":  "hello",
	})
	result, err := s.handleExecute(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	assert.Equal(t, []int64{3}, runner.calls)
	assert.Equal(t, []string{"hello"}, runner.inputs)

	var out struct {
		Success     bool           `json:"success"`
		ExecutionID int64          `json:"execution_id"`
		Result      map[string]any `json:"result"`
	}
	unmarshalResult(t, result, &out)
	assert.True(t, out.Success)
	assert.Equal(t, int64(11), out.ExecutionID)
	assert.Equal(t, "HELLO", out.Result["text"])
}

func TestExecuteToolFailure(t *testing.T) {
	runner := &fakeRunner{
		result: &engine.Result{ExecutionID: 12},
		err:    schema.NewError(schema.ErrCodeExecution, "Error executing node Broken: boom"),
	}
	s := NewFlowServer(FlowServerDeps{Runner: runner})

	result, err := s.handleExecute(context.Background(), buildRequest("flowgpt.execute", map[string]any{
		"pipeline_id": 3, "input_text": "x",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "execution 12 failed: Error executing node Broken: boom", extractText(t, result))
}

func TestExecuteToolConfigurationError(t *testing.T) {
	runner := &fakeRunner{err: schema.NewError(schema.ErrCodeConfiguration, "Pipeline with id 9 does not exist")}
	s := NewFlowServer(FlowServerDeps{Runner: runner})

	result, err := s.handleExecute(context.Background(), buildRequest("flowgpt.execute", map[string]any{
		"pipeline_id": 9, "input_text": "x",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "execution failed: Pipeline with id 9 does not exist", extractText(t, result))
}

func TestExecuteToolMissingParams(t *testing.T) {
	runner := &fakeRunner{}
	s := NewFlowServer(FlowServerDeps{Runner: runner})

	result, err := s.handleExecute(context.Background(), buildRequest("flowgpt.execute", map[string]any{
		"input_text": "x",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleExecute(context.Background(), buildRequest("flowgpt.execute", map[string]any{
		"pipeline_id": 1,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleExecute(context.Background(), buildRequest("flowgpt.execute", map[string]any{
		"pipeline_id": -4, "input_text": "x",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	assert.Empty(t, runner.calls)
}

func TestStatusTool(t *testing.T) {
	current := "Uppercase"
	statuses := fakeStatuses{7: {
		ExecutionID:  7,
		PipelineName: "Text Cleanup Pipeline",
		CurrentNode:  &current,
		Steps:        []engine.StepStatus{{NodeName: "Text Cleaner", NodeType: "clean_text", IsComplete: true}},
	}}
	s := NewFlowServer(FlowServerDeps{Statuses: statuses})

	result, err := s.handleStatus(context.Background(), buildRequest("flowgpt.status", map[string]any{
		"execution_id": 7,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var st engine.Status
	unmarshalResult(t, result, &st)
	assert.Equal(t, int64(7), st.ExecutionID)
	assert.Equal(t, "Text Cleanup Pipeline", st.PipelineName)
	require.Len(t, st.Steps, 1)
	assert.Equal(t, "clean_text", st.Steps[0].NodeType)
}

func TestStatusToolNotFound(t *testing.T) {
	s := NewFlowServer(FlowServerDeps{Statuses: fakeStatuses{}})

	result, err := s.handleStatus(context.Background(), buildRequest("flowgpt.status", map[string]any{
		"execution_id": 99,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "execution 99 not found")
}

func TestStatusToolMissingID(t *testing.T) {
	s := NewFlowServer(FlowServerDeps{Statuses: fakeStatuses{}})
	result, err := s.handleStatus(context.Background(), buildRequest("flowgpt.status", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestListPipelinesTool(t *testing.T) {
	lister := &fakePipelines{pipelines: []*store.Pipeline{
		{ID: 1, Name: "Text Cleanup Pipeline", IsActive: true},
		{ID: 2, Name: "Old Pipeline", IsActive: false},
	}}
	s := NewFlowServer(FlowServerDeps{Pipelines: lister})

	var out struct {
		Pipelines []store.Pipeline `json:"pipelines"`
		Total     int              `json:"total"`
	}

	result, err := s.handleListPipelines(context.Background(), buildRequest("flowgpt.list_pipelines", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	unmarshalResult(t, result, &out)
	assert.Equal(t, 1, out.Total)
	assert.False(t, lister.lastAll)

	result, err = s.handleListPipelines(context.Background(), buildRequest("flowgpt.list_pipelines", map[string]any{
		"include_inactive": true,
	}))
	require.NoError(t, err)
	unmarshalResult(t, result, &out)
	assert.Equal(t, 2, out.Total)
	assert.True(t, lister.lastAll)
}

func TestDiagramTool(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "mcp.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	clean := &store.Node{Name: "Text Cleaner", NodeType: "clean_text", Config: map[string]any{}}
	mail := &store.Node{Name: "Email Sender", NodeType: "email", Config: map[string]any{}}
	require.NoError(t, st.CreateNode(ctx, clean))
	require.NoError(t, st.CreateNode(ctx, mail))
	p := &store.Pipeline{Name: "Notify", IsActive: true}
	require.NoError(t, st.CreatePipeline(ctx, p))
	require.NoError(t, st.CreateEdge(ctx, &store.Edge{PipelineID: p.ID, SourceID: clean.ID, TargetID: mail.ID}))

	s := NewFlowServer(FlowServerDeps{Diagrams: st})

	t.Run("mermaid", func(t *testing.T) {
		result, err := s.handleDiagram(ctx, buildRequest("flowgpt.diagram", map[string]any{
			"pipeline_id": float64(p.ID), "format": "mermaid",
		}))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		text := extractText(t, result)
		assert.Contains(t, text, "graph TD")
		assert.Contains(t, text, `[/"Email Sender<br/><i>email</i>"/]`)
	})

	t.Run("ascii", func(t *testing.T) {
		result, err := s.handleDiagram(ctx, buildRequest("flowgpt.diagram", map[string]any{
			"pipeline_id": float64(p.ID), "format": "ascii",
		}))
		require.NoError(t, err)
		assert.Contains(t, extractText(t, result), "=== Notify ===")
	})

	t.Run("missing target", func(t *testing.T) {
		result, err := s.handleDiagram(ctx, buildRequest("flowgpt.diagram", map[string]any{"format": "ascii"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("bad format", func(t *testing.T) {
		result, err := s.handleDiagram(ctx, buildRequest("flowgpt.diagram", map[string]any{
			"pipeline_id": float64(p.ID), "format": "image",
		}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("unknown pipeline", func(t *testing.T) {
		result, err := s.handleDiagram(ctx, buildRequest("flowgpt.diagram", map[string]any{
			"pipeline_id": 404, "format": "mermaid",
		}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

// --- Test helpers ---

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}
