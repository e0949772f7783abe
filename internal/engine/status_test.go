package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowgpt/internal/store"
	"github.com/rendis/flowgpt/pkg/schema"
)

func TestStatus_AfterExecution(t *testing.T) {
	m := newMockStore()
	a := m.addNode("Text Cleaner", "clean_text", nil)
	b := m.addNode("Uppercase", "uppercase", nil)
	p := m.chain("Shout", a, b)
	ex, _ := newTestExecutor(m)

	res, err := ex.Execute(context.Background(), p.ID, "hello")
	require.NoError(t, err)

	st, err := ex.Status(context.Background(), res.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, res.ExecutionID, st.ExecutionID)
	assert.Equal(t, "Shout", st.PipelineName)
	assert.True(t, st.IsComplete)
	require.NotNil(t, st.CompletedAt)
	require.NotNil(t, st.CurrentNode)
	assert.Equal(t, "Uppercase", *st.CurrentNode)

	require.Len(t, st.Steps, 2)
	assert.Equal(t, "Text Cleaner", st.Steps[0].NodeName)
	assert.Equal(t, "clean_text", st.Steps[0].NodeType)
	assert.Equal(t, "uppercase", st.Steps[1].NodeType)
	out, ok := st.Steps[1].Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "HELLO", out["text"])
}

func TestStatus_UnknownExecution(t *testing.T) {
	ex, _ := newTestExecutor(newMockStore())
	_, err := ex.Status(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestStatus_InProgress(t *testing.T) {
	m := newMockStore()
	p := m.addPipeline("Pending")
	exec := &store.Execution{PipelineID: p.ID, InputData: "x", StartedAt: testEpoch}
	require.NoError(t, m.CreateExecution(context.Background(), exec))

	st, err := BuildStatus(context.Background(), m, exec.ID)
	require.NoError(t, err)
	assert.False(t, st.IsComplete)
	assert.Nil(t, st.CompletedAt)
	assert.Nil(t, st.CurrentNode)
	assert.NotNil(t, st.Steps)
	assert.Empty(t, st.Steps)

	b, err := json.Marshal(st)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Contains(t, doc, "completed_at")
	assert.Nil(t, doc["completed_at"])
	assert.Nil(t, doc["current_node"])
	assert.Equal(t, []any{}, doc["steps"])
}

func TestDecodeOutput(t *testing.T) {
	tests := []struct {
		name string
		data string
		want any
	}{
		{"empty", "", map[string]any{}},
		{"object", `{"text":"hi"}`, map[string]any{"text": "hi"}},
		{"invalid", `{"text":`, map[string]any{"error": "Invalid output data"}},
		{"scalar", `3`, float64(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeOutput(tt.data))
		})
	}
}

func TestStatusFromExecution(t *testing.T) {
	done := testEpoch.Add(time.Minute)
	nodeID := int64(3)
	exec := &store.Execution{
		ID:              9,
		PipelineName:    "p",
		IsComplete:      true,
		StartedAt:       testEpoch,
		CompletedAt:     &done,
		CurrentNodeID:   &nodeID,
		CurrentNodeName: "Mail",
	}
	steps := []*store.ExecutionStep{
		{NodeName: "Mail", NodeType: "email", IsComplete: true, StartedAt: testEpoch, CompletedAt: &done, OutputData: "garbage"},
	}

	st := StatusFromExecution(exec, steps)
	assert.Equal(t, int64(9), st.ExecutionID)
	assert.Equal(t, "Mail", *st.CurrentNode)
	require.Len(t, st.Steps, 1)
	assert.Equal(t, map[string]any{"error": "Invalid output data"}, st.Steps[0].Output)
	assert.Equal(t, &done, st.Steps[0].CompletedAt)
}
