package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowgpt/internal/ops"
	"github.com/rendis/flowgpt/internal/store"
	"github.com/rendis/flowgpt/pkg/schema"
)

func seedRecorderExecution(t *testing.T, m *mockStore) (*store.Node, *store.Execution) {
	t.Helper()
	n := m.addNode("Upper", "uppercase", nil)
	p := m.addPipeline("p")
	exec := &store.Execution{PipelineID: p.ID, InputData: "x", StartedAt: testEpoch}
	require.NoError(t, m.CreateExecution(context.Background(), exec))
	return n, exec
}

func TestRecorder_UpdateExecutionState(t *testing.T) {
	m := newMockStore()
	n, exec := seedRecorderExecution(t, m)
	r := NewRecorder(m)
	ctx := context.Background()
	state := ops.NewState("x", exec.PipelineID, exec.ID, testEpoch)

	require.NoError(t, r.UpdateExecutionState(ctx, exec.ID, state, n.ID, false, time.Time{}))
	got, err := m.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentNodeID)
	assert.Equal(t, n.ID, *got.CurrentNodeID)
	assert.False(t, got.IsComplete)
	assert.Nil(t, got.OutputData)

	done := testEpoch.Add(time.Minute)
	require.NoError(t, r.UpdateExecutionState(ctx, exec.ID, state, 0, true, done))
	got, err = m.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.True(t, got.IsComplete)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, done, *got.CompletedAt)
	require.NotNil(t, got.OutputData)
	assert.JSONEq(t, mustJSON(t, state), *got.OutputData)
	assert.Equal(t, n.ID, *got.CurrentNodeID)
}

func TestRecorder_UpdateExecutionStateErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("set current node", func(t *testing.T) {
		m := newMockStore()
		n, exec := seedRecorderExecution(t, m)
		m.failSetCurrent = errDisk

		err := NewRecorder(m).UpdateExecutionState(ctx, exec.ID, ops.State{}, n.ID, true, testEpoch)
		require.Error(t, err)
		assert.Equal(t, schema.ErrCodeRecording, schema.CodeOf(err))
		assert.ErrorIs(t, err, errDisk)
		assert.Contains(t, schema.MessageOf(err), "disk I/O error")
	})

	t.Run("complete", func(t *testing.T) {
		m := newMockStore()
		_, exec := seedRecorderExecution(t, m)
		m.failComplete = errDisk

		err := NewRecorder(m).UpdateExecutionState(ctx, exec.ID, ops.State{}, 0, true, testEpoch)
		assert.Equal(t, schema.ErrCodeRecording, schema.CodeOf(err))
		assert.Contains(t, schema.MessageOf(err), "complete execution")
	})

	t.Run("unknown execution", func(t *testing.T) {
		m := newMockStore()
		err := NewRecorder(m).UpdateExecutionState(ctx, 999, ops.State{}, 0, true, testEpoch)
		assert.Equal(t, schema.ErrCodeRecording, schema.CodeOf(err))
		assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
	})
}

func TestRecorder_RecordStep(t *testing.T) {
	m := newMockStore()
	n, exec := seedRecorderExecution(t, m)
	r := NewRecorder(m)
	ctx := context.Background()

	in := ops.NewState("x", exec.PipelineID, exec.ID, testEpoch)
	out := in
	out.Text = "X"
	rec := StepRecord{
		ExecutionID: exec.ID,
		NodeID:      n.ID,
		Sequence:    0,
		Input:       in,
		Output:      out,
		StartedAt:   testEpoch,
		CompletedAt: testEpoch.Add(time.Second),
	}
	require.NoError(t, r.RecordStep(ctx, rec))

	rec.Output.Text = "Y"
	require.NoError(t, r.RecordStep(ctx, rec))

	steps, err := m.ListSteps(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.True(t, steps[0].IsComplete)
	assert.Equal(t, "Upper", steps[0].NodeName)
	assert.JSONEq(t, mustJSON(t, in), steps[0].InputData)
	assert.Contains(t, steps[0].OutputData, `"text":"Y"`)
	require.NotNil(t, steps[0].CompletedAt)
	assert.Equal(t, testEpoch.Add(time.Second), *steps[0].CompletedAt)
}

func TestRecorder_RecordStepTerminal(t *testing.T) {
	m := newMockStore()
	m.failUpsert = errDisk

	require.NoError(t, NewRecorder(m).RecordStep(context.Background(), StepRecord{Terminal: true}))
	assert.Zero(t, m.writeCount())
}

func TestRecorder_RecordStepError(t *testing.T) {
	m := newMockStore()
	_, exec := seedRecorderExecution(t, m)

	err := NewRecorder(m).RecordStep(context.Background(), StepRecord{ExecutionID: exec.ID, NodeID: 404, Sequence: 3})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeRecording, schema.CodeOf(err))
	assert.Contains(t, schema.MessageOf(err), "record step 3 of execution")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func mustJSON(t *testing.T, s ops.State) string {
	t.Helper()
	out, err := s.JSON()
	require.NoError(t, err)
	return out
}
