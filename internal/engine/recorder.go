package engine

import (
	"context"
	"time"

	"github.com/rendis/flowgpt/internal/ops"
	"github.com/rendis/flowgpt/internal/store"
	"github.com/rendis/flowgpt/pkg/schema"
)

// StepRecord is what the engine captured around one node invocation.
type StepRecord struct {
	ExecutionID int64
	NodeID      int64
	Sequence    int
	Input       ops.State
	Output      ops.State
	StartedAt   time.Time
	CompletedAt time.Time
	Terminal    bool
}

// Recorder persists execution progress. Failures come back as
// RECORDING_ERROR values for the caller to log; they never abort a run.
type Recorder struct {
	store Store
}

// NewRecorder returns a Recorder writing through s.
func NewRecorder(s Store) *Recorder {
	return &Recorder{store: s}
}

// UpdateExecutionState points the execution at nodeID when it is non-zero and,
// if complete is set, stores state as the final output stamped at completedAt.
func (r *Recorder) UpdateExecutionState(ctx context.Context, executionID int64, state ops.State, nodeID int64, complete bool, completedAt time.Time) error {
	if nodeID != 0 {
		if err := r.store.SetCurrentNode(ctx, executionID, nodeID); err != nil {
			return recordingError(err, "set current node %d on execution %d", nodeID, executionID)
		}
	}
	if !complete {
		return nil
	}

	output, err := state.JSON()
	if err != nil {
		return recordingError(err, "serialize final state of execution %d", executionID)
	}
	if err := r.store.CompleteExecution(ctx, executionID, output, completedAt); err != nil {
		return recordingError(err, "complete execution %d", executionID)
	}
	return nil
}

// RecordStep writes one completed step. The terminal marker records nothing.
func (r *Recorder) RecordStep(ctx context.Context, rec StepRecord) error {
	if rec.Terminal {
		return nil
	}

	input, err := rec.Input.JSON()
	if err != nil {
		return recordingError(err, "serialize input of node %d", rec.NodeID)
	}
	output, err := rec.Output.JSON()
	if err != nil {
		return recordingError(err, "serialize output of node %d", rec.NodeID)
	}

	completedAt := rec.CompletedAt
	step := &store.ExecutionStep{
		ExecutionID: rec.ExecutionID,
		NodeID:      rec.NodeID,
		Sequence:    rec.Sequence,
		InputData:   input,
		OutputData:  output,
		IsComplete:  true,
		StartedAt:   rec.StartedAt,
		CompletedAt: &completedAt,
	}
	if err := r.store.UpsertStep(ctx, step); err != nil {
		return recordingError(err, "record step %d of execution %d", rec.Sequence, rec.ExecutionID)
	}
	return nil
}

func recordingError(cause error, format string, args ...any) *schema.FlowError {
	fe := schema.NewErrorf(schema.ErrCodeRecording, format, args...)
	fe.Message += ": " + schema.MessageOf(cause)
	return fe.WithCause(cause)
}
