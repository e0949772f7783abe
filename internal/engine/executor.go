package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rendis/flowgpt/internal/logging"
	"github.com/rendis/flowgpt/internal/metrics"
	"github.com/rendis/flowgpt/internal/ops"
	"github.com/rendis/flowgpt/internal/store"
	"github.com/rendis/flowgpt/internal/streaming"
	"github.com/rendis/flowgpt/pkg/schema"
)

const tracerName = "github.com/rendis/flowgpt/internal/engine"

// Result is the outcome of one pipeline run.
type Result struct {
	ExecutionID int64     `json:"execution_id"`
	State       ops.State `json:"result"`
}

// ExecutorConfig holds optional executor dependencies. Zero values fall back
// to no timeout, the wall clock, slog.Default and no live events.
type ExecutorConfig struct {
	Timeout time.Duration
	Clock   func() time.Time
	Logger  *slog.Logger
	Hub     streaming.EventHub
}

// applyFunc runs one operation. Tests swap it to simulate failing nodes.
type applyFunc func(op ops.Operation, in ops.State, now time.Time) (ops.State, error)

// Executor runs pipelines synchronously, one node at a time, recording
// every step as it completes. It keeps no per-run state, so concurrent
// Execute calls are independent.
type Executor struct {
	store    Store
	builder  *GraphBuilder
	recorder *Recorder
	hub      streaming.EventHub
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	timeout  time.Duration
	apply    applyFunc
}

// NewExecutor builds an executor over s. Zero-valued cfg fields use the
// defaults described on ExecutorConfig.
func NewExecutor(s Store, cfg ExecutorConfig) *Executor {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Executor{
		store:    s,
		builder:  NewGraphBuilder(s),
		recorder: NewRecorder(s),
		hub:      cfg.Hub,
		logger:   cfg.Logger,
		tracer:   otel.Tracer(tracerName),
		now:      cfg.Clock,
		timeout:  cfg.Timeout,
		apply:    ops.Apply,
	}
}

// Builder exposes the graph builder so callers can preview a plan.
func (e *Executor) Builder() *GraphBuilder { return e.builder }

// Execute builds pipelineID's plan and runs input through it.
//
// Build failures return a CONFIGURATION_ERROR and create no execution. Once
// the execution row exists, a failing node or a cancelled context stops the
// walk: the state reached so far, with its error field set, is stored as the
// final output, the execution is marked complete, and the error is returned
// together with a Result carrying the execution ID.
func (e *Executor) Execute(ctx context.Context, pipelineID int64, input string) (*Result, error) {
	ctx = logging.WithPipelineID(ctx, pipelineID)
	ctx, span := e.tracer.Start(ctx, "flowgpt.execute",
		trace.WithAttributes(attribute.Int64("flowgpt.pipeline_id", pipelineID)))
	defer span.End()

	startedAt := e.now()

	plan, err := e.builder.Build(ctx, pipelineID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, schema.MessageOf(err))
		metrics.RecordExecution(metrics.OutcomeConfiguration, e.now().Sub(startedAt).Seconds())
		e.logger.WarnContext(ctx, "pipeline cannot be built", "error", err)
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	exec := &store.Execution{PipelineID: pipelineID, InputData: input, StartedAt: startedAt}
	if err := e.store.CreateExecution(ctx, exec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, schema.NewErrorf(schema.ErrCodeStore,
			"create execution for pipeline %d: %s", pipelineID, schema.MessageOf(err)).WithCause(err)
	}
	ctx = logging.WithExecutionID(ctx, exec.ID)
	span.SetAttributes(attribute.Int64("flowgpt.execution_id", exec.ID))

	state := ops.NewState(input, pipelineID, exec.ID, startedAt)
	for seq, step := range plan.Steps {
		if step.Terminal {
			e.noteRecording(ctx, "record_step", e.recorder.RecordStep(ctx, StepRecord{Terminal: true}))
			break
		}
		if err := ctx.Err(); err != nil {
			cerr := schema.NewErrorf(schema.ErrCodeCancelled,
				"execution %d cancelled before node %s: %s", exec.ID, step.Node.Name, err.Error()).WithCause(err)
			return e.fail(ctx, span, exec, startedAt, state, cerr)
		}

		node := step.Node
		nctx := logging.WithNodeID(ctx, node.ID)
		state = state.WithConfig(node.Config)
		e.noteRecording(nctx, "update_execution_state",
			e.recorder.UpdateExecutionState(nctx, exec.ID, state, node.ID, false, time.Time{}))

		stepStart := e.now()
		out, err := e.runStep(nctx, step, seq, state)
		if err != nil {
			return e.fail(nctx, span, exec, startedAt, state, err)
		}
		stepEnd := e.now()
		metrics.RecordStep(node.NodeType, stepEnd.Sub(stepStart).Seconds())

		// The node's work is done; its step is recorded even if ctx was
		// cancelled while it ran. The next iteration observes the cancellation.
		rctx := context.WithoutCancel(nctx)
		e.noteRecording(rctx, "record_step", e.recorder.RecordStep(rctx, StepRecord{
			ExecutionID: exec.ID,
			NodeID:      node.ID,
			Sequence:    seq,
			Input:       state,
			Output:      out,
			StartedAt:   stepStart,
			CompletedAt: stepEnd,
		}))
		e.publish(rctx, streaming.StreamEvent{
			ExecutionID: exec.ID,
			PipelineID:  pipelineID,
			NodeID:      node.ID,
			NodeName:    node.Name,
			Sequence:    seq,
			EventType:   streaming.EventStepCompleted,
			Payload:     out,
			Time:        stepEnd,
		})
		e.logger.DebugContext(nctx, "node completed", "node_type", node.NodeType, "sequence", seq)

		state = out
	}

	// Every node ran, so the run is closed out as a success even when ctx
	// ended after the last node started.
	wctx := context.WithoutCancel(ctx)
	completedAt := e.now()
	e.noteRecording(wctx, "update_execution_state",
		e.recorder.UpdateExecutionState(wctx, exec.ID, state, 0, true, completedAt))
	e.publish(wctx, streaming.StreamEvent{
		ExecutionID: exec.ID,
		PipelineID:  pipelineID,
		Sequence:    len(plan.Nodes()),
		EventType:   streaming.EventExecutionCompleted,
		Payload:     state,
		Time:        completedAt,
	})

	duration := completedAt.Sub(startedAt)
	metrics.RecordExecution(metrics.OutcomeSuccess, duration.Seconds())
	span.SetStatus(codes.Ok, "")
	e.logger.InfoContext(ctx, "pipeline executed",
		"pipeline", plan.PipelineName, "steps", len(plan.Nodes()), "duration", duration)

	return &Result{ExecutionID: exec.ID, State: state}, nil
}

// runStep applies one node inside its own span. A panicking operation is
// reported as an execution error like any other failure.
func (e *Executor) runStep(ctx context.Context, step PlanStep, seq int, in ops.State) (out ops.State, err error) {
	_, span := e.tracer.Start(ctx, "flowgpt.step", trace.WithAttributes(
		attribute.Int64("flowgpt.node_id", step.Node.ID),
		attribute.String("flowgpt.node_type", step.Node.NodeType),
		attribute.Int("flowgpt.sequence", seq),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = schema.NewErrorf(schema.ErrCodeExecution,
				"Error executing node %s: %s", step.Node.Name, schema.MessageOf(err)).
				WithNode(step.Node.ID).WithCause(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, schema.MessageOf(err))
		}
	}()

	return e.apply(step.Operation, in, e.now())
}

// fail stores state with the error attached as the execution's final output
// and marks it complete. Writes use a context detached from cancellation so a
// timed-out run is still closed out.
func (e *Executor) fail(ctx context.Context, span trace.Span, exec *store.Execution, startedAt time.Time, state ops.State, cause error) (*Result, error) {
	failed := state.WithError(schema.MessageOf(cause))
	wctx := context.WithoutCancel(ctx)
	completedAt := e.now()

	e.noteRecording(wctx, "update_execution_state",
		e.recorder.UpdateExecutionState(wctx, exec.ID, failed, 0, true, completedAt))
	e.publish(wctx, streaming.StreamEvent{
		ExecutionID: exec.ID,
		PipelineID:  exec.PipelineID,
		NodeID:      logging.NodeID(ctx),
		EventType:   streaming.EventExecutionFailed,
		Payload:     map[string]any{"error": failed.Error},
		Time:        completedAt,
	})

	outcome := metrics.OutcomeFailed
	if schema.IsCode(cause, schema.ErrCodeCancelled) {
		outcome = metrics.OutcomeCancelled
	}
	metrics.RecordExecution(outcome, completedAt.Sub(startedAt).Seconds())
	span.RecordError(cause)
	span.SetStatus(codes.Error, schema.MessageOf(cause))
	e.logger.ErrorContext(ctx, "pipeline execution failed", "error", cause)

	return &Result{ExecutionID: exec.ID, State: failed}, cause
}

func (e *Executor) noteRecording(ctx context.Context, operation string, err error) {
	if err == nil {
		return
	}
	metrics.RecordRecordingError(operation)
	e.logger.WarnContext(ctx, "execution recording failed", "operation", operation, "error", err)
}

func (e *Executor) publish(ctx context.Context, event streaming.StreamEvent) {
	if e.hub == nil {
		return
	}
	if err := e.hub.Publish(ctx, event); err != nil {
		e.logger.DebugContext(ctx, "progress event dropped", "event", event.EventType, "error", err)
	}
}
