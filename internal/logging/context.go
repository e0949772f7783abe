package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	pipelineIDKey ctxKey = iota
	executionIDKey
	nodeIDKey
)

// WithPipelineID returns a context with the pipeline ID set.
func WithPipelineID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, pipelineIDKey, id)
}

// WithExecutionID returns a context with the execution ID set.
func WithExecutionID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, executionIDKey, id)
}

// WithNodeID returns a context with the ID of the node being run.
func WithNodeID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, nodeIDKey, id)
}

// PipelineID extracts the pipeline ID from the context, or 0 if absent.
func PipelineID(ctx context.Context) int64 {
	v, _ := ctx.Value(pipelineIDKey).(int64)
	return v
}

// ExecutionID extracts the execution ID from the context, or 0 if absent.
func ExecutionID(ctx context.Context) int64 {
	v, _ := ctx.Value(executionIDKey).(int64)
	return v
}

// NodeID extracts the node ID from the context, or 0 if absent.
func NodeID(ctx context.Context) int64 {
	v, _ := ctx.Value(nodeIDKey).(int64)
	return v
}

// correlationAttrs returns the non-zero correlation IDs carried by ctx.
func correlationAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if v := PipelineID(ctx); v != 0 {
		attrs = append(attrs, slog.Int64("pipeline_id", v))
	}
	if v := ExecutionID(ctx); v != 0 {
		attrs = append(attrs, slog.Int64("execution_id", v))
	}
	if v := NodeID(ctx); v != 0 {
		attrs = append(attrs, slog.Int64("node_id", v))
	}
	return attrs
}

// LogWith returns a logger enriched with correlation IDs from the context.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	for _, a := range correlationAttrs(ctx) {
		logger = logger.With(a)
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, injecting correlation IDs from
// the context into every record. Use with slog.New(NewCorrelationHandler(inner))
// so logger.InfoContext(ctx, ...) carries the IDs automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps inner so every record carries the IDs found on
// its context.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(correlationAttrs(ctx)...)
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
