package streaming

import (
	"context"
	"time"
)

// Event types published while an execution runs.
const (
	EventStepCompleted      = "step_completed"
	EventExecutionCompleted = "execution_completed"
	EventExecutionFailed    = "execution_failed"
)

// StreamEvent is a live progress event for one execution.
type StreamEvent struct {
	ExecutionID int64     `json:"execution_id"`
	PipelineID  int64     `json:"pipeline_id"`
	NodeID      int64     `json:"node_id,omitempty"`
	NodeName    string    `json:"node_name,omitempty"`
	Sequence    int       `json:"sequence"`
	EventType   string    `json:"event_type"`
	Payload     any       `json:"payload,omitempty"`
	Time        time.Time `json:"time"`
}

// Terminal reports whether no further events follow e for its execution.
func (e StreamEvent) Terminal() bool {
	return e.EventType == EventExecutionCompleted || e.EventType == EventExecutionFailed
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	ExecutionID int64    `json:"execution_id,omitempty"`
	EventTypes  []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for live execution progress.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
