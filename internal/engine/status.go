package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rendis/flowgpt/internal/store"
)

// StepStatus is one row of Status.Steps.
type StepStatus struct {
	NodeName    string     `json:"node_name"`
	NodeType    string     `json:"node_type"`
	IsComplete  bool       `json:"is_complete"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Output      any        `json:"output"`
}

// Status is the progress report of one execution.
type Status struct {
	ExecutionID  int64        `json:"execution_id"`
	PipelineName string       `json:"pipeline_name"`
	IsComplete   bool         `json:"is_complete"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at"`
	CurrentNode  *string      `json:"current_node"`
	Steps        []StepStatus `json:"steps"`
}

// Status reports executionID's progress. Unknown executions surface the
// store's NOT_FOUND error.
func (e *Executor) Status(ctx context.Context, executionID int64) (*Status, error) {
	return BuildStatus(ctx, e.store, executionID)
}

// BuildStatus assembles a Status from the execution and its recorded steps.
func BuildStatus(ctx context.Context, s Store, executionID int64) (*Status, error) {
	exec, err := s.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	steps, err := s.ListSteps(ctx, executionID)
	if err != nil {
		return nil, err
	}

	return StatusFromExecution(exec, steps), nil
}

// DecodeOutput parses a stored state document. Empty data decodes to an
// empty object and unparsable data to {"error": "Invalid output data"}.
func DecodeOutput(data string) any {
	if data == "" {
		return map[string]any{}
	}
	var out any
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return map[string]any{"error": "Invalid output data"}
	}
	return out
}

// StatusFromExecution builds a Status from rows the caller already loaded.
func StatusFromExecution(exec *store.Execution, steps []*store.ExecutionStep) *Status {
	st := &Status{
		ExecutionID:  exec.ID,
		PipelineName: exec.PipelineName,
		IsComplete:   exec.IsComplete,
		StartedAt:    exec.StartedAt,
		CompletedAt:  exec.CompletedAt,
		Steps:        make([]StepStatus, 0, len(steps)),
	}
	if exec.CurrentNodeID != nil {
		name := exec.CurrentNodeName
		st.CurrentNode = &name
	}
	for _, step := range steps {
		st.Steps = append(st.Steps, StepStatus{
			NodeName:    step.NodeName,
			NodeType:    step.NodeType,
			IsComplete:  step.IsComplete,
			StartedAt:   step.StartedAt,
			CompletedAt: step.CompletedAt,
			Output:      DecodeOutput(step.OutputData),
		})
	}
	return st
}
