package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rendis/flowgpt/internal/diagram"
	"github.com/rendis/flowgpt/internal/engine"
	"github.com/rendis/flowgpt/internal/store"
	"github.com/rendis/flowgpt/pkg/schema"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type executeRequest struct {
	PipelineID int64  `json:"pipeline_id" form:"pipeline_id"`
	InputText  string `json:"input_text" form:"input_text"`
}

type executeResponse struct {
	Success     bool  `json:"success"`
	ExecutionID int64 `json:"execution_id"`
	Result      any   `json:"result"`
}

// handleExecute runs a pipeline synchronously and returns its final state.
func (s *Server) handleExecute(c echo.Context) error {
	var req executeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.PipelineID == 0 {
		return schema.NewError(schema.ErrCodeValidation, "pipeline_id is required")
	}

	res, err := s.deps.Executor.Execute(c.Request().Context(), req.PipelineID, req.InputText)
	if err != nil {
		body := errorResponse(err)
		if res != nil {
			if body.Details == nil {
				body.Details = map[string]any{}
			}
			body.Details["execution_id"] = res.ExecutionID
		}
		return c.JSON(statusFor(err), body)
	}
	return c.JSON(http.StatusOK, executeResponse{
		Success:     true,
		ExecutionID: res.ExecutionID,
		Result:      res.State,
	})
}

// handleStatus reports an execution's progress, optionally projected
// through a jq expression.
func (s *Server) handleStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	st, err := s.deps.Statuses.Get(ctx, id)
	if err != nil {
		return err
	}
	if q := c.QueryParam("jq"); q != "" {
		out, err := s.jq.Project(ctx, q, st)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, out)
	}
	return c.JSON(http.StatusOK, st)
}

// executionSummary is one row of the execution history.
type executionSummary struct {
	ID              int64      `json:"id"`
	PipelineID      int64      `json:"pipeline_id"`
	PipelineName    string     `json:"pipeline_name"`
	IsComplete      bool       `json:"is_complete"`
	HasError        bool       `json:"has_error"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	DurationSeconds *float64   `json:"duration_seconds"`
}

func summarize(exec *store.Execution) executionSummary {
	sum := executionSummary{
		ID:           exec.ID,
		PipelineID:   exec.PipelineID,
		PipelineName: exec.PipelineName,
		IsComplete:   exec.IsComplete,
		StartedAt:    exec.StartedAt,
		CompletedAt:  exec.CompletedAt,
	}
	if exec.CompletedAt != nil {
		d := exec.CompletedAt.Sub(exec.StartedAt).Seconds()
		sum.DurationSeconds = &d
	}
	if exec.OutputData != nil {
		if out, ok := engine.DecodeOutput(*exec.OutputData).(map[string]any); ok {
			sum.Error, _ = out["error"].(string)
			sum.HasError = sum.Error != ""
		}
	}
	return sum
}

// handleListExecutions returns the newest executions. With ?filter, rows
// are matched against a CEL expression over "execution" (the summary row)
// and "steps" (the node types the run visited).
func (s *Server) handleListExecutions(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := queryInt(c, "limit", defaultHistoryLimit)
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	filter := store.ExecutionFilter{Limit: limit}
	if raw := c.QueryParam("pipeline_id"); raw != "" {
		pid, err := queryInt(c, "pipeline_id", 0)
		if err != nil {
			return err
		}
		filter.PipelineID = int64(pid)
	}

	expr := c.QueryParam("filter")
	if expr != "" {
		if err := s.cel.Compile(expr); err != nil {
			return err
		}
		// Filtering happens after the query, so scan the whole window.
		filter.Limit = maxHistoryLimit
	}

	execs, err := s.deps.Store.ListExecutions(ctx, filter)
	if err != nil {
		return err
	}

	rows := make([]executionSummary, 0, len(execs))
	for _, exec := range execs {
		if len(rows) == limit {
			break
		}
		sum := summarize(exec)
		if expr != "" {
			ok, err := s.matchExecution(c, expr, sum)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		rows = append(rows, sum)
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) matchExecution(c echo.Context, expr string, sum executionSummary) (bool, error) {
	ctx := c.Request().Context()
	steps, err := s.deps.Store.ListSteps(ctx, sum.ID)
	if err != nil {
		return false, err
	}
	types := make([]any, len(steps))
	for i, st := range steps {
		types[i] = st.NodeType
	}
	var duration float64
	if sum.DurationSeconds != nil {
		duration = *sum.DurationSeconds
	}
	return s.cel.Match(ctx, expr, map[string]any{
		"execution": map[string]any{
			"id":               sum.ID,
			"pipeline_id":      sum.PipelineID,
			"pipeline_name":    sum.PipelineName,
			"is_complete":      sum.IsComplete,
			"has_error":        sum.HasError,
			"duration_seconds": duration,
		},
		"steps": types,
	})
}

type executionDetail struct {
	executionSummary
	InputText   string              `json:"input_text"`
	Output      any                 `json:"output"`
	CurrentNode *string             `json:"current_node"`
	Steps       []engine.StepStatus `json:"steps"`
	Diagram     string              `json:"diagram"`
}

// handleExecutionDetail returns one execution with its parsed output, steps
// and a mermaid diagram of the run.
func (s *Server) handleExecutionDetail(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	exec, err := s.deps.Store.GetExecution(ctx, id)
	if err != nil {
		return err
	}
	steps, err := s.deps.Store.ListSteps(ctx, id)
	if err != nil {
		return err
	}
	model, err := diagram.Load(ctx, s.deps.Store, exec.PipelineID, id)
	if err != nil {
		return err
	}

	st := engine.StatusFromExecution(exec, steps)
	detail := executionDetail{
		executionSummary: summarize(exec),
		InputText:        exec.InputData,
		CurrentNode:      st.CurrentNode,
		Steps:            st.Steps,
		Diagram:          diagram.RenderMermaid(model),
	}
	if exec.OutputData != nil {
		detail.Output = engine.DecodeOutput(*exec.OutputData)
	}
	return c.JSON(http.StatusOK, detail)
}
