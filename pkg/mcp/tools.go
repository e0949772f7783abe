package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/flowgpt/internal/diagram"
	"github.com/rendis/flowgpt/pkg/schema"
)

// DiagramSource is the read access the diagram tool needs. store.Store
// satisfies it.
type DiagramSource = diagram.Source

// handleExecute runs a pipeline. A failed run still reports its execution ID.
func (s *FlowServer) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pipelineID, err := requireID(req, "pipeline_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	input, err := req.RequireString("input_text")
	if err != nil {
		return mcp.NewToolResultError("input_text is required"), nil
	}

	res, runErr := s.runner.Execute(ctx, pipelineID, input)
	if runErr != nil {
		msg := fmt.Sprintf("execution failed: %s", schema.MessageOf(runErr))
		if res != nil {
			msg = fmt.Sprintf("execution %d failed: %s", res.ExecutionID, schema.MessageOf(runErr))
		}
		s.logger.WarnContext(ctx, "mcp execute failed", "pipeline_id", pipelineID, "error", runErr)
		return mcp.NewToolResultError(msg), nil
	}

	return marshalResult(map[string]any{
		"success":      true,
		"execution_id": res.ExecutionID,
		"result":       res.State,
	})
}

// handleStatus returns the progress of an execution.
func (s *FlowServer) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	executionID, err := requireID(req, "execution_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status, statusErr := s.statuses.Get(ctx, executionID)
	if statusErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status query failed: %s", schema.MessageOf(statusErr))), nil
	}
	return marshalResult(status)
}

// handleListPipelines lists pipelines, active ones only unless asked otherwise.
func (s *FlowServer) handleListPipelines(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pipelines, err := s.pipelines.ListPipelines(ctx, req.GetBool("include_inactive", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list pipelines failed: %s", schema.MessageOf(err))), nil
	}
	return marshalResult(map[string]any{
		"pipelines": pipelines,
		"total":     len(pipelines),
	})
}

// handleDiagram draws a pipeline or an execution in the requested format.
func (s *FlowServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format != "ascii" && format != "mermaid" {
		return mcp.NewToolResultError("format must be ascii or mermaid"), nil
	}

	pipelineID := int64(req.GetInt("pipeline_id", 0))
	executionID := int64(req.GetInt("execution_id", 0))
	if pipelineID <= 0 && executionID <= 0 {
		return mcp.NewToolResultError("at least one of pipeline_id or execution_id is required"), nil
	}

	model, loadErr := diagram.Load(ctx, s.diagrams, pipelineID, executionID)
	if loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram failed: %s", schema.MessageOf(loadErr))), nil
	}

	if format == "ascii" {
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	}
	return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
}

// requireID reads a positive integer argument.
func requireID(req mcp.CallToolRequest, key string) (int64, error) {
	id, err := req.RequireInt(key)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s is required and must be a positive integer", key)
	}
	return int64(id), nil
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
