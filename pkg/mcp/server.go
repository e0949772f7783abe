package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowgpt/internal/engine"
	"github.com/rendis/flowgpt/internal/store"
)

// Runner executes a pipeline. *engine.Executor satisfies it.
type Runner interface {
	Execute(ctx context.Context, pipelineID int64, input string) (*engine.Result, error)
}

// StatusReader reports execution progress. *cache.Statuses satisfies it.
type StatusReader interface {
	Get(ctx context.Context, executionID int64) (*engine.Status, error)
}

// PipelineLister lists pipelines. *catalog.Catalog satisfies it.
type PipelineLister interface {
	ListPipelines(ctx context.Context, includeInactive bool) ([]*store.Pipeline, error)
}

// FlowServerDeps holds the dependencies for creating a FlowServer.
type FlowServerDeps struct {
	Runner    Runner
	Statuses  StatusReader
	Pipelines PipelineLister
	Diagrams  DiagramSource
	Logger    *slog.Logger
}

// FlowServer wraps an MCP server with the pipeline tool handlers.
type FlowServer struct {
	runner    Runner
	statuses  StatusReader
	pipelines PipelineLister
	diagrams  DiagramSource
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewFlowServer creates a FlowServer with every tool registered.
func NewFlowServer(deps FlowServerDeps) *FlowServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &FlowServer{
		runner:    deps.Runner,
		statuses:  deps.Statuses,
		pipelines: deps.Pipelines,
		diagrams:  deps.Diagrams,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"flowgpt",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("FlowGPT runs text through stored pipelines of canned operations. Use flowgpt.list_pipelines to find a pipeline, flowgpt.execute to run text through it, flowgpt.status to inspect a run and flowgpt.diagram to draw a pipeline or run."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FlowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// SSEHandler returns the SSE transport rooted at basePath, serving
// basePath+"/sse" and basePath+"/message". baseURL is the externally
// visible origin advertised to clients.
func (s *FlowServer) SSEHandler(baseURL, basePath string) http.Handler {
	return server.NewSSEServer(s.mcpServer,
		server.WithBaseURL(baseURL),
		server.WithStaticBasePath(basePath),
	)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *FlowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: executeTool(), Handler: s.handleExecute},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: listPipelinesTool(), Handler: s.handleListPipelines},
		{Tool: diagramTool(), Handler: s.handleDiagram},
	}
}

// --- Tool definitions ---

func executeTool() mcp.Tool {
	return mcp.NewTool("flowgpt.execute",
		mcp.WithDescription("Run input text through a pipeline and return the final state"),
		mcp.WithNumber("pipeline_id", mcp.Required(), mcp.Description("ID of the pipeline to run")),
		mcp.WithString("input_text", mcp.Required(), mcp.Description("Text to process")),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("flowgpt.status",
		mcp.WithDescription("Get the progress of a pipeline execution"),
		mcp.WithNumber("execution_id", mcp.Required(), mcp.Description("ID of the execution to query")),
	)
}

func listPipelinesTool() mcp.Tool {
	return mcp.NewTool("flowgpt.list_pipelines",
		mcp.WithDescription("List pipelines ordered by name"),
		mcp.WithBoolean("include_inactive", mcp.Description("Include inactive pipelines (default: false)")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("flowgpt.diagram",
		mcp.WithDescription("Draw a pipeline, or one execution of it with step status. Returns Mermaid flowchart syntax or ASCII art"),
		mcp.WithNumber("pipeline_id", mcp.Description("Pipeline to draw")),
		mcp.WithNumber("execution_id", mcp.Description("Execution to draw with its status overlay (takes precedence over pipeline_id)")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("mermaid", "ascii"),
			mcp.Description("Output format: mermaid (flowchart syntax) or ascii (text)"),
		),
	)
}
