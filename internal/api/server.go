package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/rendis/flowgpt/internal/cache"
	"github.com/rendis/flowgpt/internal/catalog"
	"github.com/rendis/flowgpt/internal/engine"
	"github.com/rendis/flowgpt/internal/expressions"
	"github.com/rendis/flowgpt/internal/metrics"
	"github.com/rendis/flowgpt/internal/store"
	"github.com/rendis/flowgpt/internal/streaming"
)

const serviceName = "flowgpt"

// Deps holds the dependencies for the API server. Statuses, Hub and MCP are
// optional.
type Deps struct {
	Store    store.Store
	Catalog  *catalog.Catalog
	Executor *engine.Executor
	Statuses *cache.Statuses
	Hub      streaming.EventHub
	MCP      http.Handler
	Logger   *slog.Logger
}

// Server is the JSON HTTP API.
type Server struct {
	deps Deps
	echo *echo.Echo
	cel  *expressions.CELEngine
	jq   *expressions.GoJQEngine
}

// NewServer wires middleware and routes.
func NewServer(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Statuses == nil {
		deps.Statuses = cache.NewStatuses(deps.Store, nil, deps.Logger)
	}
	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, fmt.Errorf("history filter engine: %w", err)
	}

	s := &Server{
		deps: deps,
		echo: echo.New(),
		cel:  celEngine,
		jq:   expressions.NewGoJQEngine(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	s.echo.Use(otelecho.Middleware(serviceName))
	s.echo.Use(s.requestLogger())
	s.echo.Use(recordMetrics)

	s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")

	// Execution.
	api.POST("/execute", s.handleExecute)
	api.GET("/executions", s.handleListExecutions)
	api.GET("/executions/:id", s.handleExecutionDetail)
	api.GET("/executions/:id/status", s.handleStatus)
	api.GET("/execution/:id/status", s.handleStatus)
	api.GET("/executions/:id/events", s.handleEvents)

	// Pipelines.
	api.GET("/pipelines", s.handleListPipelines)
	api.POST("/pipelines", s.handleCreatePipeline)
	api.GET("/pipelines/:id", s.handlePipelineDetail)
	api.PATCH("/pipelines/:id", s.handleUpdatePipeline)
	api.DELETE("/pipelines/:id", s.handleDeletePipeline)
	api.POST("/pipelines/:id/edges", s.handleAddEdge)
	api.DELETE("/pipelines/:id/edges/:edge_id", s.handleRemoveEdge)

	// Nodes.
	api.GET("/node-types", s.handleNodeTypes)
	api.GET("/nodes", s.handleListNodes)
	api.POST("/nodes", s.handleCreateNode)
	api.GET("/nodes/:id", s.handleGetNode)
	api.PUT("/nodes/:id", s.handleUpdateNode)
	api.DELETE("/nodes/:id", s.handleDeleteNode)

	// Contact inbox.
	api.POST("/contact", s.handleSubmitContact)
	api.GET("/contacts", s.handleListContacts)
	api.POST("/contacts/:id/read", s.handleMarkContactRead)

	if s.deps.MCP != nil {
		e.Any("/mcp/*", echo.WrapHandler(s.deps.MCP))
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// requestLogger feeds echo's request logger into slog.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			ctx := c.Request().Context()
			if v.Error != nil {
				s.deps.Logger.WarnContext(ctx, "request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			s.deps.Logger.DebugContext(ctx, "request", attrs...)
			return nil
		},
	})
}

// recordMetrics observes every request under its route pattern.
func recordMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		status := c.Response().Status
		if err != nil {
			status = statusFor(err)
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request().Method, route, status, time.Since(start).Seconds())
		return err
	}
}
