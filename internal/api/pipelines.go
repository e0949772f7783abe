package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rendis/flowgpt/internal/catalog"
	"github.com/rendis/flowgpt/internal/diagram"
	"github.com/rendis/flowgpt/internal/store"
)

func (s *Server) handleListPipelines(c echo.Context) error {
	pipelines, err := s.deps.Catalog.ListPipelines(c.Request().Context(), queryBool(c, "all"))
	if err != nil {
		return err
	}
	if pipelines == nil {
		pipelines = []*store.Pipeline{}
	}
	return c.JSON(http.StatusOK, pipelines)
}

type createPipelineRequest struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
	IsActive    *bool  `json:"is_active"`
}

func (s *Server) handleCreatePipeline(c echo.Context) error {
	var req createPipelineRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p := &store.Pipeline{Name: req.Name, Description: req.Description, IsActive: true}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := s.deps.Catalog.CreatePipeline(c.Request().Context(), p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

type pipelineDetail struct {
	*catalog.PipelineDetail
	Diagram string `json:"diagram"`
}

// handlePipelineDetail returns a pipeline, its edges in order and a mermaid
// diagram of the chain.
func (s *Server) handlePipelineDetail(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	detail, err := s.deps.Catalog.DescribePipeline(ctx, id)
	if err != nil {
		return err
	}
	nodes, err := s.deps.Catalog.ListNodes(ctx)
	if err != nil {
		return err
	}
	types := make(map[int64]string, len(nodes))
	for _, n := range nodes {
		types[n.ID] = n.NodeType
	}
	if detail.Edges == nil {
		detail.Edges = []*store.Edge{}
	}

	model := diagram.Build(diagram.Input{Title: detail.Name, Edges: detail.Edges, NodeTypes: types})
	return c.JSON(http.StatusOK, pipelineDetail{
		PipelineDetail: detail,
		Diagram:        diagram.RenderMermaid(model),
	})
}

func (s *Server) handleUpdatePipeline(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var update store.PipelineUpdate
	if err := bind(c, &update); err != nil {
		return err
	}
	p, err := s.deps.Catalog.UpdatePipeline(c.Request().Context(), id, update)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// handleDeletePipeline deletes a pipeline together with its edges and
// executions, dropping any cached statuses of those executions.
func (s *Server) handleDeletePipeline(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	execs, err := s.deps.Store.ListExecutions(ctx, store.ExecutionFilter{PipelineID: id})
	if err != nil {
		return err
	}
	if err := s.deps.Catalog.DeletePipeline(ctx, id); err != nil {
		return err
	}
	ids := make([]int64, len(execs))
	for i, e := range execs {
		ids[i] = e.ID
	}
	s.deps.Statuses.Forget(ctx, ids...)
	return c.NoContent(http.StatusNoContent)
}

type addEdgeRequest struct {
	SourceID  int64  `json:"source_id"`
	TargetID  int64  `json:"target_id"`
	Order     int    `json:"order"`
	Condition string `json:"condition"`
}

func (s *Server) handleAddEdge(c echo.Context) error {
	pipelineID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req addEdgeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	edge := &store.Edge{
		PipelineID: pipelineID,
		SourceID:   req.SourceID,
		TargetID:   req.TargetID,
		Order:      req.Order,
		Condition:  req.Condition,
	}
	if err := s.deps.Catalog.AddEdge(c.Request().Context(), edge); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, edge)
}

func (s *Server) handleRemoveEdge(c echo.Context) error {
	pipelineID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	edgeID, err := pathID(c, "edge_id")
	if err != nil {
		return err
	}
	if err := s.deps.Catalog.RemoveEdge(c.Request().Context(), pipelineID, edgeID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
