package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rendis/flowgpt/internal/ops"
	"github.com/rendis/flowgpt/internal/store"
)

// handleNodeTypes lists the registered operations with their config schemas.
func (s *Server) handleNodeTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, ops.List())
}

func (s *Server) handleListNodes(c echo.Context) error {
	nodes, err := s.deps.Catalog.ListNodes(c.Request().Context())
	if err != nil {
		return err
	}
	if nodes == nil {
		nodes = []*store.Node{}
	}
	return c.JSON(http.StatusOK, nodes)
}

type createNodeRequest struct {
	Name        string         `json:"name"`
	NodeType    string         `json:"node_type"`
	Description string         `json:"description"`
	Config      map[string]any `json:"config"`
}

func (s *Server) handleCreateNode(c echo.Context) error {
	var req createNodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	n := &store.Node{
		Name:        req.Name,
		NodeType:    req.NodeType,
		Description: req.Description,
		Config:      req.Config,
	}
	if err := s.deps.Catalog.CreateNode(c.Request().Context(), n); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

func (s *Server) handleGetNode(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	n, err := s.deps.Catalog.GetNode(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (s *Server) handleUpdateNode(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var update store.NodeUpdate
	if err := bind(c, &update); err != nil {
		return err
	}
	n, err := s.deps.Catalog.UpdateNode(c.Request().Context(), id, update)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

// handleDeleteNode deletes a node. Executions that ran or were parked on it
// change shape, so their cached statuses are dropped.
func (s *Server) handleDeleteNode(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	ids, err := s.deps.Store.ExecutionIDsForNode(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deps.Catalog.DeleteNode(ctx, id); err != nil {
		return err
	}
	s.deps.Statuses.Forget(ctx, ids...)
	return c.NoContent(http.StatusNoContent)
}
