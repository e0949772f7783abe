package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rendis/flowgpt/internal/store"
)

type contactRequest struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Phone   string `json:"phone" form:"phone"`
	Message string `json:"message" form:"message"`
}

func (s *Server) handleSubmitContact(c echo.Context) error {
	var req contactRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	contact := &store.Contact{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,
	}
	if err := s.deps.Catalog.SubmitContact(c.Request().Context(), contact); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"id":      contact.ID,
	})
}

func (s *Server) handleListContacts(c echo.Context) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	contacts, err := s.deps.Catalog.ListContacts(c.Request().Context(), store.ContactFilter{
		UnreadOnly: queryBool(c, "unread"),
		Limit:      limit,
	})
	if err != nil {
		return err
	}
	if contacts == nil {
		contacts = []*store.Contact{}
	}
	return c.JSON(http.StatusOK, contacts)
}

func (s *Server) handleMarkContactRead(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := s.deps.Catalog.MarkContactRead(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
