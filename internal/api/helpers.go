package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rendis/flowgpt/pkg/schema"
)

// errorBody is the shape of every error response.
type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	switch schema.CodeOf(err) {
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeValidation, schema.ErrCodeCycleDetected:
		return http.StatusBadRequest
	case schema.ErrCodeConflict:
		return http.StatusConflict
	case schema.ErrCodeConfiguration:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse builds the body for err.
func errorResponse(err error) errorBody {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return errorBody{Error: fmt.Sprint(he.Message)}
	}
	var fe *schema.FlowError
	if errors.As(err, &fe) {
		return errorBody{Error: fe.Message, Code: fe.Code, Details: fe.Details}
	}
	return errorBody{Error: err.Error(), Code: schema.ErrCodeStore}
}

// handleError is the echo error handler: every failure becomes a JSON body.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.deps.Logger.ErrorContext(c.Request().Context(), "request error",
			"path", c.Path(), "error", err)
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorResponse(err))
	}
	if err != nil {
		s.deps.Logger.ErrorContext(c.Request().Context(), "write error response", "error", err)
	}
}

// pathID parses an integer path parameter.
func pathID(c echo.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, schema.NewErrorf(schema.ErrCodeValidation, "invalid %s %q", name, raw)
	}
	return id, nil
}

// queryInt extracts an integer query param with a default value.
func queryInt(c echo.Context, key string, def int) (int, error) {
	v := c.QueryParam(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeValidation, "invalid %s %q", key, v)
	}
	return n, nil
}

// queryBool reports whether key is set to a true value.
func queryBool(c echo.Context, key string) bool {
	b, _ := strconv.ParseBool(c.QueryParam(key))
	return b
}

// bind decodes the request body (JSON or form) into v.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg = fmt.Sprint(he.Message)
		}
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid request body: %s", msg).WithCause(err)
	}
	return nil
}
