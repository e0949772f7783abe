package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rendis/flowgpt/internal/streaming"
	"github.com/rendis/flowgpt/pkg/schema"
)

// eventStatus is the first SSE event: the status at subscription time.
const eventStatus = "status"

// handleEvents streams an execution's progress with Server-Sent Events until
// the execution finishes or the client goes away.
func (s *Server) handleEvents(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if s.deps.Hub == nil {
		return schema.NewError(schema.ErrCodeNotFound, "live progress is not enabled")
	}
	ctx := c.Request().Context()

	// Subscribe first so no event is lost between the snapshot and the stream.
	ch, cancel, err := s.deps.Hub.Subscribe(ctx, streaming.EventFilter{ExecutionID: id})
	if err != nil {
		return err
	}
	defer cancel()

	st, err := s.deps.Statuses.Get(ctx, id)
	if err != nil {
		return err
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, eventStatus, st); err != nil {
		return nil
	}
	if st.IsComplete {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if err := writeEvent(w, event.EventType, event); err != nil {
				return nil
			}
			if event.Terminal() {
				return nil
			}
		}
	}
}

func writeEvent(w *echo.Response, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
