package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/tarsy-labs/mcp-gateway/pkg/agent"
)

// streamMessageHandler handles GET /api/sessions/:id/messages/stream: the
// SSE chat entry point. The agent loop is launched against a context
// detached from the request's, so a client disconnect (§5, §8 scenario 5)
// stops this handler from emitting further frames but never aborts the
// loop or the transcript it is persisting.
func (s *Server) streamMessageHandler(c *echo.Context) error {
	message := c.QueryParam("message")
	if message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message query parameter is required")
	}

	user := currentUser(c)
	reqCtx := c.Request().Context()

	sess, err := s.sessions.GetSession(reqCtx, c.Param("id"), user.UserID)
	if err != nil {
		return mapErr(err)
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	events := make(chan agent.StreamEvent, 16)
	done := make(chan struct{})

	loopCtx := context.WithoutCancel(reqCtx)
	go func() {
		defer close(done)
		_, _ = s.agent.ChatStream(loopCtx, sess, user.Email, message, events)
	}()

	for {
		select {
		case ev := <-events:
			writeSSEEvent(w, ev)
			w.Flush()
		case <-done:
			for {
				select {
				case ev := <-events:
					writeSSEEvent(w, ev)
					w.Flush()
				default:
					return nil
				}
			}
		case <-reqCtx.Done():
			return nil
		}
	}
}

// writeSSEEvent writes one frame in the exact wire shape from §6: only
// the fields relevant to the event type are included in data.
func writeSSEEvent(w *echo.Response, ev agent.StreamEvent) {
	frame := map[string]any{"event": ev.Type}

	switch ev.Type {
	case agent.EventTextDelta:
		frame["data"] = map[string]string{"text": ev.Text}
	case agent.EventToolStart, agent.EventToolEnd:
		frame["data"] = map[string]string{"name": ev.ToolName, "id": ev.ToolID}
	case agent.EventDone:
		frame["data"] = map[string]string{"assistantText": ev.AssistantText}
	case agent.EventError:
		frame["data"] = map[string]string{"message": ev.Error}
	default:
		return
	}

	b, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
}
