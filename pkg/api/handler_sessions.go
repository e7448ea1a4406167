package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// createSessionHandler handles POST /api/sessions.
func (s *Server) createSessionHandler(c *echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	user := currentUser(c)
	sess, err := s.sessions.CreateSession(c.Request().Context(), user.UserID, req.Title, req.Vertical)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, newSessionResponse(sess))
}

// listSessionsHandler handles GET /api/sessions.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	user := currentUser(c)
	sessions, err := s.sessions.ListSessions(c.Request().Context(), user.UserID)
	if err != nil {
		return mapErr(err)
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, newSessionResponse(sess))
	}
	return c.JSON(http.StatusOK, out)
}

// getSessionHandler handles GET /api/sessions/:id: the session plus its
// full message transcript (tool_use / tool_result included).
func (s *Server) getSessionHandler(c *echo.Context) error {
	user := currentUser(c)
	ctx := c.Request().Context()

	sess, err := s.sessions.GetSession(ctx, c.Param("id"), user.UserID)
	if err != nil {
		return mapErr(err)
	}

	messages, err := s.sessions.GetMessages(ctx, sess.SessionID, 0)
	if err != nil {
		return mapErr(err)
	}

	out := SessionDetailResponse{Session: newSessionResponse(sess), Messages: make([]MessageResponse, 0, len(messages))}
	for _, m := range messages {
		out.Messages = append(out.Messages, newMessageResponse(m))
	}
	return c.JSON(http.StatusOK, out)
}

// deleteSessionHandler handles DELETE /api/sessions/:id (owner-only).
func (s *Server) deleteSessionHandler(c *echo.Context) error {
	user := currentUser(c)
	if err := s.sessions.DeleteSession(c.Request().Context(), c.Param("id"), user.UserID); err != nil {
		return mapErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// sendMessageHandler handles POST /api/sessions/:id/messages: the batch
// chat entry point. Runs the agent loop to completion and returns the
// full result in one response.
func (s *Server) sendMessageHandler(c *echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	user := currentUser(c)
	ctx := c.Request().Context()

	sess, err := s.sessions.GetSession(ctx, c.Param("id"), user.UserID)
	if err != nil {
		return mapErr(err)
	}

	result, err := s.agent.Chat(ctx, sess, user.Email, req.Message)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, newChatResponse(result.ToolCalls, result.AssistantText))
}
