package api

import (
	"time"

	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// ErrorResponse is the JSON error shape for every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UserResponse is the public projection of a store.User.
type UserResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Admin       bool   `json:"admin"`
}

func newUserResponse(u *store.User) UserResponse {
	return UserResponse{UserID: u.UserID, Email: u.Email, DisplayName: u.DisplayName, Admin: u.Admin}
}

// AuthResponse is returned by POST /api/auth/google.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// SessionResponse is the public projection of a store.Session.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Vertical  string    `json:"vertical"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newSessionResponse(s *store.Session) SessionResponse {
	return SessionResponse{SessionID: s.SessionID, Title: s.Title, Vertical: s.Vertical, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

// MessageResponse is the public projection of a store.Message.
type MessageResponse struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func newMessageResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		Role:      string(m.Role),
		Content:   m.Content,
		ToolName:  m.ToolName,
		ToolInput: m.ToolInput,
		ToolUseID: m.ToolUseID,
		CreatedAt: m.CreatedAt,
	}
}

// SessionDetailResponse is returned by GET /api/sessions/:id.
type SessionDetailResponse struct {
	Session  SessionResponse   `json:"session"`
	Messages []MessageResponse `json:"messages"`
}

// ToolCallResponse is the public projection of a store.ToolCallRecord.
type ToolCallResponse struct {
	ToolName string         `json:"tool_name"`
	Input    map[string]any `json:"input"`
	Result   string         `json:"result"`
}

// ChatResponse is returned by POST /api/sessions/:id/messages.
type ChatResponse struct {
	AssistantText string             `json:"assistantText"`
	ToolCalls     []ToolCallResponse `json:"toolCalls"`
}

func newChatResponse(toolCalls []store.ToolCallRecord, text string) ChatResponse {
	out := ChatResponse{AssistantText: text, ToolCalls: make([]ToolCallResponse, 0, len(toolCalls))}
	for _, tc := range toolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCallResponse{ToolName: tc.ToolName, Input: tc.Input, Result: tc.Result})
	}
	return out
}

// CircuitsResponse is the {claude, mcp:{...}} shape from §6.
type CircuitsResponse struct {
	Claude string            `json:"claude"`
	MCP    map[string]string `json:"mcp"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status              string           `json:"status"`
	Circuits            CircuitsResponse `json:"circuits"`
	RateLimiterFallback bool             `json:"rate_limiter_fallback"`
}

// ToolACLResponse is one entry of GET /api/admin/acl/tools.
type ToolACLResponse struct {
	ToolName     string   `json:"tool_name"`
	RequiredTags []string `json:"required_tags"`
}
