// Package store defines the persistence contracts the agent loop, ACL
// evaluator, and HTTP layer consume, plus their concrete Mongo/Postgres
// adapters. The agent loop and ACL evaluator depend only on the interfaces
// in this file; pkg/store/memstore supplies in-memory fakes for tests.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup finds nothing, or finds a record
// owned by a different user (getSession must refuse other users' sessions
// by returning this, not by leaking existence).
var ErrNotFound = errors.New("not found")

// Role is the speaker of a persisted Message.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolUse    Role = "tool_use"
	RoleToolResult Role = "tool_result"
)

// User is a read-only projection of the relational store's staff table.
type User struct {
	UserID      string
	Email       string // canonical lowercase
	DisplayName string
	ACLTags     []string
	Active      bool
	Admin       bool
}

// AuthSession is an opaque bearer token with a sliding 24h TTL.
type AuthSession struct {
	Token        string
	UserID       string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastAccessed time.Time
}

// Session is a ChatSession: a conversation owned by exactly one user.
type Session struct {
	SessionID string
	UserID    string
	Title     string
	Vertical  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one append-only transcript entry. ToolName/ToolInput/ToolUseID
// are populated only for RoleToolUse and RoleToolResult messages.
type Message struct {
	SessionID string
	Role      Role
	Content   string
	ToolName  string
	ToolInput map[string]any
	ToolUseID string
	CreatedAt time.Time
}

// AclConfig is the effective, admin-managed access control policy.
type AclConfig struct {
	DefaultPolicy string              `bson:"default_policy" json:"default_policy" yaml:"default_policy"` // "open" | "deny"
	PublicTools   []string            `bson:"public_tools" json:"public_tools" yaml:"public_tools"`
	DisabledTools []string            `bson:"disabled_tools" json:"disabled_tools" yaml:"disabled_tools"`
	ToolACLs      map[string][]string `bson:"tool_acls" json:"tool_acls" yaml:"tool_acls"`
	SuperuserACLs []string            `bson:"superuser_acls" json:"superuser_acls" yaml:"superuser_acls"`
}

// ToolCallRecord is one {tool_name, input, result} triple persisted inside a
// CachedResponse.
type ToolCallRecord struct {
	ToolName string         `bson:"tool_name" json:"tool_name"`
	Input    map[string]any `bson:"input" json:"input"`
	Result   string         `bson:"result" json:"result"`
}

// CachedResponse is a previously computed agent-loop result, keyed by
// normalized user message + vertical (see pkg/agent's cache key function).
type CachedResponse struct {
	AssistantText string           `bson:"assistant_text" json:"assistant_text"`
	ToolCalls     []ToolCallRecord `bson:"tool_calls" json:"tool_calls"`
}
