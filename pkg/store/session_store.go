package store

import "context"

// SessionStore is the interface the agent loop and HTTP layer consume for
// session/message persistence (§4.5). Implementations MUST be crash-safe
// between AppendMessage calls so that partial transcripts are always valid.
type SessionStore interface {
	CreateSession(ctx context.Context, userID, title, vertical string) (*Session, error)
	GetSession(ctx context.Context, sessionID, userID string) (*Session, error)
	ListSessions(ctx context.Context, userID string) ([]*Session, error)
	DeleteSession(ctx context.Context, sessionID, userID string) error
	UpdateSessionTitle(ctx context.Context, sessionID, title string) error

	AppendMessage(ctx context.Context, msg *Message) error
	GetMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error)
}
