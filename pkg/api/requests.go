package api

// GoogleAuthRequest is the HTTP request body for POST /api/auth/google.
// The OAuth protocol itself is out of scope (§1 Non-goals): this layer
// consumes an already-validated profile blob and exchanges it for an
// opaque bearer token.
type GoogleAuthRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// CreateSessionRequest is the HTTP request body for POST /api/sessions.
type CreateSessionRequest struct {
	Title    string `json:"title,omitempty"`
	Vertical string `json:"vertical,omitempty"`
}

// SendMessageRequest is the HTTP request body for POST
// /api/sessions/:id/messages.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// UpsertToolACLRequest is the HTTP request body for PUT
// /api/admin/acl/tools/:name.
type UpsertToolACLRequest struct {
	RequiredTags []string `json:"required_tags"`
}
