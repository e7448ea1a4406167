// Package llm is an opaque HTTP/SSE client for the upstream vendor's
// Messages API (Claude Messages API wire shape: system prompt as a
// top-level field, content-block messages, tool_use/tool_result blocks
// instead of OpenAI-style function-call fields).
package llm

// Request is the vendor Messages API request body.
type Request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// Message is one conversation turn.
type Message struct {
	Role    string         `json:"role"` // "user" | "assistant"
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a polymorphic content element.
type ContentBlock struct {
	Type string `json:"type"` // "text" | "tool_use" | "tool_result" | "thinking"

	Text string `json:"text,omitempty"`

	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`

	Thinking string `json:"thinking,omitempty"`
}

// Tool is a tool definition offered to the model.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Response is the vendor Messages API response.
type Response struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"` // "end_turn" | "tool_use" | "max_tokens"
	Usage      Usage          `json:"usage"`
}

// Usage reports token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns total token count.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// ToolCall is a normalized tool invocation request extracted from a
// Response or stream.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Result is the gateway-facing normalized outcome of a Generate call.
type Result struct {
	Text       string
	ToolCalls  []ToolCall
	ModelUsed  string
	TokensUsed int
	StopReason string
}

// StreamEvent is a typed SSE event from the streaming Messages API.
type StreamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index,omitempty"`

	ContentBlock *ContentBlock `json:"content_block,omitempty"`
	Delta        *DeltaBlock   `json:"delta,omitempty"`
	Usage        *Usage        `json:"usage,omitempty"`
	Message      *Response     `json:"message,omitempty"`
}

// DeltaBlock is incremental content inside a stream.
type DeltaBlock struct {
	Type        string `json:"type"` // "text_delta" | "input_json_delta" | "thinking_delta"
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	Thinking    string `json:"thinking,omitempty"`

	StopReason string `json:"stop_reason,omitempty"`
}

// Chunk is one unit of streamed output delivered to the caller's channel.
type Chunk struct {
	DeltaText    string
	ToolCall     *ToolCall
	FinishReason string
}

// convertSchema ensures a tool's parameter schema has a JSON Schema "type".
func convertSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	out := make(map[string]any, len(schema)+1)
	for k, v := range schema {
		out[k] = v
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	return out
}
