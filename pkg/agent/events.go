package agent

import (
	"log/slog"

	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// Event type constants mirror the SSE event names in §6.
const (
	EventTextDelta = "text_delta"
	EventToolStart = "tool_start"
	EventToolEnd   = "tool_end"
	EventDone      = "done"
	EventError     = "error"
)

// StreamEvent is one unit pushed to a ChatStream caller. Only the fields
// relevant to Type are populated. ToolID/ToolName are the wire-format
// fields for tool_start/tool_end (§6); ToolInput/ToolResult carry the same
// lifecycle moment's detail for callers that want it (e.g. logging) but
// are not part of the SSE payload.
type StreamEvent struct {
	Type string

	Text string // EventTextDelta

	ToolID     string         // EventToolStart, EventToolEnd
	ToolName   string         // EventToolStart, EventToolEnd
	ToolInput  map[string]any // EventToolStart
	ToolResult string         // EventToolEnd

	AssistantText string                 // EventDone
	ToolCalls     []store.ToolCallRecord // EventDone

	Error string // EventError
}

// emit is a non-blocking send: an abandoned or slow reader never stalls
// the agent loop, which must run to completion regardless of whether the
// original HTTP client is still listening (the streaming-abort scenario).
func emit(events chan<- StreamEvent, ev StreamEvent) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
	}
}

func emitDone(events chan<- StreamEvent, result *ChatResult) {
	if events == nil || result == nil {
		return
	}
	emit(events, StreamEvent{Type: EventDone, AssistantText: result.AssistantText, ToolCalls: result.ToolCalls})
}

// emitError reports a loop failure over SSE. Per §4.6/§7, the client never
// sees internal error detail: it is logged here and replaced with a
// friendly message derived from the known LLM error types.
func emitError(events chan<- StreamEvent, err error) {
	if err == nil {
		return
	}
	slog.Error("agent: chat loop failed", "error", err)
	if events == nil {
		return
	}
	emit(events, StreamEvent{Type: EventError, Error: friendlyChatError(err)})
}
