package agent

import (
	"github.com/tarsy-labs/mcp-gateway/pkg/llm"
	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// reconstructWindow folds a flat persisted message sequence back into the
// alternating user/assistant/tool turns the vendor API expects. A round's
// tool_use rows are folded into the assistant turn that precedes them;
// each tool_result row becomes its own "tool" turn (the llm package merges
// consecutive tool turns into a single API-level user message).
//
// The window is 50 *messages*, not 50 turns: a round with several tool
// calls consumes more of the window than a plain text round. This mirrors
// the persisted-row granularity rather than reinterpreting it as turns.
func reconstructWindow(messages []*store.Message) []llm.ChatMessage {
	var out []llm.ChatMessage
	var pending *llm.ChatMessage

	flush := func() {
		if pending != nil {
			out = append(out, *pending)
			pending = nil
		}
	}

	for _, m := range messages {
		switch m.Role {
		case store.RoleUser:
			flush()
			out = append(out, llm.ChatMessage{Role: "user", Content: m.Content})

		case store.RoleAssistant:
			flush()
			pending = &llm.ChatMessage{Role: "assistant", Content: m.Content}

		case store.RoleToolUse:
			if pending == nil {
				pending = &llm.ChatMessage{Role: "assistant"}
			}
			pending.ToolCalls = append(pending.ToolCalls, llm.ToolCall{ID: m.ToolUseID, Name: m.ToolName, Arguments: m.ToolInput})

		case store.RoleToolResult:
			flush()
			out = append(out, llm.ChatMessage{Role: "tool", Content: m.Content, ToolCallID: m.ToolUseID})
		}
	}
	flush()

	return out
}
