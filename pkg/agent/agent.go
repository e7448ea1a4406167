// Package agent implements the bounded agent loop (§4.6): the alternation
// of an LLM call and zero or more tool invocations, run until the model
// stops requesting tools or MaxRounds is reached. Both the batch and
// streaming entry points drive the same state machine; streaming differs
// only in that deltas and per-tool lifecycle events are forwarded to a
// caller-supplied channel as they happen.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tarsy-labs/mcp-gateway/pkg/acl"
	"github.com/tarsy-labs/mcp-gateway/pkg/cache"
	"github.com/tarsy-labs/mcp-gateway/pkg/llm"
	"github.com/tarsy-labs/mcp-gateway/pkg/location"
	"github.com/tarsy-labs/mcp-gateway/pkg/mcp"
	"github.com/tarsy-labs/mcp-gateway/pkg/sanitize"
	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// MaxRounds bounds the number of LLM calls a single chat request can make.
const MaxRounds = 20

// maxHistoryMessages is the size of the message window fed back to the
// LLM. Note this counts persisted rows, not turns: a round with several
// tool_use/tool_result rows consumes the window faster than a plain text
// round. See DESIGN.md for why this is kept as specified rather than
// reinterpreted as "50 turns".
const maxHistoryMessages = 50

const defaultMaxTokens = 8192

const systemPrompt = `You are an internal operations assistant with access to a set of MCP tools. Use a tool whenever it would let you answer with grounded data instead of a guess; otherwise answer directly. Keep answers concise.`

// Agent wires every dependency the loop needs: the LLM vendor client, the
// MCP bridge, the ACL evaluator, session persistence, the response cache,
// and the location resolver used for tool-argument canonicalization.
type Agent struct {
	llm           *llm.Client
	bridge        *mcp.Bridge
	acl           *acl.Evaluator
	sessions      store.SessionStore
	responseCache *cache.Cache
	locations     *location.Resolver
}

// New constructs an Agent. responseCache should be namespaced
// "responses" per the shared-cache contract.
func New(llmClient *llm.Client, bridge *mcp.Bridge, evaluator *acl.Evaluator, sessions store.SessionStore, responseCache *cache.Cache, locations *location.Resolver) *Agent {
	return &Agent{
		llm:           llmClient,
		bridge:        bridge,
		acl:           evaluator,
		sessions:      sessions,
		responseCache: responseCache,
		locations:     locations,
	}
}

// ChatResult is the outcome of a completed (or cache-served) chat turn.
type ChatResult struct {
	SessionID     string
	AssistantText string
	ToolCalls     []store.ToolCallRecord
	FromCache     bool
}

// Chat runs the batch entry point: no events are streamed, the full
// result is returned once the loop settles.
func (a *Agent) Chat(ctx context.Context, session *store.Session, userEmail, message string) (*ChatResult, error) {
	return a.chat(ctx, session, userEmail, message, nil)
}

// ChatStream runs the same state machine but forwards text_delta,
// tool_start, tool_end, done and error events to events as they occur.
// events sends are non-blocking: a slow or abandoned reader (an aborted
// SSE client, per the streaming-abort scenario) never stalls the loop,
// which always runs to completion and persists every message regardless
// of whether anyone is still listening.
func (a *Agent) ChatStream(ctx context.Context, session *store.Session, userEmail, message string, events chan<- StreamEvent) (*ChatResult, error) {
	return a.chat(ctx, session, userEmail, message, events)
}

func (a *Agent) chat(ctx context.Context, session *store.Session, userEmail, message string, events chan<- StreamEvent) (*ChatResult, error) {
	existing, err := a.sessions.GetMessages(ctx, session.SessionID, 1)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}
	if len(existing) == 0 {
		title := titleFromMessage(message)
		if err := a.sessions.UpdateSessionTitle(ctx, session.SessionID, title); err != nil {
			return nil, fmt.Errorf("bootstrap session title: %w", err)
		}
	}

	if err := a.sessions.AppendMessage(ctx, &store.Message{
		SessionID: session.SessionID,
		Role:      store.RoleUser,
		Content:   message,
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	cacheKey := responseCacheKey(message, session.Vertical)
	var cached store.CachedResponse
	if ok, err := a.responseCache.Get(ctx, cacheKey, &cached); err == nil && ok {
		if err := a.sessions.AppendMessage(ctx, &store.Message{
			SessionID: session.SessionID,
			Role:      store.RoleAssistant,
			Content:   cached.AssistantText,
			CreatedAt: time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("persist cached assistant message: %w", err)
		}
		result := &ChatResult{SessionID: session.SessionID, AssistantText: cached.AssistantText, ToolCalls: cached.ToolCalls, FromCache: true}
		emitDone(events, result)
		return result, nil
	}

	result, err := a.run(ctx, session, userEmail, events)
	if err != nil {
		emitError(events, err)
		return nil, err
	}
	result.SessionID = session.SessionID

	if result.AssistantText != "" && len(result.ToolCalls) > 0 {
		ttl := classifyTTL(message)
		if err := a.responseCache.Set(ctx, cacheKey, store.CachedResponse{AssistantText: result.AssistantText, ToolCalls: result.ToolCalls}, ttl); err != nil {
			slog.Warn("agent: failed to write response cache entry", "error", err)
		}
	}

	emitDone(events, result)
	return result, nil
}

// run drives the bounded LLM/tool alternation. history starts from the
// persisted window and grows in memory as each round's messages are
// appended, so the next round's request reflects everything produced so
// far without a round-trip back to the store.
func (a *Agent) run(ctx context.Context, session *store.Session, userEmail string, events chan<- StreamEvent) (*ChatResult, error) {
	persisted, err := a.sessions.GetMessages(ctx, session.SessionID, maxHistoryMessages)
	if err != nil {
		return nil, fmt.Errorf("load message window: %w", err)
	}
	history := reconstructWindow(persisted)

	tools, err := a.toolsForUser(ctx, userEmail)
	if err != nil {
		return nil, fmt.Errorf("resolve tools for user: %w", err)
	}

	var toolCalls []store.ToolCallRecord
	var assistantText string

	for round := 1; round <= MaxRounds; round++ {
		req := llm.ChatRequest{
			Messages:    append([]llm.ChatMessage{{Role: "system", Content: systemPrompt}}, history...),
			Tools:       tools,
			MaxTokens:   defaultMaxTokens,
			Temperature: 0,
		}

		result, err := a.generate(ctx, req, events)
		if err != nil {
			return nil, fmt.Errorf("llm generate round %d: %w", round, err)
		}

		text := sanitize.Text(result.Text)

		if err := a.sessions.AppendMessage(ctx, &store.Message{
			SessionID: session.SessionID,
			Role:      store.RoleAssistant,
			Content:   text,
			CreatedAt: time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("persist assistant message round %d: %w", round, err)
		}

		assistantMsg := llm.ChatMessage{Role: "assistant", Content: text}
		for _, tc := range result.ToolCalls {
			assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, tc)
		}
		history = append(history, assistantMsg)

		if len(result.ToolCalls) == 0 {
			assistantText = text
			break
		}

		// All tool_use rows for this round are persisted before any
		// tool_result row, so reconstructWindow's contiguous-block fold
		// sees one unbroken tool_use run per round regardless of how many
		// calls it contains.
		for _, tc := range result.ToolCalls {
			if err := a.sessions.AppendMessage(ctx, &store.Message{
				SessionID: session.SessionID,
				Role:      store.RoleToolUse,
				ToolName:  tc.Name,
				ToolInput: tc.Arguments,
				ToolUseID: tc.ID,
				CreatedAt: time.Now(),
			}); err != nil {
				return nil, fmt.Errorf("persist tool_use %s: %w", tc.Name, err)
			}
		}

		for _, tc := range result.ToolCalls {
			emit(events, StreamEvent{Type: EventToolStart, ToolID: tc.ID, ToolName: tc.Name, ToolInput: tc.Arguments})

			record, resultText := a.invokeTool(ctx, session.Vertical, userEmail, tc)
			toolCalls = append(toolCalls, record)

			if err := a.sessions.AppendMessage(ctx, &store.Message{
				SessionID: session.SessionID,
				Role:      store.RoleToolResult,
				ToolName:  tc.Name,
				ToolUseID: tc.ID,
				Content:   resultText,
				CreatedAt: time.Now(),
			}); err != nil {
				return nil, fmt.Errorf("persist tool_result %s: %w", tc.Name, err)
			}

			emit(events, StreamEvent{Type: EventToolEnd, ToolID: tc.ID, ToolName: tc.Name, ToolResult: resultText})

			history = append(history, llm.ChatMessage{Role: "tool", Content: resultText, ToolCallID: tc.ID})
		}

		assistantText = text
	}

	return &ChatResult{AssistantText: assistantText, ToolCalls: toolCalls}, nil
}

// generate calls either the streaming or the batch vendor endpoint
// depending on whether the caller wants deltas forwarded.
func (a *Agent) generate(ctx context.Context, req llm.ChatRequest, events chan<- StreamEvent) (*llm.Result, error) {
	if events == nil {
		return a.llm.Generate(ctx, req)
	}

	deltaCh := make(chan llm.Chunk, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range deltaCh {
			if chunk.DeltaText != "" {
				emit(events, StreamEvent{Type: EventTextDelta, Text: chunk.DeltaText})
			}
		}
	}()

	result, err := a.llm.GenerateStream(ctx, req, deltaCh)
	close(deltaCh)
	<-done
	return result, err
}

// invokeTool applies vertical/location argument preprocessing, enforces
// ACL at call time (not at discovery time), and invokes the tool via the
// MCP bridge. It never returns a Go error: every failure mode becomes a
// result string the model sees, per the fail-continue tool taxonomy.
func (a *Agent) invokeTool(ctx context.Context, vertical, userEmail string, tc llm.ToolCall) (store.ToolCallRecord, string) {
	args := a.preprocessArgs(tc.Name, vertical, tc.Arguments)

	decision, err := a.acl.Check(ctx, tc.Name, userEmail)
	if err != nil {
		resultText := fmt.Sprintf("Error: %s", err)
		return store.ToolCallRecord{ToolName: tc.Name, Input: args, Result: resultText}, resultText
	}
	if !decision.Allowed {
		return store.ToolCallRecord{ToolName: tc.Name, Input: args, Result: decision.Reason}, decision.Reason
	}

	resultText, err := a.bridge.CallTool(ctx, tc.Name, args, userEmail)
	if err != nil {
		resultText = fmt.Sprintf("Error: %s", toolErrorMessage(tc.Name, err))
	}
	return store.ToolCallRecord{ToolName: tc.Name, Input: args, Result: resultText}, resultText
}

func toolErrorMessage(name string, err error) string {
	if errors.Is(err, mcp.ErrUnknownTool) {
		return fmt.Sprintf("no MCP server found for tool %s", name)
	}
	return err.Error()
}
