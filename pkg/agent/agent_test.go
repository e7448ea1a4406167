package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/mcp-gateway/pkg/acl"
	"github.com/tarsy-labs/mcp-gateway/pkg/breaker"
	"github.com/tarsy-labs/mcp-gateway/pkg/cache"
	"github.com/tarsy-labs/mcp-gateway/pkg/llm"
	"github.com/tarsy-labs/mcp-gateway/pkg/location"
	"github.com/tarsy-labs/mcp-gateway/pkg/mcp"
	"github.com/tarsy-labs/mcp-gateway/pkg/store"
	"github.com/tarsy-labs/mcp-gateway/pkg/store/memstore"
)

// scriptedLLM serves a fixed sequence of Messages-API responses, one per
// call, grounded in pkg/llm/client_test.go's httptest.Server pattern.
func scriptedLLM(t *testing.T, responses ...map[string]any) *llm.Client {
	t.Helper()
	var call int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Less(t, call, len(responses))
		resp := responses[call]
		call++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	return llm.New(llm.Config{BaseURL: server.URL, APIKey: "test", Model: "test-model", Breaker: breaker.NewRegistry().GetOrCreate(breaker.Config{Name: "llm-test", IsTransient: llm.IsTransient})})
}

func textResponse(text string) map[string]any {
	return map[string]any{
		"id": "msg_1", "type": "message", "role": "assistant",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"model":       "test-model",
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
	}
}

func toolUseResponse(toolName string, input map[string]any) map[string]any {
	return map[string]any{
		"id": "msg_2", "type": "message", "role": "assistant",
		"content": []map[string]any{
			{"type": "tool_use", "id": "toolu_1", "name": toolName, "input": input},
		},
		"model":       "test-model",
		"stop_reason": "tool_use",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
	}
}

// multiToolUseResponse is toolUseResponse's two-call sibling, used to
// exercise a round with several tool calls in one LLM turn.
func multiToolUseResponse() map[string]any {
	return map[string]any{
		"id": "msg_2", "type": "message", "role": "assistant",
		"content": []map[string]any{
			{"type": "tool_use", "id": "toolu_1", "name": "get_sales_funnel", "input": map[string]any{}},
			{"type": "tool_use", "id": "toolu_2", "name": "get_conversion_rate", "input": map[string]any{}},
		},
		"model":       "test-model",
		"stop_reason": "tool_use",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
	}
}

// openACL returns an evaluator that allows every tool unconditionally.
func openACL(t *testing.T) *acl.Evaluator {
	t.Helper()
	configs := memstore.NewAclConfigStore()
	require.NoError(t, configs.PutAclConfig(context.Background(), &store.AclConfig{DefaultPolicy: "open"}))
	users := memstore.NewUserStore()
	return acl.New(users, configs, cache.New(nil, "acl:user", 0), cache.New(nil, "acl:config", 0))
}

func denyingACL(t *testing.T) *acl.Evaluator {
	t.Helper()
	configs := memstore.NewAclConfigStore()
	require.NoError(t, configs.PutAclConfig(context.Background(), &store.AclConfig{
		DefaultPolicy: "deny",
		ToolACLs:      map[string][]string{"get_sales_funnel": {"sales_admin"}},
	}))
	users := memstore.NewUserStore(&store.User{UserID: "u1", Email: "staff@example.com", Active: true})
	return acl.New(users, configs, cache.New(nil, "acl:user", 0), cache.New(nil, "acl:config", 0))
}

func newTestAgent(t *testing.T, llmClient *llm.Client, evaluator *acl.Evaluator) (*Agent, *store.Session) {
	t.Helper()
	sessions := memstore.NewSessionStore()
	sess, err := sessions.CreateSession(context.Background(), "u1", "", "isprava")
	require.NoError(t, err)

	resolver := location.New([]string{"Goa", "Mumbai"})
	responseCache := cache.New(nil, "responses", 0)

	bridge := mcp.New(breaker.NewRegistry(), cache.New(nil, "tools:user", 0))
	a := New(llmClient, bridge, evaluator, sessions, responseCache, resolver)
	return a, sess
}

func TestChat_NoToolCall_PersistsAssistantText(t *testing.T) {
	llmClient := scriptedLLM(t, textResponse("There were 42 leads last month."))
	a, sess := newTestAgent(t, llmClient, openACL(t))

	result, err := a.Chat(context.Background(), sess, "staff@example.com", "How many leads last month?")
	require.NoError(t, err)
	assert.Equal(t, "There were 42 leads last month.", result.AssistantText)
	assert.Empty(t, result.ToolCalls)
	assert.False(t, result.FromCache)

	msgs, err := a.sessions.GetMessages(context.Background(), sess.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
}

func TestChat_BootstrapsTitleFromFirstMessage(t *testing.T) {
	llmClient := scriptedLLM(t, textResponse("ok"))
	a, sess := newTestAgent(t, llmClient, openACL(t))

	_, err := a.Chat(context.Background(), sess, "staff@example.com", "How many leads last month?")
	require.NoError(t, err)

	got, err := a.sessions.GetSession(context.Background(), sess.SessionID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "How many leads last month?", got.Title)
}

func TestChat_TitleTruncatesLongFirstMessage(t *testing.T) {
	llmClient := scriptedLLM(t, textResponse("ok"))
	a, sess := newTestAgent(t, llmClient, openACL(t))

	long := ""
	for i := 0; i < 80; i++ {
		long += "a"
	}
	_, err := a.Chat(context.Background(), sess, "staff@example.com", long)
	require.NoError(t, err)

	got, err := a.sessions.GetSession(context.Background(), sess.SessionID, "u1")
	require.NoError(t, err)
	assert.Len(t, []rune(got.Title), maxTitleLen)
	assert.True(t, len(got.Title) > 3 && got.Title[len(got.Title)-3:] == "...")
}

func TestChat_ACLDenial_ToolNotInvokedReasonBecomesResult(t *testing.T) {
	llmClient := scriptedLLM(t,
		toolUseResponse("get_sales_funnel", map[string]any{}),
		textResponse("You don't have access to that report."),
	)
	a, sess := newTestAgent(t, llmClient, denyingACL(t))

	result, err := a.Chat(context.Background(), sess, "staff@example.com", "Show me the sales funnel")
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "missing required ACL tag", result.ToolCalls[0].Result)
}

func TestChat_CacheHit_SkipsLLMAndAppendsTwoMessages(t *testing.T) {
	llmClient := scriptedLLM(t, toolUseResponse("noop", map[string]any{}), textResponse("final"))
	a, sess := newTestAgent(t, llmClient, openACL(t))
	a.bridge = nil // cache path must never touch the bridge

	key := responseCacheKey("cached question", sess.Vertical)
	require.NoError(t, a.responseCache.Set(context.Background(), key, store.CachedResponse{
		AssistantText: "cached answer",
		ToolCalls:     []store.ToolCallRecord{{ToolName: "noop", Result: "ok"}},
	}, 5*time.Minute))

	result, err := a.Chat(context.Background(), sess, "staff@example.com", "cached question")
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, "cached answer", result.AssistantText)

	msgs, err := a.sessions.GetMessages(context.Background(), sess.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "cached answer", msgs[1].Content)
}

func TestChat_OnlyCachesWhenTextAndToolCallBothPresent(t *testing.T) {
	llmClient := scriptedLLM(t, textResponse("plain answer, no tool needed"))
	a, sess := newTestAgent(t, llmClient, openACL(t))

	_, err := a.Chat(context.Background(), sess, "staff@example.com", "no tool needed here")
	require.NoError(t, err)

	key := responseCacheKey("no tool needed here", sess.Vertical)
	var cached store.CachedResponse
	ok, err := a.responseCache.Get(context.Background(), key, &cached)
	require.NoError(t, err)
	assert.False(t, ok, "a response with zero tool calls must not be cached")
}

func TestPreprocessArgs_InjectsVerticalForSalesFunnelFamily(t *testing.T) {
	a, _ := newTestAgent(t, scriptedLLM(t), openACL(t))
	out := a.preprocessArgs("get_sales_funnel", "isprava", map[string]any{})
	assert.Equal(t, "isprava", out["vertical"])
}

func TestPreprocessArgs_DoesNotOverrideExplicitVertical(t *testing.T) {
	a, _ := newTestAgent(t, scriptedLLM(t), openACL(t))
	out := a.preprocessArgs("get_sales_funnel", "isprava", map[string]any{"vertical": "shivalik"})
	assert.Equal(t, "shivalik", out["vertical"])
}

func TestPreprocessArgs_CanonicalizesLocationArgument(t *testing.T) {
	a, _ := newTestAgent(t, scriptedLLM(t), openACL(t))
	out := a.preprocessArgs("query_knowledge_base", "", map[string]any{"location": "gao"})
	assert.Equal(t, []string{"Goa"}, out["location"])
}

func TestTitleFromMessage_ShortMessageNoEllipsis(t *testing.T) {
	assert.Equal(t, "How many leads last month?", titleFromMessage("How many leads last month?"))
}

func TestTitleFromMessage_LongMessageTruncatedWithEllipsis(t *testing.T) {
	in := fmt.Sprintf("%0100d", 0)
	got := titleFromMessage(in)
	assert.Len(t, []rune(got), maxTitleLen)
	assert.Equal(t, "...", got[len(got)-3:])
}

func TestNormalize_Idempotent(t *testing.T) {
	in := "  How MANY   leads\tlast month?  "
	once := normalize(in)
	twice := normalize(once)
	assert.Equal(t, once, twice)
}

func TestClassifyTTL_HistoricalDateOnly(t *testing.T) {
	ttl := classifyTTL("Leads as of 2020-01-15 totalled 42.")
	assert.Equal(t, longResponseCacheTTL, ttl)
}

func TestClassifyTTL_RelativeTodayForcesShortTTL(t *testing.T) {
	ttl := classifyTTL("As of today, how many leads do we have?")
	assert.Equal(t, shortResponseCacheTTL, ttl)
}

func TestClassifyTTL_NoDateSignalDefaultsShort(t *testing.T) {
	ttl := classifyTTL("There is no date mentioned here at all.")
	assert.Equal(t, shortResponseCacheTTL, ttl)
}

func TestClassifyTTL_LastMonthPhraseIsClosedPeriod(t *testing.T) {
	ttl := classifyTTL("How many leads last month?")
	assert.Equal(t, longResponseCacheTTL, ttl)
}

func TestClassifyTTL_PreviousQuarterPhraseIsClosedPeriod(t *testing.T) {
	ttl := classifyTTL("What was the conversion rate for the previous quarter?")
	assert.Equal(t, longResponseCacheTTL, ttl)
}

func TestClassifyTTL_ScansUserMessageNotAssistantText(t *testing.T) {
	// The assistant's answer doesn't repeat "last month", but the
	// question does; classifyTTL must key off the question.
	ttl := classifyTTL("How many leads did we close last month?")
	assert.Equal(t, longResponseCacheTTL, ttl)
}

// TestChat_MultipleToolCallsInOneRound_PersistsToolUseBlockBeforeResults
// guards the §8 round-trip property: persisting a round with several tool
// calls and re-reading it must fold back into a single assistant turn
// carrying every tool call, not one turn per call.
func TestChat_MultipleToolCallsInOneRound_PersistsToolUseBlockBeforeResults(t *testing.T) {
	llmClient := scriptedLLM(t, multiToolUseResponse(), textResponse("Funnel and conversion rate reported above."))
	a, sess := newTestAgent(t, llmClient, denyingACL(t))

	result, err := a.Chat(context.Background(), sess, "staff@example.com", "Show me the funnel and conversion rate")
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 2)

	msgs, err := a.sessions.GetMessages(context.Background(), sess.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 7)
	roles := make([]store.Role, len(msgs))
	for i, m := range msgs {
		roles[i] = m.Role
	}
	assert.Equal(t, []store.Role{
		store.RoleUser,
		store.RoleAssistant,
		store.RoleToolUse,
		store.RoleToolUse,
		store.RoleToolResult,
		store.RoleToolResult,
		store.RoleAssistant,
	}, roles)

	history := reconstructWindow(msgs)
	require.Len(t, history, 5)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
	require.Len(t, history[1].ToolCalls, 2, "both tool calls must fold into the one preceding assistant turn")
	assert.Equal(t, "tool", history[2].Role)
	assert.Equal(t, "tool", history[3].Role)
	assert.Equal(t, "assistant", history[4].Role)
}

func TestReconstructWindow_FoldsToolUseIntoPrecedingAssistantTurn(t *testing.T) {
	msgs := []*store.Message{
		{Role: store.RoleUser, Content: "question"},
		{Role: store.RoleAssistant, Content: ""},
		{Role: store.RoleToolUse, ToolName: "get_sales_funnel", ToolUseID: "t1", ToolInput: map[string]any{"vertical": "isprava"}},
		{Role: store.RoleToolResult, ToolUseID: "t1", Content: "42 leads"},
		{Role: store.RoleAssistant, Content: "There were 42 leads."},
	}
	got := reconstructWindow(msgs)
	require.Len(t, got, 4)
	assert.Equal(t, "user", got[0].Role)
	assert.Equal(t, "assistant", got[1].Role)
	require.Len(t, got[1].ToolCalls, 1)
	assert.Equal(t, "get_sales_funnel", got[1].ToolCalls[0].Name)
	assert.Equal(t, "tool", got[2].Role)
	assert.Equal(t, "t1", got[2].ToolCallID)
	assert.Equal(t, "assistant", got[3].Role)
}
