package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ParsesTextAndToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("x-api-key"))

		resp := Response{
			ID:    "msg_1",
			Model: "claude-3-5-sonnet-20241022",
			Content: []ContentBlock{
				{Type: "text", Text: "let me check that"},
				{Type: "tool_use", ID: "call_1", Name: "search", Input: map[string]any{"q": "x"}},
			},
			StopReason: "tool_use",
			Usage:      Usage{InputTokens: 10, OutputTokens: 5},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "secret-key", Model: "claude-3-5-sonnet-20241022"})

	result, err := c.Generate(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "let me check that", result.Text)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "search", result.ToolCalls[0].Name)
	assert.Equal(t, 15, result.TokensUsed)
}

func TestGenerate_NonOKStatusReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	_, err := c.Generate(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}})
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.True(t, IsTransient(err))
}

func TestGenerateStream_DeliversDeltasAndToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		bw := bufio.NewWriter(w)

		writeEvent := func(event string, data any) {
			raw, _ := json.Marshal(data)
			fmt.Fprintf(bw, "event: %s\n", event)
			fmt.Fprintf(bw, "data: %s\n\n", raw)
			bw.Flush()
			if flusher != nil {
				flusher.Flush()
			}
		}

		writeEvent("message_start", StreamEvent{Type: "message_start", Message: &Response{Model: "claude-3-5-sonnet-20241022"}})
		writeEvent("content_block_start", StreamEvent{Type: "content_block_start", Index: 0, ContentBlock: &ContentBlock{Type: "text"}})
		writeEvent("content_block_delta", StreamEvent{Type: "content_block_delta", Index: 0, Delta: &DeltaBlock{Type: "text_delta", Text: "hello"}})
		writeEvent("content_block_start", StreamEvent{Type: "content_block_start", Index: 1, ContentBlock: &ContentBlock{Type: "tool_use", ID: "call_1", Name: "search"}})
		writeEvent("content_block_delta", StreamEvent{Type: "content_block_delta", Index: 1, Delta: &DeltaBlock{Type: "input_json_delta", PartialJSON: `{"q":"x"}`}})
		writeEvent("message_delta", StreamEvent{Type: "message_delta", Delta: &DeltaBlock{StopReason: "tool_use"}, Usage: &Usage{InputTokens: 3, OutputTokens: 2}})
		writeEvent("message_stop", StreamEvent{Type: "message_stop"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	chunks := make(chan Chunk, 16)

	result, err := c.GenerateStream(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}}, chunks)
	require.NoError(t, err)
	close(chunks)

	assert.Equal(t, "hello", result.Text)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "search", result.ToolCalls[0].Name)
	assert.Equal(t, "x", result.ToolCalls[0].Arguments["q"])
	assert.Equal(t, "tool_use", result.StopReason)

	var sawText, sawToolCall bool
	for c := range chunks {
		if c.DeltaText == "hello" {
			sawText = true
		}
		if c.ToolCall != nil && c.ToolCall.Name == "search" {
			sawToolCall = true
		}
	}
	assert.True(t, sawText)
	assert.True(t, sawToolCall)
}
