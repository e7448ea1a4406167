package llm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tarsy-labs/mcp-gateway/pkg/breaker"
)

const vendorVersion = "2023-06-01"

// IsTransient classifies an error from the vendor API as transient (safe
// to retry, doesn't trip the breaker) or not. Network-layer failures and
// 5xx/429 responses are transient; malformed requests and auth failures
// are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*StatusError); ok {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

// StatusError wraps a non-2xx vendor HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vendor API error %d: %s", e.StatusCode, e.Body)
}

// ChatMessage is the caller-facing conversation turn; Client converts it
// into the vendor's content-block wire format.
type ChatMessage struct {
	Role       string // "system" | "user" | "assistant" | "tool"
	Content    string
	ToolCalls  []ToolCall // assistant messages requesting tool calls
	ToolCallID string     // tool-result messages
}

// ChatRequest is the normalized request Client.Generate/GenerateStream take.
type ChatRequest struct {
	Messages    []ChatMessage
	Tools       []Tool
	MaxTokens   int
	Temperature float64
}

// Client is a breaker-wrapped HTTP/SSE client for the vendor Messages API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	breaker *breaker.Breaker
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Breaker *breaker.Breaker
}

// New builds a Client. If cfg.Breaker is nil, calls are not
// breaker-wrapped (used by tests exercising the HTTP layer directly).
func New(cfg Config) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 300 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Transport: transport},
		breaker: cfg.Breaker,
	}
}

// Generate performs a single non-streaming completion.
func (c *Client) Generate(ctx context.Context, req ChatRequest) (*Result, error) {
	var result *Result
	call := func() error {
		r, err := c.generate(ctx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	if c.breaker == nil {
		return result, call()
	}
	err := c.breaker.Execute(call)
	return result, err
}

func (c *Client) generate(ctx context.Context, req ChatRequest) (*Result, error) {
	apiReq := c.buildAPIRequest(req)

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return parseAPIResponse(respBody)
}

// GenerateStream performs a streaming completion, delivering incremental
// chunks on deltaCh. deltaCh is never closed by Client; the caller owns it.
func (c *Client) GenerateStream(ctx context.Context, req ChatRequest, deltaCh chan<- Chunk) (*Result, error) {
	var result *Result
	call := func() error {
		r, err := c.generateStream(ctx, req, deltaCh)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	if c.breaker == nil {
		return result, call()
	}
	err := c.breaker.Execute(call)
	return result, err
}

func (c *Client) generateStream(ctx context.Context, req ChatRequest, deltaCh chan<- Chunk) (*Result, error) {
	apiReq := c.buildAPIRequest(req)
	apiReq.Stream = true

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			resp.Body.Close()
		case <-done:
		}
	}()
	result, err := parseSSEStream(ctx, resp.Body, deltaCh)
	close(done)
	return result, err
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", vendorVersion)
}

func (c *Client) buildAPIRequest(req ChatRequest) *Request {
	apiReq := &Request{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if apiReq.MaxTokens == 0 {
		apiReq.MaxTokens = 8192
	}

	var messages []Message
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			apiReq.System = msg.Content

		case "assistant":
			var blocks []ContentBlock
			if msg.Content != "" {
				blocks = append(blocks, ContentBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, ContentBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Arguments})
			}
			if len(blocks) > 0 {
				messages = append(messages, Message{Role: "assistant", Content: blocks})
			}

		case "tool":
			block := ContentBlock{Type: "tool_result", ToolUseID: msg.ToolCallID, Content: msg.Content}
			if n := len(messages); n > 0 && messages[n-1].Role == "user" && isToolResultMessage(messages[n-1]) {
				messages[n-1].Content = append(messages[n-1].Content, block)
			} else {
				messages = append(messages, Message{Role: "user", Content: []ContentBlock{block}})
			}

		default: // user
			messages = append(messages, Message{
				Role:    "user",
				Content: []ContentBlock{{Type: "text", Text: msg.Content}},
			})
		}
	}
	apiReq.Messages = messages

	for _, t := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: convertSchema(t.InputSchema),
		})
	}

	return apiReq
}

// isToolResultMessage reports whether msg is made entirely of tool_result
// blocks, so consecutive tool ChatMessages fold into one user turn — the
// vendor API requires strictly alternating roles.
func isToolResultMessage(msg Message) bool {
	for _, b := range msg.Content {
		if b.Type != "tool_result" {
			return false
		}
	}
	return len(msg.Content) > 0
}

func parseAPIResponse(body []byte) (*Result, error) {
	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse vendor response: %w", err)
	}

	result := &Result{
		ModelUsed:  apiResp.Model,
		TokensUsed: apiResp.Usage.Total(),
		StopReason: apiResp.StopReason,
	}

	for _, block := range apiResp.Content {
		switch block.Type {
		case "text":
			result.Text += block.Text
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: block.Input})
		}
	}

	return result, nil
}
