package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// toolCallAccumulator tracks a tool_use block being streamed.
type toolCallAccumulator struct {
	ID          string
	Name        string
	ArgsBuilder strings.Builder
}

// parseSSEStream reads the vendor's event-based SSE format:
//
//	message_start        → initial message metadata
//	content_block_start  → new content block (text, tool_use, thinking)
//	content_block_delta   → incremental update to current block
//	content_block_stop    → current block finished
//	message_delta         → stop_reason + final usage
//	message_stop          → stream complete
func parseSSEStream(ctx context.Context, reader io.Reader, deltaCh chan<- Chunk) (*Result, error) {
	idleTimeout := 60 * time.Second
	tReader := &timedReader{r: reader, timeout: idleTimeout}

	scanner := bufio.NewScanner(tReader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var contentBuilder strings.Builder
	var modelUsed string
	var tokensUsed int
	var finishReason string
	toolCalls := make(map[int]*toolCallAccumulator)
	var currentEventType string

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := scanner.Text()

		if strings.HasPrefix(line, "event: ") {
			currentEventType = strings.TrimPrefix(line, "event: ")
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		switch currentEventType {
		case "message_start":
			var evt StreamEvent
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				slog.Debug("llm: skip unparseable message_start", "error", err)
				continue
			}
			if evt.Message != nil {
				modelUsed = evt.Message.Model
				if evt.Message.Usage.Total() > 0 {
					tokensUsed = evt.Message.Usage.Total()
				}
			}

		case "content_block_start":
			var evt StreamEvent
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				slog.Debug("llm: skip unparseable content_block_start", "error", err)
				continue
			}
			if evt.ContentBlock != nil && evt.ContentBlock.Type == "tool_use" {
				toolCalls[evt.Index] = &toolCallAccumulator{ID: evt.ContentBlock.ID, Name: evt.ContentBlock.Name}
			}

		case "content_block_delta":
			var evt StreamEvent
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				slog.Debug("llm: skip unparseable content_block_delta", "error", err)
				continue
			}
			if evt.Delta == nil {
				continue
			}
			switch evt.Delta.Type {
			case "text_delta":
				if evt.Delta.Text != "" {
					contentBuilder.WriteString(evt.Delta.Text)
					deltaCh <- Chunk{DeltaText: evt.Delta.Text}
				}
			case "input_json_delta":
				if acc, ok := toolCalls[evt.Index]; ok {
					acc.ArgsBuilder.WriteString(evt.Delta.PartialJSON)
				}
			case "thinking_delta":
				// extended-thinking content is never surfaced to the client
			}

		case "message_delta":
			var evt StreamEvent
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				slog.Debug("llm: skip unparseable message_delta", "error", err)
				continue
			}
			if evt.Delta != nil && evt.Delta.StopReason != "" {
				finishReason = evt.Delta.StopReason
			}
			if evt.Usage != nil && evt.Usage.Total() > 0 {
				tokensUsed = evt.Usage.Total()
			}

		case "message_stop":
			// handled by scanner reaching EOF

		case "ping":
			// heartbeat

		default:
			slog.Debug("llm: unknown SSE event type", "type", currentEventType)
		}

		currentEventType = ""
	}

	if err := scanner.Err(); err != nil {
		if isIdleTimeoutErr(err) {
			slog.Warn("llm: SSE stream idle timeout", "idle_timeout", idleTimeout)
			if contentBuilder.Len() == 0 && len(toolCalls) == 0 {
				return nil, fmt.Errorf("SSE stream stalled: no data for %v", idleTimeout)
			}
		} else {
			return nil, fmt.Errorf("SSE scan error: %w", err)
		}
	}

	if finishReason != "" {
		deltaCh <- Chunk{FinishReason: finishReason}
	}

	contentStr := contentBuilder.String()

	result := &Result{
		Text:       contentStr,
		ModelUsed:  modelUsed,
		TokensUsed: tokensUsed,
		StopReason: finishReason,
	}

	// toolCalls is keyed by content-block index, which also counts text and
	// thinking blocks, so walk every index up to the highest one seen.
	maxIndex := -1
	for i := range toolCalls {
		if i > maxIndex {
			maxIndex = i
		}
	}
	for i := 0; i <= maxIndex; i++ {
		acc, ok := toolCalls[i]
		if !ok {
			continue
		}
		var args map[string]any
		if argsStr := acc.ArgsBuilder.String(); argsStr != "" {
			if err := json.Unmarshal([]byte(argsStr), &args); err != nil {
				slog.Warn("llm: failed to parse tool call args", "tool", acc.Name, "error", err)
				continue
			}
		}
		tc := ToolCall{ID: acc.ID, Name: acc.Name, Arguments: args}
		result.ToolCalls = append(result.ToolCalls, tc)
		deltaCh <- Chunk{ToolCall: &tc}
	}

	return result, nil
}

var errIdleTimeout = fmt.Errorf("SSE read idle timeout")

type timedReader struct {
	r       io.Reader
	timeout time.Duration
}

func (t *timedReader) Read(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := t.r.Read(p)
		ch <- result{n, err}
	}()
	select {
	case res := <-ch:
		return res.n, res.err
	case <-time.After(t.timeout):
		return 0, errIdleTimeout
	}
}

func isIdleTimeoutErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "SSE read idle timeout")
}
