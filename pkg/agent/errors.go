package agent

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tarsy-labs/mcp-gateway/pkg/breaker"
	"github.com/tarsy-labs/mcp-gateway/pkg/llm"
)

// overloadedStatusCode is the vendor's status for "model overloaded,
// retry later" — distinct from 429 rate limiting.
const overloadedStatusCode = 529

// friendlyChatError maps an agent loop failure to the message sent over
// SSE, mirroring pkg/api/errors.go's mapErr: the caller logs err, this
// only ever returns text safe to hand to the client.
func friendlyChatError(err error) string {
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == overloadedStatusCode || strings.Contains(strings.ToLower(statusErr.Body), "overloaded"):
			return "service busy, please try again shortly"
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return "too many requests, please try again shortly"
		}
	}
	if errors.Is(err, breaker.ErrCircuitOpen) {
		return "service temporarily unavailable"
	}
	return "something went wrong processing your request"
}
