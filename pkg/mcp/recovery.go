package mcp

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// RecoveryAction classifies an MCP error: one the session survives, or one
// that leaves the session broken until it is recreated. The per-server
// breaker uses it to decide which failures to count (isTransientMCPError).
// CallTool does not consult it: every failed call other than a CircuitOpen
// rejection re-raises the error to the caller and starts the background
// reconnect task (Bridge.maybeReconnect); there is no synchronous retry.
type RecoveryAction int

const (
	// NoRetry means the failure is not a transport problem: bad request,
	// auth failure, a slow tool that timed out. Reconnecting wouldn't help.
	NoRetry RecoveryAction = iota
	// RetryNewSession means the session itself is broken and must be torn
	// down and recreated before the server is usable again.
	RetryNewSession
)

const (
	// OperationTimeout bounds a single CallTool/ListTools round trip.
	// Generous on purpose: some downstream tools are legitimately slow.
	OperationTimeout = 90 * time.Second

	// MCPInitTimeout bounds a server's dial-and-handshake in connect. A
	// reconnect attempt runs connect under ReinitTimeout's shorter
	// deadline, which is the one that takes effect there.
	MCPInitTimeout = 30 * time.Second

	// ReinitTimeout bounds recreating a session's connect+listTools pair
	// during the reconnect loop, distinct from MCPInitTimeout's first
	// connect: a server recovering from an outage gets less patience per
	// attempt than a cold start does.
	ReinitTimeout = 10 * time.Second
)

// ClassifyError decides whether an MCP operation error is worth tearing
// down and recreating the session for. It backs isTransientMCPError,
// which in turn is the per-server breaker's IsTransient predicate:
// RetryNewSession failures are not counted against the breaker.
func ClassifyError(err error) RecoveryAction {
	if err == nil {
		return NoRetry
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NoRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NoRetry
		}
		return RetryNewSession
	}

	if isTransportFailure(err) {
		return RetryNewSession
	}
	if isProtocolError(err) {
		return NoRetry
	}

	return NoRetry
}

// transportFailureSubstrings catches transport-level errors the SDK
// doesn't wrap in a typed net.Error — SSE connections report some of
// these as plain strings.
var transportFailureSubstrings = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"connection closed",
	"no such host",
}

func isTransportFailure(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range transportFailureSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// isProtocolError reports whether err is a well-formed JSON-RPC error
// from the downstream server (malformed call, unknown method) rather
// than a transport problem — recreating the session wouldn't fix it.
func isProtocolError(err error) bool {
	var wireErr *jsonrpc.Error
	if !errors.As(err, &wireErr) {
		return false
	}
	switch wireErr.Code {
	case jsonrpc.CodeParseError, jsonrpc.CodeInvalidRequest, jsonrpc.CodeMethodNotFound, jsonrpc.CodeInvalidParams:
		return true
	default:
		return false
	}
}
