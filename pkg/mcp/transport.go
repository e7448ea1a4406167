package mcp

import (
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// createTransport builds the SSE client transport for a configured server.
// The bridge is SSE-only — MCP servers in this deployment are reached over
// HTTP/SSE, never spawned as local subprocesses.
func createTransport(url string) (mcpsdk.Transport, error) {
	if url == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	return &mcpsdk.SSEClientTransport{Endpoint: url}, nil
}
