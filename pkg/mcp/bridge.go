// Package mcp is the gateway's bridge to downstream Model Context Protocol
// servers: connection lifecycle, a global tool-name index, breaker-guarded
// invocation, and backoff-based reconnection.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tarsy-labs/mcp-gateway/pkg/breaker"
	"github.com/tarsy-labs/mcp-gateway/pkg/cache"
	"github.com/tarsy-labs/mcp-gateway/pkg/version"
)

// ErrUnknownTool is returned by CallTool when the name isn't in the index.
var ErrUnknownTool = fmt.Errorf("unknown tool")

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 60 * time.Second
	reconnectAttempts  = 10

	userToolsCacheTTL = 5 * time.Minute
)

// ServerConfig identifies one downstream MCP server.
type ServerConfig struct {
	ID  string
	URL string
}

// ToolDescriptor is a discovered tool, as exposed by getAllTools.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	ServerID    string
}

// serverConnection is the live state for one downstream server.
type serverConnection struct {
	cfg     ServerConfig
	breaker *breaker.Breaker

	mu           sync.RWMutex
	client       *mcpsdk.Client
	session      *mcpsdk.ClientSession
	tools        []*mcpsdk.Tool
	reconnecting bool
}

// Bridge holds the server registry and the global tool_to_server index.
type Bridge struct {
	breakers *breaker.Registry
	cache    *cache.Cache

	mu           sync.RWMutex
	servers      map[string]*serverConnection // server_id → connection
	toolToServer map[string]string            // tool_name → server_id
}

// New constructs a Bridge. userToolsCache namespaces per-user tool listing
// snapshots under "tools:user" per the shared-cache contract.
func New(breakers *breaker.Registry, userToolsCache *cache.Cache) *Bridge {
	return &Bridge{
		breakers:     breakers,
		cache:        userToolsCache,
		servers:      make(map[string]*serverConnection),
		toolToServer: make(map[string]string),
	}
}

// Initialize connects to every configured server, issues listTools, and
// populates the global index. At least one server must succeed; if every
// server fails, startup fails.
func (b *Bridge) Initialize(ctx context.Context, servers []ServerConfig) error {
	var succeeded int
	var lastErr error

	for _, cfg := range servers {
		conn := &serverConnection{
			cfg:     cfg,
			breaker: b.breakers.GetOrCreate(breaker.Config{Name: "mcp-" + cfg.ID, IsTransient: isTransientMCPError}),
		}
		b.mu.Lock()
		b.servers[cfg.ID] = conn
		b.mu.Unlock()

		if err := b.connect(ctx, conn); err != nil {
			lastErr = err
			slog.Warn("mcp: server failed to connect at startup", "server", cfg.ID, "error", err)
			continue
		}
		succeeded++
	}

	if succeeded == 0 {
		return fmt.Errorf("no MCP servers connected: %w", lastErr)
	}
	return nil
}

// connect opens a transport, performs the handshake, lists tools, and
// registers the server's tools in the global index. Any name collision
// with an already-registered tool is logged and the later registration
// loses (first server to register a name wins), since the index is
// supposed to hold globally-unique names.
func (b *Bridge) connect(ctx context.Context, conn *serverConnection) error {
	transport, err := createTransport(conn.cfg.URL)
	if err != nil {
		return fmt.Errorf("create transport for %q: %w", conn.cfg.ID, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, MCPInitTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}, nil)

	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		return fmt.Errorf("connect to %q: %w", conn.cfg.ID, err)
	}

	listCtx, listCancel := context.WithTimeout(ctx, OperationTimeout)
	defer listCancel()
	result, err := session.ListTools(listCtx, nil)
	if err != nil {
		_ = session.Close()
		return fmt.Errorf("list tools from %q: %w", conn.cfg.ID, err)
	}

	b.mu.Lock()
	for _, t := range result.Tools {
		if !validToolName(t.Name) {
			slog.Warn("mcp: tool name rejected, skipping", "server", conn.cfg.ID, "tool", t.Name)
			continue
		}
		if existing, ok := b.toolToServer[t.Name]; ok && existing != conn.cfg.ID {
			slog.Warn("mcp: duplicate tool name across servers, keeping first registration",
				"tool", t.Name, "keeping", existing, "ignoring", conn.cfg.ID)
			continue
		}
		b.toolToServer[t.Name] = conn.cfg.ID
	}
	b.mu.Unlock()

	conn.mu.Lock()
	conn.client = client
	conn.session = session
	conn.tools = result.Tools
	conn.mu.Unlock()

	slog.Info("mcp: server connected", "server", conn.cfg.ID, "tools", len(result.Tools))
	return nil
}

// CallTool invokes a tool by its globally-unique name, passing userEmail as
// request metadata for downstream auditing.
func (b *Bridge) CallTool(ctx context.Context, name string, args map[string]any, userEmail string) (string, error) {
	b.mu.RLock()
	serverID, ok := b.toolToServer[name]
	b.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	b.mu.RLock()
	conn, ok := b.servers[serverID]
	b.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	var text string
	callErr := conn.breaker.Execute(func() error {
		result, err := b.callToolOnce(ctx, conn, name, args, userEmail)
		if err != nil {
			return err
		}
		text = result
		return nil
	})

	if callErr != nil && !errors.Is(callErr, breaker.ErrCircuitOpen) {
		b.maybeReconnect(conn)
	}
	return text, callErr
}

func (b *Bridge) callToolOnce(ctx context.Context, conn *serverConnection, name string, args map[string]any, userEmail string) (string, error) {
	conn.mu.RLock()
	session := conn.session
	conn.mu.RUnlock()
	if session == nil {
		return "", fmt.Errorf("server %q has no active session", conn.cfg.ID)
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	params := &mcpsdk.CallToolParams{Name: name, Arguments: args}
	if userEmail != "" {
		params.Meta = mcpsdk.Meta{"user_email": userEmail}
	}

	result, err := session.CallTool(opCtx, params)
	if err != nil {
		return "", fmt.Errorf("call %q on %q: %w", name, conn.cfg.ID, err)
	}

	return resultToText(result), nil
}

// resultToText concatenates text content blocks; if none are present the
// structured content is serialized as JSON text instead.
func resultToText(result *mcpsdk.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}
	if result.StructuredContent != nil {
		raw, err := json.Marshal(result.StructuredContent)
		if err == nil {
			return string(raw)
		}
	}
	return ""
}

// maybeReconnect spawns the fire-and-forget reconnect task unless one is
// already running for this server.
func (b *Bridge) maybeReconnect(conn *serverConnection) {
	conn.mu.Lock()
	if conn.reconnecting {
		conn.mu.Unlock()
		return
	}
	conn.reconnecting = true
	conn.mu.Unlock()

	go b.reconnectLoop(conn)
}

// reconnectLoop retries with exponential backoff (1s doubling to a 60s
// cap) up to reconnectAttempts times. On success the connection and index
// are updated atomically; on exhaustion the reconnecting flag clears so a
// future failed call can trigger another attempt.
func (b *Bridge) reconnectLoop(conn *serverConnection) {
	defer func() {
		conn.mu.Lock()
		conn.reconnecting = false
		conn.mu.Unlock()
	}()

	delay := reconnectBaseDelay
	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), ReinitTimeout)
		err := b.connect(ctx, conn)
		cancel()
		if err == nil {
			slog.Info("mcp: reconnected", "server", conn.cfg.ID, "attempt", attempt)
			return
		}

		slog.Warn("mcp: reconnect attempt failed", "server", conn.cfg.ID, "attempt", attempt, "error", err)
		delay = time.Duration(math.Min(float64(delay*2), float64(reconnectMaxDelay)))
	}

	slog.Error("mcp: reconnect attempts exhausted", "server", conn.cfg.ID, "attempts", reconnectAttempts)
}

// GetAllTools returns the union of tools across connected servers, order
// unspecified but stable within a snapshot.
func (b *Bridge) GetAllTools() []ToolDescriptor {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]ToolDescriptor, 0, len(b.toolToServer))
	for name, serverID := range b.toolToServer {
		conn := b.servers[serverID]
		conn.mu.RLock()
		var desc ToolDescriptor
		for _, t := range conn.tools {
			if t.Name == name {
				schema, _ := json.Marshal(t.InputSchema)
				desc = ToolDescriptor{Name: t.Name, Description: t.Description, InputSchema: schema, ServerID: serverID}
				break
			}
		}
		conn.mu.RUnlock()
		if desc.Name != "" {
			out = append(out, desc)
		}
	}
	return out
}

// GetToolsForUser queries each connected server's listTools with
// userEmail attached as request metadata, so a server gating tool
// visibility per user returns the right set, and caches the merged result
// (namespace "tools:user", 5 min). If a server's per-user query errors,
// its last-known cached descriptors are substituted so one failing server
// doesn't collapse the whole list.
func (b *Bridge) GetToolsForUser(ctx context.Context, userEmail string) ([]ToolDescriptor, error) {
	var cached []ToolDescriptor
	if ok, err := b.cache.Get(ctx, userEmail, &cached); err == nil && ok {
		return cached, nil
	}

	b.mu.RLock()
	conns := make([]*serverConnection, 0, len(b.servers))
	for _, conn := range b.servers {
		conns = append(conns, conn)
	}
	b.mu.RUnlock()

	var tools []ToolDescriptor
	for _, conn := range conns {
		tools = append(tools, b.toolsForUserFromServer(ctx, conn, userEmail)...)
	}

	_ = b.cache.Set(ctx, userEmail, tools, userToolsCacheTTL)
	return tools, nil
}

// toolsForUserFromServer issues a per-user listTools against one server,
// falling back to its last successfully connected tool set if the
// per-user query fails.
func (b *Bridge) toolsForUserFromServer(ctx context.Context, conn *serverConnection, userEmail string) []ToolDescriptor {
	conn.mu.RLock()
	session := conn.session
	fallback := conn.tools
	conn.mu.RUnlock()

	if session == nil {
		return toolDescriptorsFromSDK(fallback, conn.cfg.ID)
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	params := &mcpsdk.ListToolsParams{}
	if userEmail != "" {
		params.Meta = mcpsdk.Meta{"user_email": userEmail}
	}

	result, err := session.ListTools(opCtx, params)
	if err != nil {
		slog.Warn("mcp: per-user tool listing failed, using cached descriptors", "server", conn.cfg.ID, "user", userEmail, "error", err)
		return toolDescriptorsFromSDK(fallback, conn.cfg.ID)
	}

	return toolDescriptorsFromSDK(result.Tools, conn.cfg.ID)
}

// toolDescriptorsFromSDK converts SDK tool results to the bridge's own
// ToolDescriptor shape, dropping any name the router wouldn't accept.
func toolDescriptorsFromSDK(tools []*mcpsdk.Tool, serverID string) []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		if !validToolName(t.Name) {
			continue
		}
		schema, _ := json.Marshal(t.InputSchema)
		out = append(out, ToolDescriptor{Name: t.Name, Description: t.Description, InputSchema: schema, ServerID: serverID})
	}
	return out
}

// Close shuts down every server session.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for id, conn := range b.servers {
		conn.mu.RLock()
		session := conn.session
		conn.mu.RUnlock()
		if session == nil {
			continue
		}
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %q: %w", id, err)
		}
	}
	return firstErr
}

// BreakerSnapshot returns the state of every breaker in the shared
// registry, the LLM client's breaker included, not only this bridge's
// servers. /api/health reads and partitions the registry itself.
func (b *Bridge) BreakerSnapshot() map[string]string {
	return b.breakers.Snapshot()
}

func isTransientMCPError(err error) bool {
	return ClassifyError(err) != NoRetry
}
