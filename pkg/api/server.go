// Package api is the HTTP/SSE surface (§6): authentication gate, rate
// limiting, session CRUD, the two chat entry points, and the admin ACL
// CRUD that feeds pkg/acl. Built on Echo v5, the framework the teacher's
// own mature pkg/api package uses.
package api

import (
	"context"
	"net"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/tarsy-labs/mcp-gateway/pkg/acl"
	"github.com/tarsy-labs/mcp-gateway/pkg/agent"
	"github.com/tarsy-labs/mcp-gateway/pkg/breaker"
	"github.com/tarsy-labs/mcp-gateway/pkg/mcp"
	"github.com/tarsy-labs/mcp-gateway/pkg/ratelimit"
	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	agent    *agent.Agent
	sessions store.SessionStore
	users    store.UserStore
	auth     store.AuthStore
	admin    *acl.Admin
	bridge   *mcp.Bridge
	breakers *breaker.Registry
	limiter  *ratelimit.Limiter

	rateLimitEnabled bool
}

// NewServer wires every dependency the HTTP surface needs and registers
// all routes.
func NewServer(
	ag *agent.Agent,
	sessions store.SessionStore,
	users store.UserStore,
	auth store.AuthStore,
	admin *acl.Admin,
	bridge *mcp.Bridge,
	breakers *breaker.Registry,
	limiter *ratelimit.Limiter,
	rateLimitEnabled bool,
) *Server {
	s := &Server{
		echo:             echo.New(),
		agent:            ag,
		sessions:         sessions,
		users:            users,
		auth:             auth,
		admin:            admin,
		bridge:           bridge,
		breakers:         breakers,
		limiter:          limiter,
		rateLimitEnabled: rateLimitEnabled,
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers every route from §6's table.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/api/health", s.healthHandler)

	authGroup := s.echo.Group("/api/auth")
	authGroup.POST("/google", s.googleAuthHandler, s.overallRateLimit())
	authGroup.GET("/me", s.meHandler, s.requireAuth)
	authGroup.POST("/logout", s.logoutHandler, s.requireAuth)

	sessions := s.echo.Group("/api/sessions", s.requireAuth, s.overallRateLimit())
	sessions.POST("", s.createSessionHandler)
	sessions.GET("", s.listSessionsHandler)
	sessions.GET("/:id", s.getSessionHandler)
	sessions.DELETE("/:id", s.deleteSessionHandler)
	sessions.POST("/:id/messages", s.sendMessageHandler, s.chatRateLimit())
	sessions.GET("/:id/messages/stream", s.streamMessageHandler, s.chatRateLimit())

	adminGroup := s.echo.Group("/api/admin/acl", s.requireAuth, s.requireAdmin)
	adminGroup.GET("/tools", s.listToolACLsHandler)
	adminGroup.PUT("/tools/:name", s.upsertToolACLHandler)
	adminGroup.DELETE("/tools/:name", s.deleteToolACLHandler)
	adminGroup.GET("/global", s.getGlobalACLHandler)
	adminGroup.PUT("/global", s.putGlobalACLHandler)
	adminGroup.GET("/available-acls", s.availableACLsHandler)
	adminGroup.GET("/available-tools", s.availableToolsHandler)
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /api/health, building the {status, circuits}
// shape from §6 plus the rate limiter's fallback-mode flag.
func (s *Server) healthHandler(c *echo.Context) error {
	// s.breakers is the one registry shared by the LLM client and the MCP
	// bridge, so it holds every breaker by name ("claude-api", "mcp-<id>");
	// split it into the {claude, mcp:{<id>:state}} shape §6
	// asks for rather than using mcp.Bridge's own (unfiltered) snapshot.
	circuits := CircuitsResponse{MCP: make(map[string]string)}
	for name, state := range s.breakers.Snapshot() {
		switch {
		case name == "claude-api":
			circuits.Claude = state
		case strings.HasPrefix(name, "mcp-"):
			circuits.MCP[strings.TrimPrefix(name, "mcp-")] = state
		}
	}
	if circuits.Claude == "" {
		circuits.Claude = "unknown"
	}

	status := "healthy"
	for _, state := range circuits.MCP {
		if state == "open" {
			status = "degraded"
			break
		}
	}
	if circuits.Claude == "open" {
		status = "degraded"
	}

	resp := HealthResponse{
		Status:              status,
		Circuits:            circuits,
		RateLimiterFallback: false,
	}
	if s.limiter != nil {
		resp.RateLimiterFallback = s.limiter.UsingFallback()
	}

	return c.JSON(http.StatusOK, resp)
}
