// Package config loads the gateway's environment-driven configuration plus
// the small amount of YAML that doesn't belong in environment variables:
// the MCP server list, the ACL seed, and the canonical location list.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// MCPServerConfig is one entry of the MCP server registry loaded from
// MCP_SERVERS_PATH.
type MCPServerConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// Config is the umbrella configuration object returned by Load.
type Config struct {
	// MCP bridge
	MCPServers []MCPServerConfig

	// LLM vendor client
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// Document store (sessions, messages, ACL config)
	MongoURI      string
	MongoDatabase string

	// Shared cache; empty means in-memory fallback mode is active.
	CacheURL string

	// Admin ACL seed (§4.9) and canonical location list (§4.10)
	ACLSeedPath   string
	LocationsPath string

	Debug bool

	// RateLimitEnabled exists so tests can disable rate limiting without
	// threading a separate flag through every handler constructor.
	RateLimitEnabled bool
}

// Load reads the environment contract: MCP server endpoints (via
// MCP_SERVERS_PATH), the LLM bearer token, document/relational store
// connection strings, optional shared-cache URL, model identifier, debug
// flag, and the ACL seed path.
func Load() (*Config, error) {
	mcpServersPath := os.Getenv("MCP_SERVERS_PATH")
	if mcpServersPath == "" {
		return nil, fmt.Errorf("MCP_SERVERS_PATH is required")
	}
	servers, err := loadMCPServers(mcpServersPath)
	if err != nil {
		return nil, fmt.Errorf("load MCP servers: %w", err)
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("MCP_SERVERS_PATH %s defines no servers", mcpServersPath)
	}

	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI is required")
	}

	aclSeedPath := os.Getenv("ACL_SEED_PATH")
	if aclSeedPath == "" {
		return nil, fmt.Errorf("ACL_SEED_PATH is required")
	}

	locationsPath := os.Getenv("LOCATIONS_PATH")
	if locationsPath == "" {
		return nil, fmt.Errorf("LOCATIONS_PATH is required")
	}

	debug, _ := strconv.ParseBool(os.Getenv("DEBUG"))

	cfg := &Config{
		MCPServers:       servers,
		LLMBaseURL:       envOrDefault("LLM_BASE_URL", "https://api.anthropic.com"),
		LLMAPIKey:        apiKey,
		LLMModel:         envOrDefault("LLM_MODEL", "claude-3-5-sonnet-20241022"),
		MongoURI:         mongoURI,
		MongoDatabase:    envOrDefault("MONGO_DATABASE", "gateway"),
		CacheURL:         os.Getenv("CACHE_URL"),
		ACLSeedPath:      aclSeedPath,
		LocationsPath:    locationsPath,
		Debug:            debug,
		RateLimitEnabled: true,
	}

	return cfg, nil
}

// UserCacheTTL / ACLCacheTTL are the two-tier ACL evaluator cache TTLs (§4.4).
const (
	UserCacheTTL = 5 * time.Minute
	ACLCacheTTL  = 5 * time.Minute
)

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
