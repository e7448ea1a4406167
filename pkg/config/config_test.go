package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeServersFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp-servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadMCPServers(t *testing.T) {
	path := writeServersFile(t, `
servers:
  - id: helpdesk
    url: https://mcp-helpdesk.internal/sse
  - id: sales
    url: https://mcp-sales.internal/sse
`)

	servers, err := loadMCPServers(path)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "helpdesk", servers[0].ID)
	assert.Equal(t, "https://mcp-sales.internal/sse", servers[1].URL)
}

func TestLoadMCPServers_MissingIDRejected(t *testing.T) {
	path := writeServersFile(t, `
servers:
  - url: https://mcp-helpdesk.internal/sse
`)
	_, err := loadMCPServers(path)
	assert.Error(t, err)
}

func TestLoadMCPServers_ExpandsEnv(t *testing.T) {
	t.Setenv("MCP_TOKEN", "secret123")
	path := writeServersFile(t, `
servers:
  - id: helpdesk
    url: https://mcp-helpdesk.internal/sse?token=${MCP_TOKEN}
`)
	servers, err := loadMCPServers(path)
	require.NoError(t, err)
	assert.Contains(t, servers[0].URL, "secret123")
}

func TestLoad_RequiresMCPServersPath(t *testing.T) {
	t.Setenv("MCP_SERVERS_PATH", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_FullEnvironment(t *testing.T) {
	path := writeServersFile(t, `
servers:
  - id: helpdesk
    url: https://mcp-helpdesk.internal/sse
`)
	t.Setenv("MCP_SERVERS_PATH", path)
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("ACL_SEED_PATH", path)
	t.Setenv("LOCATIONS_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLMAPIKey)
	assert.Equal(t, "gateway", cfg.MongoDatabase)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Empty(t, cfg.CacheURL)
}
