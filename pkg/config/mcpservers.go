package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// mcpServersFile is the top-level shape of MCP_SERVERS_PATH.
type mcpServersFile struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// loadMCPServers reads and parses the YAML file at path, expanding
// environment variables first (the same ExpandEnv pass used throughout
// this package) so server URLs can reference secrets without committing
// them to the file.
func loadMCPServers(path string) ([]MCPServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	data = ExpandEnv(data)

	var file mcpServersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	for _, s := range file.Servers {
		if s.ID == "" {
			return nil, NewValidationError("mcp_server", s.URL, "id", ErrMissingRequiredField)
		}
		if s.URL == "" {
			return nil, NewValidationError("mcp_server", s.ID, "url", ErrMissingRequiredField)
		}
	}

	return file.Servers, nil
}
