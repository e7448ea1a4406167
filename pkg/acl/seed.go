package acl

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// LoadSeed reads the YAML ACL seed file and upserts it into the document
// store if (and only if) no AclConfig document yet exists — the same
// "load once, never clobber an operator's live edits" rule the teacher's
// config loader applies to its built-in agent/chain definitions.
func LoadSeed(ctx context.Context, configs store.AclConfigStore, path string) error {
	_, err := configs.GetAclConfig(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check existing ACL config: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read ACL seed %s: %w", path, err)
	}

	var cfg store.AclConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("parse ACL seed %s: %w", path, err)
	}
	if cfg.DefaultPolicy == "" {
		cfg.DefaultPolicy = "deny"
	}

	if err := configs.PutAclConfig(ctx, &cfg); err != nil {
		return fmt.Errorf("seed ACL config: %w", err)
	}
	return nil
}
