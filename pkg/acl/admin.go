package acl

import (
	"context"
	"sort"

	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// Admin exposes the mutation operations behind the gateway's admin ACL
// endpoints (§4.7). Every mutation invalidates the shared cache so the
// next Check/FilterForListing call observes the new config immediately
// instead of waiting out the TTL.
type Admin struct {
	eval    *Evaluator
	configs store.AclConfigStore
}

func NewAdmin(eval *Evaluator, configs store.AclConfigStore) *Admin {
	return &Admin{eval: eval, configs: configs}
}

// GetConfig returns the current effective config, bypassing the cache so
// the admin UI always reflects the store's true state.
func (a *Admin) GetConfig(ctx context.Context) (*store.AclConfig, error) {
	return a.configs.GetAclConfig(ctx)
}

// PutConfig replaces the whole document. Used by the admin UI's bulk-edit
// form.
func (a *Admin) PutConfig(ctx context.Context, cfg *store.AclConfig) error {
	if err := a.configs.PutAclConfig(ctx, cfg); err != nil {
		return err
	}
	a.eval.aclCache.Invalidate(ctx, configCacheKey)
	return nil
}

// UpsertToolACL sets (or replaces) the ACL tag list required to call a
// single tool, leaving the rest of the config untouched.
func (a *Admin) UpsertToolACL(ctx context.Context, toolName string, requiredTags []string) error {
	cfg, err := a.configs.GetAclConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.ToolACLs == nil {
		cfg.ToolACLs = make(map[string][]string)
	}
	cfg.ToolACLs[toolName] = requiredTags
	return a.PutConfig(ctx, cfg)
}

// DeleteToolACL removes any explicit ACL requirement for a tool, reverting
// it to the default policy (unless it's also in PublicTools/DisabledTools).
func (a *Admin) DeleteToolACL(ctx context.Context, toolName string) error {
	cfg, err := a.configs.GetAclConfig(ctx)
	if err != nil {
		return err
	}
	delete(cfg.ToolACLs, toolName)
	return a.PutConfig(ctx, cfg)
}

// SetDisabled adds or removes a tool from the disabled list.
func (a *Admin) SetDisabled(ctx context.Context, toolName string, disabled bool) error {
	cfg, err := a.configs.GetAclConfig(ctx)
	if err != nil {
		return err
	}
	cfg.DisabledTools = setMembership(cfg.DisabledTools, toolName, disabled)
	return a.PutConfig(ctx, cfg)
}

// SetPublic adds or removes a tool from the public (no-auth) list.
func (a *Admin) SetPublic(ctx context.Context, toolName string, public bool) error {
	cfg, err := a.configs.GetAclConfig(ctx)
	if err != nil {
		return err
	}
	cfg.PublicTools = setMembership(cfg.PublicTools, toolName, public)
	return a.PutConfig(ctx, cfg)
}

// ListToolNames returns every tool name the config currently mentions
// (disabled, public, or ACL-gated), sorted for stable admin-UI rendering.
func ListToolNames(cfg *store.AclConfig) []string {
	seen := make(map[string]struct{})
	for _, t := range cfg.DisabledTools {
		seen[t] = struct{}{}
	}
	for _, t := range cfg.PublicTools {
		seen[t] = struct{}{}
	}
	for t := range cfg.ToolACLs {
		seen[t] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for t := range seen {
		names = append(names, t)
	}
	sort.Strings(names)
	return names
}

func setMembership(list []string, v string, present bool) []string {
	idx := -1
	for i, s := range list {
		if s == v {
			idx = i
			break
		}
	}
	if present {
		if idx == -1 {
			return append(list, v)
		}
		return list
	}
	if idx == -1 {
		return list
	}
	return append(list[:idx], list[idx+1:]...)
}
