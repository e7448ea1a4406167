// Package acl implements the per-user tool-access evaluator (§4.4) and the
// admin-managed effective ACL config (§4.7).
package acl

import (
	"context"
	"errors"
	"time"

	"github.com/tarsy-labs/mcp-gateway/pkg/cache"
	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// ErrDenied is the admin-access error pkg/api's mapErr turns into a 403.
// No code path in this module returns it: the admin gate writes its 403
// directly, and Check never returns an error for a deny — it returns
// (false, reason).
var ErrDenied = errors.New("admin access required")

const (
	userCacheTTL   = 5 * time.Minute
	configCacheTTL = 5 * time.Minute
	configCacheKey = "global"
)

// Evaluator answers tool-access questions using a two-tier cache: the
// shared cache (Redis or its in-memory fallback) backs both the per-user
// record lookup and the effective config snapshot, so repeated checks for
// the same user/tool avoid round trips to the relational and document
// stores.
type Evaluator struct {
	users     store.UserStore
	configs   store.AclConfigStore
	userCache *cache.Cache
	aclCache  *cache.Cache
}

// New constructs an Evaluator. userCache and aclCache should be namespaced
// "acl:user" and "acl:config" respectively per §4.4/§4.7.
func New(users store.UserStore, configs store.AclConfigStore, userCache, aclCache *cache.Cache) *Evaluator {
	return &Evaluator{users: users, configs: configs, userCache: userCache, aclCache: aclCache}
}

// Result is the outcome of Check.
type Result struct {
	Allowed bool
	Reason  string
}

// effectiveConfig reads the shared-cache snapshot first (stale-allowed),
// falling back to the document store on a cache miss and repopulating the
// cache so subsequent checks hit it.
func (e *Evaluator) effectiveConfig(ctx context.Context) (*store.AclConfig, error) {
	var cfg store.AclConfig
	if ok, err := e.aclCache.Get(ctx, configCacheKey, &cfg); err == nil && ok {
		return &cfg, nil
	}

	fromStore, err := e.configs.GetAclConfig(ctx)
	if err != nil {
		return nil, err
	}
	_ = e.aclCache.Set(ctx, configCacheKey, fromStore, configCacheTTL)
	return fromStore, nil
}

// resolveUser reads the per-user record from the shared cache, falling
// back to the relational store on a miss.
func (e *Evaluator) resolveUser(ctx context.Context, email string) (*store.User, error) {
	var u store.User
	if ok, err := e.userCache.Get(ctx, email, &u); err == nil && ok {
		return &u, nil
	}

	fromStore, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	_ = e.userCache.Set(ctx, email, fromStore, userCacheTTL)
	return fromStore, nil
}

// Check implements the decision sequence from §4.4.
func (e *Evaluator) Check(ctx context.Context, toolName, userEmail string) (Result, error) {
	cfg, err := e.effectiveConfig(ctx)
	if err != nil {
		return Result{}, err
	}

	if contains(cfg.DisabledTools, toolName) {
		return Result{Allowed: false, Reason: "disabled"}, nil
	}

	_, hasExplicitACL := cfg.ToolACLs[toolName]
	if contains(cfg.PublicTools, toolName) && !hasExplicitACL {
		return Result{Allowed: true}, nil
	}

	if userEmail == "" {
		return Result{Allowed: false, Reason: "authentication required"}, nil
	}

	user, err := e.resolveUser(ctx, userEmail)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Allowed: false, Reason: "unknown user"}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if !user.Active {
		return Result{Allowed: false, Reason: "deactivated"}, nil
	}

	if intersects(user.ACLTags, cfg.SuperuserACLs) {
		return Result{Allowed: true}, nil
	}

	required := cfg.ToolACLs[toolName]
	if len(required) == 0 {
		return Result{Allowed: cfg.DefaultPolicy == "open"}, nil
	}

	if intersects(user.ACLTags, required) {
		return Result{Allowed: true}, nil
	}
	return Result{Allowed: false, Reason: "missing required ACL tag"}, nil
}

// FilterForListing removes disabled tools; without a user, discovery is
// permissive (enforcement is re-applied at call time). With a user, the
// same rules as Check are applied per tool.
func (e *Evaluator) FilterForListing(ctx context.Context, tools []string, userEmail string) ([]string, error) {
	cfg, err := e.effectiveConfig(ctx)
	if err != nil {
		return nil, err
	}

	var remaining []string
	for _, t := range tools {
		if contains(cfg.DisabledTools, t) {
			continue
		}
		remaining = append(remaining, t)
	}

	if userEmail == "" {
		return remaining, nil
	}

	var out []string
	for _, t := range remaining {
		res, err := e.Check(ctx, t, userEmail)
		if err != nil {
			return nil, err
		}
		if res.Allowed {
			out = append(out, t)
		}
	}
	return out, nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if contains(b, x) {
			return true
		}
	}
	return false
}
