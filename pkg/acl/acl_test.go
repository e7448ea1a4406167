package acl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/mcp-gateway/pkg/cache"
	"github.com/tarsy-labs/mcp-gateway/pkg/store"
	"github.com/tarsy-labs/mcp-gateway/pkg/store/memstore"
)

func newTestEvaluator(t *testing.T, cfg *store.AclConfig, users ...*store.User) (*Evaluator, *memstore.AclConfigStore) {
	t.Helper()
	configs := memstore.NewAclConfigStore()
	require.NoError(t, configs.PutAclConfig(context.Background(), cfg))
	userStore := memstore.NewUserStore(users...)
	userCache := cache.New(nil, "acl:user", 0)
	aclCache := cache.New(nil, "acl:config", 0)
	return New(userStore, configs, userCache, aclCache), configs
}

func TestCheck_PublicToolAllowedWithoutUser(t *testing.T) {
	eval, _ := newTestEvaluator(t, &store.AclConfig{
		DefaultPolicy: "deny",
		PublicTools:   []string{"ping"},
	})

	res, err := eval.Check(context.Background(), "ping", "")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheck_DisabledToolAlwaysDenied(t *testing.T) {
	eval, _ := newTestEvaluator(t, &store.AclConfig{
		DefaultPolicy: "open",
		DisabledTools: []string{"danger"},
	})

	res, err := eval.Check(context.Background(), "danger", "anyone@example.com")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "disabled", res.Reason)
}

func TestCheck_UnauthenticatedRequiresUser(t *testing.T) {
	eval, _ := newTestEvaluator(t, &store.AclConfig{DefaultPolicy: "open"})

	res, err := eval.Check(context.Background(), "search", "")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestCheck_DefaultPolicyOpenAllowsKnownUser(t *testing.T) {
	eval, _ := newTestEvaluator(t, &store.AclConfig{DefaultPolicy: "open"},
		&store.User{UserID: "u1", Email: "a@example.com", Active: true})

	res, err := eval.Check(context.Background(), "search", "a@example.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheck_ExplicitACLRequiresMatchingTag(t *testing.T) {
	eval, _ := newTestEvaluator(t, &store.AclConfig{
		DefaultPolicy: "open",
		ToolACLs:      map[string][]string{"book_site_visit": {"sales"}},
	}, &store.User{UserID: "u1", Email: "a@example.com", Active: true, ACLTags: []string{"support"}})

	res, err := eval.Check(context.Background(), "book_site_visit", "a@example.com")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	eval2, _ := newTestEvaluator(t, &store.AclConfig{
		DefaultPolicy: "open",
		ToolACLs:      map[string][]string{"book_site_visit": {"sales"}},
	}, &store.User{UserID: "u2", Email: "b@example.com", Active: true, ACLTags: []string{"sales"}})

	res2, err := eval2.Check(context.Background(), "book_site_visit", "b@example.com")
	require.NoError(t, err)
	assert.True(t, res2.Allowed)
}

func TestCheck_SuperuserBypassesACL(t *testing.T) {
	eval, _ := newTestEvaluator(t, &store.AclConfig{
		DefaultPolicy: "deny",
		ToolACLs:      map[string][]string{"book_site_visit": {"sales"}},
		SuperuserACLs: []string{"admin"},
	}, &store.User{UserID: "u1", Email: "a@example.com", Active: true, ACLTags: []string{"admin"}})

	res, err := eval.Check(context.Background(), "book_site_visit", "a@example.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheck_DeactivatedUserDenied(t *testing.T) {
	eval, _ := newTestEvaluator(t, &store.AclConfig{DefaultPolicy: "open"},
		&store.User{UserID: "u1", Email: "a@example.com", Active: false})

	res, err := eval.Check(context.Background(), "search", "a@example.com")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "deactivated", res.Reason)
}

func TestFilterForListing_RemovesDisabledAndDenied(t *testing.T) {
	eval, _ := newTestEvaluator(t, &store.AclConfig{
		DefaultPolicy: "deny",
		DisabledTools: []string{"danger"},
		ToolACLs:      map[string][]string{"book_site_visit": {"sales"}},
	}, &store.User{UserID: "u1", Email: "a@example.com", Active: true, ACLTags: []string{"sales"}})

	out, err := eval.FilterForListing(context.Background(), []string{"danger", "book_site_visit", "ping"}, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"book_site_visit"}, out)
}

func TestAdmin_UpsertAndDeleteToolACLInvalidatesCache(t *testing.T) {
	eval, configs := newTestEvaluator(t, &store.AclConfig{DefaultPolicy: "deny"},
		&store.User{UserID: "u1", Email: "a@example.com", Active: true, ACLTags: []string{"sales"}})
	admin := NewAdmin(eval, configs)
	ctx := context.Background()

	res, err := eval.Check(ctx, "book_site_visit", "a@example.com")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	require.NoError(t, admin.UpsertToolACL(ctx, "book_site_visit", []string{"sales"}))

	res, err = eval.Check(ctx, "book_site_visit", "a@example.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	require.NoError(t, admin.DeleteToolACL(ctx, "book_site_visit"))
	res, err = eval.Check(ctx, "book_site_visit", "a@example.com")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}
