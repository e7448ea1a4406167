package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

func TestSessionStore_OwnerScopedGet(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "user-1", "", "isprava")
	require.NoError(t, err)

	_, err = s.GetSession(ctx, sess.SessionID, "user-2")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetSession(ctx, sess.SessionID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, got.SessionID)
}

func TestSessionStore_AppendAndGetMessagesOrdered(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, "user-1", "", "")
	require.NoError(t, err)

	for i, content := range []string{"first", "second", "third"} {
		role := store.RoleUser
		if i%2 == 1 {
			role = store.RoleAssistant
		}
		require.NoError(t, s.AppendMessage(ctx, &store.Message{SessionID: sess.SessionID, Role: role, Content: content}))
	}

	msgs, err := s.GetMessages(ctx, sess.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "third", msgs[2].Content)
}

func TestSessionStore_GetMessagesRespectsLimit(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "user-1", "", "")

	for i := 0; i < 5; i++ {
		_ = s.AppendMessage(ctx, &store.Message{SessionID: sess.SessionID, Role: store.RoleUser, Content: "msg"})
	}

	msgs, err := s.GetMessages(ctx, sess.SessionID, 2)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestSessionStore_DeleteSessionRemovesMessages(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "user-1", "", "")
	_ = s.AppendMessage(ctx, &store.Message{SessionID: sess.SessionID, Role: store.RoleUser, Content: "hi"})

	require.NoError(t, s.DeleteSession(ctx, sess.SessionID, "user-1"))

	_, err := s.GetSession(ctx, sess.SessionID, "user-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	msgs, err := s.GetMessages(ctx, sess.SessionID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestUserStore_GetByEmail(t *testing.T) {
	u := &store.User{UserID: "u1", Email: "a@example.com", Active: true}
	s := NewUserStore(u)

	got, err := s.GetUserByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
}

func TestAuthStore_CreateAndTouch(t *testing.T) {
	s := NewAuthStore()
	ctx := context.Background()

	sess, err := s.CreateAuthSession(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, s.TouchAuthSession(ctx, sess.Token))

	require.NoError(t, s.DeleteAuthSession(ctx, sess.Token))
	_, err = s.GetAuthSession(ctx, sess.Token)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
