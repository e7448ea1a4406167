package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuthTokenTTL is the sliding window every successful validation extends.
const AuthTokenTTL = 24 * time.Hour

// PgAuthStore persists AuthSession rows via pgx directly.
type PgAuthStore struct {
	pool *pgxpool.Pool
}

func NewPgAuthStore(pool *pgxpool.Pool) *PgAuthStore {
	return &PgAuthStore{pool: pool}
}

func (s *PgAuthStore) CreateAuthSession(ctx context.Context, userID string) (*AuthSession, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	now := time.Now().UTC()
	sess := &AuthSession{
		Token:        token,
		UserID:       userID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(AuthTokenTTL),
		LastAccessed: now,
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO auth_sessions (token, user_id, created_at, expires_at, last_accessed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt, sess.LastAccessed)
	if err != nil {
		return nil, fmt.Errorf("insert auth session: %w", err)
	}
	return sess, nil
}

func (s *PgAuthStore) GetAuthSession(ctx context.Context, token string) (*AuthSession, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT token, user_id, created_at, expires_at, last_accessed_at
		 FROM auth_sessions WHERE token = $1`, token)

	var sess AuthSession
	err := row.Scan(&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt, &sess.LastAccessed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query auth session: %w", err)
	}

	if time.Now().UTC().After(sess.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &sess, nil
}

// TouchAuthSession extends expires_at by AuthTokenTTL from now, implementing
// the sliding 24h window: every validation refreshes expires_at.
func (s *PgAuthStore) TouchAuthSession(ctx context.Context, token string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`UPDATE auth_sessions SET expires_at = $1, last_accessed_at = $2 WHERE token = $3`,
		now.Add(AuthTokenTTL), now, token)
	if err != nil {
		return fmt.Errorf("touch auth session: %w", err)
	}
	return nil
}

func (s *PgAuthStore) DeleteAuthSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete auth session: %w", err)
	}
	return nil
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
