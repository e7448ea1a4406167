package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgUserStore reads User records from the "users" table via pgx directly
// (see DESIGN.md for why Ent's generated client is not used here).
type PgUserStore struct {
	pool *pgxpool.Pool
}

func NewPgUserStore(pool *pgxpool.Pool) *PgUserStore {
	return &PgUserStore{pool: pool}
}

func (s *PgUserStore) GetUserByID(ctx context.Context, userID string) (*User, error) {
	return s.queryOne(ctx, "user_id = $1", userID)
}

func (s *PgUserStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.queryOne(ctx, "email = $1", email)
}

func (s *PgUserStore) queryOne(ctx context.Context, where string, arg string) (*User, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT user_id, email, display_name, acl_tags, active, admin FROM users WHERE %s`, where,
	), arg)

	var u User
	if err := row.Scan(&u.UserID, &u.Email, &u.DisplayName, &u.ACLTags, &u.Active, &u.Admin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
