package store

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"estate-dashboard/internal/auth"
)

type Store struct {
	pool *pgxpool.Pool
	key  *auth.Key
}

// New returns a store that seals backend tokens with key.
func New(pool *pgxpool.Pool, key *auth.Key) *Store {
	return &Store{pool: pool, key: key}
}

// Migrate applies the schema file at path.
func (s *Store) Migrate(ctx context.Context, path string) error {
	sql, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}
