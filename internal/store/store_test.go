package store_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"estate-dashboard/internal/auth"
	"estate-dashboard/internal/model"
	"estate-dashboard/internal/session"
	"estate-dashboard/internal/store"
)

func setup(t *testing.T) *store.Store {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pool.Close)
	key, err := auth.DeriveKey("store-test-secret-0123", "sessions")
	if err != nil {
		t.Fatal(err)
	}
	st := store.New(pool, key)
	if err := st.Migrate(context.Background(), "../../db/migrations/001_init.sql"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func newSession(userID string, ttl time.Duration) *model.Session {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Session{
		ID:        auth.NewSessionID(),
		Token:     "backend-" + userID,
		Role:      model.RoleAdmin,
		UserID:    userID,
		UserName:  "Test Admin",
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestSaveLoadSession(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	s := newSession(auth.NewSessionID(), time.Hour)

	if err := st.SaveSession(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := st.LoadSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Token != s.Token || got.Role != s.Role || got.UserName != s.UserName {
		t.Errorf("got %+v", got)
	}
	if !got.ExpiresAt.Equal(s.ExpiresAt) {
		t.Errorf("expiry: got %v want %v", got.ExpiresAt, s.ExpiresAt)
	}
}

func TestLoadMissingSession(t *testing.T) {
	st := setup(t)
	_, err := st.LoadSession(context.Background(), auth.NewSessionID())
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteAndRevoke(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	uid := auth.NewSessionID()
	a := newSession(uid, time.Hour)
	b := newSession(uid, time.Hour)
	for _, s := range []*model.Session{a, b} {
		if err := st.SaveSession(ctx, s); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	if err := st.DeleteSession(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.LoadSession(ctx, a.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("deleted session loadable: %v", err)
	}
	if _, err := st.LoadSession(ctx, b.ID); err != nil {
		t.Errorf("sibling session gone: %v", err)
	}

	if err := st.RevokeUserSessions(ctx, uid); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := st.LoadSession(ctx, b.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("revoked session loadable: %v", err)
	}

	n, err := st.PurgeSessions(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n < 2 {
		t.Errorf("purged %d rows, want at least 2", n)
	}
}
