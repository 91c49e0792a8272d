package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"estate-dashboard/internal/auth"
	"estate-dashboard/internal/model"
	"estate-dashboard/internal/session"
)

// Session ids are stored hashed and backend tokens sealed; the raw id only
// lives in the cookie.

func (s *Store) SaveSession(ctx context.Context, sess *model.Session) error {
	sealed, err := auth.Seal(s.key, sess.Token)
	if err != nil {
		return fmt.Errorf("seal backend token: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id_hash, backend_token, role, user_id, user_name, created_at, expires_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		auth.HashToken(sess.ID), sealed, string(sess.Role), sess.UserID, sess.UserName, sess.CreatedAt, sess.ExpiresAt,
	)
	return err
}

func (s *Store) LoadSession(ctx context.Context, id string) (*model.Session, error) {
	sess := &model.Session{ID: id}
	var role, sealed string
	err := s.pool.QueryRow(ctx,
		`SELECT backend_token, role, user_id, user_name, created_at, expires_at
		 FROM sessions WHERE id_hash = $1 AND revoked = false`, auth.HashToken(id),
	).Scan(&sealed, &role, &sess.UserID, &sess.UserName, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load session: %w", session.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if sess.Token, err = auth.Open(s.key, sealed); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess.Role = model.Role(role)
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET revoked = true WHERE id_hash = $1`, auth.HashToken(id),
	)
	return err
}

// revoke all sessions for a user (sign out everywhere)
func (s *Store) RevokeUserSessions(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET revoked = true WHERE user_id = $1 AND revoked = false`,
		userID,
	)
	return err
}

// PurgeSessions removes revoked and expired rows.
func (s *Store) PurgeSessions(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE revoked = true OR expires_at < now()`,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
