// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

// SessionStore implements auth.SessionStore on auth_sessions.
type SessionStore struct {
	pool poolIface
}

var _ auth.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a SessionStore.
func NewSessionStore(pool poolIface) *SessionStore {
	return &SessionStore{pool: pool}
}

// Put upserts the session for rec.Username.
func (s *SessionStore) Put(ctx context.Context, rec *auth.SessionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO auth_sessions (username, token, issued_at_epoch_seconds)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET token = EXCLUDED.token,
		    issued_at_epoch_seconds = EXCLUDED.issued_at_epoch_seconds
	`, rec.Username, rec.Token, rec.IssuedAt.Unix())
	if err != nil {
		return storageError("SESSION_PUT_FAILED", "upsert session", rec.Username, err)
	}
	return nil
}

// Get returns the session for username.
func (s *SessionStore) Get(ctx context.Context, username string) (*auth.SessionRecord, error) {
	var (
		token  string
		issued int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT token, issued_at_epoch_seconds FROM auth_sessions WHERE username = $1
	`, username).Scan(&token, &issued)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, storageError("SESSION_GET_FAILED", "select session", username, err)
	}
	return &auth.SessionRecord{Username: username, Token: token, IssuedAt: fromEpoch(issued)}, nil
}
