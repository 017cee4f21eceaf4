// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

// SessionStore implements auth.SessionStore.
type SessionStore struct {
	db *sql.DB
}

var _ auth.SessionStore = (*SessionStore)(nil)

// Put upserts the session for rec.Username.
func (s *SessionStore) Put(ctx context.Context, rec *auth.SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (username, token, issued_at_epoch_seconds)
		VALUES (?, ?, ?)
		ON CONFLICT (username) DO UPDATE
		SET token = excluded.token,
		    issued_at_epoch_seconds = excluded.issued_at_epoch_seconds
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
	err := s.db.QueryRowContext(ctx,
		`SELECT token, issued_at_epoch_seconds FROM auth_sessions WHERE username = ?`,
		username).Scan(&token, &issued)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, storageError("SESSION_GET_FAILED", "select session", username, err)
	}
	return &auth.SessionRecord{Username: username, Token: token, IssuedAt: fromEpoch(issued)}, nil
}
