// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

// CredentialStore implements auth.CredentialStore.
type CredentialStore struct {
	db *sql.DB
}

var _ auth.CredentialStore = (*CredentialStore)(nil)

// Exists reports whether username has a record.
func (s *CredentialStore) Exists(ctx context.Context, username string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM auth_credentials WHERE username = ?`, username).Scan(&n)
	if err != nil {
		return false, storageError("CREDENTIAL_EXISTS_FAILED", "check credential", username, err)
	}
	return n > 0, nil
}

// Create inserts rec unless the username is already taken.
func (s *CredentialStore) Create(ctx context.Context, rec *auth.CredentialRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_credentials (id, username, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (username) DO NOTHING
	`, rec.ID.String(), rec.Username, rec.PasswordHash, rec.Role, rec.CreatedAt.Unix())
	if err != nil {
		return storageError("CREDENTIAL_CREATE_FAILED", "insert credential", rec.Username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageError("CREDENTIAL_CREATE_FAILED", "rows affected", rec.Username, err)
	}
	if n == 0 {
		return oops.Code("CREDENTIAL_EXISTS").
			With("username", rec.Username).
			Wrap(auth.ErrAlreadyExists)
	}
	return nil
}

// Lookup returns the record for username.
func (s *CredentialStore) Lookup(ctx context.Context, username string) (*auth.CredentialRecord, error) {
	var (
		id        string
		createdAt int64
		rec       auth.CredentialRecord
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM auth_credentials WHERE username = ?
	`, username).Scan(&id, &rec.Username, &rec.PasswordHash, &rec.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, storageError("CREDENTIAL_LOOKUP_FAILED", "select credential", username, err)
	}
	if rec.ID, err = ulid.Parse(id); err != nil {
		return nil, oops.Code("CREDENTIAL_CORRUPT").
			With("username", username).
			With("id", id).
			Wrap(auth.ErrStorageCorruption)
	}
	rec.CreatedAt = fromEpoch(createdAt)
	return &rec, nil
}
