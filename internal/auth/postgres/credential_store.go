// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

// CredentialStore implements auth.CredentialStore on auth_credentials.
type CredentialStore struct {
	pool poolIface
}

var _ auth.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore creates a CredentialStore.
func NewCredentialStore(pool poolIface) *CredentialStore {
	return &CredentialStore{pool: pool}
}

// Exists reports whether username has a record. Comparison is case-sensitive.
func (s *CredentialStore) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM auth_credentials WHERE username = $1)`,
		username).Scan(&exists)
	if err != nil {
		return false, storageError("CREDENTIAL_EXISTS_FAILED", "check credential", username, err)
	}
	return exists, nil
}

// Create inserts rec. The unique index on username rejects duplicates.
func (s *CredentialStore) Create(ctx context.Context, rec *auth.CredentialRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO auth_credentials (id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		rec.ID.String(),
		rec.Username,
		rec.PasswordHash,
		rec.Role,
		rec.CreatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("CREDENTIAL_EXISTS").
			With("username", rec.Username).
			Wrap(auth.ErrAlreadyExists)
	}
	if err != nil {
		return storageError("CREDENTIAL_CREATE_FAILED", "insert credential", rec.Username, err)
	}
	return nil
}

// Lookup returns the record for username.
func (s *CredentialStore) Lookup(ctx context.Context, username string) (*auth.CredentialRecord, error) {
	var (
		id        string
		rec       auth.CredentialRecord
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM auth_credentials
		WHERE username = $1
	`, username).Scan(&id, &rec.Username, &rec.PasswordHash, &rec.Role, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, storageError("CREDENTIAL_LOOKUP_FAILED", "select credential", username, err)
	}

	rec.ID, err = ulid.Parse(id)
	if err != nil {
		return nil, oops.Code("CREDENTIAL_CORRUPT").
			With("username", username).
			With("id", id).
			Wrap(auth.ErrStorageCorruption)
	}
	rec.CreatedAt = createdAt.UTC()
	return &rec, nil
}
