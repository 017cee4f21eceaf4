// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// CredentialRecord is a registered identity. Records are created once and
// never updated or deleted.
type CredentialRecord struct {
	ID           ulid.ULID
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// NewCredentialRecord creates a CredentialRecord with a fresh ID.
func NewCredentialRecord(username, passwordHash, role string, now time.Time) *CredentialRecord {
	return &CredentialRecord{
		ID:           ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now.UTC(),
	}
}

// CredentialStore is the durable username to credential mapping.
// Usernames are case-sensitive.
type CredentialStore interface {
	// Exists reports whether a record exists for username.
	Exists(ctx context.Context, username string) (bool, error)

	// Create inserts rec. It returns an error wrapping ErrAlreadyExists when a
	// record for rec.Username exists; concurrent creates for one username
	// yield exactly one success.
	Create(ctx context.Context, rec *CredentialRecord) error

	// Lookup returns the record for username or an error wrapping ErrNotFound.
	// A Lookup after a successful Create on the same store observes the record.
	Lookup(ctx context.Context, username string) (*CredentialRecord, error)
}
