// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package memory

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

// CredentialStore is an append-only credential log with a username index.
type CredentialStore struct {
	mu      sync.RWMutex
	records []auth.CredentialRecord
	index   map[string]int
}

var _ auth.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore creates an empty CredentialStore.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{index: make(map[string]int)}
}

// Exists reports whether username has a record.
func (s *CredentialStore) Exists(ctx context.Context, username string) (bool, error) {
	if err := checkContext(ctx, "exists"); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[username]
	return ok, nil
}

// Create appends rec unless its username is taken.
func (s *CredentialStore) Create(ctx context.Context, rec *auth.CredentialRecord) error {
	if err := checkContext(ctx, "create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[rec.Username]; ok {
		return oops.Code("CREDENTIAL_EXISTS").
			With("username", rec.Username).
			Wrap(auth.ErrAlreadyExists)
	}
	s.records = append(s.records, *rec)
	s.index[rec.Username] = len(s.records) - 1
	return nil
}

// Lookup returns a copy of the record for username.
func (s *CredentialStore) Lookup(ctx context.Context, username string) (*auth.CredentialRecord, error) {
	if err := checkContext(ctx, "lookup"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[username]
	if !ok {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	rec := s.records[i]
	return &rec, nil
}

// Len returns the number of records.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
