// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package memory

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

// SessionStore keeps the latest session per username.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]auth.SessionRecord
}

var _ auth.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]auth.SessionRecord)}
}

// Put stores rec, replacing any previous session for the username.
func (s *SessionStore) Put(ctx context.Context, rec *auth.SessionRecord) error {
	if err := checkContext(ctx, "put session"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.Username] = *rec
	return nil
}

// Get returns a copy of the session for username.
func (s *SessionStore) Get(ctx context.Context, username string) (*auth.SessionRecord, error) {
	if err := checkContext(ctx, "get session"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[username]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return &rec, nil
}
