// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package memory

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

// LockoutStore keeps lockout state in a map guarded by per-username locks.
type LockoutStore struct {
	keys   *keyedMutex
	mu     sync.RWMutex
	states map[string]auth.LockoutState
}

var _ auth.LockoutStore = (*LockoutStore)(nil)

// NewLockoutStore creates an empty LockoutStore.
func NewLockoutStore() *LockoutStore {
	return &LockoutStore{
		keys:   newKeyedMutex(),
		states: make(map[string]auth.LockoutState),
	}
}

// Get returns a copy of the state for username.
func (s *LockoutStore) Get(ctx context.Context, username string) (*auth.LockoutState, error) {
	if err := checkContext(ctx, "get lockout"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[username]
	if !ok {
		return nil, oops.Code("LOCKOUT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return &state, nil
}

// Update applies fn while holding the lock for username.
func (s *LockoutStore) Update(ctx context.Context, username string, fn auth.LockoutMutator) (*auth.LockoutState, error) {
	if err := checkContext(ctx, "update lockout"); err != nil {
		return nil, err
	}
	unlock := s.keys.Lock(username)
	defer unlock()

	s.mu.RLock()
	current, ok := s.states[username]
	s.mu.RUnlock()

	var next auth.LockoutState
	if ok {
		next = fn(&current)
	} else {
		next = fn(nil)
	}
	next.Username = username

	s.mu.Lock()
	s.states[username] = next
	s.mu.Unlock()
	return &next, nil
}

// Delete removes the state for username.
func (s *LockoutStore) Delete(ctx context.Context, username string) error {
	if err := checkContext(ctx, "delete lockout"); err != nil {
		return err
	}
	unlock := s.keys.Lock(username)
	defer unlock()

	s.mu.Lock()
	delete(s.states, username)
	s.mu.Unlock()
	return nil
}
