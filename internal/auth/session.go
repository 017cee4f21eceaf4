// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// SessionTokenBytes is the number of random bytes in a session token.
const SessionTokenBytes = 32

// SessionRecord is the active session for a username. Issuing a new session
// replaces the previous one.
type SessionRecord struct {
	Username string
	Token    string
	IssuedAt time.Time
}

// FreshAt reports whether the session was issued within maxAge of now.
// Sessions carry no expiry of their own; consumers that want one apply this.
func (s *SessionRecord) FreshAt(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.IssuedAt) < maxAge
}

// SessionStore persists one session per username.
type SessionStore interface {
	// Put stores rec, overwriting any session for rec.Username.
	Put(ctx context.Context, rec *SessionRecord) error

	// Get returns the session for username or an error wrapping ErrNotFound.
	Get(ctx context.Context, username string) (*SessionRecord, error)
}

// GenerateSessionToken creates a hex-encoded random token.
func GenerateSessionToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// SessionManager issues sessions.
type SessionManager struct {
	store    SessionStore
	generate func() (string, error)
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(store SessionStore) (*SessionManager, error) {
	if store == nil {
		return nil, oops.Errorf("session store is required")
	}
	return &SessionManager{store: store, generate: GenerateSessionToken}, nil
}

// Issue generates a token for username, replaces any prior session and
// returns the token.
func (m *SessionManager) Issue(ctx context.Context, username string, now time.Time) (string, error) {
	token, err := m.generate()
	if err != nil {
		return "", err
	}
	rec := &SessionRecord{Username: username, Token: token, IssuedAt: now.UTC()}
	if err := m.store.Put(ctx, rec); err != nil {
		return "", err
	}
	return token, nil
}

// Current returns the active session for username.
func (m *SessionManager) Current(ctx context.Context, username string) (*SessionRecord, error) {
	return m.store.Get(ctx, username)
}
