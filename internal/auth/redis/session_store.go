// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

const (
	fieldToken    = "token"
	fieldIssuedAt = "issued_at_epoch_seconds"
)

// SessionStore keeps one hash per username holding the active session.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

var _ auth.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a SessionStore. An empty prefix means DefaultPrefix.
func NewSessionStore(client redis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionStore{client: client, prefix: prefix}
}

func (s *SessionStore) key(username string) string {
	return s.prefix + "session:" + username
}

// Put replaces the session for rec.Username.
func (s *SessionStore) Put(ctx context.Context, rec *auth.SessionRecord) error {
	key := s.key(rec.Username)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldToken, rec.Token, fieldIssuedAt, rec.IssuedAt.Unix())
		return nil
	})
	if err != nil {
		return storageError("SESSION_PUT_FAILED", "write session", rec.Username, err)
	}
	return nil
}

// Get returns the session for username.
func (s *SessionStore) Get(ctx context.Context, username string) (*auth.SessionRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(username)).Result()
	if err != nil {
		return nil, storageError("SESSION_GET_FAILED", "read session", username, err)
	}
	if len(fields) == 0 {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	issued, err := parseEpoch(fields[fieldIssuedAt])
	if err != nil {
		return nil, corrupt("SESSION_CORRUPT", username, fieldIssuedAt, fields[fieldIssuedAt])
	}
	return &auth.SessionRecord{Username: username, Token: fields[fieldToken], IssuedAt: issued}, nil
}
