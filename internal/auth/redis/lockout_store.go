// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/mdip/authd/internal/auth"
)

const (
	fieldFailureCount = "failure_count"
	fieldWindowStart  = "window_start_epoch_seconds"
)

// maxWatchRetries bounds optimistic-lock retries under contention.
const maxWatchRetries = 100

// LockoutStore keeps lockout state in one hash per username. Update uses
// WATCH/MULTI so concurrent failures are never lost.
type LockoutStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ auth.LockoutStore = (*LockoutStore)(nil)

// LockoutOption configures a LockoutStore.
type LockoutOption func(*LockoutStore)

// WithLockoutPrefix overrides DefaultPrefix.
func WithLockoutPrefix(prefix string) LockoutOption {
	return func(s *LockoutStore) { s.prefix = prefix }
}

// WithLockoutTTL expires state ttl after the last write. Set it to the
// lockout window so stale entries do not accumulate.
func WithLockoutTTL(ttl time.Duration) LockoutOption {
	return func(s *LockoutStore) { s.ttl = ttl }
}

// NewLockoutStore creates a LockoutStore.
func NewLockoutStore(client redis.UniversalClient, opts ...LockoutOption) *LockoutStore {
	s := &LockoutStore{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LockoutStore) key(username string) string {
	return s.prefix + "lockout:" + username
}

// Get returns the lockout state for username.
func (s *LockoutStore) Get(ctx context.Context, username string) (*auth.LockoutState, error) {
	state, err := readLockout(ctx, s.client, s.key(username), username)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, oops.Code("LOCKOUT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return state, nil
}

// Update applies fn to the stored state, retrying when another writer
// touches the key between read and write.
func (s *LockoutStore) Update(ctx context.Context, username string, fn auth.LockoutMutator) (*auth.LockoutState, error) {
	key := s.key(username)
	var next auth.LockoutState

	txf := func(tx *redis.Tx) error {
		current, err := readLockout(ctx, tx, key, username)
		if err != nil {
			return err
		}
		next = fn(current)
		next.Username = username
		next.WindowStart = time.Unix(next.WindowStart.Unix(), 0).UTC()

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldFailureCount, next.FailureCount,
				fieldWindowStart, next.WindowStart.Unix())
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}

	backoff := retry.WithMaxRetries(maxWatchRetries, retry.WithJitter(time.Millisecond, retry.NewConstant(time.Millisecond)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}
		return err
	})
	switch {
	case errors.Is(err, auth.ErrStorage), errors.Is(err, auth.ErrStorageCorruption):
		return nil, err
	case err != nil:
		return nil, storageError("LOCKOUT_UPDATE_FAILED", "watch lockout", username, err)
	}
	return &next, nil
}

// Delete removes the lockout state for username.
func (s *LockoutStore) Delete(ctx context.Context, username string) error {
	if err := s.client.Del(ctx, s.key(username)).Err(); err != nil {
		return storageError("LOCKOUT_DELETE_FAILED", "delete lockout", username, err)
	}
	return nil
}

// readLockout returns nil, nil for a missing key.
func readLockout(ctx context.Context, c redis.Cmdable, key, username string) (*auth.LockoutState, error) {
	fields, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, storageError("LOCKOUT_GET_FAILED", "read lockout", username, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	count, err := strconv.Atoi(fields[fieldFailureCount])
	if err != nil {
		return nil, corrupt("LOCKOUT_CORRUPT", username, fieldFailureCount, fields[fieldFailureCount])
	}
	start, err := parseEpoch(fields[fieldWindowStart])
	if err != nil {
		return nil, corrupt("LOCKOUT_CORRUPT", username, fieldWindowStart, fields[fieldWindowStart])
	}
	return &auth.LockoutState{Username: username, FailureCount: count, WindowStart: start}, nil
}
