// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

// LockoutStore implements auth.LockoutStore on auth_lockouts. Update and
// Delete hold a transaction-scoped advisory lock on the username, so failures
// and resets from any number of authd processes are serialized.
type LockoutStore struct {
	pool poolIface
}

var _ auth.LockoutStore = (*LockoutStore)(nil)

// NewLockoutStore creates a LockoutStore.
func NewLockoutStore(pool poolIface) *LockoutStore {
	return &LockoutStore{pool: pool}
}

// Get returns the lockout state for username.
func (s *LockoutStore) Get(ctx context.Context, username string) (*auth.LockoutState, error) {
	state, err := selectLockout(ctx, s.pool, username)
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

// Update applies fn to the current state inside a transaction.
func (s *LockoutStore) Update(ctx context.Context, username string, fn auth.LockoutMutator) (*auth.LockoutState, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storageError("LOCKOUT_UPDATE_FAILED", "begin", username, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := lockUsername(ctx, tx, username); err != nil {
		return nil, storageError("LOCKOUT_UPDATE_FAILED", "lock username", username, err)
	}

	current, err := selectLockout(ctx, tx, username)
	if err != nil {
		return nil, err
	}

	next := fn(current)
	next.Username = username

	_, err = tx.Exec(ctx, `
		INSERT INTO auth_lockouts (username, failure_count, window_start_epoch_seconds)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET failure_count = EXCLUDED.failure_count,
		    window_start_epoch_seconds = EXCLUDED.window_start_epoch_seconds
	`, username, next.FailureCount, next.WindowStart.Unix())
	if err != nil {
		return nil, storageError("LOCKOUT_UPDATE_FAILED", "upsert lockout", username, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageError("LOCKOUT_UPDATE_FAILED", "commit", username, err)
	}

	next.WindowStart = fromEpoch(next.WindowStart.Unix())
	return &next, nil
}

// Delete removes the lockout state for username. It waits for any Update in
// flight for the same username.
func (s *LockoutStore) Delete(ctx context.Context, username string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageError("LOCKOUT_DELETE_FAILED", "begin", username, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := lockUsername(ctx, tx, username); err != nil {
		return storageError("LOCKOUT_DELETE_FAILED", "lock username", username, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM auth_lockouts WHERE username = $1`, username); err != nil {
		return storageError("LOCKOUT_DELETE_FAILED", "delete lockout", username, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storageError("LOCKOUT_DELETE_FAILED", "commit", username, err)
	}
	return nil
}

// lockUsername takes the per-username advisory lock for the rest of tx.
func lockUsername(ctx context.Context, tx pgx.Tx, username string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, username)
	return err //nolint:wrapcheck // callers wrap with operation context
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// selectLockout returns nil, nil when no row exists.
func selectLockout(ctx context.Context, q rowQuerier, username string) (*auth.LockoutState, error) {
	var (
		count int
		start int64
	)
	err := q.QueryRow(ctx, `
		SELECT failure_count, window_start_epoch_seconds
		FROM auth_lockouts
		WHERE username = $1
	`, username).Scan(&count, &start)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("LOCKOUT_GET_FAILED", "select lockout", username, err)
	}
	return &auth.LockoutState{Username: username, FailureCount: count, WindowStart: fromEpoch(start)}, nil
}
