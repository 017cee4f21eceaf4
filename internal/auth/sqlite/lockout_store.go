// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

// LockoutStore implements auth.LockoutStore. Update runs in a transaction;
// file databases open it with BEGIN IMMEDIATE so other processes wait.
type LockoutStore struct {
	db *sql.DB
}

var _ auth.LockoutStore = (*LockoutStore)(nil)

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Get returns the lockout state for username.
func (s *LockoutStore) Get(ctx context.Context, username string) (*auth.LockoutState, error) {
	state, err := selectLockout(ctx, s.db, username)
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

// Update applies fn to the stored state atomically.
func (s *LockoutStore) Update(ctx context.Context, username string, fn auth.LockoutMutator) (*auth.LockoutState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageError("LOCKOUT_UPDATE_FAILED", "begin", username, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	current, err := selectLockout(ctx, tx, username)
	if err != nil {
		return nil, err
	}
	next := fn(current)
	next.Username = username
	next.WindowStart = fromEpoch(next.WindowStart.Unix())

	_, err = tx.ExecContext(ctx, `
		INSERT INTO auth_lockouts (username, failure_count, window_start_epoch_seconds)
		VALUES (?, ?, ?)
		ON CONFLICT (username) DO UPDATE
		SET failure_count = excluded.failure_count,
		    window_start_epoch_seconds = excluded.window_start_epoch_seconds
	`, username, next.FailureCount, next.WindowStart.Unix())
	if err != nil {
		return nil, storageError("LOCKOUT_UPDATE_FAILED", "upsert lockout", username, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageError("LOCKOUT_UPDATE_FAILED", "commit", username, err)
	}
	return &next, nil
}

// Delete removes the lockout state for username.
func (s *LockoutStore) Delete(ctx context.Context, username string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_lockouts WHERE username = ?`, username); err != nil {
		return storageError("LOCKOUT_DELETE_FAILED", "delete lockout", username, err)
	}
	return nil
}

func selectLockout(ctx context.Context, q queryRower, username string) (*auth.LockoutState, error) {
	var (
		count int
		start int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT failure_count, window_start_epoch_seconds FROM auth_lockouts WHERE username = ?
	`, username).Scan(&count, &start)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("LOCKOUT_GET_FAILED", "select lockout", username, err)
	}
	return &auth.LockoutState{Username: username, FailureCount: count, WindowStart: fromEpoch(start)}, nil
}
