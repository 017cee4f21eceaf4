// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdip/authd/internal/auth"
	"github.com/mdip/authd/internal/auth/sqlite"
	"github.com/mdip/authd/internal/auth/storetest"
)

func openTemp(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCredentialStore(t *testing.T) {
	storetest.RunCredentialStoreTests(t, func(t *testing.T) auth.CredentialStore {
		return openTemp(t).Credentials()
	})
}

func TestLockoutStore(t *testing.T) {
	storetest.RunLockoutStoreTests(t, func(t *testing.T) auth.LockoutStore {
		return openTemp(t).Lockouts()
	})
}

func TestSessionStore(t *testing.T) {
	storetest.RunSessionStoreTests(t, func(t *testing.T) auth.SessionStore {
		return openTemp(t).Sessions()
	})
}

func TestOpen_InMemory(t *testing.T) {
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()
	assert.NoError(t, db.Ping(context.Background()))
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "auth.db")

	db, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	rec := auth.NewCredentialRecord("alice", "$argon2id$h", "user", time.Unix(1_700_000_000, 0))
	require.NoError(t, db.Credentials().Create(ctx, rec))
	require.NoError(t, db.Close())

	db, err = sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Credentials().Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
}

func TestStores_ClosedDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.Credentials().Exists(ctx, "alice")
	assert.ErrorIs(t, err, auth.ErrStorage)

	_, err = db.Lockouts().Update(ctx, "alice", func(*auth.LockoutState) auth.LockoutState {
		return auth.LockoutState{FailureCount: 1}
	})
	assert.ErrorIs(t, err, auth.ErrStorage)

	_, err = db.Sessions().Get(ctx, "alice")
	assert.ErrorIs(t, err, auth.ErrStorage)
}

func TestLockoutTracker_WholeSecondWindow(t *testing.T) {
	ctx := context.Background()
	tracker, err := auth.NewLockoutTracker(openTemp(t).Lockouts(), auth.LockoutPolicy{Threshold: 1, Window: time.Minute})
	require.NoError(t, err)

	start := time.Date(2026, 1, 1, 12, 0, 0, 900_000_000, time.UTC)
	_, err = tracker.RecordFailure(ctx, "alice", start)
	require.NoError(t, err)

	locked, remaining, err := tracker.Status(ctx, "alice", start)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Equal(t, time.Minute-900*time.Millisecond, remaining)

	// The stored start is 12:00:00, so the window closes before start+1m.
	locked, _, err = tracker.Status(ctx, "alice", start.Add(time.Minute-500*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, locked)
}
