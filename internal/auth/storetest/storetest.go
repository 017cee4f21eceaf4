// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

// Package storetest holds behavioral tests shared by every auth store
// backend. Backends call the Run* functions from their own tests with a
// factory that returns an empty store.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdip/authd/internal/auth"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// RunCredentialStoreTests exercises a CredentialStore implementation.
func RunCredentialStoreTests(t *testing.T, newStore func(t *testing.T) auth.CredentialStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("create then lookup", func(t *testing.T) {
		store := newStore(t)
		rec := auth.NewCredentialRecord("alice", "$argon2id$hash", "admin", epoch)
		require.NoError(t, store.Create(ctx, rec))

		got, err := store.Lookup(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, "$argon2id$hash", got.PasswordHash)
		assert.Equal(t, "admin", got.Role)
		assert.True(t, got.CreatedAt.Equal(epoch), "created_at = %v", got.CreatedAt)

		exists, err := store.Exists(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("absent username", func(t *testing.T) {
		store := newStore(t)
		exists, err := store.Exists(ctx, "nobody")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = store.Lookup(ctx, "nobody")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("duplicate create is rejected", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, auth.NewCredentialRecord("alice", "h1", "user", epoch)))

		err := store.Create(ctx, auth.NewCredentialRecord("alice", "h2", "admin", epoch))
		assert.ErrorIs(t, err, auth.ErrAlreadyExists)

		got, err := store.Lookup(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "h1", got.PasswordHash)
	})

	t.Run("usernames are case-sensitive", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, auth.NewCredentialRecord("alice", "h1", "user", epoch)))
		require.NoError(t, store.Create(ctx, auth.NewCredentialRecord("Alice", "h2", "user", epoch)))

		got, err := store.Lookup(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, "h2", got.PasswordHash)
	})

	t.Run("concurrent creates admit one", func(t *testing.T) {
		store := newStore(t)
		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = store.Create(ctx, auth.NewCredentialRecord("racer", fmt.Sprintf("h%d", i), "user", epoch))
			}()
		}
		wg.Wait()

		created := 0
		for _, err := range errs {
			if err == nil {
				created++
				continue
			}
			assert.ErrorIs(t, err, auth.ErrAlreadyExists)
		}
		assert.Equal(t, 1, created)
	})
}

// RunLockoutStoreTests exercises a LockoutStore implementation.
func RunLockoutStoreTests(t *testing.T, newStore func(t *testing.T) auth.LockoutStore) {
	t.Helper()
	ctx := context.Background()

	increment := func(current *auth.LockoutState) auth.LockoutState {
		if current == nil {
			return auth.LockoutState{FailureCount: 1, WindowStart: epoch}
		}
		return auth.LockoutState{FailureCount: current.FailureCount + 1, WindowStart: current.WindowStart.Add(time.Second)}
	}

	t.Run("get absent state", func(t *testing.T) {
		_, err := newStore(t).Get(ctx, "alice")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("update creates then mutates", func(t *testing.T) {
		store := newStore(t)
		state, err := store.Update(ctx, "alice", increment)
		require.NoError(t, err)
		assert.Equal(t, "alice", state.Username)
		assert.Equal(t, 1, state.FailureCount)
		assert.True(t, state.WindowStart.Equal(epoch))

		state, err = store.Update(ctx, "alice", increment)
		require.NoError(t, err)
		assert.Equal(t, 2, state.FailureCount)

		got, err := store.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 2, got.FailureCount)
		assert.True(t, got.WindowStart.Equal(epoch.Add(time.Second)), "window_start = %v", got.WindowStart)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Update(ctx, "alice", increment)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "alice"))
		require.NoError(t, store.Delete(ctx, "alice"))
		_, err = store.Get(ctx, "alice")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("concurrent updates are serialized", func(t *testing.T) {
		store := newStore(t)
		const n = 16
		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Update(ctx, "alice", increment)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, n, got.FailureCount)
	})

	t.Run("update racing delete ends in a serial state", func(t *testing.T) {
		store := newStore(t)
		for range 2 {
			_, err := store.Update(ctx, "alice", increment)
			require.NoError(t, err)
		}

		read := make(chan struct{})
		var once sync.Once
		slowIncrement := func(current *auth.LockoutState) auth.LockoutState {
			once.Do(func() { close(read) })
			time.Sleep(50 * time.Millisecond)
			return increment(current)
		}

		done := make(chan error, 1)
		go func() {
			_, err := store.Update(ctx, "alice", slowIncrement)
			done <- err
		}()

		<-read
		require.NoError(t, store.Delete(ctx, "alice"))
		require.NoError(t, <-done)

		// Serial orders leave either no state (update, then delete) or a
		// fresh window (delete, then update). Never the pre-delete count + 1.
		got, err := store.Get(ctx, "alice")
		if err != nil {
			assert.ErrorIs(t, err, auth.ErrNotFound)
			return
		}
		assert.Equal(t, 1, got.FailureCount)
	})
}

// RunSessionStoreTests exercises a SessionStore implementation.
func RunSessionStoreTests(t *testing.T, newStore func(t *testing.T) auth.SessionStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("put then get", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, &auth.SessionRecord{Username: "alice", Token: "t1", IssuedAt: epoch}))

		got, err := store.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "t1", got.Token)
		assert.True(t, got.IssuedAt.Equal(epoch), "issued_at = %v", got.IssuedAt)
	})

	t.Run("put replaces", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, &auth.SessionRecord{Username: "alice", Token: "t1", IssuedAt: epoch}))
		require.NoError(t, store.Put(ctx, &auth.SessionRecord{Username: "alice", Token: "t2", IssuedAt: epoch.Add(time.Minute)}))

		got, err := store.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "t2", got.Token)
	})

	t.Run("absent session", func(t *testing.T) {
		_, err := newStore(t).Get(ctx, "nobody")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
