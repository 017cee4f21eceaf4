// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

// Package memory provides in-process implementations of the auth stores.
// State lives only as long as the process.
package memory

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

// keyedMutex serializes work per key. Entries are reference counted and
// dropped when the last holder unlocks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// checkContext reports a cancelled or expired context as a storage failure.
func checkContext(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MEMORY_STORE_UNAVAILABLE").
			With("operation", operation).
			Wrap(auth.StorageError(err))
	}
	return nil
}
