// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// Lockout defaults.
const (
	// DefaultLockoutThreshold is the number of failures within the window that locks an account.
	DefaultLockoutThreshold = 3

	// DefaultLockoutWindow is the sliding window over which failures accumulate.
	DefaultLockoutWindow = 300 * time.Second
)

// LockoutState is the failure window for one username.
type LockoutState struct {
	Username     string
	FailureCount int
	WindowStart  time.Time
}

// LockoutMutator computes the next state from the current one, which is nil
// when no state exists.
type LockoutMutator func(current *LockoutState) LockoutState

// LockoutStore persists lockout state with atomic per-username updates.
type LockoutStore interface {
	// Get returns the state for username or an error wrapping ErrNotFound.
	Get(ctx context.Context, username string) (*LockoutState, error)

	// Update applies fn to the current state and persists the result as one
	// atomic read-modify-write; concurrent updates for a username never lose
	// a write.
	Update(ctx context.Context, username string, fn LockoutMutator) (*LockoutState, error)

	// Delete removes the state for username. Deleting absent state is not an error.
	Delete(ctx context.Context, username string) error
}

// LockoutPolicy configures a LockoutTracker.
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
}

// DefaultLockoutPolicy locks after three failures within five minutes.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: DefaultLockoutThreshold, Window: DefaultLockoutWindow}
}

// LockoutTracker applies the sliding-window lockout rule over a LockoutStore.
type LockoutTracker struct {
	store  LockoutStore
	policy LockoutPolicy
}

// NewLockoutTracker creates a LockoutTracker.
func NewLockoutTracker(store LockoutStore, policy LockoutPolicy) (*LockoutTracker, error) {
	if store == nil {
		return nil, oops.Errorf("lockout store is required")
	}
	if policy.Threshold < 1 {
		return nil, oops.With("threshold", policy.Threshold).Errorf("lockout threshold must be at least 1")
	}
	if policy.Window <= 0 {
		return nil, oops.With("window", policy.Window).Errorf("lockout window must be positive")
	}
	return &LockoutTracker{store: store, policy: policy}, nil
}

// Policy returns the tracker's policy.
func (t *LockoutTracker) Policy() LockoutPolicy {
	return t.policy
}

// Status reports whether username is locked at now and, if so, how long
// until the window expires. The SQLite and Postgres stores truncate window
// starts to whole seconds, so on those backends a lock can clear up to one
// second early.
func (t *LockoutTracker) Status(ctx context.Context, username string, now time.Time) (bool, time.Duration, error) {
	state, err := t.store.Get(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if state.FailureCount < t.policy.Threshold {
		return false, 0, nil
	}
	elapsed := now.Sub(state.WindowStart)
	if elapsed >= t.policy.Window {
		return false, 0, nil
	}
	return true, t.policy.Window - elapsed, nil
}

// IsLocked reports whether username has reached the threshold within an
// unexpired window.
func (t *LockoutTracker) IsLocked(ctx context.Context, username string, now time.Time) (bool, error) {
	locked, _, err := t.Status(ctx, username, now)
	return locked, err
}

// RecordFailure counts a failed attempt and returns the resulting count.
// An absent or expired window restarts at 1; otherwise the count increments
// and the window start slides to now.
func (t *LockoutTracker) RecordFailure(ctx context.Context, username string, now time.Time) (int, error) {
	state, err := t.store.Update(ctx, username, func(current *LockoutState) LockoutState {
		if current == nil || now.Sub(current.WindowStart) >= t.policy.Window {
			return LockoutState{Username: username, FailureCount: 1, WindowStart: now}
		}
		return LockoutState{Username: username, FailureCount: current.FailureCount + 1, WindowStart: now}
	})
	if err != nil {
		return 0, err
	}
	return state.FailureCount, nil
}

// Reset clears lockout state for username.
func (t *LockoutTracker) Reset(ctx context.Context, username string) error {
	return t.store.Delete(ctx, username)
}

// Remaining returns the attempts left before lockout for a failure count.
func (t *LockoutTracker) Remaining(count int) int {
	return max(0, t.policy.Threshold-count)
}
