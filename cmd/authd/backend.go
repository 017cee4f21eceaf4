// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
	"github.com/mdip/authd/internal/auth/memory"
	"github.com/mdip/authd/internal/auth/postgres"
	redisstore "github.com/mdip/authd/internal/auth/redis"
	"github.com/mdip/authd/internal/auth/sqlite"
	"github.com/mdip/authd/internal/config"
	"github.com/mdip/authd/internal/store"
)

// backend bundles the stores for one configured storage tier.
type backend struct {
	name        string
	credentials auth.CredentialStore
	lockouts    auth.LockoutStore
	sessions    auth.SessionStore
	pings       []func(context.Context) error
	closers     []func() error
}

// Ping checks every underlying connection.
func (b *backend) Ping(ctx context.Context) error {
	for _, ping := range b.pings {
		if err := ping(ctx); err != nil {
			return auth.StorageError(err)
		}
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openBackend opens the stores selected by cfg.Storage. When a Redis URL is
// configured, lockouts and sessions move to Redis while credentials stay in
// the primary backend.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{name: cfg.Storage.Backend}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		b.credentials = memory.NewCredentialStore()
		b.lockouts = memory.NewLockoutStore()
		b.sessions = memory.NewSessionStore()

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		b.credentials = db.Credentials()
		b.lockouts = db.Lockouts()
		b.sessions = db.Sessions()
		b.pings = append(b.pings, db.Ping)
		b.closers = append(b.closers, db.Close)

	case config.BackendPostgres:
		pool, err := store.Connect(ctx, cfg.Storage.Postgres.URL, store.ConnectOptions{
			Attempts: cfg.Storage.Postgres.ConnectAttempts,
			Backoff:  store.DefaultConnectOptions().Backoff,
		})
		if err != nil {
			return nil, err
		}
		b.credentials = postgres.NewCredentialStore(pool)
		b.lockouts = postgres.NewLockoutStore(pool)
		b.sessions = postgres.NewSessionStore(pool)
		b.pings = append(b.pings, pool.Ping)
		b.closers = append(b.closers, func() error { pool.Close(); return nil })

	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("backend", cfg.Storage.Backend).
			Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Storage.Redis.URL != "" {
		client, err := redisstore.Connect(ctx, cfg.Storage.Redis.URL)
		if err != nil {
			_ = b.Close() //nolint:errcheck // connect error takes precedence
			return nil, err
		}
		// Lockout hashes outlive their window by a margin so an idle key
		// expires without changing lockout decisions.
		b.lockouts = redisstore.NewLockoutStore(client,
			redisstore.WithLockoutTTL(2*cfg.Auth.Lockout.Window.Std()+time.Minute))
		b.sessions = redisstore.NewSessionStore(client, redisstore.DefaultPrefix)
		b.name += "+redis"
		b.pings = append(b.pings, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		b.closers = append(b.closers, client.Close)
	}

	return b, nil
}

// newService builds the auth.Service for cfg on top of b.
func newService(cfg *config.Config, b *backend, logger *slog.Logger, observer auth.Observer) (*auth.Service, error) {
	hasher, err := auth.NewHasher(cfg.HasherParams())
	if err != nil {
		return nil, err
	}
	roles, err := cfg.RolePolicy()
	if err != nil {
		return nil, err
	}

	opts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithLockoutPolicy(cfg.LockoutPolicy()),
		auth.WithRolePolicy(roles),
		auth.WithStorageTimeout(cfg.Storage.Timeout.Std()),
	}
	if observer != nil {
		opts = append(opts, auth.WithObserver(observer))
	}
	return auth.NewService(b.credentials, b.lockouts, b.sessions, hasher, opts...)
}
