// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

// Package store owns the PostgreSQL connection and schema for authd.
// Migrations are embedded in the binary and applied with golang-migrate.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions controls how Connect retries an unreachable database.
type ConnectOptions struct {
	// Attempts is the total number of connection attempts. Values below 1 mean 1.
	Attempts int
	// Backoff is the initial delay between attempts; it doubles each retry.
	Backoff time.Duration
}

// DefaultConnectOptions returns five attempts starting at 500ms.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{Attempts: 5, Backoff: 500 * time.Millisecond}
}

// Connect opens a pool for databaseURL and pings it, retrying with exponential
// backoff until the database answers or the attempts run out.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, oops.Code("DB_URL_MISSING").Errorf("database URL is required")
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultConnectOptions().Backoff
	}

	backoff := retry.WithMaxRetries(uint64(opts.Attempts-1), retry.NewExponential(opts.Backoff)) //nolint:gosec // Attempts >= 1

	var pool *pgxpool.Pool
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			// A malformed URL will not improve with retries.
			return oops.Code("DB_CONFIG_INVALID").Wrap(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return retry.RetryableError(oops.With("attempt", attempt).Wrap(err))
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}
	return pool, nil
}
