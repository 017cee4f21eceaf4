// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

// Package postgres implements the auth stores on PostgreSQL via pgx. The
// schema is created by the store package's migrations.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

// poolIface is satisfied by *pgxpool.Pool and pgxmock pools.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// storageError wraps a driver error as auth.ErrStorage with operation context.
func storageError(code, operation, username string, err error) error {
	return oops.Code(code).
		With("operation", operation).
		With("username", username).
		Wrap(auth.StorageError(err))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func fromEpoch(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}
