// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

// Package sqlite implements the auth stores on an embedded SQLite file using
// the pure-Go modernc.org/sqlite driver. All access goes through a single
// connection, which serializes writers inside the process.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	// Register the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"

	"github.com/mdip/authd/internal/auth"
)

//go:embed schema.sql
var schemaSQL string

// DB is an open SQLite database holding the auth tables.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, oops.Code("SQLITE_SCHEMA_FAILED").With("path", path).Wrap(err)
		}
	}
	return &DB{db: db}, nil
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Credentials returns the credential store.
func (d *DB) Credentials() *CredentialStore { return &CredentialStore{db: d.db} }

// Lockouts returns the lockout store.
func (d *DB) Lockouts() *LockoutStore { return &LockoutStore{db: d.db} }

// Sessions returns the session store.
func (d *DB) Sessions() *SessionStore { return &SessionStore{db: d.db} }

func storageError(code, operation, username string, err error) error {
	return oops.Code(code).
		With("operation", operation).
		With("username", username).
		Wrap(auth.StorageError(err))
}

func fromEpoch(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}
