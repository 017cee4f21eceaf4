// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

// Package redis implements the lockout and session stores on Redis so that
// several authd processes share one view of failures and sessions.
// Credentials stay in a durable backend.
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "authd:"

// Connect parses a redis:// URL, opens a client and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_URL_INVALID").Wrap(err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", opts.Addr).Wrap(err)
	}
	return client, nil
}

func storageError(code, operation, username string, err error) error {
	return oops.Code(code).
		With("operation", operation).
		With("username", username).
		Wrap(auth.StorageError(err))
}

func corrupt(code, username, field, value string) error {
	return oops.Code(code).
		With("username", username).
		With("field", field).
		With("value", value).
		Wrap(auth.ErrStorageCorruption)
}

func parseEpoch(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(n, 0).UTC(), nil
}
