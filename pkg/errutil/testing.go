// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package errutil

import (
	"fmt"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireOops(t testing.TB, err error) oops.OopsError {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts that err carries code. When oops errors are nested
// the innermost code is the one compared.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	assert.Equal(t, code, requireOops(t, err).Code())
}

// AssertErrorContext asserts that the merged oops context of err maps key to value.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	fields := requireOops(t, err).Context()
	if assert.Contains(t, fields, key) {
		assert.Equal(t, value, fields[key])
	}
}

// AssertNoSecrets asserts that none of secrets appear in err's message or,
// for oops errors, in any context value. Use it on errors that may be logged
// or returned to a caller after handling a password or session token.
func AssertNoSecrets(t testing.TB, err error, secrets ...string) {
	t.Helper()
	require.Error(t, err)
	var fields map[string]any
	if oopsErr, ok := oops.AsOops(err); ok {
		fields = oopsErr.Context()
	}
	for _, secret := range secrets {
		assert.NotContains(t, err.Error(), secret, "secret leaked into error message")
		for key, v := range fields {
			assert.NotContains(t, fmt.Sprint(v), secret, "secret leaked into error context %q", key)
		}
	}
}
