// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/mdip/authd/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("LOGIN_FAILED").Errorf("bad credentials")
	errutil.AssertErrorCode(t, err, "LOGIN_FAILED")
}

func TestAssertErrorCode_DeepestCodeWins(t *testing.T) {
	inner := oops.Code("DB_CONNECT_FAILED").Errorf("dial tcp: refused")
	err := oops.Code("SERVE_FAILED").Wrap(inner)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("username", "alice").Errorf("locked")
	errutil.AssertErrorContext(t, err, "username", "alice")
}

func TestAssertErrorContext_MergesWrappedContext(t *testing.T) {
	inner := oops.With("backend", "sqlite").Errorf("disk full")
	err := oops.With("username", "alice").Wrap(inner)
	errutil.AssertErrorContext(t, err, "backend", "sqlite")
	errutil.AssertErrorContext(t, err, "username", "alice")
}

func TestAssertNoSecrets_Clean(t *testing.T) {
	err := oops.Code("INVALID_CREDENTIALS").With("username", "alice").Errorf("invalid credentials")
	errutil.AssertNoSecrets(t, err, "Secret1!", "tok-123")
}

func TestAssertNoSecrets_PlainError(t *testing.T) {
	errutil.AssertNoSecrets(t, errors.New("connection refused"), "Secret1!")
}

// recordingT captures assertion failures instead of failing the test.
type recordingT struct {
	testing.TB
	failed bool
}

func (r *recordingT) Errorf(string, ...any) { r.failed = true }

func (r *recordingT) FailNow() { r.failed = true }

func TestAssertNoSecrets_Leaks(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"message", oops.Errorf("password Secret1! rejected")},
		{"context", oops.With("attempt", "Secret1!").Errorf("rejected")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingT{TB: t}
			errutil.AssertNoSecrets(rec, tt.err, "Secret1!")
			assert.True(t, rec.failed)
		})
	}
}
