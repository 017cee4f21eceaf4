// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/oops"
)

// Sentinel errors. Every error returned by this package and its store
// implementations wraps exactly one of these, so callers classify with
// errors.Is or KindOf rather than by message.
var (
	// ErrNotFound is returned by stores when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	ErrValidation         = errors.New("validation failed")
	ErrAlreadyExists      = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrStorage            = errors.New("storage failure")
	ErrStorageCorruption  = errors.New("stored credential is corrupt")

	// ErrInvalidHashFormat is returned by PasswordHasher.Verify when the
	// stored value is not a hash produced by a supported algorithm.
	ErrInvalidHashFormat = errors.New("invalid hash format")
)

// Error codes attached to oops errors.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodeAlreadyExists      = "AUTH_ALREADY_EXISTS"
	CodeUserNotFound       = "AUTH_USER_NOT_FOUND"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	CodeStorage            = "AUTH_STORAGE"
	CodeStorageCorruption  = "AUTH_STORAGE_CORRUPTION"
	CodeInvalidHash        = "AUTH_INVALID_HASH"
)

// Context keys carried on oops errors.
const (
	keyField             = "field"
	keyReason            = "reason"
	keyAttemptsRemaining = "attempts_remaining"
	keyRetryAfter        = "retry_after"
)

// Kind classifies an error returned by Service.
type Kind string

// Error kinds.
const (
	KindUnknown            Kind = "unknown"
	KindValidation         Kind = "validation"
	KindAlreadyExists      Kind = "already_exists"
	KindUserNotFound       Kind = "user_not_found"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAccountLocked      Kind = "account_locked"
	KindStorage            Kind = "storage"
	KindStorageCorruption  Kind = "storage_corruption"
)

// KindOf reports the kind of err. Order matters: corruption is checked
// before the generic storage failure.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrUserNotFound):
		return KindUserNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return KindAccountLocked
	case errors.Is(err, ErrStorageCorruption):
		return KindStorageCorruption
	case errors.Is(err, ErrStorage):
		return KindStorage
	default:
		return KindUnknown
	}
}

// ValidationError builds a policy rejection for field.
func ValidationError(field, reason string) error {
	return oops.Code(CodeValidation).
		With(keyField, field).
		With(keyReason, reason).
		Wrap(fmt.Errorf("%w: %s", ErrValidation, reason))
}

// StorageError marks err as a backend I/O failure. A nil err yields nil.
func StorageError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// ValidationField returns the rejected field and reason of a validation error.
func ValidationField(err error) (field, reason string, ok bool) {
	if !errors.Is(err, ErrValidation) {
		return "", "", false
	}
	field, _ = contextValue(err, keyField).(string)
	reason, _ = contextValue(err, keyReason).(string)
	return field, reason, true
}

// AttemptsRemaining returns the attempts left before lockout carried by an
// invalid-credentials error.
func AttemptsRemaining(err error) (int, bool) {
	if !errors.Is(err, ErrInvalidCredentials) {
		return 0, false
	}
	n, ok := contextValue(err, keyAttemptsRemaining).(int)
	return n, ok
}

// RetryAfter returns how long until an account-locked error clears.
func RetryAfter(err error) (time.Duration, bool) {
	if !errors.Is(err, ErrAccountLocked) {
		return 0, false
	}
	d, ok := contextValue(err, keyRetryAfter).(time.Duration)
	return d, ok
}

func contextValue(err error, key string) any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()[key]
}
