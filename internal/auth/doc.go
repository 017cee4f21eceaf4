// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

// Package auth is the authentication engine: password hashing, username and
// password policy, credential storage contracts, failed-login lockout and
// session issuance.
//
// # Components
//
//   - Hasher - argon2id hashing; verifies argon2id and bcrypt hashes
//   - ValidateUsername, ValidatePassword, ScoreStrength - stateless policy
//   - CredentialStore, LockoutStore, SessionStore - storage contracts with
//     implementations in the memory, sqlite, postgres and redis subpackages
//   - LockoutTracker - sliding-window failure counting over a LockoutStore
//   - SessionManager - one active session token per username
//   - Service - the Register and Login entry points
//
// # Errors
//
// Every error wraps one sentinel (ErrValidation, ErrAlreadyExists,
// ErrUserNotFound, ErrInvalidCredentials, ErrAccountLocked, ErrStorage,
// ErrStorageCorruption) and carries an oops code. Use KindOf to classify and
// ValidationField, AttemptsRemaining, RetryAfter to read structured detail.
package auth
