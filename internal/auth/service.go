// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/mdip/authd/pkg/errutil"
)

// Outcome labels reported to an Observer.
const (
	OutcomeSuccess = "success"
)

// Observer receives authentication outcomes. Outcomes are OutcomeSuccess or
// the string form of a Kind.
type Observer interface {
	ObserveRegister(outcome string)
	ObserveLogin(outcome string)
	ObserveLockout()
}

type nopObserver struct{}

func (nopObserver) ObserveRegister(string) {}
func (nopObserver) ObserveLogin(string)    {}
func (nopObserver) ObserveLockout()        {}

// Authenticated is the result of a successful login.
type Authenticated struct {
	Username string
	Role     string
	Token    string
}

// unknownUserPassword is hashed once per Service. Login verifies against that
// hash when a user doesn't exist so the response costs the same as a wrong
// password for a registered user.
const unknownUserPassword = "authd-unknown-user"

// Service implements registration and login.
type Service struct {
	credentials CredentialStore
	lockouts    *LockoutTracker
	sessions    *SessionManager
	hasher      PasswordHasher
	dummyHash   string
	roles       *RolePolicy
	timeout     time.Duration
	now         func() time.Time
	logger      *slog.Logger
	observer    Observer
}

// Option configures a Service.
type Option func(*serviceOptions) error

type serviceOptions struct {
	lockout  LockoutPolicy
	roles    *RolePolicy
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// WithLogger sets the logger used for storage failures, corruption and lockouts.
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) error {
		if logger == nil {
			return oops.Errorf("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) error {
		if now == nil {
			return oops.Errorf("clock cannot be nil")
		}
		o.now = now
		return nil
	}
}

// WithLockoutPolicy overrides the lockout threshold and window.
func WithLockoutPolicy(p LockoutPolicy) Option {
	return func(o *serviceOptions) error {
		o.lockout = p
		return nil
	}
}

// WithRolePolicy sets the role allow-list and default.
func WithRolePolicy(p *RolePolicy) Option {
	return func(o *serviceOptions) error {
		if p == nil {
			return oops.Errorf("role policy cannot be nil")
		}
		o.roles = p
		return nil
	}
}

// WithStorageTimeout bounds each store call. Zero disables the bound.
func WithStorageTimeout(d time.Duration) Option {
	return func(o *serviceOptions) error {
		if d < 0 {
			return oops.With("timeout", d).Errorf("storage timeout cannot be negative")
		}
		o.timeout = d
		return nil
	}
}

// WithObserver sets the outcome observer.
func WithObserver(obs Observer) Option {
	return func(o *serviceOptions) error {
		if obs == nil {
			return oops.Errorf("observer cannot be nil")
		}
		o.observer = obs
		return nil
	}
}

// NewService creates a Service. All stores and the hasher are required.
func NewService(credentials CredentialStore, lockouts LockoutStore, sessions SessionStore, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if credentials == nil {
		return nil, oops.Errorf("credential store is required")
	}
	if lockouts == nil {
		return nil, oops.Errorf("lockout store is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}

	o := serviceOptions{
		lockout:  DefaultLockoutPolicy(),
		roles:    DefaultRolePolicy(),
		now:      time.Now,
		logger:   slog.New(slog.DiscardHandler),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	tracker, err := NewLockoutTracker(lockouts, o.lockout)
	if err != nil {
		return nil, err
	}
	manager, err := NewSessionManager(sessions)
	if err != nil {
		return nil, err
	}

	dummyHash, err := hasher.Hash(unknownUserPassword)
	if err != nil {
		return nil, oops.Wrapf(err, "hash unknown-user password")
	}

	return &Service{
		credentials: credentials,
		lockouts:    tracker,
		sessions:    manager,
		hasher:      hasher,
		dummyHash:   dummyHash,
		roles:       o.roles,
		timeout:     o.timeout,
		now:         o.now,
		logger:      o.logger,
		observer:    o.observer,
	}, nil
}

// Sessions returns the session manager for collaborators that resolve sessions.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// Register creates a credential record. Steps run in order and stop at the
// first failure: username policy, password policy, role, duplicate check,
// hash, persist.
func (s *Service) Register(ctx context.Context, username, password, role string) error {
	err := s.register(ctx, username, password, role)
	s.observer.ObserveRegister(outcome(err))
	return err
}

func (s *Service) register(ctx context.Context, username, password, role string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	resolvedRole, err := s.roles.Resolve(role)
	if err != nil {
		return err
	}

	exists, err := s.exists(ctx, username)
	if err != nil {
		return s.storageFailure(ctx, "check duplicate", username, err)
	}
	if exists {
		return alreadyExists(username, nil)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code("AUTH_HASH_FAILED").With("username", username).Wrap(err)
	}

	rec := NewCredentialRecord(username, hash, resolvedRole, s.now())
	if err := s.create(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return alreadyExists(username, err)
		}
		return s.storageFailure(ctx, "create credential", username, err)
	}

	s.logger.Info("user registered", "username", username, "role", resolvedRole)
	return nil
}

// Login authenticates username. Steps: lockout check, lookup, verify, then
// either reset lockout and issue a session, or record the failure.
func (s *Service) Login(ctx context.Context, username, password string) (*Authenticated, error) {
	result, err := s.login(ctx, username, password)
	s.observer.ObserveLogin(outcome(err))
	return result, err
}

func (s *Service) login(ctx context.Context, username, password string) (*Authenticated, error) {
	now := s.now()

	locked, retryAfter, err := s.lockoutStatus(ctx, username, now)
	if err != nil {
		return nil, s.storageFailure(ctx, "check lockout", username, err)
	}
	if locked {
		return nil, oops.Code(CodeAccountLocked).
			With("username", username).
			With(keyRetryAfter, retryAfter).
			Wrap(ErrAccountLocked)
	}

	rec, err := s.lookup(ctx, username)
	if errors.Is(err, ErrNotFound) {
		_, _ = s.hasher.Verify(password, s.dummyHash) //nolint:errcheck // timing equalization only
		return nil, oops.Code(CodeUserNotFound).
			With("username", username).
			Wrap(ErrUserNotFound)
	}
	if err != nil {
		return nil, s.storageFailure(ctx, "lookup credential", username, err)
	}

	ok, err := s.hasher.Verify(password, rec.PasswordHash)
	if err != nil {
		corrupt := oops.Code(CodeStorageCorruption).
			With("username", username).
			With("cause", err.Error()).
			Wrap(ErrStorageCorruption)
		errutil.LogError(ctx, s.logger, "stored password hash is unreadable", corrupt)
		return nil, corrupt
	}

	if !ok {
		count, err := s.recordFailure(ctx, username, now)
		if err != nil {
			return nil, s.storageFailure(ctx, "record failure", username, err)
		}
		remaining := s.lockouts.Remaining(count)
		if remaining == 0 {
			s.observer.ObserveLockout()
			s.logger.Warn("account locked after repeated failures",
				"username", username,
				"failures", count,
				"window", s.lockouts.Policy().Window)
		}
		return nil, oops.Code(CodeInvalidCredentials).
			With("username", username).
			With(keyAttemptsRemaining, remaining).
			Wrap(ErrInvalidCredentials)
	}

	if err := s.resetLockout(ctx, username); err != nil {
		return nil, s.storageFailure(ctx, "reset lockout", username, err)
	}
	token, err := s.issueSession(ctx, username, now)
	if err != nil {
		return nil, s.storageFailure(ctx, "issue session", username, err)
	}

	return &Authenticated{Username: rec.Username, Role: rec.Role, Token: token}, nil
}

// bounded derives a context limited by the storage timeout.
func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) exists(ctx context.Context, username string) (bool, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.credentials.Exists(ctx, username)
}

func (s *Service) create(ctx context.Context, rec *CredentialRecord) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.credentials.Create(ctx, rec)
}

func (s *Service) lookup(ctx context.Context, username string) (*CredentialRecord, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.credentials.Lookup(ctx, username)
}

func (s *Service) lockoutStatus(ctx context.Context, username string, now time.Time) (bool, time.Duration, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.lockouts.Status(ctx, username, now)
}

func (s *Service) recordFailure(ctx context.Context, username string, now time.Time) (int, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.lockouts.RecordFailure(ctx, username, now)
}

func (s *Service) resetLockout(ctx context.Context, username string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.lockouts.Reset(ctx, username)
}

func (s *Service) issueSession(ctx context.Context, username string, now time.Time) (string, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.sessions.Issue(ctx, username, now)
}

// storageFailure classifies a store error as a storage failure, whatever the
// store returned, and logs it.
func (s *Service) storageFailure(ctx context.Context, operation, username string, err error) error {
	if !errors.Is(err, ErrStorage) {
		err = StorageError(err)
	}
	wrapped := oops.Code(CodeStorage).
		With("operation", operation).
		With("username", username).
		Wrap(err)
	errutil.LogError(ctx, s.logger, "auth storage failure", wrapped)
	return wrapped
}

func alreadyExists(username string, cause error) error {
	if cause == nil {
		cause = ErrAlreadyExists
	}
	return oops.Code(CodeAlreadyExists).
		With("username", username).
		Wrap(cause)
}

func outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	return string(KindOf(err))
}
