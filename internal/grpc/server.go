// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

// Package grpc exposes the authentication service over gRPC. Messages are
// JSON encoded with a registered codec, so no generated protobuf code is
// needed; clients select it with the "json" content-subtype.
package grpc

import (
	"context"
	"io"
	"log/slog"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mdip/authd/internal/auth"
)

// Authenticator is the subset of auth.Service served over gRPC.
type Authenticator interface {
	Register(ctx context.Context, username, password, role string) error
	Login(ctx context.Context, username, password string) (*auth.Authenticated, error)
}

// AuthServer implements AuthServiceServer on top of an Authenticator.
type AuthServer struct {
	svc    Authenticator
	logger *slog.Logger
}

// AuthServerOption configures an AuthServer.
type AuthServerOption func(*AuthServer)

// WithLogger sets the logger for request outcomes.
func WithLogger(logger *slog.Logger) AuthServerOption {
	return func(s *AuthServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewAuthServer creates an AuthServer.
func NewAuthServer(svc Authenticator, opts ...AuthServerOption) (*AuthServer, error) {
	if svc == nil {
		return nil, oops.Code("GRPC_INVALID_SERVER").Errorf("authenticator cannot be nil")
	}
	s := &AuthServer{
		svc:    svc,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a credential.
func (s *AuthServer) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	if err := s.svc.Register(ctx, req.Username, req.Password, req.Role); err != nil {
		s.logger.InfoContext(ctx, "register rejected",
			"username", req.Username,
			"kind", string(auth.KindOf(err)),
		)
		return nil, toStatus(err)
	}

	s.logger.InfoContext(ctx, "user registered", "username", req.Username)
	return &RegisterResponse{
		Username: req.Username,
		Strength: auth.ScoreStrength(req.Password).String(),
	}, nil
}

// Login authenticates a credential and returns the new session token.
func (s *AuthServer) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	result, err := s.svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		s.logger.InfoContext(ctx, "login rejected",
			"username", req.Username,
			"kind", string(auth.KindOf(err)),
		)
		return nil, toStatus(err)
	}

	s.logger.InfoContext(ctx, "login succeeded", "username", result.Username, "role", result.Role)
	return &LoginResponse{
		Username:     result.Username,
		Role:         result.Role,
		SessionToken: result.Token,
	}, nil
}

// ServerConfig holds listener-independent server settings.
type ServerConfig struct {
	// TLSCertFile and TLSKeyFile enable TLS when both are set.
	TLSCertFile string
	TLSKeyFile  string
	Logger      *slog.Logger
}

// NewServer builds a grpc.Server with the Auth and health services
// registered. The returned health server reports SERVING for ServiceName.
func NewServer(authServer *AuthServer, cfg ServerConfig) (*grpc.Server, *health.Server, error) {
	if authServer == nil {
		return nil, nil, oops.Code("GRPC_INVALID_SERVER").Errorf("auth server cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = authServer.logger
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(recoveryInterceptor(logger), tracingInterceptor(), loggingInterceptor(logger)),
	}
	if cfg.TLSCertFile != "" || cfg.TLSKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, nil, oops.Code("GRPC_TLS_LOAD_FAILED").
				With("cert", cfg.TLSCertFile).
				With("key", cfg.TLSKeyFile).
				Wrap(err)
		}
		opts = append(opts, grpc.Creds(creds))
	}

	srv := grpc.NewServer(opts...)
	RegisterAuthServiceServer(srv, authServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)

	return srv, healthServer, nil
}
