// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package grpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/mdip/authd/internal/auth"
	"github.com/mdip/authd/internal/auth/memory"
	"github.com/mdip/authd/internal/logging"
	"github.com/mdip/authd/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubAuthenticator returns canned results.
type stubAuthenticator struct {
	registerErr error
	login       func() (*auth.Authenticated, error)
}

func (s *stubAuthenticator) Register(context.Context, string, string, string) error {
	return s.registerErr
}

func (s *stubAuthenticator) Login(context.Context, string, string) (*auth.Authenticated, error) {
	return s.login()
}

func newTestService(t *testing.T) *auth.Service {
	t.Helper()
	hasher, err := auth.NewHasher(auth.HasherParams{
		Algorithm: auth.AlgorithmArgon2id, Time: 1, MemoryKiB: 64, Threads: 1, BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)
	svc, err := auth.NewService(memory.NewCredentialStore(), memory.NewLockoutStore(), memory.NewSessionStore(), hasher)
	require.NoError(t, err)
	return svc
}

// startServer serves svc over an in-memory listener and returns a client
// connected to it plus a raw connection for the health service.
func startServer(t *testing.T, svc Authenticator) (*Client, *grpc.ClientConn) {
	t.Helper()

	authServer, err := NewAuthServer(svc)
	require.NoError(t, err)
	srv, _, err := NewServer(authServer, ServerConfig{})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = srv.Serve(lis)
	}()

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})

	client, err := NewClient(ClientConfig{
		Address:     "passthrough:///bufnet",
		DialOptions: []grpc.DialOption{dialer},
	})
	require.NoError(t, err)

	raw, err := grpc.NewClient("passthrough:///bufnet", dialer,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, client.Close())
		assert.NoError(t, raw.Close())
		srv.Stop()
		<-served
	})
	return client, raw
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestAuthServer_RegisterThenLogin(t *testing.T) {
	ctx := testContext(t)
	client, _ := startServer(t, newTestService(t))

	reg, err := client.Register(ctx, "alice", "Secret1!", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", reg.Username)
	assert.Equal(t, "Strong", reg.Strength)

	login, err := client.Login(ctx, "alice", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, "alice", login.Username)
	assert.Equal(t, "user", login.Role)
	assert.Len(t, login.SessionToken, auth.SessionTokenBytes*2)
}

func TestAuthServer_RegisterErrors(t *testing.T) {
	ctx := testContext(t)
	client, _ := startServer(t, newTestService(t))

	_, err := client.Register(ctx, "alice", "Secret1!", "")
	require.NoError(t, err)

	t.Run("duplicate", func(t *testing.T) {
		_, err := client.Register(ctx, "alice", "Other1!x", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrAlreadyExists)
		assert.Equal(t, auth.KindAlreadyExists, auth.KindOf(err))
	})

	t.Run("policy rejection keeps field and reason", func(t *testing.T) {
		_, err := client.Register(ctx, "bob", "short", "")
		require.Error(t, err)
		field, reason, ok := auth.ValidationField(err)
		require.True(t, ok)
		assert.Equal(t, auth.FieldPassword, field)
		assert.Equal(t, "password must be at least 6 characters long", reason)
	})
}

func TestAuthServer_LoginDoesNotRevealUnknownUsers(t *testing.T) {
	ctx := testContext(t)
	client, _ := startServer(t, newTestService(t))

	_, err := client.Register(ctx, "alice", "Secret1!", "")
	require.NoError(t, err)

	_, wrongPassword := client.Login(ctx, "alice", "Wrong1!x")
	_, unknownUser := client.Login(ctx, "mallory", "Wrong1!x")

	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.ErrorIs(t, wrongPassword, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, auth.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestAuthServer_Lockout(t *testing.T) {
	ctx := testContext(t)
	client, _ := startServer(t, newTestService(t))

	_, err := client.Register(ctx, "alice", "Secret1!", "")
	require.NoError(t, err)

	for range auth.DefaultLockoutThreshold {
		_, err = client.Login(ctx, "alice", "Wrong1!x")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}

	_, err = client.Login(ctx, "alice", "Secret1!")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrAccountLocked)
	retryAfter, ok := auth.RetryAfter(err)
	require.True(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, auth.DefaultLockoutWindow)
}

func TestAuthServer_StorageFailure(t *testing.T) {
	ctx := testContext(t)
	client, _ := startServer(t, &stubAuthenticator{
		registerErr: auth.StorageError(errors.New("connection refused")),
		login: func() (*auth.Authenticated, error) {
			return nil, auth.StorageError(context.DeadlineExceeded)
		},
	})

	_, err := client.Register(ctx, "alice", "Secret1!", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrStorage)
	assert.NotContains(t, err.Error(), "connection refused")

	_, err = client.Login(ctx, "alice", "Secret1!")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrStorage)
}

func TestAuthServer_PanicIsInternal(t *testing.T) {
	ctx := testContext(t)
	client, _ := startServer(t, &stubAuthenticator{
		login: func() (*auth.Authenticated, error) { panic("boom") },
	})

	_, err := client.Login(ctx, "alice", "Secret1!")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "RPC_FAILED")
	errutil.AssertErrorContext(t, err, "grpc_code", codes.Internal.String())
}

func TestServer_Health(t *testing.T) {
	ctx := testContext(t)
	_, raw := startServer(t, newTestService(t))

	resp, err := healthpb.NewHealthClient(raw).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestNewAuthServer_NilAuthenticator(t *testing.T) {
	s, err := NewAuthServer(nil)
	require.Error(t, err)
	assert.Nil(t, s)
}

func TestNewServer(t *testing.T) {
	t.Run("nil auth server", func(t *testing.T) {
		_, _, err := NewServer(nil, ServerConfig{})
		errutil.AssertErrorCode(t, err, "GRPC_INVALID_SERVER")
	})

	t.Run("missing tls files", func(t *testing.T) {
		authServer, err := NewAuthServer(&stubAuthenticator{})
		require.NoError(t, err)
		_, _, err = NewServer(authServer, ServerConfig{TLSCertFile: "/nonexistent/cert.pem", TLSKeyFile: "/nonexistent/key.pem"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "GRPC_TLS_LOAD_FAILED")
	})
}

func TestNewClient_MissingAddress(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "GRPC_ADDRESS_MISSING")
}

func TestClient_Close_NilConn(t *testing.T) {
	assert.NoError(t, (&Client{}).Close())
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"validation", auth.ValidationError(auth.FieldUsername, "username cannot be empty"), codes.InvalidArgument},
		{"already exists", auth.ErrAlreadyExists, codes.AlreadyExists},
		{"user not found", auth.ErrUserNotFound, codes.Unauthenticated},
		{"invalid credentials", auth.ErrInvalidCredentials, codes.Unauthenticated},
		{"locked", auth.ErrAccountLocked, codes.ResourceExhausted},
		{"storage", auth.StorageError(errors.New("down")), codes.Unavailable},
		{"storage deadline", auth.StorageError(context.DeadlineExceeded), codes.DeadlineExceeded},
		{"corruption", auth.ErrStorageCorruption, codes.Internal},
		{"unknown", errors.New("???"), codes.Internal},
		{"cancelled", context.Canceled, codes.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(toStatus(tt.err)))
		})
	}

	assert.NoError(t, toStatus(nil))
}

func TestFromStatus_PassesThroughPlainErrors(t *testing.T) {
	plain := errors.New("not a status")
	assert.Same(t, plain, fromStatus(plain))
}

func TestTracingInterceptor_PropagatesSpanContext(t *testing.T) {
	var seen context.Context
	handler := func(ctx context.Context, _ any) (any, error) {
		seen = ctx
		return nil, status.Error(codes.Unauthenticated, msgBadCredentials)
	}

	_, err := tracingInterceptor()(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: loginMethod}, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	require.NotNil(t, seen)
}

func TestLoggingInterceptor_AnnotatesHandlerRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup(logging.Options{Service: "authd", Level: "debug"}, &buf)

	handler := func(ctx context.Context, _ any) (any, error) {
		logger.InfoContext(ctx, "login rejected", "username", "alice")
		return nil, nil
	}
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 4242}})

	_, err := loggingInterceptor(logger)(ctx, nil, &grpc.UnaryServerInfo{FullMethod: loginMethod}, handler)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, loginMethod, entry["rpc_method"])
		assert.Equal(t, "10.0.0.7:4242", entry["peer"])
	}
}
