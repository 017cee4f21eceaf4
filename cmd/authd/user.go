// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mdip/authd/internal/auth"
	"github.com/mdip/authd/internal/config"
	authgrpc "github.com/mdip/authd/internal/grpc"
	"github.com/mdip/authd/internal/logging"
)

// Terminal seams, replaced in tests.
var (
	readPassword = term.ReadPassword
	isTerminal   = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
)

// userOptions holds flags shared by the user subcommands.
type userOptions struct {
	server        string
	tls           bool
	passwordStdin bool
	role          string
}

// userClient is what the user commands need from either the local engine or
// a remote server.
type userClient interface {
	Register(ctx context.Context, username, password, role string) (string, error)
	Login(ctx context.Context, username, password string) (*auth.Authenticated, error)
	Close() error
}

// NewUserCmd creates the user subcommand.
func NewUserCmd() *cobra.Command {
	opts := &userOptions{}

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Register users and log in",
		Long: `Register users and log in, either against the configured storage
directly or, with --server, through a running authd.`,
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", "", "authd gRPC address; empty uses the configured storage directly")
	cmd.PersistentFlags().BoolVar(&opts.tls, "tls", false, "use TLS when connecting to --server")
	cmd.PersistentFlags().BoolVar(&opts.passwordStdin, "password-stdin", false, "read the password from stdin")

	register := &cobra.Command{
		Use:   "register USERNAME",
		Short: "Register a new user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserRegister(cmd, args[0], opts)
		},
	}
	register.Flags().StringVar(&opts.role, "role", "", "role to assign; empty uses auth.default_role")

	login := &cobra.Command{
		Use:   "login USERNAME",
		Short: "Log in and print a session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserLogin(cmd, args[0], opts)
		},
	}

	cmd.AddCommand(register, login)
	return cmd
}

func runUserRegister(cmd *cobra.Command, username string, opts *userOptions) error {
	client, err := openUserClient(cmd, opts)
	if err != nil {
		return err
	}
	defer closeUserClient(cmd, client)

	password, err := promptPassword(cmd, opts.passwordStdin)
	if err != nil {
		return err
	}

	strength, err := client.Register(cmd.Context(), username, password, opts.role)
	if err != nil {
		return describeError(err)
	}
	cmd.Printf("Password strength: %s\n", strength)
	cmd.Printf("Registered %s\n", username)
	return nil
}

func runUserLogin(cmd *cobra.Command, username string, opts *userOptions) error {
	client, err := openUserClient(cmd, opts)
	if err != nil {
		return err
	}
	defer closeUserClient(cmd, client)

	password, err := promptPassword(cmd, opts.passwordStdin)
	if err != nil {
		return err
	}

	result, err := client.Login(cmd.Context(), username, password)
	if err != nil {
		return describeError(err)
	}
	cmd.Printf("Logged in as %s (role: %s)\n", result.Username, result.Role)
	cmd.Printf("Session token: %s\n", result.Token)
	return nil
}

func closeUserClient(cmd *cobra.Command, client userClient) {
	if err := client.Close(); err != nil {
		cmd.PrintErrln("warning:", err)
	}
}

// promptPassword reads a password without echo from a terminal, or the first
// line of stdin otherwise.
func promptPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if !fromStdin && isTerminal() {
		cmd.PrintErr("Password: ")
		pw, err := readPassword(int(os.Stdin.Fd()))
		cmd.PrintErrln()
		if err != nil {
			return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func openUserClient(cmd *cobra.Command, opts *userOptions) (userClient, error) {
	if opts.server != "" {
		cfg := authgrpc.ClientConfig{Address: opts.server}
		if opts.tls {
			cfg.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client, err := authgrpc.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return remoteUserClient{client: client}, nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openLocalUserClient(cmd.Context(), cfg, cmd.ErrOrStderr())
}

func openLocalUserClient(ctx context.Context, cfg *config.Config, logOut io.Writer) (userClient, error) {
	logger := logging.Setup(logging.Options{
		Service: "authd",
		Version: version,
		Backend: cfg.Storage.Backend,
		Format:  cfg.Log.Format,
		Level:   "warn",
	}, logOut)
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, oops.Code("BACKEND_OPEN_FAILED").With("backend", cfg.Storage.Backend).Wrap(err)
	}
	svc, err := newService(cfg, b, logger, nil)
	if err != nil {
		return nil, errors.Join(err, b.Close())
	}
	return &localUserClient{svc: svc, backend: b}, nil
}

type localUserClient struct {
	svc     *auth.Service
	backend *backend
}

func (c *localUserClient) Register(ctx context.Context, username, password, role string) (string, error) {
	if err := c.svc.Register(ctx, username, password, role); err != nil {
		return "", err
	}
	return auth.ScoreStrength(password).String(), nil
}

func (c *localUserClient) Login(ctx context.Context, username, password string) (*auth.Authenticated, error) {
	return c.svc.Login(ctx, username, password)
}

func (c *localUserClient) Close() error {
	return c.backend.Close()
}

type remoteUserClient struct {
	client *authgrpc.Client
}

func (c remoteUserClient) Register(ctx context.Context, username, password, role string) (string, error) {
	resp, err := c.client.Register(ctx, username, password, role)
	if err != nil {
		return "", err
	}
	return resp.Strength, nil
}

func (c remoteUserClient) Login(ctx context.Context, username, password string) (*auth.Authenticated, error) {
	resp, err := c.client.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return &auth.Authenticated{Username: resp.Username, Role: resp.Role, Token: resp.SessionToken}, nil
}

func (c remoteUserClient) Close() error {
	return c.client.Close()
}

// cliError carries a user-facing message while keeping the cause for
// errors.Is.
type cliError struct {
	msg   string
	cause error
}

func (e *cliError) Error() string { return e.msg }
func (e *cliError) Unwrap() error { return e.cause }

// describeError turns service errors into the messages shown to a user.
func describeError(err error) error {
	var msg string
	switch auth.KindOf(err) {
	case auth.KindValidation:
		_, reason, _ := auth.ValidationField(err)
		msg = reason
	case auth.KindAlreadyExists:
		msg = "username already exists"
	case auth.KindUserNotFound, auth.KindInvalidCredentials:
		msg = "invalid username or password"
		if remaining, ok := auth.AttemptsRemaining(err); ok {
			if remaining == 0 {
				msg += "; account is now locked"
			} else {
				msg += fmt.Sprintf("; %d attempt(s) remaining", remaining)
			}
		}
	case auth.KindAccountLocked:
		msg = "account locked"
		if retryAfter, ok := auth.RetryAfter(err); ok {
			msg += fmt.Sprintf("; try again in %s", retryAfter.Round(time.Second))
		}
	case auth.KindStorage, auth.KindStorageCorruption:
		msg = "storage unavailable, try again later"
	default:
		return err
	}
	if msg == "" {
		return err
	}
	return &cliError{msg: msg, cause: err}
}
