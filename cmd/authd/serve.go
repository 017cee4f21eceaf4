// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/mdip/authd/internal/auth"
	"github.com/mdip/authd/internal/config"
	authgrpc "github.com/mdip/authd/internal/grpc"
	"github.com/mdip/authd/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// serveOptions holds flags local to the serve command.
type serveOptions struct {
	autoMigrate bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Auth gRPC API",
		Long: `Serve Register and Login over gRPC, with Prometheus metrics and
health probes on the metrics address.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, opts, cmd, nil)
		},
	}

	cmd.Flags().BoolVar(&opts.autoMigrate, "auto-migrate", true, "apply pending migrations on start (postgres backend)")
	return cmd
}

// runServeWithDeps runs the server until a signal, a server error or ctx
// cancellation. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, opts *serveOptions, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.SetDefault(logging.Options{
		Service: "authd",
		Version: version,
		Backend: cfg.Storage.Backend,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})
	logger.Info("starting authd",
		"grpc_addr", cfg.GRPC.Addr,
		"storage_backend", cfg.Storage.Backend,
	)

	if cfg.Storage.Backend == config.BackendPostgres && opts.autoMigrate {
		if err := applyMigrations(deps, cfg.Storage.Postgres.URL); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	b, err := deps.BackendOpener(ctx, cfg)
	if err != nil {
		return oops.Code("BACKEND_OPEN_FAILED").With("backend", cfg.Storage.Backend).Wrap(err)
	}
	defer func() {
		if closeErr := b.Close(); closeErr != nil {
			logger.Warn("error closing storage backend", "error", closeErr)
		}
	}()
	logger.Info("storage backend ready", "backend", b.name)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var observer auth.Observer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, b.Ping)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		observer = obsServer.Metrics()
	}
	defer func() {
		if obsServer == nil {
			return
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			logger.Warn("error stopping observability server", "error", stopErr)
		}
	}()

	svc, err := newService(cfg, b, logger, observer)
	if err != nil {
		return oops.Code("SERVICE_INIT_FAILED").Wrap(err)
	}
	authServer, err := authgrpc.NewAuthServer(svc, authgrpc.WithLogger(logger))
	if err != nil {
		return oops.Code("SERVICE_INIT_FAILED").Wrap(err)
	}
	grpcServer, health, err := authgrpc.NewServer(authServer, authgrpc.ServerConfig{
		TLSCertFile: cfg.GRPC.TLSCert,
		TLSKeyFile:  cfg.GRPC.TLSKey,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.GRPC.Addr)
	if err != nil {
		return oops.Code("GRPC_LISTEN_FAILED").With("addr", cfg.GRPC.Addr).Wrap(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		if serveErr := grpcServer.Serve(listener); serveErr != nil {
			errChan <- serveErr
		}
	}()

	cmd.Println("authd serving on " + listener.Addr().String())
	logger.Info("authd ready", "grpc_addr", listener.Addr().String())

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case serveErr := <-errChan:
		runErr = oops.Code("GRPC_SERVE_FAILED").Wrap(serveErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	health.Shutdown()
	grpcServer.GracefulStop()
	logger.Info("shutdown complete")
	return runErr
}

func applyMigrations(deps *ServeDeps, databaseURL string) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()
	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	return nil
}

// monitorServerErrors cancels ctx when a server reports an error. It returns
// when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
