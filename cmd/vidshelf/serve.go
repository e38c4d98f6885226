// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/vidshelf/vidshelf/internal/auth"
	authpg "github.com/vidshelf/vidshelf/internal/auth/postgres"
	"github.com/vidshelf/vidshelf/internal/config"
	"github.com/vidshelf/vidshelf/internal/library"
	librarypg "github.com/vidshelf/vidshelf/internal/library/postgres"
	"github.com/vidshelf/vidshelf/internal/logging"
	"github.com/vidshelf/vidshelf/internal/observability"
	"github.com/vidshelf/vidshelf/internal/store"
	"github.com/vidshelf/vidshelf/internal/web"
)

// NewServeCmd creates the serve subcommand. deps may be nil.
func NewServeCmd(deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON API server",
		Long: `Start the vidshelf API. The database URL and token secret are read
from DATABASE_URL and VIDSHELF_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, deps)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps loads configuration, wires every component and serves
// until ctx is cancelled, a signal arrives or a server fails.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	cfg, err := config.Load(resolveConfigPath(cmd, deps.Getenv), cmd.Flags(), deps.Getenv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.SetDefault("vidshelf", version, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.Info("starting vidshelf", "http_addr", cfg.HTTP.Addr, "metrics_addr", cfg.Metrics.Addr)

	if cfg.Database.AutoMigrate {
		if err := runAutoMigration(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	db, err := deps.DatabaseFactory(ctx, cfg.Database.URL, store.OpenOptions{
		MaxConns:       cfg.Database.MaxConns,
		ConnectRetries: cfg.Database.ConnectRetries,
		RetryInterval:  cfg.Database.RetryInterval,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metrics *observability.Metrics
	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		collectors := append(auth.Collectors(), library.Collectors()...)
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, db.Ping, collectors...)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		metrics = obsServer.Metrics()
	}

	router, err := buildRouter(cfg, db, metrics, logger)
	if err != nil {
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	httpSrv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErrCh := make(chan error, 1)
	go func() {
		defer close(httpErrCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrCh <- serveErr
		}
	}()
	go monitorServerErrors(ctx, cancel, httpErrCh, "http")

	cmd.Println("vidshelf listening on " + listener.Addr().String())
	logger.Info("vidshelf ready", "http_addr", listener.Addr().String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
	logger.Info("shutdown complete")
	return nil
}

// buildRouter wires repositories and services over db.
func buildRouter(cfg *config.Config, db store.Pool, metrics *observability.Metrics, logger *slog.Logger) (http.Handler, error) {
	users := authpg.NewUserRepository(db)
	hashes := auth.NewHashPool(auth.NewArgon2idHasher(), cfg.Auth.HashWorkers)
	creds, err := auth.NewCredentialStore(users, hashes, logger)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.Auth.Secret),
		Algorithm:  cfg.Auth.Algorithm,
		DefaultTTL: cfg.Auth.SessionTTL,
	}, logger)
	if err != nil {
		return nil, err
	}

	registry, err := library.NewRegistry(librarypg.NewItemRepository(db), creds, library.RegistryConfig{
		CreateAttempts: cfg.Library.CreateAttempts,
		RetryInterval:  cfg.Library.CreateRetryInterval,
	}, logger)
	if err != nil {
		return nil, err
	}
	collections, err := library.NewCollectionManager(librarypg.NewCollectionRepository(db), registry, library.CollectionConfig{
		CASAttempts: cfg.Library.CASAttempts,
	}, logger)
	if err != nil {
		return nil, err
	}
	watch, err := library.NewWatchLog(librarypg.NewWatchEventRepository(db), logger)
	if err != nil {
		return nil, err
	}

	return web.NewRouter(web.Services{
		Credentials: creds,
		Tokens:      tokens,
		Resolver:    auth.NewResolver(tokens, cfg.Auth.CookieName),
		Registry:    registry,
		Collections: collections,
		Watch:       watch,
	}, web.Options{
		CookieSecure: cfg.Auth.CookieSecure,
		Metrics:      metrics,
		Logger:       logger,
	}), nil
}

// runAutoMigration applies pending migrations before the pool opens.
func runAutoMigration(databaseURL string, factory func(string) (Migrator, error), logger *slog.Logger) error {
	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	logger.Info("database migrations applied")
	return nil
}

// monitorServerErrors cancels ctx when a server reports an error. It
// returns when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
