// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package main

import (
	"context"
	"log/slog"
	"net"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vidshelf/vidshelf/internal/observability"
	"github.com/vidshelf/vidshelf/internal/store"
)

// Database is what serve needs from the connection pool.
// *pgxpool.Pool satisfies it.
type Database interface {
	store.Pool
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the store.Migrator methods the CLI uses.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (*store.SchemaStatus, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// DatabaseFactory opens the pool. Default: store.Open.
	DatabaseFactory func(ctx context.Context, dsn string, opts store.OpenOptions, logger *slog.Logger) (Database, error)

	// MigratorFactory opens a migrator. Default: store.NewMigrator.
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer.
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, extra ...prometheus.Collector) ObservabilityServer

	// ListenerFactory binds the API listener. Default: net.Listen.
	ListenerFactory func(network, address string) (net.Listener, error)

	// Getenv reads environment variables. Default: os.Getenv.
	Getenv func(string) string
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.DatabaseFactory == nil {
		out.DatabaseFactory = func(ctx context.Context, dsn string, opts store.OpenOptions, logger *slog.Logger) (Database, error) {
			return store.Open(ctx, dsn, opts, logger)
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = defaultMigrator
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, extra ...prometheus.Collector) ObservabilityServer {
			return observability.NewServer(addr, ready, extra...)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	return &out
}

// MigrateDeps contains injectable dependencies for the migrate command.
type MigrateDeps struct {
	MigratorFactory func(databaseURL string) (Migrator, error)
	Getenv          func(string) string
}

func (d *MigrateDeps) withDefaults() *MigrateDeps {
	out := MigrateDeps{}
	if d != nil {
		out = *d
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = defaultMigrator
	}
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	return &out
}

func defaultMigrator(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL)
}
