// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

// Package storetest starts a migrated PostgreSQL container for integration
// tests.
package storetest

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vidshelf/vidshelf/internal/store"
)

// Database is a running, fully migrated test database.
type Database struct {
	DSN  string
	Pool *pgxpool.Pool

	container *postgres.PostgresContainer
}

// StartPostgres runs postgres:16-alpine, applies every migration and opens a pool.
func StartPostgres(ctx context.Context) (*Database, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("vidshelf_test"),
		postgres.WithUsername("vidshelf"),
		postgres.WithPassword("vidshelf"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, oops.With("operation", "start postgres container").Wrap(err)
	}
	db := &Database{container: container}

	db.DSN, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		db.Terminate(ctx)
		return nil, oops.With("operation", "get connection string").Wrap(err)
	}

	if err := migrateUp(db.DSN); err != nil {
		db.Terminate(ctx)
		return nil, err
	}

	db.Pool, err = store.Open(ctx, db.DSN, store.OpenOptions{ConnectRetries: 3}, nil)
	if err != nil {
		db.Terminate(ctx)
		return nil, err
	}
	return db, nil
}

func migrateUp(dsn string) error {
	migrator, err := store.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // test helper
	return migrator.Up()
}

// Terminate closes the pool and removes the container.
func (d *Database) Terminate(ctx context.Context) {
	if d.Pool != nil {
		d.Pool.Close()
	}
	_ = d.container.Terminate(ctx) //nolint:errcheck // best-effort cleanup
}
