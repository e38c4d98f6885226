// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package store

import (
	"cmp"
	"embed"
	"errors"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one embedded schema change.
type Migration struct {
	Version uint
	Name    string // file stem, e.g. "000002_items"
}

// SchemaStatus places a database relative to the embedded migrations.
type SchemaStatus struct {
	Current uint
	Dirty   bool
	Applied []Migration
	Pending []Migration
}

var embeddedMigrations = sync.OnceValues(func() ([]Migration, error) {
	return parseMigrations(migrationsFS)
})

// Migrations lists the embedded migrations by ascending version.
func Migrations() ([]Migration, error) {
	ms, err := embeddedMigrations()
	if err != nil {
		return nil, err
	}
	return slices.Clone(ms), nil
}

// parseMigrations reads NNNNNN_name.up.sql files from fsys. A file that
// does not follow the pattern is an error; golang-migrate would reject it too.
func parseMigrations(fsys fs.FS) ([]Migration, error) {
	files, err := fs.Glob(fsys, "migrations/*.up.sql")
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").Wrap(err)
	}
	out := make([]Migration, 0, len(files))
	for _, file := range files {
		stem := strings.TrimSuffix(path.Base(file), ".up.sql")
		prefix, _, ok := strings.Cut(stem, "_")
		version, parseErr := strconv.ParseUint(prefix, 10, 64)
		if !ok || parseErr != nil {
			return nil, oops.Code("MIGRATION_NAME_INVALID").
				With("file", file).
				Errorf("migration %q is not named NNNNNN_name.up.sql", file)
		}
		out = append(out, Migration{Version: uint(version), Name: stem})
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

// driver is the part of *migrate.Migrate the Migrator uses.
type driver interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the embedded schema with golang-migrate.
type Migrator struct {
	driver driver
}

// NewMigrator connects a migrator to databaseURL. postgres:// and
// postgresql:// URLs are accepted alongside the driver's own pgx5:// scheme.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").Wrap(err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, driverURL(databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error is the one worth reporting
		return nil, oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	return &Migrator{driver: m}, nil
}

func driverURL(databaseURL string) string {
	scheme, rest, ok := strings.Cut(databaseURL, "://")
	if ok && (scheme == "postgres" || scheme == "postgresql") {
		return "pgx5://" + rest
	}
	return databaseURL
}

// result wraps a driver error under code. ErrNoChange counts as success.
func result(code string, err error, kv ...any) error {
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return oops.Code(code).With(kv...).Wrap(err)
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	return result("MIGRATION_UP_FAILED", m.driver.Up())
}

// Down reverts every migration, dropping all tables.
func (m *Migrator) Down() error {
	return result("MIGRATION_DOWN_FAILED", m.driver.Down())
}

// Steps moves n migrations: up when n > 0, down when n < 0.
func (m *Migrator) Steps(n int) error {
	return result("MIGRATION_STEPS_FAILED", m.driver.Steps(n), "steps", n)
}

// Force marks version as applied and clears the dirty flag without running
// any SQL.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	return result("MIGRATION_FORCE_FAILED", m.driver.Force(version), "version", version)
}

// Version reports the applied version. A fresh database is (0, false).
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.driver.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Status splits the embedded migrations into applied and pending.
func (m *Migrator) Status() (*SchemaStatus, error) {
	current, dirty, err := m.Version()
	if err != nil {
		return nil, err
	}
	all, err := Migrations()
	if err != nil {
		return nil, err
	}
	st := &SchemaStatus{Current: current, Dirty: dirty}
	for _, mig := range all {
		if mig.Version <= current {
			st.Applied = append(st.Applied, mig)
		} else {
			st.Pending = append(st.Pending, mig)
		}
	}
	return st, nil
}

// Close releases the source and the database connection.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.driver.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
