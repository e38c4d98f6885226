// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/vidshelf/vidshelf/internal/config"
	"github.com/vidshelf/vidshelf/internal/store"
)

// NewMigrateCmd creates the migrate command and its subcommands. Running
// it without a subcommand applies all pending migrations.
func NewMigrateCmd(deps *MigrateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back or inspect the schema migrations. DATABASE_URL selects the database.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	}

	cmd.AddCommand(newMigrateUpCmd(deps))
	cmd.AddCommand(newMigrateDownCmd(deps))
	cmd.AddCommand(newMigrateStatusCmd(deps))
	cmd.AddCommand(newMigrateForceCmd(deps))
	return cmd
}

func newMigrateUpCmd(deps *MigrateDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	}
}

func newMigrateDownCmd(deps *MigrateDeps) *cobra.Command {
	var (
		steps int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long: `Roll back the last --steps migrations (default 1). --all reverts every
migration and drops all vidshelf tables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all {
				return withMigrator(cmd, deps, func(m Migrator) error {
					cmd.Println("Rolling back all migrations...")
					if err := m.Down(); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "roll back all").Wrap(err)
					}
					cmd.Println("Rollback completed successfully")
					return nil
				})
			}
			if steps <= 0 {
				return oops.Code("INVALID_STEPS").With("steps", steps).Errorf("--steps must be positive")
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				cmd.Printf("Rolling back %d migration(s)...\n", steps)
				if err := m.Steps(-steps); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "roll back").With("steps", steps).Wrap(err)
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration")
	cmd.MarkFlagsMutuallyExclusive("steps", "all")
	return cmd
}

func newMigrateStatusCmd(deps *MigrateDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				st, err := m.Status()
				if err != nil {
					return oops.Code("MIGRATION_STATUS_FAILED").Wrap(err)
				}

				cmd.Printf("Current version: %d\n", st.Current)
				if st.Dirty {
					cmd.Println("WARNING: database is dirty; fix the failed migration and run 'migrate force'")
				}
				printMigrations(cmd, "Applied", st.Applied)
				if len(st.Pending) == 0 {
					cmd.Println("No pending migrations")
					return nil
				}
				printMigrations(cmd, "Pending", st.Pending)
				return nil
			})
		},
	}
}

func printMigrations(cmd *cobra.Command, label string, ms []store.Migration) {
	if len(ms) == 0 {
		return
	}
	cmd.Printf("%s migrations (%d):\n", label, len(ms))
	for _, mig := range ms {
		cmd.Printf("  %s\n", mig.Name)
	}
}

func newMigrateForceCmd(deps *MigrateDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Force marks VERSION as applied and clears the dirty flag. Use it after
repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "force").With("version", version).Wrap(err)
				}
				cmd.Printf("Forced version to %d\n", version)
				return nil
			})
		},
	}
}

func runMigrateUp(cmd *cobra.Command, deps *MigrateDeps) error {
	return withMigrator(cmd, deps, func(m Migrator) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "apply").Wrap(err)
		}
		cmd.Println("Migrations completed successfully")
		return nil
	})
}

// withMigrator loads the database URL, opens a migrator, runs fn and
// closes the migrator.
func withMigrator(cmd *cobra.Command, deps *MigrateDeps, fn func(Migrator) error) (err error) {
	deps = deps.withDefaults()

	cfg, err := config.Load(resolveConfigPath(cmd, deps.Getenv), nil, deps.Getenv)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = oops.Code("MIGRATION_CLOSE_FAILED").Wrap(closeErr)
		}
	}()

	return fn(m)
}

// parseForceVersion reads the leading integer of s. Trailing characters
// are ignored.
func parseForceVersion(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}
