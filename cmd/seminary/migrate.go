// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package main

import (
	"os"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/nguyendan07/seminary-management-system/internal/config"
	"github.com/nguyendan07/seminary-management-system/internal/store"
)

// NewMigrateCmd creates the migrate subcommand tree.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, and inspect schema migrations on the PostgreSQL database.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  runMigrateUp,
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE:  runMigrateDown,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current schema version",
			RunE:  runMigrateVersion,
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force the schema version without running migrations",
			Long: `Force the recorded schema version, clearing a dirty state after a
failed migration. Use only after manually verifying the schema.`,
			Args: cobra.ExactArgs(1),
			RunE: runMigrateForce,
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			RunE:  runMigrateStatus,
		},
	)

	return cmd
}

// resolveDatabaseURL takes DATABASE_URL if set, else the config file.
func resolveDatabaseURL() (string, error) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	if configFile != "" {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return "", err
		}
		if cfg.Database.URL != "" {
			return cfg.Database.URL, nil
		}
	}
	return "", oops.Code("CONFIG_INVALID").
		Errorf("database URL is required (set DATABASE_URL or database.url in the config file)")
}

func openMigrator() (*store.Migrator, error) {
	databaseURL, err := resolveDatabaseURL()
	if err != nil {
		return nil, err
	}
	return store.NewMigrator(databaseURL)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	cmd.Println("Applying migrations...")
	if err := m.Up(); err != nil {
		return err
	}

	cmd.Println("Migrations applied")
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	cmd.Println("Rolling back one migration...")
	if err := m.Steps(-1); err != nil {
		return err
	}

	cmd.Println("Rolled back one migration")
	return nil
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	ver, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if ver == 0 {
		cmd.Println("No migrations applied")
		return nil
	}

	name, nameErr := store.MigrationName(ver)
	if nameErr != nil {
		name = "unknown"
	}
	cmd.Printf("Version: %d (%s)\n", ver, name)
	if dirty {
		cmd.Println("State: DIRTY - the last migration failed; fix the schema and run 'migrate force'")
	}
	return nil
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	target, err := strconv.Atoi(args[0])
	if err != nil {
		return oops.Code("CONFIG_INVALID").
			With("version", args[0]).
			Errorf("version must be an integer")
	}

	m, err := openMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	if err := m.Force(target); err != nil {
		return err
	}
	cmd.Printf("Schema version forced to %d\n", target)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	applied, err := m.AppliedMigrations()
	if err != nil {
		return err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	for _, ver := range applied {
		name, nameErr := store.MigrationName(ver)
		if nameErr != nil {
			name = "unknown"
		}
		cmd.Printf("applied  %d  %s\n", ver, name)
	}
	for _, ver := range pending {
		name, nameErr := store.MigrationName(ver)
		if nameErr != nil {
			name = "unknown"
		}
		cmd.Printf("pending  %d  %s\n", ver, name)
	}
	if len(applied) == 0 && len(pending) == 0 {
		cmd.Println("No migrations found")
	}
	return nil
}

func closeMigrator(cmd *cobra.Command, m *store.Migrator) {
	if err := m.Close(); err != nil {
		cmd.PrintErrf("warning: closing migrator: %v\n", err)
	}
}
