// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
	authpostgres "github.com/nguyendan07/seminary-management-system/internal/auth/postgres"
	rosterpostgres "github.com/nguyendan07/seminary-management-system/internal/roster/postgres"
	"github.com/nguyendan07/seminary-management-system/internal/seed"
	"github.com/nguyendan07/seminary-management-system/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	manifestPath string
	timeout      time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Provision accounts and students from a manifest",
		Long: `Applies a seed manifest against the database, creating the accounts
and students it lists. Without --manifest the built-in default manifest
is used. This command is idempotent - existing records are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.manifestPath, "manifest", "", "manifest file path (default: built-in manifest)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, cfg *seedConfig) error {
	manifestData := seed.Default()
	if cfg.manifestPath != "" {
		data, err := os.ReadFile(cfg.manifestPath)
		if err != nil {
			return err
		}
		manifestData = data
	}

	// Schema then structural validation before touching the database.
	if err := seed.ValidateSchema(manifestData); err != nil {
		return err
	}
	manifest, err := seed.ParseManifest(manifestData)
	if err != nil {
		return err
	}

	databaseURL, err := resolveDatabaseURL()
	if err != nil {
		return err
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	st, err := store.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	cmd.Println("Running migrations...")
	if err := st.Migrate(); err != nil {
		return err
	}

	pool := st.Pool()
	seeder, err := seed.NewSeeder(
		authpostgres.NewAccountRepository(pool),
		rosterpostgres.NewStudentRepository(pool),
		auth.NewArgon2idHasher(),
		store.NewPostgresSystemInfoRepository(pool),
		slog.Default(),
	)
	if err != nil {
		return err
	}

	result, err := seeder.Apply(ctx, manifest)
	if err != nil {
		return err
	}

	cmd.Printf("Seeded manifest version %s\n", result.Version)
	cmd.Printf("Accounts: %d created, %d already present\n", result.AccountsCreated, result.AccountsSkipped)
	cmd.Printf("Students: %d created, %d already present\n", result.StudentsCreated, result.StudentsSkipped)
	return nil
}
