// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nguyendan07/seminary-management-system/internal/seed"
)

// NewValidateSeedCmd creates the validate-seed subcommand.
func NewValidateSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-seed [manifest]",
		Short: "Validate a seed manifest without touching the database",
		Long: `Validates a seed manifest against the JSON schema and the structural
rules. Without an argument the built-in default manifest is checked.
Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch manifest errors early:
  seminary validate-seed deploy/seed.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateSeed(cmd, args)
		},
	}
}

func runValidateSeed(cmd *cobra.Command, args []string) error {
	data := seed.Default()
	source := "built-in manifest"
	if len(args) == 1 {
		fileData, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		data = fileData
		source = args[0]
	}

	if err := seed.ValidateSchema(data); err != nil {
		return err
	}
	manifest, err := seed.ParseManifest(data)
	if err != nil {
		return err
	}

	cmd.Printf("%s: valid (version %s, %d accounts, %d students)\n",
		source, manifest.Version, len(manifest.Accounts), len(manifest.Students))
	return nil
}
