// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the seminary CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seminary",
		Short: "Seminary management server",
		Long: `The seminary management server verifies staff credentials,
issues sessions, and keeps the student register.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewValidateSeedCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewShutdownCmd())
	cmd.AddCommand(NewUnlockCmd())

	return cmd
}
