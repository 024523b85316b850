// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/nguyendan07/seminary-management-system/internal/control"
)

// NewUnlockCmd creates the unlock subcommand.
func NewUnlockCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "unlock <identity>",
		Short: "Clear an account's failed-attempt lockout",
		Long: `Clears the lockout state so the account can sign in
again immediately. The server must be running; the request goes over
its owner-only control socket.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := control.SocketPath(socketPath)
			if err != nil {
				return err
			}

			if err := control.NewClient(path).Unlock(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("Account %s unlocked\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "control socket path override")

	return cmd
}
