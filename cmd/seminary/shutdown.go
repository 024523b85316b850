// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/nguyendan07/seminary-management-system/internal/control"
)

// NewShutdownCmd creates the shutdown subcommand.
func NewShutdownCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Gracefully stop the running server",
		Long:  `Asks the running server over its control socket to shut down gracefully.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := control.SocketPath(socketPath)
			if err != nil {
				return err
			}

			resp, err := control.NewClient(path).Shutdown(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Println(resp.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "control socket path override")

	return cmd
}
