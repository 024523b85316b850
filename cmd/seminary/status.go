// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nguyendan07/seminary-management-system/internal/control"
)

// ServerStatus holds the status information reported by the server.
type ServerStatus struct {
	Running       bool   `json:"running"`
	Health        string `json:"health,omitempty"`
	PID           int    `json:"pid,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	Version       string `json:"version,omitempty"`
	Backend       string `json:"backend,omitempty"`
	Error         string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	socketPath string
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of the running server",
		Long:  `Queries the control socket of a running server and reports its health.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.socketPath, "socket", "", "control socket path override")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	status := queryServerStatus(cmd, cfg.socketPath)

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(formatStatusTable(status))
	return nil
}

// queryServerStatus asks the control socket for health and status.
func queryServerStatus(cmd *cobra.Command, socketOverride string) ServerStatus {
	var status ServerStatus

	socketPath, err := control.SocketPath(socketOverride)
	if err != nil {
		status.Error = fmt.Sprintf("failed to get socket path: %v", err)
		return status
	}

	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		status.Error = "socket not found"
		return status
	}

	client := control.NewClient(socketPath)
	ctx := cmd.Context()

	health, err := client.Health(ctx)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	status.Health = health.Status

	serverStatus, err := client.Status(ctx)
	if err != nil {
		// Health succeeded but status failed - still consider running
		status.Running = true
		return status
	}

	status.Running = serverStatus.Running
	status.PID = serverStatus.PID
	status.UptimeSeconds = serverStatus.UptimeSeconds
	status.Version = serverStatus.Version
	status.Backend = serverStatus.Backend
	return status
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ServerStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "STATUS\tHEALTH\tPID\tUPTIME\tVERSION\tBACKEND")
	_, _ = fmt.Fprintln(w, "------\t------\t---\t------\t-------\t-------")

	if status.Running {
		_, _ = fmt.Fprintf(w, "running\t%s\t%d\t%s\t%s\t%s\n",
			status.Health, status.PID, formatUptime(status.UptimeSeconds),
			status.Version, status.Backend)
	} else {
		reason := "not running"
		if status.Error != "" {
			reason = status.Error
		}
		_, _ = fmt.Fprintf(w, "stopped\t-\t-\t%s\t-\t-\n", reason)
	}

	_ = w.Flush()
	return string(buf)
}

// formatUptime formats seconds into a human-readable duration.
func formatUptime(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
