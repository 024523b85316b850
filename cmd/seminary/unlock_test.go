// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyendan07/seminary-management-system/internal/control"
)

func TestUnlock_RequiresIdentityArg(t *testing.T) {
	cmd := NewUnlockCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{})

	require.Error(t, cmd.Execute())
}

func TestUnlock_AgainstRunningControlServer(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "seminary.sock")

	var gotIdentity atomic.Value
	srv := control.NewServer("test", "memory", func() {}, func(_ context.Context, identity string) error {
		gotIdentity.Store(identity)
		return nil
	})
	require.NoError(t, srv.Start(socketPath))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	}()

	cmd := NewUnlockCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--socket", socketPath, "admin@seminary.edu"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "unlocked")
	assert.Equal(t, "admin@seminary.edu", gotIdentity.Load())
}

func TestShutdown_AgainstRunningControlServer(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "seminary.sock")

	var called atomic.Bool
	srv := control.NewServer("test", "memory", func() { called.Store(true) }, nil)
	require.NoError(t, srv.Start(socketPath))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	}()

	cmd := NewShutdownCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--socket", socketPath})

	require.NoError(t, cmd.Execute())
	assert.NotEmpty(t, buf.String())

	require.Eventually(t, called.Load, 2*time.Second, 10*time.Millisecond,
		"shutdown callback not invoked")
}
