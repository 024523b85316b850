// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
	"github.com/nguyendan07/seminary-management-system/internal/auth/mocks"
)

func TestResetService_ResetSecret_LogsCleanupFailures(t *testing.T) {
	ctx := context.Background()

	accounts := mocks.NewMockAccountRepository(t)
	resets := mocks.NewMockResetRepository(t)
	sessions := mocks.NewMockSessionRepository(t)
	hasher := mocks.NewMockSecretHasher(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	svc, err := auth.NewResetServiceWithLogger(accounts, resets, sessions, hasher, logger)
	require.NoError(t, err)

	accountID := ulid.Make()
	token, hash, err := auth.GenerateResetToken()
	require.NoError(t, err)
	reset, err := auth.NewSecretReset(accountID, hash, time.Now().Add(auth.ResetTokenTTL))
	require.NoError(t, err)

	resets.On("GetByTokenHash", ctx, hash).Return(reset, nil)
	hasher.On("Hash", "newsecret123").Return("$argon2id$v=19$m=65536,t=1,p=4$s$h", nil)
	accounts.On("UpdateSecret", ctx, accountID, mock.AnythingOfType("string")).Return(nil)
	accounts.On("ClearLockout", ctx, accountID).Return(nil)
	resets.On("DeleteByAccount", ctx, accountID).Return(errors.New("timeout"))
	sessions.On("DeleteByAccount", ctx, accountID).Return(errors.New("timeout"))

	require.NoError(t, svc.ResetSecret(ctx, token, "newsecret123"))

	entries := decodeLogs(t, &buf)

	deleteEntry := findEntry(entries, "delete_resets")
	require.NotNil(t, deleteEntry, "expected a delete_resets log entry")
	assert.Equal(t, "WARN", deleteEntry.Level)
	assert.Contains(t, deleteEntry.Msg, "best-effort")
	assert.Equal(t, accountID.String(), deleteEntry.AccountID)

	revokeEntry := findEntry(entries, "revoke_sessions")
	require.NotNil(t, revokeEntry, "expected a revoke_sessions log entry")
	assert.Equal(t, "WARN", revokeEntry.Level)
	assert.Contains(t, revokeEntry.Msg, "best-effort")
}
