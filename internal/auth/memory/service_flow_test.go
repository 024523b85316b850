// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
	"github.com/nguyendan07/seminary-management-system/internal/auth/memory"
	"github.com/nguyendan07/seminary-management-system/pkg/errutil"
)

// newFlowService wires a real Service against in-memory repositories
// and the production argon2id hasher. These tests exercise the full
// verification pipeline rather than mocked repositories.
func newFlowService(t *testing.T, cfg auth.ServiceConfig) (*auth.Service, *memory.AccountRepository) {
	t.Helper()
	accounts := memory.NewAccountRepository()
	sessions := memory.NewSessionRepository()
	svc, err := auth.NewService(accounts, sessions, auth.NewArgon2idHasher(), cfg)
	require.NoError(t, err)
	return svc, accounts
}

func TestVerifyFlow_LockoutSequence(t *testing.T) {
	svc, accounts := newFlowService(t, auth.ServiceConfig{})
	ctx := context.Background()

	const identity = "rector@seminary.edu"
	const secret = "correct-horse-battery"

	account, err := svc.Register(ctx, identity, secret, "Rector", auth.RoleAdmin)
	require.NoError(t, err)

	policy := auth.DefaultLockoutPolicy()

	// Every failed attempt up to and including the threshold reports
	// invalid credentials. The lock gates the NEXT attempt.
	for i := 1; i <= policy.Threshold; i++ {
		_, _, err := svc.Verify(ctx, identity, "wrong-secret", "", "")
		require.Error(t, err, "attempt %d", i)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	}

	got, err := accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, policy.Threshold, got.FailedAttempts)
	assert.True(t, got.IsLocked())

	// Locked accounts reject even the correct secret.
	_, _, err = svc.Verify(ctx, identity, secret, "", "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_LOCKED")

	// Attempts against a locked account do not advance the counter.
	_, _, err = svc.Verify(ctx, identity, "wrong-secret", "", "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_LOCKED")

	got, err = accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, policy.Threshold, got.FailedAttempts)

	// Administrative unlock restores access immediately.
	require.NoError(t, svc.Unlock(ctx, identity))

	session, token, err := svc.Verify(ctx, identity, secret, "test-agent", "127.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Len(t, token, 64)
	assert.Equal(t, identity, session.Identity)
	assert.True(t, svc.IsValid(ctx, token))
}

func TestVerifyFlow_SuccessResetsCounter(t *testing.T) {
	svc, accounts := newFlowService(t, auth.ServiceConfig{})
	ctx := context.Background()

	const identity = "student@seminary.edu"
	const secret = "faithful-and-true"

	account, err := svc.Register(ctx, identity, secret, "Student", auth.RoleUser)
	require.NoError(t, err)

	for range 2 {
		_, _, err := svc.Verify(ctx, identity, "wrong-secret", "", "")
		require.Error(t, err)
	}

	got, err := accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.FailedAttempts)

	_, _, err = svc.Verify(ctx, identity, secret, "", "")
	require.NoError(t, err)

	got, err = accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailedAttempts)
	assert.Nil(t, got.WindowStartedAt)

	// The window restarts from scratch on the next failure.
	_, _, err = svc.Verify(ctx, identity, "wrong-secret", "", "")
	require.Error(t, err)

	got, err = accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.FailedAttempts)
}

func TestVerifyFlow_UnknownIdentityIndistinguishable(t *testing.T) {
	svc, _ := newFlowService(t, auth.ServiceConfig{})
	ctx := context.Background()

	_, err := svc.Register(ctx, "known@seminary.edu", "faithful-and-true", "", "")
	require.NoError(t, err)

	_, _, wrongSecretErr := svc.Verify(ctx, "known@seminary.edu", "wrong-secret", "", "")
	require.Error(t, wrongSecretErr)

	_, _, unknownErr := svc.Verify(ctx, "ghost@seminary.edu", "wrong-secret", "", "")
	require.Error(t, unknownErr)

	// Same code, same message: no enumeration signal.
	errutil.AssertErrorCode(t, wrongSecretErr, "AUTH_INVALID_CREDENTIALS")
	errutil.AssertErrorCode(t, unknownErr, "AUTH_INVALID_CREDENTIALS")
	assert.Equal(t, wrongSecretErr.Error(), unknownErr.Error())
}

func TestVerifyFlow_SessionLifecycle(t *testing.T) {
	svc, _ := newFlowService(t, auth.ServiceConfig{SessionTTL: time.Hour})
	ctx := context.Background()

	const identity = "student@seminary.edu"
	const secret = "faithful-and-true"

	account, err := svc.Register(ctx, identity, secret, "Student", "")
	require.NoError(t, err)

	session, token, err := svc.Verify(ctx, identity, secret, "test-agent", "127.0.0.1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Second)

	validated, err := svc.ValidateSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, validated.ID)
	assert.Equal(t, account.ID, validated.AccountID)

	listed, err := svc.Sessions(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	// Revocation is immediate and idempotent.
	require.NoError(t, svc.Revoke(ctx, token))
	assert.False(t, svc.IsValid(ctx, token))
	require.NoError(t, svc.Revoke(ctx, token))
}

func TestVerifyFlow_SweepExpired(t *testing.T) {
	accounts := memory.NewAccountRepository()
	sessions := memory.NewSessionRepository()
	svc, err := auth.NewService(accounts, sessions, auth.NewArgon2idHasher(), auth.ServiceConfig{})
	require.NoError(t, err)
	ctx := context.Background()

	_, tokenHash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	expired, err := auth.NewSession(ulid.Make(), "old@seminary.edu", tokenHash, "", "", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.NoError(t, sessions.Create(ctx, expired))

	swept, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)
}
