// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ResetService handles secret reset operations.
type ResetService struct {
	accounts     AccountRepository
	resets       ResetRepository
	sessions     SessionRepository
	hasher       SecretHasher
	minSecretLen int
	logger       *slog.Logger
}

// NewResetService creates a ResetService with a discard logger.
func NewResetService(
	accounts AccountRepository,
	resets ResetRepository,
	sessions SessionRepository,
	hasher SecretHasher,
) (*ResetService, error) {
	return NewResetServiceWithLogger(accounts, resets, sessions, hasher, nil)
}

// NewResetServiceWithLogger creates a ResetService with the given logger.
func NewResetServiceWithLogger(
	accounts AccountRepository,
	resets ResetRepository,
	sessions SessionRepository,
	hasher SecretHasher,
	logger *slog.Logger,
) (*ResetService, error) {
	if accounts == nil || resets == nil || sessions == nil || hasher == nil {
		return nil, oops.
			Code("RESET_SERVICE_INVALID").
			Errorf("all repositories and the hasher are required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &ResetService{
		accounts:     accounts,
		resets:       resets,
		sessions:     sessions,
		hasher:       hasher,
		minSecretLen: DefaultMinSecretLength,
		logger:       logger,
	}, nil
}

// RequestReset requests a secret reset for an account by identity.
// If the account exists, generates a reset token and stores the hash.
// Returns the plaintext token for out-of-band delivery (delivery is NOT
// this service's job). If the account doesn't exist, returns success
// anyway (empty token) to prevent identity enumeration.
func (s *ResetService) RequestReset(ctx context.Context, identity string) (string, error) {
	account, err := s.accounts.GetByIdentity(ctx, NormalizeIdentity(identity))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Return success with empty token to prevent identity enumeration
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GetByIdentity").
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GenerateResetToken").
			Wrap(err)
	}

	reset, err := NewSecretReset(account.ID, hash, time.Now().Add(ResetTokenTTL))
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "NewSecretReset").
			Wrap(err)
	}

	if err := s.resets.Create(ctx, reset); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "Create").
			Wrap(err)
	}

	return token, nil
}

// ValidateToken validates a reset token and returns the associated account ID.
// Returns an error if the token is invalid, expired, or not found.
func (s *ResetService) ValidateToken(ctx context.Context, token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_EMPTY").Errorf("reset token cannot be empty")
	}

	hash := hashResetToken(token)

	reset, err := s.resets.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, oops.Code("RESET_TOKEN_INVALID").Errorf("reset token not found")
		}
		return ulid.ULID{}, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "GetByTokenHash").
			Wrap(err)
	}

	if reset.IsExpired() {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_EXPIRED").Errorf("reset token has expired")
	}

	return reset.AccountID, nil
}

// ResetSecret resets an account's secret using a valid reset token.
// Validates the token, hashes the new secret, updates the account, and
// clears any lockout so the holder can sign in immediately. Existing
// sessions and outstanding reset tokens are revoked best-effort.
func (s *ResetService) ResetSecret(ctx context.Context, token, newSecret string) error {
	if newSecret == "" {
		return oops.Code("RESET_SECRET_EMPTY").Errorf("new secret cannot be empty")
	}
	if len(newSecret) < s.minSecretLen {
		return oops.Code("RESET_WEAK_SECRET").
			With("min_length", s.minSecretLen).
			Errorf("secret must be at least %d characters", s.minSecretLen)
	}

	accountID, err := s.ValidateToken(ctx, token)
	if err != nil {
		return err // Already has appropriate error code
	}

	hashed, err := s.hasher.Hash(newSecret)
	if err != nil {
		return oops.Code("RESET_SECRET_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}

	if err := s.accounts.UpdateSecret(ctx, accountID, hashed); err != nil {
		return oops.Code("RESET_SECRET_FAILED").
			With("operation", "UpdateSecret").
			Wrap(err)
	}

	// A holder who proves control of the reset token gets a clean slate;
	// a stale lockout would make the new secret unusable.
	if err := s.accounts.ClearLockout(ctx, accountID); err != nil {
		s.logger.WarnContext(ctx, "best-effort lockout clear failed",
			"operation", "clear_lockout",
			"account_id", accountID.String(),
			"error", err,
		)
	}

	// Cleanup below is best-effort: the secret was already updated.
	if err := s.resets.DeleteByAccount(ctx, accountID); err != nil {
		s.logger.WarnContext(ctx, "best-effort reset cleanup failed",
			"operation", "delete_resets",
			"account_id", accountID.String(),
			"error", err,
		)
	}

	// Sessions issued under the old secret must not outlive it.
	if err := s.sessions.DeleteByAccount(ctx, accountID); err != nil {
		s.logger.WarnContext(ctx, "best-effort session revocation failed",
			"operation", "revoke_sessions",
			"account_id", accountID.String(),
			"error", err,
		)
	}

	return nil
}
