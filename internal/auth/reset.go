// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes = 32        // 32 bytes = 64 hex chars
	ResetTokenTTL   = time.Hour // 1 hour expiry
)

// SecretReset represents a pending secret reset request.
type SecretReset struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewSecretReset creates a reset request for an account. The token hash
// must be the SHA-256 hex digest produced by GenerateResetToken.
func NewSecretReset(accountID ulid.ULID, tokenHash string, expiresAt time.Time) (*SecretReset, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.
			Code("RESET_INVALID_ACCOUNT").
			Errorf("account ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.
			Code("RESET_INVALID_HASH").
			Errorf("token hash cannot be empty")
	}
	now := time.Now()
	if !expiresAt.After(now) {
		return nil, oops.
			Code("RESET_INVALID_EXPIRY").
			With("expires_at", expiresAt).
			Errorf("expiry must be in the future")
	}

	return &SecretReset{
		ID:        ulid.Make(),
		AccountID: accountID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// IsExpired returns true if the reset token has expired.
func (r *SecretReset) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// GenerateResetToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the account holder; the hash is stored.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = hashResetToken(token)

	return token, hash, nil
}

// VerifyResetToken checks if the plaintext token matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := hashResetToken(token)
	// Both are hex-encoded SHA256 hashes (64 chars), use constant-time compare
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// hashResetToken computes the SHA256 hash of a token.
func hashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ResetRepository manages secret reset persistence.
type ResetRepository interface {
	// Create stores a new reset request.
	Create(ctx context.Context, reset *SecretReset) error

	// GetByTokenHash retrieves a reset request by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*SecretReset, error)

	// DeleteByAccount removes all reset requests for an account.
	DeleteByAccount(ctx context.Context, accountID ulid.ULID) error

	// DeleteExpired removes all expired reset requests.
	DeleteExpired(ctx context.Context) (int64, error)
}
