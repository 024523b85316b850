// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
)

// ResetRepository implements auth.ResetRepository using PostgreSQL.
type ResetRepository struct {
	pool poolIface
}

// NewResetRepository creates a new ResetRepository.
func NewResetRepository(pool poolIface) *ResetRepository {
	return &ResetRepository{pool: pool}
}

// Create stores a new reset request.
func (r *ResetRepository) Create(ctx context.Context, reset *auth.SecretReset) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO secret_resets (id, account_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		reset.ID.String(),
		reset.AccountID.String(),
		reset.TokenHash,
		reset.ExpiresAt,
		reset.CreatedAt,
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert secret_reset").
			With("account_id", reset.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a reset request by its token hash.
func (r *ResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.SecretReset, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, account_id, token_hash, expires_at, created_at
		FROM secret_resets
		WHERE token_hash = $1
	`, tokenHash)

	reset, err := r.scanReset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_BY_TOKEN_FAILED").
			With("operation", "get reset by token hash").
			Wrap(err)
	}
	return reset, nil
}

// DeleteByAccount removes all reset requests for an account.
func (r *ResetRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM secret_resets WHERE account_id = $1
	`, accountID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_BY_ACCOUNT_FAILED").
			With("operation", "delete resets by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	// Note: No ErrNotFound if no rows deleted - that's a valid state
	return nil
}

// DeleteExpired removes all expired reset requests and returns the count.
func (r *ResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM secret_resets WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired secret_resets").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanReset scans a single row into a SecretReset.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *ResetRepository) scanReset(row pgx.Row) (*auth.SecretReset, error) {
	var (
		idStr        string
		accountIDStr string
		tokenHash    string
		expiresAt    time.Time
		createdAt    time.Time
	)

	err := row.Scan(&idStr, &accountIDStr, &tokenHash, &expiresAt, &createdAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan secret_reset").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("operation", "parse reset id").
			With("id", idStr).
			Wrap(err)
	}

	accountID, err := ulid.Parse(accountIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ACCOUNT_ID").
			With("operation", "parse account id").
			With("account_id", accountIDStr).
			Wrap(err)
	}

	return &auth.SecretReset{
		ID:        id,
		AccountID: accountID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.ResetRepository = (*ResetRepository)(nil)
