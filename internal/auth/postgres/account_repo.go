// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
)

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, identity, secret_hash, display_name, role,
			failed_attempts, window_started_at, locked_until,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		account.ID.String(),
		account.Identity,
		account.SecretHash,
		account.DisplayName,
		account.Role,
		account.FailedAttempts,
		account.WindowStartedAt,
		account.LockedUntil,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_DUPLICATE").
				With("identity", account.Identity).
				Wrap(auth.ErrDuplicate)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("identity", account.Identity).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, identity, secret_hash, display_name, role,
		       failed_attempts, window_started_at, locked_until,
		       created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id.String())

	account, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByIdentity retrieves an account by identity (case-insensitive).
func (r *AccountRepository) GetByIdentity(ctx context.Context, identity string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, identity, secret_hash, display_name, role,
		       failed_attempts, window_started_at, locked_until,
		       created_at, updated_at
		FROM accounts
		WHERE LOWER(identity) = LOWER($1)
	`, identity)

	account, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("identity", identity).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_IDENTITY_FAILED").
			With("operation", "get account by identity").
			With("identity", identity).
			Wrap(err)
	}
	return account, nil
}

// UpdateSecret updates only the secret hash for an account.
func (r *AccountRepository) UpdateSecret(ctx context.Context, id ulid.ULID, secretHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET secret_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), secretHash, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_SECRET_FAILED").
			With("operation", "update secret hash").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// RecordFailure applies one verification failure under the policy.
// The row is locked for the read-modify-write so concurrent failures
// never lose an update.
func (r *AccountRepository) RecordFailure(ctx context.Context, id ulid.ULID, policy auth.LockoutPolicy) (auth.LockoutState, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return auth.LockoutState{}, oops.Code("ACCOUNT_RECORD_FAILURE_FAILED").
			With("operation", "begin transaction").
			With("id", id.String()).
			Wrap(err)
	}
	defer func() {
		// Rollback is a no-op if tx was committed; error is safe to ignore
		_ = tx.Rollback(ctx) //nolint:errcheck // Rollback error after commit is meaningless
	}()

	var state auth.LockoutState
	err = tx.QueryRow(ctx, `
		SELECT failed_attempts, window_started_at, locked_until
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, id.String()).Scan(&state.FailedAttempts, &state.WindowStartedAt, &state.LockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.LockoutState{}, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return auth.LockoutState{}, oops.Code("ACCOUNT_RECORD_FAILURE_FAILED").
			With("operation", "lock account row").
			With("id", id.String()).
			Wrap(err)
	}

	state = auth.ApplyFailure(state, policy, time.Now())

	_, err = tx.Exec(ctx, `
		UPDATE accounts SET
			failed_attempts = $2,
			window_started_at = $3,
			locked_until = $4,
			updated_at = $5
		WHERE id = $1
	`, id.String(), state.FailedAttempts, state.WindowStartedAt, state.LockedUntil, time.Now())
	if err != nil {
		return auth.LockoutState{}, oops.Code("ACCOUNT_RECORD_FAILURE_FAILED").
			With("operation", "write lockout state").
			With("id", id.String()).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return auth.LockoutState{}, oops.Code("ACCOUNT_RECORD_FAILURE_FAILED").
			With("operation", "commit transaction").
			With("id", id.String()).
			Wrap(err)
	}

	return state, nil
}

// ClearLockout resets failure tracking for an account.
func (r *AccountRepository) ClearLockout(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			failed_attempts = 0,
			window_started_at = NULL,
			locked_until = NULL,
			updated_at = $2
		WHERE id = $1
	`, id.String(), time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_CLEAR_LOCKOUT_FAILED").
			With("operation", "clear lockout").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *AccountRepository) scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr           string
		identity        string
		secretHash      string
		displayName     string
		role            string
		failedAttempts  int
		windowStartedAt *time.Time
		lockedUntil     *time.Time
		createdAt       time.Time
		updatedAt       time.Time
	)

	err := row.Scan(
		&idStr,
		&identity,
		&secretHash,
		&displayName,
		&role,
		&failedAttempts,
		&windowStartedAt,
		&lockedUntil,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.Account{
		ID:              id,
		Identity:        identity,
		SecretHash:      secretHash,
		DisplayName:     displayName,
		Role:            role,
		FailedAttempts:  failedAttempts,
		WindowStartedAt: windowStartedAt,
		LockedUntil:     lockedUntil,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
