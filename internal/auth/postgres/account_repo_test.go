// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
)

func testAccount(t *testing.T) *auth.Account {
	t.Helper()
	account, err := auth.NewAccount("admin@seminary.edu", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", "Admin", auth.RoleAdmin)
	require.NoError(t, err)
	return account
}

func accountColumns() []string {
	return []string{
		"id", "identity", "secret_hash", "display_name", "role",
		"failed_attempts", "window_started_at", "locked_until",
		"created_at", "updated_at",
	}
}

func accountRow(account *auth.Account) *pgxmock.Rows {
	return pgxmock.NewRows(accountColumns()).AddRow(
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
}

func TestAccountRepository_Create(t *testing.T) {
	account := testAccount(t)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
		wantDup   bool
		errMsg    string
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(
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
					).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate identity",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(
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
					).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: true,
			wantDup: true,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(
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
					).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
			errMsg:  "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewAccountRepository(mock)
			err = repo.Create(context.Background(), account)

			if tt.wantErr {
				require.Error(t, err)
				if tt.wantDup {
					assert.ErrorIs(t, err, auth.ErrDuplicate)
				}
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestAccountRepository_GetByID(t *testing.T) {
	account := testAccount(t)

	tests := []struct {
		name         string
		setupMock    func(mock pgxmock.PgxPoolIface)
		wantErr      bool
		wantNotFound bool
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = \$1`).
					WithArgs(account.ID.String()).
					WillReturnRows(accountRow(account))
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = \$1`).
					WithArgs(account.ID.String()).
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr:      true,
			wantNotFound: true,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = \$1`).
					WithArgs(account.ID.String()).
					WillReturnError(errors.New("timeout"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewAccountRepository(mock)
			got, err := repo.GetByID(context.Background(), account.ID)

			if tt.wantErr {
				require.Error(t, err)
				if tt.wantNotFound {
					assert.ErrorIs(t, err, auth.ErrNotFound)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, account.ID, got.ID)
				assert.Equal(t, account.Identity, got.Identity)
				assert.Equal(t, account.Role, got.Role)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestAccountRepository_GetByIdentity(t *testing.T) {
	account := testAccount(t)

	t.Run("found case-insensitively", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT .+ FROM accounts WHERE LOWER\(identity\) = LOWER\(\$1\)`).
			WithArgs("Admin@Seminary.EDU").
			WillReturnRows(accountRow(account))

		repo := NewAccountRepository(mock)
		got, err := repo.GetByIdentity(context.Background(), "Admin@Seminary.EDU")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT .+ FROM accounts WHERE LOWER\(identity\) = LOWER\(\$1\)`).
			WithArgs("ghost@seminary.edu").
			WillReturnError(pgx.ErrNoRows)

		repo := NewAccountRepository(mock)
		_, err = repo.GetByIdentity(context.Background(), "ghost@seminary.edu")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestAccountRepository_UpdateSecret(t *testing.T) {
	account := testAccount(t)

	tests := []struct {
		name         string
		setupMock    func(mock pgxmock.PgxPoolIface)
		wantErr      bool
		wantNotFound bool
	}{
		{
			name: "successful update",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET secret_hash = \$2, updated_at = \$3`).
					WithArgs(account.ID.String(), "$argon2id$new", pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "account missing",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET secret_hash = \$2, updated_at = \$3`).
					WithArgs(account.ID.String(), "$argon2id$new", pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr:      true,
			wantNotFound: true,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET secret_hash = \$2, updated_at = \$3`).
					WithArgs(account.ID.String(), "$argon2id$new", pgxmock.AnyArg()).
					WillReturnError(errors.New("disk full"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewAccountRepository(mock)
			err = repo.UpdateSecret(context.Background(), account.ID, "$argon2id$new")

			if tt.wantErr {
				require.Error(t, err)
				if tt.wantNotFound {
					assert.ErrorIs(t, err, auth.ErrNotFound)
				}
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestAccountRepository_RecordFailure(t *testing.T) {
	account := testAccount(t)
	policy := auth.LockoutPolicy{
		Threshold:    3,
		Window:       15 * time.Minute,
		LockDuration: 10 * time.Minute,
	}

	lockoutColumns := []string{"failed_attempts", "window_started_at", "locked_until"}

	t.Run("first failure starts window", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT failed_attempts, window_started_at, locked_until`).
			WithArgs(account.ID.String()).
			WillReturnRows(pgxmock.NewRows(lockoutColumns).AddRow(0, nil, nil))
		mock.ExpectExec(`UPDATE accounts SET`).
			WithArgs(account.ID.String(), 1, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		repo := NewAccountRepository(mock)
		state, err := repo.RecordFailure(context.Background(), account.ID, policy)
		require.NoError(t, err)
		assert.Equal(t, 1, state.FailedAttempts)
		assert.NotNil(t, state.WindowStartedAt)
		assert.Nil(t, state.LockedUntil)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("threshold failure locks", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		windowStart := time.Now().Add(-5 * time.Minute)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT failed_attempts, window_started_at, locked_until`).
			WithArgs(account.ID.String()).
			WillReturnRows(pgxmock.NewRows(lockoutColumns).AddRow(2, &windowStart, nil))
		mock.ExpectExec(`UPDATE accounts SET`).
			WithArgs(account.ID.String(), 3, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		repo := NewAccountRepository(mock)
		state, err := repo.RecordFailure(context.Background(), account.ID, policy)
		require.NoError(t, err)
		assert.Equal(t, 3, state.FailedAttempts)
		require.NotNil(t, state.LockedUntil)
		assert.True(t, state.IsLocked(time.Now()))

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("account missing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT failed_attempts, window_started_at, locked_until`).
			WithArgs(account.ID.String()).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		repo := NewAccountRepository(mock)
		_, err = repo.RecordFailure(context.Background(), account.ID, policy)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("update error rolls back", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT failed_attempts, window_started_at, locked_until`).
			WithArgs(account.ID.String()).
			WillReturnRows(pgxmock.NewRows(lockoutColumns).AddRow(0, nil, nil))
		mock.ExpectExec(`UPDATE accounts SET`).
			WithArgs(account.ID.String(), 1, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback()

		repo := NewAccountRepository(mock)
		_, err = repo.RecordFailure(context.Background(), account.ID, policy)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deadlock detected")

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("begin error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		repo := NewAccountRepository(mock)
		_, err = repo.RecordFailure(context.Background(), account.ID, policy)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too many connections")

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestAccountRepository_ClearLockout(t *testing.T) {
	account := testAccount(t)

	tests := []struct {
		name         string
		setupMock    func(mock pgxmock.PgxPoolIface)
		wantErr      bool
		wantNotFound bool
	}{
		{
			name: "successful clear",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET`).
					WithArgs(account.ID.String(), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "account missing",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET`).
					WithArgs(account.ID.String(), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr:      true,
			wantNotFound: true,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET`).
					WithArgs(account.ID.String(), pgxmock.AnyArg()).
					WillReturnError(errors.New("connection lost"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewAccountRepository(mock)
			err = repo.ClearLockout(context.Background(), account.ID)

			if tt.wantErr {
				require.Error(t, err)
				if tt.wantNotFound {
					assert.ErrorIs(t, err, auth.ErrNotFound)
				}
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestAccountRepository_ScanError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	defer mock.Close()

	// Wrong column count triggers a scan error.
	rows := pgxmock.NewRows([]string{"id"}).AddRow("only-one-column")
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(rows)

	repo := NewAccountRepository(mock)
	_, err = repo.GetByID(context.Background(), testAccount(t).ID)
	require.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
}
