// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

// Package memory provides in-memory implementations of auth
// repositories, used by demo mode and tests. All operations are
// serialized by a single mutex, which makes lockout counter updates
// exact under concurrent load.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
)

// AccountRepository implements auth.AccountRepository in memory.
type AccountRepository struct {
	mu         sync.RWMutex
	accounts   map[ulid.ULID]*auth.Account
	byIdentity map[string]ulid.ULID
}

// NewAccountRepository creates an empty in-memory account repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts:   make(map[ulid.ULID]*auth.Account),
		byIdentity: make(map[string]ulid.ULID),
	}
}

// copyAccount returns a defensive copy to prevent external modification.
func copyAccount(a *auth.Account) *auth.Account {
	dup := *a
	if a.WindowStartedAt != nil {
		t := *a.WindowStartedAt
		dup.WindowStartedAt = &t
	}
	if a.LockedUntil != nil {
		t := *a.LockedUntil
		dup.LockedUntil = &t
	}
	return &dup
}

// Create stores a new account.
func (r *AccountRepository) Create(_ context.Context, account *auth.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity := auth.NormalizeIdentity(account.Identity)
	if _, exists := r.byIdentity[identity]; exists {
		return oops.Code("ACCOUNT_DUPLICATE").
			With("identity", identity).
			Wrap(auth.ErrDuplicate)
	}
	if _, exists := r.accounts[account.ID]; exists {
		return oops.Code("ACCOUNT_DUPLICATE").
			With("id", account.ID.String()).
			Wrap(auth.ErrDuplicate)
	}

	r.accounts[account.ID] = copyAccount(account)
	r.byIdentity[identity] = account.ID
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return copyAccount(account), nil
}

// GetByIdentity retrieves an account by identity (case-insensitive).
func (r *AccountRepository) GetByIdentity(_ context.Context, identity string) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byIdentity[auth.NormalizeIdentity(identity)]
	if !exists {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("identity", identity).
			Wrap(auth.ErrNotFound)
	}
	return copyAccount(r.accounts[id]), nil
}

// UpdateSecret replaces only the secret hash for an account.
func (r *AccountRepository) UpdateSecret(_ context.Context, id ulid.ULID, secretHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	account.SecretHash = secretHash
	account.UpdatedAt = time.Now()
	return nil
}

// RecordFailure applies one verification failure under the policy.
// The repository mutex serializes the read-modify-write, so counters
// stay exact when verifications race.
func (r *AccountRepository) RecordFailure(_ context.Context, id ulid.ULID, policy auth.LockoutPolicy) (auth.LockoutState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return auth.LockoutState{}, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}

	state := auth.ApplyFailure(account.LockState(), policy, time.Now())
	account.SetLockState(state)
	return state, nil
}

// ClearLockout resets failure tracking for an account.
func (r *AccountRepository) ClearLockout(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	account.SetLockState(auth.ApplySuccess())
	return nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
