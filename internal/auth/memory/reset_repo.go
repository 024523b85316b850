// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
)

// ResetRepository implements auth.ResetRepository in memory.
type ResetRepository struct {
	mu     sync.RWMutex
	resets map[string]*auth.SecretReset // token hash -> reset
}

// NewResetRepository creates an empty in-memory reset repository.
func NewResetRepository() *ResetRepository {
	return &ResetRepository{
		resets: make(map[string]*auth.SecretReset),
	}
}

// copyReset returns a defensive copy to prevent external modification.
func copyReset(r *auth.SecretReset) *auth.SecretReset {
	dup := *r
	return &dup
}

// Create stores a new reset request.
func (r *ResetRepository) Create(_ context.Context, reset *auth.SecretReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resets[reset.TokenHash]; exists {
		return oops.Code("RESET_DUPLICATE").
			With("reset_id", reset.ID.String()).
			Wrap(auth.ErrDuplicate)
	}
	r.resets[reset.TokenHash] = copyReset(reset)
	return nil
}

// GetByTokenHash retrieves a reset request by its token hash.
func (r *ResetRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.SecretReset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reset, exists := r.resets[tokenHash]
	if !exists {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return copyReset(reset), nil
}

// DeleteByAccount removes all reset requests for an account.
func (r *ResetRepository) DeleteByAccount(_ context.Context, accountID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, reset := range r.resets {
		if reset.AccountID == accountID {
			delete(r.resets, hash)
		}
	}
	return nil
}

// DeleteExpired removes all expired reset requests and returns the count.
func (r *ResetRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var deleted int64
	for hash, reset := range r.resets {
		if now.After(reset.ExpiresAt) {
			delete(r.resets, hash)
			deleted++
		}
	}
	return deleted, nil
}

// Compile-time interface check.
var _ auth.ResetRepository = (*ResetRepository)(nil)
