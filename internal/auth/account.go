// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account roles recognized by the system.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// MaxIdentityLength caps identities at the RFC 5321 address limit.
const MaxIdentityLength = 254

// identityRegex matches syntactically plausible email addresses:
// local part, an @, a dotted domain with a 2+ letter TLD.
var identityRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Account is a credential record: who may log in and the state of
// their lockout tracking. The plaintext secret never appears here;
// only the PHC-encoded hash is retained.
type Account struct {
	ID              ulid.ULID
	Identity        string // normalized email, unique
	SecretHash      string
	DisplayName     string
	Role            string
	FailedAttempts  int
	WindowStartedAt *time.Time
	LockedUntil     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAccount creates a validated Account with a fresh ULID.
// The identity is normalized before storage; secretHash must already
// be a hashed secret, never plaintext.
func NewAccount(identity, secretHash, displayName, role string) (*Account, error) {
	identity = NormalizeIdentity(identity)
	if err := ValidateIdentity(identity); err != nil {
		return nil, err
	}
	if secretHash == "" {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").Errorf("secret hash cannot be empty")
	}
	if role == "" {
		role = RoleUser
	}
	if role != RoleAdmin && role != RoleUser {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").
			With("role", role).
			Errorf("role must be %q or %q", RoleAdmin, RoleUser)
	}

	now := time.Now()
	return &Account{
		ID:          ulid.Make(),
		Identity:    identity,
		SecretHash:  secretHash,
		DisplayName: displayName,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NormalizeIdentity lower-cases and trims an identity so lookups and
// uniqueness are case-insensitive.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// ValidateIdentity checks that an identity is a plausible email address.
func ValidateIdentity(identity string) error {
	if identity == "" {
		return oops.Code("AUTH_INVALID_IDENTITY").Errorf("identity cannot be empty")
	}
	if len(identity) > MaxIdentityLength {
		return oops.Code("AUTH_INVALID_IDENTITY").
			With("max", MaxIdentityLength).
			Errorf("identity must be at most %d characters", MaxIdentityLength)
	}
	if !identityRegex.MatchString(identity) {
		return oops.Code("AUTH_INVALID_IDENTITY").Errorf("identity must be a valid email address")
	}
	return nil
}

// IsLocked returns true if the account is currently locked out.
func (a *Account) IsLocked() bool {
	return a.LockState().IsLocked(time.Now())
}

// LockState extracts the lockout tracking fields as a LockoutState.
func (a *Account) LockState() LockoutState {
	return LockoutState{
		FailedAttempts:  a.FailedAttempts,
		WindowStartedAt: a.WindowStartedAt,
		LockedUntil:     a.LockedUntil,
	}
}

// SetLockState writes a LockoutState back onto the account fields.
func (a *Account) SetLockState(s LockoutState) {
	a.FailedAttempts = s.FailedAttempts
	a.WindowStartedAt = s.WindowStartedAt
	a.LockedUntil = s.LockedUntil
	a.UpdatedAt = time.Now()
}

// AccountRepository manages credential record persistence.
//
// RecordFailure and ClearLockout must be atomic per identity:
// implementations serialize concurrent updates to one account's
// lockout state (row lock, per-key mutex) so the failure counter is
// exact under concurrent load.
type AccountRepository interface {
	// Create stores a new account. Duplicate identities fail with an
	// error wrapping ErrDuplicate.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByIdentity retrieves an account by normalized identity
	// (case-insensitive). Returns ErrNotFound if absent.
	GetByIdentity(ctx context.Context, identity string) (*Account, error)

	// UpdateSecret replaces only the secret hash for an account.
	UpdateSecret(ctx context.Context, id ulid.ULID, secretHash string) error

	// RecordFailure applies one verification failure under the given
	// policy and returns the resulting state. The read-modify-write is
	// serialized per account.
	RecordFailure(ctx context.Context, id ulid.ULID, policy LockoutPolicy) (LockoutState, error)

	// ClearLockout resets the failure counter and lockout for an
	// account (successful verification, administrative unlock).
	ClearLockout(ctx context.Context, id ulid.ULID) error
}
