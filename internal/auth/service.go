// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service defaults applied when ServiceConfig leaves fields unset.
const (
	// DefaultStoreTimeout bounds every repository call the service
	// makes; expiry surfaces as AUTH_STORE_UNAVAILABLE.
	DefaultStoreTimeout = 5 * time.Second

	// DefaultMinSecretLength is the registration floor for secrets.
	DefaultMinSecretLength = 6
)

// dummySecretHash is verified against when no account matches the
// identity, so lookup misses cost the same as mismatches and the
// response gives no enumeration signal.
// This is NOT a real credential - it is a fake hash that will never match any secret.
//
//nolint:gosec // G101: intentionally fake hash for timing-attack prevention, not a credential.
const dummySecretHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// ServiceConfig tunes the authentication service. The zero value is
// usable: every field falls back to its package default.
type ServiceConfig struct {
	// Lockout is the failure accumulation policy.
	Lockout LockoutPolicy

	// SessionTTL is how long issued sessions stay valid.
	SessionTTL time.Duration

	// StoreTimeout bounds individual repository calls.
	StoreTimeout time.Duration

	// MinSecretLength is enforced on registration and reset.
	MinSecretLength int

	// AllowedIdentityPatterns restricts registration to identities
	// matching at least one glob (e.g. "*@seminary.edu").
	// Empty means no restriction.
	AllowedIdentityPatterns []string
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.Lockout == (LockoutPolicy{}) {
		c.Lockout = DefaultLockoutPolicy()
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.MinSecretLength <= 0 {
		c.MinSecretLength = DefaultMinSecretLength
	}
	return c
}

// Service provides credential verification and session establishment.
type Service struct {
	accounts      AccountRepository
	sessions      SessionRepository
	hasher        SecretHasher
	policy        LockoutPolicy
	sessionTTL    time.Duration
	storeTimeout  time.Duration
	minSecretLen  int
	allowPatterns []glob.Glob
	logger        *slog.Logger
}

// NewService creates a Service, validating dependencies and config.
func NewService(accounts AccountRepository, sessions SessionRepository, hasher SecretHasher, cfg ServiceConfig) (*Service, error) {
	return NewServiceWithLogger(accounts, sessions, hasher, cfg, nil)
}

// NewServiceWithLogger creates a Service with a logger for best-effort
// update warnings. A nil logger discards them.
func NewServiceWithLogger(accounts AccountRepository, sessions SessionRepository, hasher SecretHasher, cfg ServiceConfig, logger *slog.Logger) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("account repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("secret hasher is required")
	}

	cfg = cfg.withDefaults()
	if err := cfg.Lockout.Validate(); err != nil {
		return nil, err
	}

	patterns := make([]glob.Glob, 0, len(cfg.AllowedIdentityPatterns))
	for _, p := range cfg.AllowedIdentityPatterns {
		compiled, err := glob.Compile(p, '@')
		if err != nil {
			return nil, oops.Code("AUTH_SERVICE_INVALID").
				With("pattern", p).
				Wrapf(err, "invalid identity pattern")
		}
		patterns = append(patterns, compiled)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Service{
		accounts:      accounts,
		sessions:      sessions,
		hasher:        hasher,
		policy:        cfg.Lockout,
		sessionTTL:    cfg.SessionTTL,
		storeTimeout:  cfg.StoreTimeout,
		minSecretLen:  cfg.MinSecretLength,
		allowPatterns: patterns,
		logger:        logger,
	}, nil
}

// Verify authenticates an identity/secret pair and on success issues
// a session. Returns the session, the plaintext token, and any error.
// The error surface is closed: AUTH_INVALID_CREDENTIALS,
// AUTH_ACCOUNT_LOCKED, or AUTH_STORE_UNAVAILABLE.
// Uses constant-time operations to prevent timing-based identity enumeration.
func (s *Service) Verify(ctx context.Context, identity, secret, userAgent, ipAddress string) (*Session, string, error) {
	// Empty inputs are rejected with the same signal as a mismatch.
	if identity == "" || secret == "" {
		RecordVerification(OutcomeInvalidCredentials)
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid identity or secret")
	}
	identity = NormalizeIdentity(identity)

	lookupCtx, cancel := s.storeCtx(ctx)
	account, lookupErr := s.accounts.GetByIdentity(lookupCtx, identity)
	cancel()

	// Determine which hash to verify against (real, or dummy so unknown
	// identities cost the same as wrong secrets).
	var targetHash string
	var accountExists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			targetHash = dummySecretHash
		} else {
			RecordVerification(OutcomeStoreUnavailable)
			return nil, "", oops.Code("AUTH_STORE_UNAVAILABLE").
				With("operation", "get account by identity").
				Wrap(lookupErr)
		}
	} else {
		targetHash = account.SecretHash
		accountExists = true
	}

	// Always verify the secret, even against the dummy hash.
	valid, verifyErr := s.hasher.Verify(secret, targetHash)
	if verifyErr != nil {
		if !accountExists {
			RecordVerification(OutcomeInvalidCredentials)
			return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid identity or secret")
		}
		// Internal hasher faults stay inside the closed error surface.
		RecordVerification(OutcomeStoreUnavailable)
		return nil, "", oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "verify secret").
			Wrap(verifyErr)
	}

	// Lockout is checked AFTER verification so response timing does not
	// reveal lock state, and it dominates: a locked account is rejected
	// regardless of secret correctness, without touching the counter.
	if accountExists && account.IsLocked() {
		RecordVerification(OutcomeAccountLocked)
		return nil, "", oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", account.LockedUntil).
			Errorf("account is temporarily locked")
	}

	// Unknown identity and wrong secret produce the identical error.
	if !accountExists || !valid {
		if accountExists {
			s.recordFailure(ctx, account.ID)
		}
		RecordVerification(OutcomeInvalidCredentials)
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid identity or secret")
	}

	// Success: Clear state, upgrade legacy hashes opportunistically.
	s.clearLockout(ctx, account.ID)

	if s.hasher.NeedsUpgrade(account.SecretHash) {
		if newHash, hashErr := s.hasher.Hash(secret); hashErr == nil {
			s.upgradeSecret(ctx, account.ID, newHash)
		}
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		RecordVerification(OutcomeStoreUnavailable)
		return nil, "", oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(account.ID, account.Identity, tokenHash, userAgent, ipAddress, time.Now().Add(s.sessionTTL))
	if err != nil {
		RecordVerification(OutcomeStoreUnavailable)
		return nil, "", oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "create session").
			Wrap(err)
	}

	createCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.sessions.Create(createCtx, session); err != nil {
		RecordVerification(OutcomeStoreUnavailable)
		return nil, "", oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "persist session").
			Wrap(err)
	}

	RecordVerification(OutcomeSuccess)
	RecordSessionIssued()
	return session, token, nil
}

// Revoke invalidates the session named by a token, immediately.
// Idempotent: revoking an unknown or already-revoked token is a no-op.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	tokenHash := HashSessionToken(token)

	deleteCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.sessions.DeleteByTokenHash(deleteCtx, tokenHash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "delete session").
			Wrap(err)
	}

	RecordSessionRevoked()
	return nil
}

// IsValid reports whether a token names a session that exists and has
// not expired. Fails closed: store trouble yields false.
func (s *Service) IsValid(ctx context.Context, token string) bool {
	_, err := s.ValidateSession(ctx, token)
	return err == nil
}

// ValidateSession validates a session token and returns the session if valid.
// Also updates the LastSeenAt timestamp (best-effort).
func (s *Service) ValidateSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}

	tokenHash := HashSessionToken(token)

	getCtx, cancel := s.storeCtx(ctx)
	session, err := s.sessions.GetByTokenHash(getCtx, tokenHash)
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Errorf("invalid session token")
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		return nil, oops.Code("SESSION_EXPIRED").Errorf("session has expired")
	}

	s.touchSession(ctx, session.ID)

	return session, nil
}

// Register provisions a new account. The identity must be a valid
// email matching the configured allow-patterns; the secret must meet
// the minimum length.
func (s *Service) Register(ctx context.Context, identity, secret, displayName, role string) (*Account, error) {
	identity = NormalizeIdentity(identity)
	if err := ValidateIdentity(identity); err != nil {
		return nil, err
	}
	if !s.identityAllowed(identity) {
		return nil, oops.Code("AUTH_IDENTITY_NOT_ALLOWED").
			With("identity", identity).
			Errorf("identity does not match any allowed pattern")
	}
	if len(secret) < s.minSecretLen {
		return nil, oops.Code("AUTH_WEAK_SECRET").
			With("min", s.minSecretLen).
			Errorf("secret must be at least %d characters", s.minSecretLen)
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "hash secret").
			Wrap(err)
	}

	account, err := NewAccount(identity, hash, displayName, role)
	if err != nil {
		return nil, err
	}

	createCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.accounts.Create(createCtx, account); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, oops.Code("AUTH_IDENTITY_TAKEN").
				With("identity", identity).
				Errorf("identity is already registered")
		}
		return nil, oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "create account").
			Wrap(err)
	}

	return account, nil
}

// Unlock clears lockout state for an identity. Administrative
// operation; the control socket exposes it.
func (s *Service) Unlock(ctx context.Context, identity string) error {
	identity = NormalizeIdentity(identity)

	getCtx, cancel := s.storeCtx(ctx)
	account, err := s.accounts.GetByIdentity(getCtx, identity)
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Wrap the bare sentinel: wrapping the repository error would
			// surface its code instead of this one.
			return oops.Code("AUTH_ACCOUNT_NOT_FOUND").
				With("identity", identity).
				Wrap(ErrNotFound)
		}
		return oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "get account by identity").
			Wrap(err)
	}

	clearCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.accounts.ClearLockout(clearCtx, account.ID); err != nil {
		return oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "clear lockout").
			Wrap(err)
	}

	s.logger.Info("account unlocked",
		"identity", identity,
		"account_id", account.ID.String(),
	)
	return nil
}

// GetAccount retrieves an account by ID.
func (s *Service) GetAccount(ctx context.Context, id ulid.ULID) (*Account, error) {
	getCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	account, err := s.accounts.GetByID(getCtx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_ACCOUNT_NOT_FOUND").
				With("account_id", id.String()).
				Wrap(ErrNotFound)
		}
		return nil, oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "get account by id").
			Wrap(err)
	}
	return account, nil
}

// Sessions lists all live sessions for an account.
func (s *Service) Sessions(ctx context.Context, accountID ulid.ULID) ([]*Session, error) {
	getCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	sessions, err := s.sessions.GetByAccount(getCtx, accountID)
	if err != nil {
		return nil, oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "get sessions by account").
			Wrap(err)
	}
	return sessions, nil
}

// SweepExpired deletes expired sessions and returns the count removed.
// Intended to run periodically from the server process.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	sweepCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	n, err := s.sessions.DeleteExpired(sweepCtx)
	if err != nil {
		return 0, oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return n, nil
}

// storeCtx bounds a repository call with the configured store timeout.
func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// recordFailure applies one failed attempt to the account's lockout
// state. Runs on a context detached from the caller: cancellation of
// the verify call must not abandon the counter update.
func (s *Service) recordFailure(ctx context.Context, id ulid.ULID) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()

	state, err := s.accounts.RecordFailure(detached, id, s.policy)
	if err != nil {
		s.logger.Warn("best-effort lockout update failed",
			"operation", "record_failure",
			"account_id", id.String(),
			"error", err,
		)
		return
	}

	// The attempt that reaches the threshold is unique because the
	// counter is exact, so the lockout metric fires exactly once.
	if state.FailedAttempts == s.policy.Threshold && state.IsLocked(time.Now()) {
		RecordLockout()
		s.logger.Info("account locked after repeated failures",
			"account_id", id.String(),
			"failed_attempts", state.FailedAttempts,
			"locked_until", state.LockedUntil,
		)
	}
}

// clearLockout resets lockout state after a successful verification.
// Best effort: verification succeeds regardless.
func (s *Service) clearLockout(ctx context.Context, id ulid.ULID) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()

	if err := s.accounts.ClearLockout(detached, id); err != nil {
		s.logger.Warn("best-effort lockout update failed",
			"operation", "clear_lockout",
			"account_id", id.String(),
			"error", err,
		)
	}
}

// upgradeSecret rewrites a legacy hash with the current algorithm.
// Best effort: verification succeeds regardless.
func (s *Service) upgradeSecret(ctx context.Context, id ulid.ULID, hash string) {
	updateCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.accounts.UpdateSecret(updateCtx, id, hash); err != nil {
		s.logger.Warn("best-effort secret hash upgrade failed",
			"operation", "upgrade_secret",
			"account_id", id.String(),
			"error", err,
		)
	}
}

// touchSession updates LastSeenAt. Best effort: validation succeeds
// regardless.
func (s *Service) touchSession(ctx context.Context, id ulid.ULID) {
	updateCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.sessions.UpdateLastSeen(updateCtx, id, time.Now()); err != nil {
		s.logger.Warn("best-effort session update failed",
			"operation", "update_last_seen",
			"session_id", id.String(),
			"error", err,
		)
	}
}

func (s *Service) identityAllowed(identity string) bool {
	if len(s.allowPatterns) == 0 {
		return true
	}
	for _, p := range s.allowPatterns {
		if p.Match(identity) {
			return true
		}
	}
	return false
}
