// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// Lockout defaults. All three are configuration knobs; these values
// apply when the configuration leaves them unset.
const (
	// DefaultLockoutThreshold is the number of failures inside one
	// window that triggers a lockout.
	DefaultLockoutThreshold = 5

	// DefaultLockoutWindow is how long failures accumulate before the
	// counter restarts.
	DefaultLockoutWindow = 15 * time.Minute

	// DefaultLockoutDuration is how long an account stays locked.
	DefaultLockoutDuration = 15 * time.Minute
)

// LockoutPolicy configures failure accumulation and lockout.
type LockoutPolicy struct {
	// Threshold is the failure count that triggers a lockout.
	Threshold int

	// Window bounds how long failures accumulate. A failure arriving
	// after the window elapsed restarts accumulation at one.
	Window time.Duration

	// LockDuration is how long the account stays locked once the
	// threshold is reached.
	LockDuration time.Duration
}

// DefaultLockoutPolicy returns the policy with all defaults applied.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold:    DefaultLockoutThreshold,
		Window:       DefaultLockoutWindow,
		LockDuration: DefaultLockoutDuration,
	}
}

// Validate checks that the policy values are usable.
func (p LockoutPolicy) Validate() error {
	if p.Threshold < 1 {
		return oops.Code("AUTH_INVALID_POLICY").
			With("threshold", p.Threshold).
			Errorf("lockout threshold must be at least 1")
	}
	if p.Window <= 0 {
		return oops.Code("AUTH_INVALID_POLICY").
			With("window", p.Window.String()).
			Errorf("lockout window must be positive")
	}
	if p.LockDuration <= 0 {
		return oops.Code("AUTH_INVALID_POLICY").
			With("lock_duration", p.LockDuration.String()).
			Errorf("lockout duration must be positive")
	}
	return nil
}

// LockoutState is one identity's position in the lockout state
// machine: Clear (zero value) -> Accumulating (FailedAttempts > 0)
// -> Locked (LockedUntil in the future) -> Clear again after a
// successful verification or once the lock expires.
type LockoutState struct {
	FailedAttempts  int
	WindowStartedAt *time.Time
	LockedUntil     *time.Time
}

// IsLocked returns true if the state is locked at the given instant.
func (s LockoutState) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// LockRemaining returns how long until the lock expires, or zero if
// the state is not locked.
func (s LockoutState) LockRemaining(now time.Time) time.Duration {
	if !s.IsLocked(now) {
		return 0
	}
	return s.LockedUntil.Sub(now)
}

// ApplyFailure advances the state machine by one failed verification.
// An expired lock or an elapsed window restarts accumulation at one;
// reaching the threshold sets LockedUntil. Pure function: callers
// (repositories) are responsible for applying it atomically.
func ApplyFailure(state LockoutState, policy LockoutPolicy, now time.Time) LockoutState {
	// A lock that already expired means the machine returned to Clear.
	if state.LockedUntil != nil && !state.LockedUntil.After(now) {
		state = LockoutState{}
	}

	if state.WindowStartedAt == nil || now.Sub(*state.WindowStartedAt) > policy.Window {
		start := now
		state = LockoutState{FailedAttempts: 1, WindowStartedAt: &start}
	} else {
		state.FailedAttempts++
	}

	if state.FailedAttempts >= policy.Threshold {
		until := now.Add(policy.LockDuration)
		state.LockedUntil = &until
	}

	return state
}

// ApplySuccess returns the Clear state a successful verification
// transitions to.
func ApplySuccess() LockoutState {
	return LockoutState{}
}
