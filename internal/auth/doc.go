// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

// Package auth provides credential verification and session management.
//
// # Domain Types
//
// Domain types (Account, Session, SecretReset) should be created using
// their respective constructors:
//   - NewAccount - creates an Account with validated identity and secret hash
//   - NewSession - creates a Session with validated account and expiry
//   - NewSecretReset - creates a SecretReset with validated account and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - credential verification, session issue/revoke/validate, lockout
//   - ResetService - secret reset flow
//
// Services are created with New*Service constructors that validate dependencies.
//
// Verification deliberately collapses all failure detail into three
// caller-visible outcomes (invalid credentials, account locked, store
// unavailable) so that responses never reveal whether an identity exists.
package auth
