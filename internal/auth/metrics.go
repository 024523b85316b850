// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome constants for verification metrics.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeAccountLocked      = "account_locked"
	OutcomeStoreUnavailable   = "store_unavailable"
)

// Verifications is the counter for credential verification attempts.
// Use RegisterMetrics to register this with a Prometheus registry.
var Verifications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "seminary_auth_verifications_total",
		Help: "Total number of credential verification attempts",
	},
	[]string{"outcome"},
)

// Lockouts is the counter for lockouts triggered by repeated failures.
// Use RegisterMetrics to register this with a Prometheus registry.
var Lockouts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "seminary_auth_lockouts_total",
		Help: "Total number of account lockouts triggered",
	},
)

// SessionsIssued is the counter for sessions created on successful verification.
// Use RegisterMetrics to register this with a Prometheus registry.
var SessionsIssued = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "seminary_auth_sessions_issued_total",
		Help: "Total number of sessions issued",
	},
)

// SessionsRevoked is the counter for sessions revoked before expiry.
// Use RegisterMetrics to register this with a Prometheus registry.
var SessionsRevoked = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "seminary_auth_sessions_revoked_total",
		Help: "Total number of sessions explicitly revoked",
	},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// This must be called at startup to make metrics available on /metrics.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Verifications)
	reg.MustRegister(Lockouts)
	reg.MustRegister(SessionsIssued)
	reg.MustRegister(SessionsRevoked)
}

// RecordVerification increments the verification counter for an outcome
// (use Outcome* constants).
func RecordVerification(outcome string) {
	Verifications.WithLabelValues(outcome).Inc()
}

// RecordLockout increments the lockout counter.
func RecordLockout() {
	Lockouts.Inc()
}

// RecordSessionIssued increments the issued-session counter.
func RecordSessionIssued() {
	SessionsIssued.Inc()
}

// RecordSessionRevoked increments the revoked-session counter.
func RecordSessionRevoked() {
	SessionsRevoked.Inc()
}
