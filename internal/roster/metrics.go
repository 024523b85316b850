// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package roster

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StudentsCreated counts students added to the register.
// Use RegisterMetrics to register this with a Prometheus registry.
var StudentsCreated = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "seminary_roster_students_created_total",
		Help: "Total number of students created",
	},
)

// StudentsDeleted counts students removed from the register.
// Use RegisterMetrics to register this with a Prometheus registry.
var StudentsDeleted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "seminary_roster_students_deleted_total",
		Help: "Total number of students deleted",
	},
)

// Searches counts DSL searches, labeled by whether the query compiled.
// Use RegisterMetrics to register this with a Prometheus registry.
var Searches = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "seminary_roster_searches_total",
		Help: "Total number of roster searches",
	},
	[]string{"result"},
)

// Exports counts CSV exports.
// Use RegisterMetrics to register this with a Prometheus registry.
var Exports = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "seminary_roster_exports_total",
		Help: "Total number of roster CSV exports",
	},
)

// RegisterMetrics registers roster package metrics with the given
// Prometheus registry. This must be called at startup to make metrics
// available on /metrics. Panics if registration fails (following
// prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(StudentsCreated)
	reg.MustRegister(StudentsDeleted)
	reg.MustRegister(Searches)
	reg.MustRegister(Exports)
}
