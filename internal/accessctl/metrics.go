// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package accessctl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for access decisions.
var (
	// decisionsTotal counts evaluator decisions by check kind and outcome.
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeep_decisions_total",
		Help: "Total number of access decisions",
	}, []string{"check", "outcome"})
)

// recordDecision records the outcome of one evaluator call. Store failures
// count as errors, not denials, so operators can tell policy from plumbing.
func recordDecision(check string, allowed bool, err error) {
	outcome := "deny"
	switch {
	case err != nil:
		outcome = "error"
	case allowed:
		outcome = "allow"
	}
	decisionsTotal.WithLabelValues(check, outcome).Inc()
}
