// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

var (
	// hashDuration tracks time spent inside the password hasher, per operation.
	hashDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidshelf_password_hash_duration_seconds",
		Help:    "Time spent hashing or verifying passwords",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2},
	}, []string{"operation"})

	// tokenVerifications counts token verification outcomes.
	tokenVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidshelf_session_token_verifications_total",
		Help: "Session token verification outcomes (valid, expired, invalid, tampered)",
	}, []string{"outcome"})

	// lookupAnomalies counts non-primary user lookups that matched more than one row.
	lookupAnomalies = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidshelf_user_lookup_anomalies_total",
		Help: "User lookups by user_id that returned more than one record",
	})
)

// Collectors returns the package metrics for registration with a registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{hashDuration, tokenVerifications, lookupAnomalies}
}
