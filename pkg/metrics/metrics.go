// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-credvault.
//
// go-credvault is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for vault
// operations: operation counters by outcome, unlock attempts by
// credential family, ceremony de-duplication, and session cache hits.
// Metric labels carry only operation names and family names, never
// identifiers or key material.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all vault metrics
	Namespace = "credvault"

	// Label names
	LabelOperation = "operation"
	LabelFamily    = "family"
	LabelStatus    = "status"

	// Status values
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"

	// Operation names
	OpCreateSecret = "create_secret"
	OpLoadSecret   = "load_secret"
	OpAddWrapper   = "add_wrapper"
)

var (
	// OperationsTotal tracks vault operations by name and outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of vault operations by operation and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// OperationDuration tracks vault operation latency, including
	// ceremony prompts and storage round-trips.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Vault operation latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{LabelOperation},
	)

	// UnlockAttemptsTotal tracks DEK unwrap attempts by credential
	// family and outcome.
	UnlockAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "unlock_attempts_total",
			Help:      "Total number of DEK unwrap attempts by credential family and status",
		},
		[]string{LabelFamily, LabelStatus},
	)

	// CacheHitsTotal tracks session cache lookups by family and outcome.
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of session cache lookups by family and status",
		},
		[]string{LabelFamily, LabelStatus},
	)
)

// RecordOperation increments the operation counter with the outcome.
func RecordOperation(operation string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
}

// ObserveDuration records the latency of an operation. Use with defer:
//
//	defer metrics.ObserveDuration(metrics.OpLoadSecret, time.Now())
func ObserveDuration(operation string, start time.Time) {
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordUnlockAttempt increments the unlock attempt counter.
func RecordUnlockAttempt(family, status string) {
	UnlockAttemptsTotal.WithLabelValues(family, status).Inc()
}

// Cache lookup outcomes
const (
	StatusHit  = "hit"
	StatusMiss = "miss"
)

// RecordCacheLookup increments the session cache lookup counter.
func RecordCacheLookup(family string, hit bool) {
	status := StatusMiss
	if hit {
		status = StatusHit
	}
	CacheHitsTotal.WithLabelValues(family, status).Inc()
}
