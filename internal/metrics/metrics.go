// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

// Package metrics provides Prometheus instrumentation for the audit
// retrieval run: query outcomes, throttle retries, record and row counts,
// and circuit breaker state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name used when publishing run metrics.
const PushJob = "audit_spo_folder_activity"

// Push publishes all registered run metrics to a Prometheus Pushgateway.
// The tool runs to completion and exits, so push is the only way its
// metrics reach a scrape pipeline.
func Push(gatewayURL string) error {
	return push.New(gatewayURL, PushJob).
		Gatherer(prometheus.DefaultGatherer).
		Push()
}

var (
	// AuditQueries counts upstream audit queries by outcome.
	AuditQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_queries_total",
			Help: "Total audit source queries by result",
		},
		[]string{"result"}, // "success", "throttled", "error"
	)

	// AuditQueryDuration tracks upstream query latency.
	AuditQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_query_duration_seconds",
			Help:    "Duration of audit source queries in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// ThrottleRetries counts backoff-and-retry cycles caused by upstream
	// rate limiting.
	ThrottleRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_throttle_retries_total",
			Help: "Total retries triggered by upstream throttling",
		},
	)

	// RecordsRetrieved counts raw records returned by the audit source.
	RecordsRetrieved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_records_retrieved_total",
			Help: "Total raw audit records retrieved",
		},
	)

	// RecordsDropped counts records discarded before enrichment, by reason.
	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_records_dropped_total",
			Help: "Total records dropped during filtering",
		},
		[]string{"reason"}, // "parse_error", "filtered"
	)

	// ReportRows counts rows appended to the report artifact.
	ReportRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "report_rows_written_total",
			Help: "Total rows appended to the report artifact",
		},
	)

	// WindowsProcessed counts fully drained time windows.
	WindowsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_windows_processed_total",
			Help: "Total time windows drained from the audit source",
		},
	)

	// CircuitBreakerState reports the breaker state for the audit client.
	// Values: 0=closed, 1=open, 2=half-open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)
)
