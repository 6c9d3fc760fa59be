// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the audit pipeline:
// - Event throughput by level and category
// - Filter rejections and queue drops
// - Storage backend latency and failures
// - Handler panics
// - Retention cleanup

var (
	// Event Pipeline Metrics
	EventsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_logged_total",
			Help: "Total number of audit events accepted by the pipeline",
		},
		[]string{"level", "category"},
	)

	EventsFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_events_filtered_total",
			Help: "Total number of audit events rejected by filters",
		},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Total number of audit events dropped due to a full queue",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Current number of audit events waiting in the async queue",
		},
	)

	HandlerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_handler_panics_total",
			Help: "Total number of panics recovered from event handlers",
		},
	)

	// Storage Metrics
	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_store_duration_seconds",
			Help:    "Duration of audit store operations in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s up to 10s
		},
		[]string{"backend", "operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_store_errors_total",
			Help: "Total number of audit store operation failures",
		},
		[]string{"backend", "operation"},
	)

	FileRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_file_rotations_total",
			Help: "Total number of audit log file rotations",
		},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_records_skipped_total",
			Help: "Total number of stored records skipped as unreadable",
		},
		[]string{"backend"},
	)

	// Retention Metrics
	CleanupDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_cleanup_deleted_total",
			Help: "Total number of audit events removed by retention cleanup",
		},
	)

	CleanupLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_cleanup_last_run_timestamp",
			Help: "Unix timestamp of the last retention cleanup run",
		},
	)
)

// RecordEvent records an accepted audit event.
func RecordEvent(level, category string) {
	EventsLogged.WithLabelValues(level, category).Inc()
}

// RecordFiltered records an event rejected by a registered filter.
func RecordFiltered() {
	EventsFiltered.Inc()
}

// RecordDropped records an event dropped because the async queue was full.
func RecordDropped() {
	EventsDropped.Inc()
}

// RecordHandlerPanic records a panic recovered from an event handler.
func RecordHandlerPanic() {
	HandlerPanics.Inc()
}

// RecordStoreOperation records the outcome of one store operation.
func RecordStoreOperation(backend, operation string, duration time.Duration, err error) {
	StoreDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordCleanup records a retention cleanup run.
func RecordCleanup(deleted int64) {
	CleanupDeleted.Add(float64(deleted))
	CleanupLastRun.Set(float64(time.Now().Unix()))
}

// RecordFileRotation records one log file rotation.
func RecordFileRotation() {
	FileRotations.Inc()
}

// RecordSkipped records a stored record skipped as unreadable.
func RecordSkipped(backend string) {
	RecordsSkipped.WithLabelValues(backend).Inc()
}

// UpdateQueueDepth updates the async queue depth gauge.
func UpdateQueueDepth(depth int) {
	QueueDepth.Set(float64(depth))
}
