// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

/*
Package metrics provides Prometheus metrics collection for the audit pipeline.

This package instruments event throughput, filter rejections, queue drops,
storage backend performance and retention cleanup using the Prometheus client
library. All collectors register on the default registry via promauto, so an
embedding application only needs to expose them:

	import (
	    "net/http"

	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	http.Handle("/metrics", promhttp.Handler())

# Available Metrics

Pipeline:
  - audit_events_logged_total: Accepted events (counter)
    Labels: level, category
  - audit_events_filtered_total: Events rejected by filters (counter)
  - audit_events_dropped_total: Events dropped on queue saturation (counter)
  - audit_queue_depth: Events waiting in the async queue (gauge)
  - audit_handler_panics_total: Panics recovered from handlers (counter)

Storage:
  - audit_store_duration_seconds: Store operation latency (histogram)
    Labels: backend, operation
  - audit_store_errors_total: Store operation failures (counter)
    Labels: backend, operation
  - audit_file_rotations_total: Log file rotations (counter)
  - audit_records_skipped_total: Unreadable records skipped on read (counter)
    Labels: backend

Retention:
  - audit_cleanup_deleted_total: Events removed by cleanup (counter)
  - audit_cleanup_last_run_timestamp: Unix time of last cleanup (gauge)

Example PromQL queries:

	# Event rate by category
	rate(audit_events_logged_total[5m])

	# Drop ratio
	rate(audit_events_dropped_total[5m]) / rate(audit_events_logged_total[5m])

	# Store p95 latency
	histogram_quantile(0.95, rate(audit_store_duration_seconds_bucket[5m]))

# Thread Safety

All recording functions are safe for concurrent use from multiple goroutines.
The Prometheus client library handles synchronization internally.

# Cardinality Management

Labels are restricted to the fixed level, category, backend and operation
vocabularies. Actor names, event IDs and other unbounded values never appear
as label values.
*/
package metrics
