// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

// Package audit provides compliance audit event logging for security
// and regulatory requirements.
//
// This package implements a complete audit trail: structured events
// describing who did what to which target with what outcome, automatic
// compliance framework tagging, pluggable durable storage, asynchronous
// delivery, and reporting for compliance reviews.
//
// # Overview
//
// The audit system provides:
//   - Structured events with typed levels, categories and actions
//   - Automatic compliance framework tagging (SOX, GDPR, PCI DSS, ...)
//   - Pluggable storage: append-only files, indexed DuckDB, in-memory
//   - Asynchronous buffered delivery for minimal latency impact
//   - Optional at-rest encryption and compression for file storage
//   - SHA-256 integrity checksums over the canonical event form
//   - Retention policy enforcement with periodic cleanup
//   - CSV, JSON and CEF (SIEM) export plus compliance reports
//
// # Compliance Tagging
//
// Framework tags are derived from the event itself and never removed:
//
//   - data_access, data_modification: GDPR
//   - system_configuration, or targets mentioning "financial": SOX
//   - security_event: ISO 27001, SOC 2, NIST
//   - authentication: SOC 2, ISO 27001, PCI DSS
//
// Explicit tags supplied via WithFrameworks are merged with the derived
// set; the result is always sorted and deduplicated.
//
// # Architecture
//
// The pipeline uses a producer-consumer pattern:
//
//	LogEvent() -> Filters -> Handlers -> Event Queue (chan) -> Async Writer -> Store
//	                 |           |             |                    |
//	             All must     Run in       Non-blocking        Background
//	              accept       order       (drop on full)       goroutine
//
// Filters are conjunctive: every registered filter must accept an event
// or it is discarded before any handler or store sees it. Handlers run
// synchronously in registration order; a panicking handler is recovered
// and does not affect delivery. When the queue is full the event is
// dropped with a warning rather than blocking the caller.
//
// # Usage Example
//
// Basic audit logging:
//
//	store, err := audit.NewFileStore(audit.FileStoreConfig{
//	    Dir:      "/var/log/auditrail",
//	    Compress: true,
//	})
//	if err != nil {
//	    return err
//	}
//	logger := audit.NewLogger(store, audit.DefaultConfig())
//	defer logger.Shutdown(context.Background())
//
// Or let configuration drive the wiring. NewFromConfig builds the
// store, pipeline and diagnostic logger from a config.Config; passing
// nil loads auditrail.yaml / AUDITRAIL_* environment overrides:
//
//	logger, err := audit.NewFromConfig(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Shutdown(context.Background())
//
//	// Log an authentication attempt
//	logger.LogAuthentication("alice", "success",
//	    audit.WithSourceIP("203.0.113.7"),
//	    audit.WithSessionID(sessionID))
//
//	// Log access to a sensitive record
//	logger.LogDataAccess("alice", "patient_records", audit.ActionRead, "success",
//	    audit.WithSensitiveData())
//
// Querying:
//
//	minLevel := audit.LevelWarning
//	events, err := logger.Events(ctx, &audit.Filter{
//	    MinLevel:   minLevel,
//	    Categories: []audit.Category{audit.CategorySecurityEvent},
//	    Start:      &since,
//	}, 100)
//
// Reporting and export:
//
//	reporter := audit.NewReporter(logger)
//	report, err := reporter.ComplianceReport(ctx, audit.FrameworkGDPR, 30)
//	cefData, err := reporter.ExportCEF(ctx, nil, 1000)
//
// # Retention Policy
//
// Cleanup removes events strictly older than the cutoff:
//
//	logger.StartCleanupRoutine(ctx, 24*time.Hour)
//	// or on demand:
//	deleted, err := logger.CleanupOldEvents(ctx, 2555)
//
// The file backend cleans up at file granularity: a file is removed
// only once every event in it is older than the cutoff.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use:
//   - Logger uses a buffered channel for non-blocking delivery
//   - Store implementations serialize writes internally
//   - Query operations use read locks for concurrent access
//
// # Performance Characteristics
//
//   - LogEvent (async): <1ms, non-blocking channel send
//   - Query: 1-100ms depending on backend and filter complexity
//   - Queue overflow: events dropped with warning and metric
//   - Memory overhead: ~1KB per buffered event
package audit
