// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package audit

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tessara/auditrail/internal/logging"
	"github.com/tessara/auditrail/internal/metrics"
)

// Config holds configuration for the audit logger.
type Config struct {
	// Async enables background delivery through a bounded queue. When
	// false every event is written to the store before LogEvent returns.
	Async bool `json:"async"`

	// QueueSize is the capacity of the async delivery queue.
	QueueSize int `json:"queue_size"`

	// DrainTimeout bounds how long Shutdown waits for queued events.
	DrainTimeout time.Duration `json:"drain_timeout"`

	// RetentionDays is the default retention period for cleanup.
	RetentionDays int `json:"retention_days"`
}

// DefaultConfig returns sensible defaults. The retention default of
// 2555 days covers the seven year horizon common to financial
// compliance regimes.
func DefaultConfig() *Config {
	return &Config{
		Async:         true,
		QueueSize:     10000,
		DrainTimeout:  5 * time.Second,
		RetentionDays: 2555,
	}
}

// Handler observes accepted events. Handlers run synchronously in
// registration order before the event is queued or stored; a panicking
// handler is recovered and does not affect the event or later handlers.
type Handler func(*Event)

// Logger is the main audit logging service. It builds events, applies
// filters and handlers, and delivers accepted events to the configured
// store either asynchronously or inline.
type Logger struct {
	config *Config
	store  Store

	mu       sync.RWMutex
	filters  []*Filter
	handlers []Handler

	eventChan chan *Event
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	// closer is set when the logger owns its store's underlying
	// resource, as with NewFromConfig. Released on clean shutdown.
	closer    io.Closer
	closeOnce sync.Once
}

// NewLogger creates a new audit logger backed by the given store.
// A nil config uses DefaultConfig. When async delivery is enabled the
// background writer starts immediately; call Shutdown to stop it.
func NewLogger(store Store, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultConfig().DrainTimeout
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = DefaultConfig().RetentionDays
	}

	l := &Logger{
		config:   config,
		store:    store,
		stopChan: make(chan struct{}),
	}

	if config.Async {
		l.eventChan = make(chan *Event, config.QueueSize)
		l.wg.Add(1)
		go l.asyncWriter()
	}

	return l
}

// AddFilter registers a filter. An event is accepted only when every
// registered filter matches it.
func (l *Logger) AddFilter(f *Filter) {
	if f == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filters = append(l.filters, f)
}

// AddHandler registers a handler. Handlers run in registration order.
func (l *Logger) AddHandler(h Handler) {
	if h == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// EventOption customizes an event before filters and handlers see it.
type EventOption func(*Event)

// WithDetails merges the given map into the event details.
func WithDetails(details map[string]any) EventOption {
	return func(e *Event) {
		for k, v := range details {
			e.Details[k] = v
		}
	}
}

// WithDetail sets one detail key.
func WithDetail(key string, value any) EventOption {
	return func(e *Event) { e.Details[key] = value }
}

// WithSourceIP sets the source IP address.
func WithSourceIP(ip string) EventOption {
	return func(e *Event) { e.SourceIP = ip }
}

// WithUserAgent sets the user agent.
func WithUserAgent(ua string) EventOption {
	return func(e *Event) { e.UserAgent = ua }
}

// WithSessionID sets the session identifier.
func WithSessionID(id string) EventOption {
	return func(e *Event) { e.SessionID = id }
}

// WithCorrelationID sets the correlation identifier.
func WithCorrelationID(id string) EventOption {
	return func(e *Event) { e.CorrelationID = id }
}

// WithRiskScore sets the risk score.
func WithRiskScore(score int) EventOption {
	return func(e *Event) { e.RiskScore = score }
}

// WithSensitiveData marks the event as touching sensitive data.
func WithSensitiveData() EventOption {
	return func(e *Event) { e.SensitiveData = true }
}

// WithFrameworks adds explicit compliance framework tags. Derived tags
// are kept; the result stays sorted and deduplicated.
func WithFrameworks(frameworks ...Framework) EventOption {
	return func(e *Event) {
		e.Frameworks = append(e.Frameworks, frameworks...)
		e.deriveFrameworks()
	}
}

// LogEvent records an audit event and returns its event ID. The ID is
// returned even when the event is rejected by a filter or dropped on a
// full queue, so callers can always correlate.
func (l *Logger) LogEvent(level Level, category Category, action Action, actor, target, result, message string, opts ...EventOption) string {
	event := NewEvent(level, category, action, actor, target, result, message)
	for _, opt := range opts {
		opt(event)
	}
	// Options may have changed fields the derivation depends on.
	event.deriveFrameworks()

	l.mu.RLock()
	filters := l.filters
	handlers := l.handlers
	l.mu.RUnlock()

	for _, f := range filters {
		if !f.Matches(event) {
			metrics.RecordFiltered()
			return event.EventID
		}
	}

	metrics.RecordEvent(string(event.Level), string(event.Category))

	for _, h := range handlers {
		l.runHandler(h, event)
	}

	if l.config.Async {
		select {
		case l.eventChan <- event:
			metrics.UpdateQueueDepth(len(l.eventChan))
		default:
			metrics.RecordDropped()
			logging.Warn().
				Str("event_id", event.EventID).
				Str("category", string(event.Category)).
				Msg("Audit event queue full, dropping event")
		}
	} else {
		l.writeEvent(event)
	}

	return event.EventID
}

// asyncWriter drains the event queue until Shutdown closes stopChan,
// then finishes whatever is still buffered.
func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
			metrics.UpdateQueueDepth(len(l.eventChan))
		}
	}
}

// writeEvent persists an event to the store.
func (l *Logger) writeEvent(event *Event) {
	if l.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := l.store.Store(ctx, event)
	metrics.RecordStoreOperation(storeName(l.store), "store", time.Since(start), err)
	if err != nil {
		logging.Error().Err(err).Str("event_id", event.EventID).Msg("Failed to store audit event")
	}
}

// runHandler invokes one handler, recovering panics so a faulty
// handler cannot take down the pipeline or skip later handlers.
func (l *Logger) runHandler(h Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordHandlerPanic()
			logging.Error().
				Str("event_id", event.EventID).
				Interface("panic", r).
				Msg("Audit event handler panicked")
		}
	}()
	h(event)
}

// Shutdown stops the async writer and drains queued events, bounded by
// the earlier of ctx and the configured drain timeout. It is safe to
// call multiple times.
func (l *Logger) Shutdown(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stopChan) })

	if !l.config.Async {
		return l.closeStore()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(l.config.DrainTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return l.closeStore()
	case <-ctx.Done():
		return fmt.Errorf("audit logger shutdown: %w", ctx.Err())
	case <-timer.C:
		return fmt.Errorf("audit logger shutdown: drain timed out after %v", l.config.DrainTimeout)
	}
}

// closeStore releases an owned store resource. The close is skipped on
// timed-out shutdowns where the writer may still be mid-write.
func (l *Logger) closeStore() error {
	if l.closer == nil {
		return nil
	}
	var err error
	l.closeOnce.Do(func() { err = l.closer.Close() })
	return err
}

// Convenience wrappers for common audit events.

// LogAuthentication records an authentication attempt. A "success"
// result maps to a login action, anything else to an access denial.
func (l *Logger) LogAuthentication(actor, result string, opts ...EventOption) string {
	action := ActionLogin
	if result != "success" {
		action = ActionAccessDenied
	}
	message := fmt.Sprintf("Authentication %s for %s", result, actor)
	return l.LogEvent(LevelSecurity, CategoryAuthentication, action, actor, "authentication_system", result, message, opts...)
}

// LogDataAccess records a read or query of a data target.
func (l *Logger) LogDataAccess(actor, target string, action Action, result string, opts ...EventOption) string {
	message := fmt.Sprintf("Data access: %s %s by %s", action, target, actor)
	return l.LogEvent(LevelInfo, CategoryDataAccess, action, actor, target, result, message, opts...)
}

// LogSecurityEvent records a detected security occurrence.
func (l *Logger) LogSecurityEvent(actor, target, message string, opts ...EventOption) string {
	return l.LogEvent(LevelSecurity, CategorySecurityEvent, ActionAccessDenied, actor, target, "detected", message, opts...)
}

// LogConfigurationChange records a system configuration change.
func (l *Logger) LogConfigurationChange(actor, target, message string, opts ...EventOption) string {
	return l.LogEvent(LevelWarning, CategorySystemConfiguration, ActionConfigurationChanged, actor, target, "success", message, opts...)
}

// LogUserManagement records a user lifecycle operation.
func (l *Logger) LogUserManagement(actor, target string, action Action, message string, opts ...EventOption) string {
	return l.LogEvent(LevelInfo, CategoryUserManagement, action, actor, target, "success", message, opts...)
}

// LogComplianceEvent records an explicitly compliance-relevant event
// tagged for the given framework.
func (l *Logger) LogComplianceEvent(actor, target, message string, framework Framework, opts ...EventOption) string {
	opts = append(opts, WithFrameworks(framework))
	return l.LogEvent(LevelCompliance, CategoryComplianceEvent, ActionApprove, actor, target, "logged", message, opts...)
}

// Query operations.

// Events retrieves events matching the filter, newest first.
func (l *Logger) Events(ctx context.Context, filter *Filter, limit int) ([]Event, error) {
	return l.store.Retrieve(ctx, filter, limit)
}

// EventsByActor retrieves events for one actor, newest first.
func (l *Logger) EventsByActor(ctx context.Context, actor string, limit int) ([]Event, error) {
	return l.store.Retrieve(ctx, &Filter{Actors: []string{actor}}, limit)
}

// EventsByCategory retrieves events in one category, newest first.
func (l *Logger) EventsByCategory(ctx context.Context, category Category, limit int) ([]Event, error) {
	return l.store.Retrieve(ctx, &Filter{Categories: []Category{category}}, limit)
}

// SecurityEvents retrieves security-category events from the last
// hoursBack hours, newest first.
func (l *Logger) SecurityEvents(ctx context.Context, hoursBack, limit int) ([]Event, error) {
	start := time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour)
	return l.store.Retrieve(ctx, &Filter{
		Categories: []Category{CategorySecurityEvent},
		Start:      &start,
	}, limit)
}

// ComplianceEvents retrieves events tagged for the framework from the
// last daysBack days, newest first.
func (l *Logger) ComplianceEvents(ctx context.Context, framework Framework, daysBack int) ([]Event, error) {
	start := time.Now().UTC().AddDate(0, 0, -daysBack)
	return l.store.Retrieve(ctx, &Filter{
		Frameworks: []Framework{framework},
		Start:      &start,
	}, 10000)
}

// Count returns the number of stored events matching the filter.
func (l *Logger) Count(ctx context.Context, filter *Filter) (int64, error) {
	return l.store.Count(ctx, filter)
}

// GenerateReport builds an activity report over the last daysBack days.
// The retrieval window is bounded; a store holding more than
// reportMaxEvents matching events contributes only the newest.
func (l *Logger) GenerateReport(ctx context.Context, daysBack int) (*Report, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -daysBack)

	events, err := l.store.Retrieve(ctx, &Filter{Start: &start, End: &end}, reportMaxEvents)
	if err != nil {
		return nil, fmt.Errorf("retrieve events for report: %w", err)
	}

	return buildReport(events, start, end, daysBack), nil
}

// CleanupOldEvents removes events older than the retention period and
// returns how many were removed. A non-positive retentionDays falls
// back to the configured default.
func (l *Logger) CleanupOldEvents(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = l.config.RetentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	count, err := l.store.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.RecordCleanup(count)
	return count, nil
}

// StartCleanupRoutine runs retention cleanup on the given interval
// until the context is canceled.
func (l *Logger) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count, err := l.CleanupOldEvents(ctx, l.config.RetentionDays)
				if err != nil {
					logging.Error().Err(err).Msg("Audit cleanup error")
				} else if count > 0 {
					logging.Info().Int64("count", count).Msg("Cleaned up old audit events")
				}
			}
		}
	}()
}

// storeName returns the metrics label for a store implementation.
func storeName(s Store) string {
	switch s.(type) {
	case *FileStore:
		return "file"
	case *DuckDBStore:
		return "duckdb"
	case *MemoryStore:
		return "memory"
	default:
		return "custom"
	}
}
