// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tessara/auditrail/internal/logging"
	"github.com/tessara/auditrail/internal/metrics"
)

// tsLayout is the fixed-width UTC timestamp format used in the
// timestamp column. Unlike RFC 3339 with trimmed fractional zeros, the
// fixed width makes lexicographic order equal chronological order, so
// the timestamp index serves range queries and newest-first ordering.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DuckDBStore implements Store on a single indexed DuckDB table.
// Each row carries the event's integrity checksum; the checksum column
// is never exposed as a queryable field.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDuckDBStore wraps an open DuckDB handle. The caller is responsible
// for calling CreateTable during initialization.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// Close releases the underlying database handle.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

// CreateTable creates the audit_events table and its secondary indexes
// if they do not exist.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_events (
			event_id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			level TEXT NOT NULL,
			category TEXT NOT NULL,
			action TEXT NOT NULL,
			actor TEXT NOT NULL,
			target TEXT NOT NULL,
			result TEXT NOT NULL,
			message TEXT NOT NULL,
			details TEXT NOT NULL,
			source_ip TEXT,
			user_agent TEXT,
			session_id TEXT,
			correlation_id TEXT,
			compliance_frameworks TEXT NOT NULL,
			risk_score INTEGER DEFAULT 0,
			sensitive_data BOOLEAN DEFAULT FALSE,
			checksum TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_events(actor);
		CREATE INDEX IF NOT EXISTS idx_audit_category ON audit_events(category);
		CREATE INDEX IF NOT EXISTS idx_audit_level ON audit_events(level);
	`

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("Audit events table created/verified")
	return nil
}

// Store persists one event with its integrity checksum.
func (s *DuckDBStore) Store(ctx context.Context, event *Event) error {
	if event == nil {
		return ErrNilEvent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	checksum, err := event.Checksum()
	if err != nil {
		return fmt.Errorf("compute checksum: %w", err)
	}

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("serialize details: %w", err)
	}
	frameworks, err := json.Marshal(event.Frameworks)
	if err != nil {
		return fmt.Errorf("serialize frameworks: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			event_id, timestamp, level, category, action, actor, target,
			result, message, details, source_ip, user_agent, session_id,
			correlation_id, compliance_frameworks, risk_score, sensitive_data, checksum
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		event.EventID,
		event.Timestamp.UTC().Format(tsLayout),
		string(event.Level),
		string(event.Category),
		string(event.Action),
		event.Actor,
		event.Target,
		event.Result,
		event.Message,
		string(details),
		event.SourceIP,
		event.UserAgent,
		event.SessionID,
		event.CorrelationID,
		string(frameworks),
		event.RiskScore,
		event.SensitiveData,
		checksum,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Retrieve returns matching events newest first. Rows that fail to scan
// or decode are skipped rather than aborting the whole read.
func (s *DuckDBStore) Retrieve(ctx context.Context, filter *Filter, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildEventQuery(filter, false)
	// event_id breaks ties between events sharing a timestamp so the
	// result order is deterministic.
	query += " ORDER BY timestamp DESC, event_id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEventRow(rows)
		if err != nil {
			metrics.RecordSkipped("duckdb")
			logging.Warn().Err(err).Msg("Skipping malformed audit event row")
			continue
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// Count returns the match count without materializing events.
func (s *DuckDBStore) Count(ctx context.Context, filter *Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildEventQuery(filter, true)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return count, nil
}

// Cleanup deletes events with timestamps strictly before the cutoff and
// returns the number deleted.
func (s *DuckDBStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_events WHERE timestamp < ?",
		olderThan.UTC().Format(tsLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("delete old audit events: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get deleted count: %w", err)
	}
	if count > 0 {
		logging.Info().Int64("deleted", count).Time("older_than", olderThan).Msg("Deleted old audit events")
	}
	return count, nil
}

// VerifyIntegrity recomputes each stored event's checksum against the
// persisted one and returns the IDs of mismatched rows.
func (s *DuckDBStore) VerifyIntegrity(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectColumns+", checksum FROM audit_events")
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var tampered []string
	for rows.Next() {
		var raw rawEventRow
		var stored string
		if err := rows.Scan(append(raw.destinations(), &stored)...); err != nil {
			logging.Warn().Err(err).Msg("Skipping unscannable audit event row")
			continue
		}
		event, err := raw.toEvent()
		if err != nil {
			tampered = append(tampered, raw.eventID)
			continue
		}
		computed, err := event.Checksum()
		if err != nil || computed != stored {
			tampered = append(tampered, event.EventID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return tampered, nil
}

// GetStats returns statistics about the indexed store.
func (s *DuckDBStore) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		EventsByLevel:    make(map[string]int64),
		EventsByCategory: make(map[string]int64),
		EventsByResult:   make(map[string]int64),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events").Scan(&stats.TotalEvents); err != nil {
		return nil, fmt.Errorf("get total count: %w", err)
	}

	for column, dest := range map[string]map[string]int64{
		"level":    stats.EventsByLevel,
		"category": stats.EventsByCategory,
		"result":   stats.EventsByResult,
	} {
		if err := s.countByColumn(ctx, column, dest); err != nil {
			return nil, err
		}
	}

	var oldest, newest sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT MIN(timestamp), MAX(timestamp) FROM audit_events").Scan(&oldest, &newest)
	if err == nil {
		if t, perr := parseStoredTime(oldest); perr == nil {
			stats.OldestEvent = t
		}
		if t, perr := parseStoredTime(newest); perr == nil {
			stats.NewestEvent = t
		}
	}

	return stats, nil
}

// countByColumn runs a GROUP BY over one column into dest.
func (s *DuckDBStore) countByColumn(ctx context.Context, column string, dest map[string]int64) error {
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM audit_events GROUP BY %s", column, column)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("get %s counts: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err == nil {
			dest[key] = count
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s counts: %w", column, err)
	}
	return nil
}

func parseStoredTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, fmt.Errorf("no value")
	}
	t, err := time.Parse(tsLayout, v.String)
	if err != nil {
		return nil, err
	}
	u := t.UTC()
	return &u, nil
}

// selectColumns deliberately excludes the checksum column: it is audit
// metadata, not part of the event's query surface.
const selectColumns = `
	SELECT
		event_id, timestamp, level, category, action, actor, target,
		result, message, details, source_ip, user_agent, session_id,
		correlation_id, compliance_frameworks, risk_score, sensitive_data
`

// buildEventQuery translates a Filter into a conjunctive WHERE clause.
func buildEventQuery(filter *Filter, countOnly bool) (string, []any) {
	query := selectColumns + " FROM audit_events"
	if countOnly {
		query = "SELECT COUNT(*) FROM audit_events"
	}

	conditions, args := buildFilterConditions(filter)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	return query, args
}

// buildFilterConditions translates each set criterion of the filter to
// its native predicate. The level criterion expands to the full set of
// levels at or above the minimum rank, however many there are, so the
// comparison follows the severity order generically.
func buildFilterConditions(filter *Filter) ([]string, []any) {
	var conditions []string
	var args []any

	if filter == nil {
		return conditions, args
	}

	if filter.MinLevel.Rank() > 0 {
		var allowed []Level
		for _, l := range Levels() {
			if l.Rank() >= filter.MinLevel.Rank() {
				allowed = append(allowed, l)
			}
		}
		conditions = append(conditions, inCondition("level", len(allowed)))
		for _, l := range allowed {
			args = append(args, string(l))
		}
	}

	if len(filter.Categories) > 0 {
		conditions = append(conditions, inCondition("category", len(filter.Categories)))
		for _, c := range filter.Categories {
			args = append(args, string(c))
		}
	}

	if len(filter.Actors) > 0 {
		conditions = append(conditions, inCondition("actor", len(filter.Actors)))
		for _, a := range filter.Actors {
			args = append(args, a)
		}
	}
	if len(filter.ExcludeActors) > 0 {
		conditions = append(conditions, fmt.Sprintf("actor NOT IN (%s)", placeholders(len(filter.ExcludeActors))))
		for _, a := range filter.ExcludeActors {
			args = append(args, a)
		}
	}

	// Frameworks are stored as a sorted JSON array; tag membership
	// translates to a substring match on the quoted tag.
	if len(filter.Frameworks) > 0 {
		var ors []string
		for _, fw := range filter.Frameworks {
			ors = append(ors, "compliance_frameworks LIKE ?")
			args = append(args, `%"`+string(fw)+`"%`)
		}
		conditions = append(conditions, "("+strings.Join(ors, " OR ")+")")
	}

	if filter.Start != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Start.UTC().Format(tsLayout))
	}
	if filter.End != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.End.UTC().Format(tsLayout))
	}

	return conditions, args
}

// inCondition builds "column IN (?, ...)" with n placeholders.
func inCondition(column string, n int) string {
	return fmt.Sprintf("%s IN (%s)", column, placeholders(n))
}

func placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = "?"
	}
	return strings.Join(marks, ",")
}

// rawEventRow holds scanned column values before decoding.
type rawEventRow struct {
	eventID       string
	timestamp     string
	level         string
	category      string
	action        string
	actor         string
	target        string
	result        string
	message       string
	details       string
	sourceIP      sql.NullString
	userAgent     sql.NullString
	sessionID     sql.NullString
	correlationID sql.NullString
	frameworks    string
	riskScore     int
	sensitiveData bool
}

func (r *rawEventRow) destinations() []any {
	return []any{
		&r.eventID, &r.timestamp, &r.level, &r.category, &r.action,
		&r.actor, &r.target, &r.result, &r.message, &r.details,
		&r.sourceIP, &r.userAgent, &r.sessionID, &r.correlationID,
		&r.frameworks, &r.riskScore, &r.sensitiveData,
	}
}

func (r *rawEventRow) toEvent() (*Event, error) {
	ts, err := time.Parse(tsLayout, r.timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp: %w", err)
	}

	event := &Event{
		EventID:       r.eventID,
		Timestamp:     ts.UTC(),
		Level:         Level(r.level),
		Category:      Category(r.category),
		Action:        Action(r.action),
		Actor:         r.actor,
		Target:        r.target,
		Result:        r.result,
		Message:       r.message,
		SourceIP:      r.sourceIP.String,
		UserAgent:     r.userAgent.String,
		SessionID:     r.sessionID.String,
		CorrelationID: r.correlationID.String,
		RiskScore:     r.riskScore,
		SensitiveData: r.sensitiveData,
	}

	if err := json.Unmarshal([]byte(r.details), &event.Details); err != nil {
		return nil, fmt.Errorf("parse details: %w", err)
	}
	if event.Details == nil {
		event.Details = map[string]any{}
	}
	if err := json.Unmarshal([]byte(r.frameworks), &event.Frameworks); err != nil {
		return nil, fmt.Errorf("parse frameworks: %w", err)
	}
	if event.Frameworks == nil {
		event.Frameworks = []Framework{}
	}
	return event, nil
}

// scanEventRow decodes the current row into an Event.
func scanEventRow(rows *sql.Rows) (*Event, error) {
	var raw rawEventRow
	if err := rows.Scan(raw.destinations()...); err != nil {
		return nil, err
	}
	return raw.toEvent()
}
