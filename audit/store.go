// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package audit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Common store errors.
var (
	// ErrNilEvent is returned when a nil event is passed to Store.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Store is the contract for audit event persistence backends.
//
// Store never panics past the call boundary: persistence failures are
// reported as errors so the Logger's pipeline degrades to local failure
// logging rather than crashing. Each implementation serializes its own
// writers internally; readers may run concurrently with each other and
// may observe a snapshot that is stale relative to an in-flight writer.
type Store interface {
	// Store persists one event. An error is the failure signal; the
	// caller does not retry automatically.
	Store(ctx context.Context, event *Event) error

	// Retrieve returns up to limit events matching the filter, newest
	// first. Malformed stored records are skipped, not fatal. A limit
	// <= 0 means no limit.
	Retrieve(ctx context.Context, filter *Filter, limit int) ([]Event, error)

	// Count returns the number of events matching the filter without
	// materializing them.
	Count(ctx context.Context, filter *Filter) (int64, error)

	// Cleanup deletes events strictly older than the given instant and
	// returns the number of confirmed deletions. Per-candidate failures
	// are logged and skipped.
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
}

// Stats summarizes the contents of a store.
type Stats struct {
	TotalEvents      int64            `json:"total_events"`
	EventsByLevel    map[string]int64 `json:"events_by_level"`
	EventsByCategory map[string]int64 `json:"events_by_category"`
	EventsByResult   map[string]int64 `json:"events_by_result"`
	OldestEvent      *time.Time       `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time       `json:"newest_event,omitempty"`
}

// MemoryStore implements Store using in-memory storage. Suitable for
// development and testing. Data is lost on restart.
type MemoryStore struct {
	events []Event
	mu     sync.RWMutex
	maxLen int
}

// NewMemoryStore creates an in-memory store capped at maxLen events.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		events: make([]Event, 0, maxLen),
		maxLen: maxLen,
	}
}

// Store persists one event in memory, evicting the oldest tenth when full.
func (s *MemoryStore) Store(ctx context.Context, event *Event) error {
	if event == nil {
		return ErrNilEvent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) >= s.maxLen {
		removeCount := s.maxLen / 10
		if removeCount == 0 {
			removeCount = 1
		}
		s.events = s.events[removeCount:]
	}

	s.events = append(s.events, *event)
	return nil
}

// Retrieve returns matching events newest first.
func (s *MemoryStore) Retrieve(ctx context.Context, filter *Filter, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Event
	for i := len(s.events) - 1; i >= 0; i-- {
		event := s.events[i]
		if !filter.Matches(&event) {
			continue
		}
		results = append(results, event)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Count returns the number of matching events.
func (s *MemoryStore) Count(ctx context.Context, filter *Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.events {
		if filter.Matches(&s.events[i]) {
			count++
		}
	}
	return count, nil
}

// Cleanup removes events with timestamps strictly before olderThan.
func (s *MemoryStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for i := range s.events {
		if s.events[i].Timestamp.Before(olderThan) {
			deleted++
		} else {
			kept = append(kept, s.events[i])
		}
	}
	s.events = kept
	return deleted, nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Clear removes all events (for testing).
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:0]
}

// GetStats returns statistics for the memory store.
func (s *MemoryStore) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		TotalEvents:      int64(len(s.events)),
		EventsByLevel:    make(map[string]int64),
		EventsByCategory: make(map[string]int64),
		EventsByResult:   make(map[string]int64),
	}

	for idx := range s.events {
		event := &s.events[idx]
		stats.EventsByLevel[string(event.Level)]++
		stats.EventsByCategory[string(event.Category)]++
		stats.EventsByResult[event.Result]++

		if stats.OldestEvent == nil || event.Timestamp.Before(*stats.OldestEvent) {
			t := event.Timestamp
			stats.OldestEvent = &t
		}
		if stats.NewestEvent == nil || event.Timestamp.After(*stats.NewestEvent) {
			t := event.Timestamp
			stats.NewestEvent = &t
		}
	}

	return stats, nil
}
