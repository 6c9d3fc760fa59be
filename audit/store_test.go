// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package audit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStore_StoreAndRetrieve(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100)

	for i := 0; i < 5; i++ {
		event := NewEvent(LevelInfo, CategoryAPICall, ActionRead, fmt.Sprintf("user-%d", i), "api", "success", "call")
		event.Timestamp = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := store.Store(ctx, event); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	events, err := store.Retrieve(ctx, nil, 0)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}

	// Newest first.
	if events[0].Actor != "user-4" || events[4].Actor != "user-0" {
		t.Errorf("expected newest-first ordering, got %s .. %s", events[0].Actor, events[4].Actor)
	}
}

func TestMemoryStore_NilEvent(t *testing.T) {
	store := NewMemoryStore(10)
	if err := store.Store(context.Background(), nil); err != ErrNilEvent {
		t.Errorf("expected ErrNilEvent, got %v", err)
	}
}

func TestMemoryStore_RetrieveLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100)
	for i := 0; i < 10; i++ {
		if err := store.Store(ctx, NewEvent(LevelInfo, CategoryAPICall, ActionRead, "a", "t", "success", "m")); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	events, err := store.Retrieve(ctx, nil, 3)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("expected limit of 3, got %d", len(events))
	}
}

func TestMemoryStore_RetrieveFiltered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100)

	if err := store.Store(ctx, NewEvent(LevelSecurity, CategorySecurityEvent, ActionAccessDenied, "mallory", "vault", "detected", "m")); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := store.Store(ctx, NewEvent(LevelInfo, CategoryAPICall, ActionRead, "alice", "api", "success", "m")); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	events, err := store.Retrieve(ctx, &Filter{Categories: []Category{CategorySecurityEvent}}, 0)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(events) != 1 || events[0].Actor != "mallory" {
		t.Errorf("expected only the security event, got %d events", len(events))
	}
}

func TestMemoryStore_Count(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100)

	for i := 0; i < 4; i++ {
		if err := store.Store(ctx, NewEvent(LevelInfo, CategoryAPICall, ActionRead, "alice", "t", "success", "m")); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}
	if err := store.Store(ctx, NewEvent(LevelInfo, CategoryAPICall, ActionRead, "bob", "t", "success", "m")); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	total, err := store.Count(ctx, nil)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if total != 5 {
		t.Errorf("expected 5 total, got %d", total)
	}

	alice, err := store.Count(ctx, &Filter{Actors: []string{"alice"}})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if alice != 4 {
		t.Errorf("expected 4 for alice, got %d", alice)
	}
}

func TestMemoryStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100)
	cutoff := time.Now().UTC()

	old := NewEvent(LevelInfo, CategoryAPICall, ActionRead, "a", "t", "success", "old")
	old.Timestamp = cutoff.Add(-time.Hour)
	boundary := NewEvent(LevelInfo, CategoryAPICall, ActionRead, "a", "t", "success", "boundary")
	boundary.Timestamp = cutoff
	recent := NewEvent(LevelInfo, CategoryAPICall, ActionRead, "a", "t", "success", "recent")
	recent.Timestamp = cutoff.Add(time.Hour)

	for _, e := range []*Event{old, boundary, recent} {
		if err := store.Store(ctx, e); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	deleted, err := store.Cleanup(ctx, cutoff)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	// Strictly older: the boundary event survives.
	if deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", deleted)
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 remaining, got %d", store.Len())
	}

	// Cleanup is idempotent: a second call with the same cutoff finds
	// nothing left to delete.
	again, err := store.Cleanup(ctx, cutoff)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if again != 0 {
		t.Errorf("expected 0 deletions on repeat, got %d", again)
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 remaining after repeat, got %d", store.Len())
	}
}

func TestMemoryStore_Eviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)

	for i := 0; i < 11; i++ {
		event := NewEvent(LevelInfo, CategoryAPICall, ActionRead, fmt.Sprintf("user-%d", i), "t", "success", "m")
		if err := store.Store(ctx, event); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	// At capacity the oldest tenth is evicted before appending.
	if store.Len() != 10 {
		t.Errorf("expected 10 events after eviction, got %d", store.Len())
	}
	events, err := store.Retrieve(ctx, &Filter{Actors: []string{"user-0"}}, 0)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(events) != 0 {
		t.Error("expected the oldest event to be evicted")
	}
}

func TestMemoryStore_GetStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100)

	first := NewEvent(LevelInfo, CategoryDataAccess, ActionRead, "a", "db", "success", "m")
	first.Timestamp = time.Now().UTC().Add(-time.Hour)
	second := NewEvent(LevelSecurity, CategorySecurityEvent, ActionAccessDenied, "b", "vault", "failure", "m")

	for _, e := range []*Event{first, second} {
		if err := store.Store(ctx, e); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalEvents != 2 {
		t.Errorf("expected 2 total, got %d", stats.TotalEvents)
	}
	if stats.EventsByLevel["info"] != 1 || stats.EventsByLevel["security"] != 1 {
		t.Errorf("unexpected level counts: %v", stats.EventsByLevel)
	}
	if stats.EventsByResult["failure"] != 1 {
		t.Errorf("unexpected result counts: %v", stats.EventsByResult)
	}
	if stats.OldestEvent == nil || !stats.OldestEvent.Equal(first.Timestamp) {
		t.Error("oldest event timestamp mismatch")
	}
	if stats.NewestEvent == nil || !stats.NewestEvent.Equal(second.Timestamp) {
		t.Error("newest event timestamp mismatch")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10000)

	done := make(chan struct{})
	for g := 0; g < 10; g++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				event := NewEvent(LevelInfo, CategoryAPICall, ActionRead, fmt.Sprintf("g%d", id), "t", "success", "m")
				if err := store.Store(ctx, event); err != nil {
					t.Errorf("store failed: %v", err)
					return
				}
				if _, err := store.Count(ctx, nil); err != nil {
					t.Errorf("count failed: %v", err)
					return
				}
			}
		}(g)
	}
	for g := 0; g < 10; g++ {
		<-done
	}

	if store.Len() != 1000 {
		t.Errorf("expected 1000 events, got %d", store.Len())
	}
}
