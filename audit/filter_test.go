// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package audit

import (
	"testing"
	"time"
)

func TestFilterMatches_Empty(t *testing.T) {
	filter := &Filter{}
	event := NewEvent(LevelDebug, CategoryPerformance, ActionRead, "anyone", "anything", "success", "m")

	if !filter.Matches(event) {
		t.Error("empty filter should match every event")
	}
}

func TestFilterMatches_MinLevel(t *testing.T) {
	tests := []struct {
		name     string
		minLevel Level
		level    Level
		want     bool
	}{
		{"debug passes info threshold", LevelInfo, LevelDebug, false},
		{"info meets info threshold", LevelInfo, LevelInfo, true},
		{"error exceeds warning threshold", LevelWarning, LevelError, true},
		{"critical below security threshold", LevelSecurity, LevelCritical, false},
		{"compliance meets security threshold", LevelSecurity, LevelCompliance, true},
		{"security meets compliance threshold", LevelCompliance, LevelSecurity, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := &Filter{MinLevel: tt.minLevel}
			event := NewEvent(tt.level, CategoryAPICall, ActionRead, "a", "t", "success", "m")
			if got := filter.Matches(event); got != tt.want {
				t.Errorf("MinLevel=%s level=%s: got %v, want %v", tt.minLevel, tt.level, got, tt.want)
			}
		})
	}
}

func TestFilterMatches_Categories(t *testing.T) {
	filter := &Filter{Categories: []Category{CategoryAuthentication, CategorySecurityEvent}}

	auth := NewEvent(LevelInfo, CategoryAuthentication, ActionLogin, "a", "t", "success", "m")
	if !filter.Matches(auth) {
		t.Error("expected authentication event to match")
	}

	perf := NewEvent(LevelInfo, CategoryPerformance, ActionRead, "a", "t", "success", "m")
	if filter.Matches(perf) {
		t.Error("expected performance event to be rejected")
	}
}

func TestFilterMatches_Actors(t *testing.T) {
	filter := &Filter{Actors: []string{"alice", "bob"}}

	if !filter.Matches(NewEvent(LevelInfo, CategoryAPICall, ActionRead, "alice", "t", "success", "m")) {
		t.Error("expected listed actor to match")
	}
	if filter.Matches(NewEvent(LevelInfo, CategoryAPICall, ActionRead, "mallory", "t", "success", "m")) {
		t.Error("expected unlisted actor to be rejected")
	}
}

func TestFilterMatches_ExcludeActors(t *testing.T) {
	filter := &Filter{ExcludeActors: []string{"healthcheck"}}

	if filter.Matches(NewEvent(LevelInfo, CategoryAPICall, ActionRead, "healthcheck", "t", "success", "m")) {
		t.Error("expected excluded actor to be rejected")
	}
	if !filter.Matches(NewEvent(LevelInfo, CategoryAPICall, ActionRead, "alice", "t", "success", "m")) {
		t.Error("expected other actors to match")
	}
}

func TestFilterMatches_Frameworks(t *testing.T) {
	filter := &Filter{Frameworks: []Framework{FrameworkGDPR}}

	gdpr := NewEvent(LevelInfo, CategoryDataAccess, ActionRead, "a", "customer_db", "success", "m")
	if !filter.Matches(gdpr) {
		t.Error("expected GDPR-tagged event to match")
	}

	plain := NewEvent(LevelInfo, CategoryPerformance, ActionRead, "a", "t", "success", "m")
	if filter.Matches(plain) {
		t.Error("expected untagged event to be rejected")
	}
}

func TestFilterMatches_TimeRange(t *testing.T) {
	now := time.Now().UTC()
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)
	filter := &Filter{Start: &start, End: &end}

	event := NewEvent(LevelInfo, CategoryAPICall, ActionRead, "a", "t", "success", "m")

	event.Timestamp = now
	if !filter.Matches(event) {
		t.Error("expected in-range event to match")
	}

	// Boundaries are inclusive.
	event.Timestamp = start
	if !filter.Matches(event) {
		t.Error("expected event at start boundary to match")
	}
	event.Timestamp = end
	if !filter.Matches(event) {
		t.Error("expected event at end boundary to match")
	}

	event.Timestamp = start.Add(-time.Second)
	if filter.Matches(event) {
		t.Error("expected event before start to be rejected")
	}
	event.Timestamp = end.Add(time.Second)
	if filter.Matches(event) {
		t.Error("expected event after end to be rejected")
	}
}

func TestFilterMatches_Combined(t *testing.T) {
	start := time.Now().UTC().Add(-time.Hour)
	filter := &Filter{
		MinLevel:   LevelWarning,
		Categories: []Category{CategorySecurityEvent},
		Actors:     []string{"alice"},
		Start:      &start,
	}

	match := NewEvent(LevelSecurity, CategorySecurityEvent, ActionAccessDenied, "alice", "vault", "detected", "m")
	if !filter.Matches(match) {
		t.Error("expected event satisfying all criteria to match")
	}

	// Each failing criterion alone rejects the event.
	wrongLevel := NewEvent(LevelInfo, CategorySecurityEvent, ActionAccessDenied, "alice", "vault", "detected", "m")
	if filter.Matches(wrongLevel) {
		t.Error("expected level criterion to reject")
	}
	wrongCategory := NewEvent(LevelSecurity, CategoryAuthentication, ActionLogin, "alice", "vault", "success", "m")
	if filter.Matches(wrongCategory) {
		t.Error("expected category criterion to reject")
	}
	wrongActor := NewEvent(LevelSecurity, CategorySecurityEvent, ActionAccessDenied, "bob", "vault", "detected", "m")
	if filter.Matches(wrongActor) {
		t.Error("expected actor criterion to reject")
	}
}
