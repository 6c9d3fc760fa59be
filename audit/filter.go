// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package audit

import "time"

// Filter is a predicate configuration evaluated against events, both at
// admission time (Logger) and at query time (Store). A zero Filter
// accepts every event: an absent criterion means "no constraint".
// Filters are immutable once shared and safe for concurrent use.
type Filter struct {
	// MinLevel rejects events ranked below it. The zero value ranks
	// lowest and therefore accepts everything.
	MinLevel Level

	// Categories, when non-empty, is the allowed category set.
	Categories []Category

	// Actors, when non-empty, is the allowed actor set.
	Actors []string

	// ExcludeActors rejects events from the listed actors.
	ExcludeActors []string

	// Frameworks, when non-empty, requires the event's tags to
	// intersect this set.
	Frameworks []Framework

	// Start and End bound the event timestamp, inclusive on both ends.
	Start *time.Time
	End   *time.Time
}

// Matches reports whether the event satisfies every criterion. It is a
// pure, total function with no side effects; a nil filter matches all.
func (f *Filter) Matches(e *Event) bool {
	if f == nil {
		return true
	}

	if e.Level.Rank() < f.MinLevel.Rank() {
		return false
	}

	if len(f.Categories) > 0 && !containsCategory(f.Categories, e.Category) {
		return false
	}

	if len(f.Actors) > 0 && !containsString(f.Actors, e.Actor) {
		return false
	}
	if containsString(f.ExcludeActors, e.Actor) {
		return false
	}

	if len(f.Frameworks) > 0 {
		matched := false
		for _, fw := range f.Frameworks {
			if e.HasFramework(fw) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.Start != nil && e.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && e.Timestamp.After(*f.End) {
		return false
	}

	return true
}

func containsCategory(set []Category, c Category) bool {
	for _, v := range set {
		if v == c {
			return true
		}
	}
	return false
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
