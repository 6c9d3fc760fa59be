// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package audit

import (
	"sort"
	"time"
)

// Report is an aggregated view of audit activity over a period.
type Report struct {
	Period           ReportPeriod                 `json:"period"`
	Summary          ReportSummary                `json:"summary"`
	EventsByLevel    map[string]int               `json:"events_by_level"`
	EventsByCategory map[string]int               `json:"events_by_category"`
	EventsByDay      map[string]int               `json:"events_by_day"`
	TopActors        []ActorActivity              `json:"top_actors"`
	Compliance       map[string]FrameworkActivity `json:"compliance_summary"`
	FailedLogins     FailedLoginAnalysis          `json:"failed_login_analysis"`
	RecentSecurity   []Event                      `json:"recent_security_events"`
}

// ReportPeriod describes the time window the report covers.
type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

// ReportSummary carries the headline numbers.
type ReportSummary struct {
	TotalEvents    int `json:"total_events"`
	SecurityEvents int `json:"security_events"`
	FailedLogins   int `json:"failed_logins"`
	UniqueActors   int `json:"unique_actors"`
}

// ActorActivity is one actor's event count.
type ActorActivity struct {
	Actor  string `json:"actor"`
	Events int    `json:"events"`
}

// FrameworkActivity summarizes events tagged for one framework.
type FrameworkActivity struct {
	EventCount int      `json:"event_count"`
	Categories []string `json:"categories"`
}

// FailedLoginAnalysis summarizes authentication failures.
type FailedLoginAnalysis struct {
	Total     int             `json:"total"`
	TopActors []ActorActivity `json:"top_actors"`
}

const (
	reportTopActors       = 10
	reportTopFailedActors = 5
	reportSecuritySample  = 10
	reportMaxEvents       = 10000
	reportDayFormat       = "2006-01-02"
)

// buildReport aggregates events into a Report. It is a pure function of
// its inputs; events are expected newest first as stores return them.
func buildReport(events []Event, start, end time.Time, days int) *Report {
	report := &Report{
		Period: ReportPeriod{
			Start: start,
			End:   end,
			Days:  days,
		},
		EventsByLevel:    make(map[string]int),
		EventsByCategory: make(map[string]int),
		EventsByDay:      make(map[string]int),
		Compliance:       make(map[string]FrameworkActivity),
	}

	actorCounts := make(map[string]int)
	failedByActor := make(map[string]int)
	frameworkCategories := make(map[Framework]map[Category]struct{})

	for i := range events {
		event := &events[i]

		report.Summary.TotalEvents++
		report.EventsByLevel[string(event.Level)]++
		report.EventsByCategory[string(event.Category)]++
		report.EventsByDay[event.Timestamp.UTC().Format(reportDayFormat)]++
		actorCounts[event.Actor]++

		if event.Category == CategorySecurityEvent {
			report.Summary.SecurityEvents++
			if len(report.RecentSecurity) < reportSecuritySample {
				report.RecentSecurity = append(report.RecentSecurity, *event)
			}
		}

		if event.Category == CategoryAuthentication && event.Result != "success" {
			report.Summary.FailedLogins++
			failedByActor[event.Actor]++
		}

		for _, fw := range event.Frameworks {
			activity := report.Compliance[string(fw)]
			activity.EventCount++
			report.Compliance[string(fw)] = activity

			if frameworkCategories[fw] == nil {
				frameworkCategories[fw] = make(map[Category]struct{})
			}
			frameworkCategories[fw][event.Category] = struct{}{}
		}
	}

	report.Summary.UniqueActors = len(actorCounts)
	report.TopActors = topActors(actorCounts, reportTopActors)
	report.FailedLogins = FailedLoginAnalysis{
		Total:     report.Summary.FailedLogins,
		TopActors: topActors(failedByActor, reportTopFailedActors),
	}

	for fw, categories := range frameworkCategories {
		names := make([]string, 0, len(categories))
		for c := range categories {
			names = append(names, string(c))
		}
		sort.Strings(names)

		activity := report.Compliance[string(fw)]
		activity.Categories = names
		report.Compliance[string(fw)] = activity
	}

	return report
}

// topActors returns the n busiest actors, ties broken by name for
// deterministic output.
func topActors(counts map[string]int, n int) []ActorActivity {
	actors := make([]ActorActivity, 0, len(counts))
	for actor, events := range counts {
		actors = append(actors, ActorActivity{Actor: actor, Events: events})
	}

	sort.Slice(actors, func(i, j int) bool {
		if actors[i].Events != actors[j].Events {
			return actors[i].Events > actors[j].Events
		}
		return actors[i].Actor < actors[j].Actor
	})

	if len(actors) > n {
		actors = actors[:n]
	}
	return actors
}
