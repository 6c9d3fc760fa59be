// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Reporter produces exports and framework-specific compliance reports
// from a logger's store.
type Reporter struct {
	logger *Logger
}

// NewReporter creates a reporter over the given logger.
func NewReporter(logger *Logger) *Reporter {
	return &Reporter{logger: logger}
}

// csvColumns is the fixed column set for CSV exports.
var csvColumns = []string{
	"event_id", "timestamp", "level", "category", "action", "actor",
	"target", "result", "message", "source_ip", "session_id",
	"correlation_id", "risk_score",
}

// ExportCSV exports matching events as CSV with a fixed column set,
// newest first.
func (r *Reporter) ExportCSV(ctx context.Context, filter *Filter, limit int) ([]byte, error) {
	events, err := r.logger.Events(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("retrieve events for export: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvColumns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i := range events {
		e := &events[i]
		record := []string{
			e.EventID,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			string(e.Level),
			string(e.Category),
			string(e.Action),
			e.Actor,
			e.Target,
			e.Result,
			e.Message,
			e.SourceIP,
			e.SessionID,
			e.CorrelationID,
			strconv.Itoa(e.RiskScore),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// jsonExport is the envelope for JSON exports.
type jsonExport struct {
	ExportTimestamp time.Time `json:"export_timestamp"`
	EventCount      int       `json:"event_count"`
	Events          []Event   `json:"events"`
}

// ExportJSON exports matching events as a JSON document with an export
// envelope, newest first.
func (r *Reporter) ExportJSON(ctx context.Context, filter *Filter, limit int) ([]byte, error) {
	events, err := r.logger.Events(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("retrieve events for export: %w", err)
	}
	if events == nil {
		events = []Event{}
	}

	return json.MarshalIndent(jsonExport{
		ExportTimestamp: time.Now().UTC(),
		EventCount:      len(events),
		Events:          events,
	}, "", "  ")
}

// ExportCEF exports matching events in Common Event Format for SIEM
// ingestion, newest first.
func (r *Reporter) ExportCEF(ctx context.Context, filter *Filter, limit int) ([]byte, error) {
	events, err := r.logger.Events(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("retrieve events for export: %w", err)
	}
	return NewCEFExporter().Export(events)
}

// CEFExporter exports events in Common Event Format (for SIEM integration).
type CEFExporter struct {
	DeviceVendor  string
	DeviceProduct string
	DeviceVersion string
}

// NewCEFExporter creates a new CEF exporter with defaults.
func NewCEFExporter() *CEFExporter {
	return &CEFExporter{
		DeviceVendor:  "Tessara",
		DeviceProduct: "Auditrail",
		DeviceVersion: "1.0",
	}
}

// Export exports events to CEF format.
// CEF Format: CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func (e *CEFExporter) Export(events []Event) ([]byte, error) {
	var lines []string

	for idx := range events {
		event := &events[idx]
		severity := e.cefSeverity(event.Level)
		extension := e.buildExtension(event)

		line := fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
			e.escape(e.DeviceVendor),
			e.escape(e.DeviceProduct),
			e.escape(e.DeviceVersion),
			e.escape(string(event.Category)),
			e.escape(event.Message),
			severity,
			extension,
		)

		lines = append(lines, line)
	}

	return []byte(strings.Join(lines, "\n")), nil
}

// cefSeverity maps event levels to the CEF severity scale (0-10).
func (e *CEFExporter) cefSeverity(level Level) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 3
	case LevelWarning:
		return 5
	case LevelError:
		return 7
	case LevelCritical:
		return 9
	case LevelSecurity, LevelCompliance:
		return 10
	default:
		return 0
	}
}

// buildExtension builds the CEF extension string.
func (e *CEFExporter) buildExtension(event *Event) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("rt=%d", event.Timestamp.UnixMilli()))
	parts = append(parts, fmt.Sprintf("externalId=%s", e.escape(event.EventID)))
	parts = append(parts, fmt.Sprintf("suser=%s", e.escape(event.Actor)))

	if event.SourceIP != "" {
		parts = append(parts, fmt.Sprintf("src=%s", e.escape(event.SourceIP)))
	}
	if event.Target != "" {
		parts = append(parts, fmt.Sprintf("duser=%s", e.escape(event.Target)))
	}

	parts = append(parts, fmt.Sprintf("act=%s", e.escape(string(event.Action))))
	parts = append(parts, fmt.Sprintf("outcome=%s", e.escape(event.Result)))

	if len(event.Frameworks) > 0 {
		tags := make([]string, len(event.Frameworks))
		for i, fw := range event.Frameworks {
			tags[i] = string(fw)
		}
		parts = append(parts, "cs1Label=frameworks")
		parts = append(parts, fmt.Sprintf("cs1=%s", e.escape(strings.Join(tags, ","))))
	}

	return strings.Join(parts, " ")
}

// escape escapes special characters for CEF format.
func (e *CEFExporter) escape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}

// ComplianceReport summarizes events tagged for one framework over a
// period, with framework-specific sections where the framework's focus
// areas are known.
type ComplianceReport struct {
	Framework    Framework      `json:"framework"`
	Period       ReportPeriod   `json:"period"`
	TotalEvents  int            `json:"total_events"`
	Sections     map[string]any `json:"sections"`
	SampleEvents []Event        `json:"sample_events"`
}

const complianceSampleSize = 100

// ComplianceReport builds the compliance report for one framework
// covering the last daysBack days.
func (r *Reporter) ComplianceReport(ctx context.Context, framework Framework, daysBack int) (*ComplianceReport, error) {
	events, err := r.logger.ComplianceEvents(ctx, framework, daysBack)
	if err != nil {
		return nil, fmt.Errorf("retrieve compliance events: %w", err)
	}

	end := time.Now().UTC()
	report := &ComplianceReport{
		Framework: framework,
		Period: ReportPeriod{
			Start: end.AddDate(0, 0, -daysBack),
			End:   end,
			Days:  daysBack,
		},
		TotalEvents: len(events),
	}

	switch framework {
	case FrameworkSOX:
		report.Sections = soxSections(events)
	case FrameworkGDPR:
		report.Sections = gdprSections(events)
	case FrameworkPCIDSS:
		report.Sections = pciSections(events)
	default:
		report.Sections = genericSections(events)
	}

	sample := events
	if len(sample) > complianceSampleSize {
		sample = sample[:complianceSampleSize]
	}
	report.SampleEvents = sample

	return report, nil
}

// soxSections covers the SOX focus areas: financial records, change
// control and privileged access.
func soxSections(events []Event) map[string]any {
	var financial, configChanges, dataAccess, privileged int

	for i := range events {
		e := &events[i]
		if strings.Contains(strings.ToLower(e.Target), "financial") {
			financial++
		}
		if e.Category == CategorySystemConfiguration {
			configChanges++
		}
		if e.Category == CategoryDataAccess || e.Category == CategoryDataModification {
			dataAccess++
		}
		if e.Actor == "admin" || e.Actor == "root" {
			privileged++
		}
	}

	return map[string]any{
		"financial_events":       financial,
		"configuration_changes":  configChanges,
		"data_access_events":     dataAccess,
		"privileged_user_events": privileged,
	}
}

// gdprSections covers the GDPR focus areas: personal data handling,
// consent, portability and erasure.
func gdprSections(events []Event) map[string]any {
	var personalData, consent, exports, deletions, accessRequests int

	for i := range events {
		e := &events[i]
		lowerMessage := strings.ToLower(e.Message)

		if e.SensitiveData {
			personalData++
		}
		if strings.Contains(lowerMessage, "consent") {
			consent++
		}
		if e.Action == ActionExport {
			exports++
		}
		if e.Action == ActionDelete && e.SensitiveData {
			deletions++
		}
		if strings.Contains(lowerMessage, "access_request") || strings.Contains(lowerMessage, "access request") {
			accessRequests++
		}
	}

	return map[string]any{
		"personal_data_events": personalData,
		"consent_events":       consent,
		"data_exports":         exports,
		"sensitive_deletions":  deletions,
		"access_requests":      accessRequests,
	}
}

// pciSections covers the PCI DSS focus areas: cardholder data targets
// and access control.
func pciSections(events []Event) map[string]any {
	var payment, auth, authz, cardholderAccess int

	for i := range events {
		e := &events[i]
		lowerTarget := strings.ToLower(e.Target)
		paymentTarget := strings.Contains(lowerTarget, "payment") ||
			strings.Contains(lowerTarget, "card") ||
			strings.Contains(lowerTarget, "transaction")

		if paymentTarget {
			payment++
			if e.Action == ActionRead || e.Action == ActionUpdate {
				cardholderAccess++
			}
		}
		if e.Category == CategoryAuthentication {
			auth++
		}
		if e.Category == CategoryAuthorization {
			authz++
		}
	}

	return map[string]any{
		"payment_target_events":  payment,
		"authentication_events":  auth,
		"authorization_events":   authz,
		"cardholder_data_access": cardholderAccess,
	}
}

// genericSections gives per-category and per-level counts for
// frameworks without a dedicated breakdown.
func genericSections(events []Event) map[string]any {
	byCategory := make(map[string]int)
	byLevel := make(map[string]int)

	for i := range events {
		byCategory[string(events[i].Category)]++
		byLevel[string(events[i].Level)]++
	}

	return map[string]any{
		"events_by_category": byCategory,
		"events_by_level":    byLevel,
	}
}
