// Auditrail - Compliance Audit Event Logging
// Copyright 2026 Tessara Systems
// SPDX-License-Identifier: Apache-2.0
// https://github.com/tessara/auditrail

package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Level indicates the severity of an audit event. Levels form a total
// order: debug < info < warning < error < critical, with security and
// compliance sharing the top rank.
type Level string

const (
	LevelDebug      Level = "debug"
	LevelInfo       Level = "info"
	LevelWarning    Level = "warning"
	LevelError      Level = "error"
	LevelCritical   Level = "critical"
	LevelSecurity   Level = "security"
	LevelCompliance Level = "compliance"
)

// levelRanks defines the severity order used by filters and stores.
// Security and compliance deliberately share the top rank.
var levelRanks = map[Level]int{
	LevelDebug:      0,
	LevelInfo:       1,
	LevelWarning:    2,
	LevelError:      3,
	LevelCritical:   4,
	LevelSecurity:   5,
	LevelCompliance: 5,
}

// Rank returns the severity rank of the level. Unknown levels rank lowest.
func (l Level) Rank() int {
	return levelRanks[l]
}

// Levels lists all known levels in ascending rank order.
func Levels() []Level {
	return []Level{
		LevelDebug, LevelInfo, LevelWarning, LevelError,
		LevelCritical, LevelSecurity, LevelCompliance,
	}
}

// Category classifies the area of the system an audit event concerns.
type Category string

const (
	CategoryAuthentication      Category = "authentication"
	CategoryAuthorization       Category = "authorization"
	CategoryDataAccess          Category = "data_access"
	CategoryDataModification    Category = "data_modification"
	CategorySystemConfiguration Category = "system_configuration"
	CategoryUserManagement      Category = "user_management"
	CategorySecurityEvent       Category = "security_event"
	CategoryComplianceEvent     Category = "compliance_event"
	CategoryBusinessProcess     Category = "business_process"
	CategoryNetworkActivity     Category = "network_activity"
	CategoryFileSystem          Category = "file_system"
	CategoryDatabase            Category = "database"
	CategoryAPICall             Category = "api_call"
	CategoryPerformance         Category = "performance"
	CategoryErrorEvent          Category = "error_event"
)

// Categories lists all known categories.
func Categories() []Category {
	return []Category{
		CategoryAuthentication, CategoryAuthorization, CategoryDataAccess,
		CategoryDataModification, CategorySystemConfiguration,
		CategoryUserManagement, CategorySecurityEvent, CategoryComplianceEvent,
		CategoryBusinessProcess, CategoryNetworkActivity, CategoryFileSystem,
		CategoryDatabase, CategoryAPICall, CategoryPerformance,
		CategoryErrorEvent,
	}
}

// Action identifies what was done to the target.
type Action string

const (
	ActionCreate               Action = "create"
	ActionRead                 Action = "read"
	ActionUpdate               Action = "update"
	ActionDelete               Action = "delete"
	ActionLogin                Action = "login"
	ActionLogout               Action = "logout"
	ActionAccessGranted        Action = "access_granted"
	ActionAccessDenied         Action = "access_denied"
	ActionPermissionChanged    Action = "permission_changed"
	ActionConfigurationChanged Action = "configuration_changed"
	ActionPasswordChanged      Action = "password_changed"
	ActionAccountLocked        Action = "account_locked"
	ActionAccountUnlocked      Action = "account_unlocked"
	ActionBackupCreated        Action = "backup_created"
	ActionBackupRestored       Action = "backup_restored"
	ActionSystemStartup        Action = "system_startup"
	ActionSystemShutdown       Action = "system_shutdown"
	ActionExport               Action = "export"
	ActionImport               Action = "import"
	ActionApprove              Action = "approve"
	ActionReject               Action = "reject"
)

// Framework identifies a compliance framework that requires an audit trail.
type Framework string

const (
	FrameworkSOX      Framework = "sox"      // Sarbanes-Oxley Act
	FrameworkGDPR     Framework = "gdpr"     // General Data Protection Regulation
	FrameworkHIPAA    Framework = "hipaa"    // Health Insurance Portability and Accountability Act
	FrameworkPCIDSS   Framework = "pci_dss"  // Payment Card Industry Data Security Standard
	FrameworkISO27001 Framework = "iso27001" // ISO/IEC 27001
	FrameworkSOC2     Framework = "soc2"     // Service Organization Control 2
	FrameworkFISMA    Framework = "fisma"    // Federal Information Security Management Act
	FrameworkNIST     Framework = "nist"     // NIST Cybersecurity Framework
	FrameworkCOBIT    Framework = "cobit"    // Control Objectives for Information and Related Technology
)

// Frameworks lists all known compliance frameworks.
func Frameworks() []Framework {
	return []Framework{
		FrameworkSOX, FrameworkGDPR, FrameworkHIPAA, FrameworkPCIDSS,
		FrameworkISO27001, FrameworkSOC2, FrameworkFISMA, FrameworkNIST,
		FrameworkCOBIT,
	}
}

// Event is one immutable audit occurrence: an actor performing an action
// on a target with an outcome. Events are constructed once by the Logger
// and never mutated afterwards; stores treat them as read-only values.
type Event struct {
	// EventID uniquely identifies this event. Assigned at construction
	// if blank and immutable thereafter.
	EventID string `json:"event_id"`

	// Timestamp is the UTC creation time.
	Timestamp time.Time `json:"timestamp"`

	// Level is the event severity.
	Level Level `json:"level"`

	// Category classifies the event.
	Category Category `json:"category"`

	// Action describes what was done.
	Action Action `json:"action"`

	// Actor is the user or system performing the action.
	Actor string `json:"actor"`

	// Target is the resource being acted upon.
	Target string `json:"target"`

	// Result is the free-text outcome ("success", "failed", "detected", ...).
	Result string `json:"result"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Details carries event-specific key/value context. Never nil.
	Details map[string]any `json:"details"`

	// SourceIP is the originating client address, when known.
	SourceIP string `json:"source_ip,omitempty"`

	// UserAgent is the originating client user agent, when known.
	UserAgent string `json:"user_agent,omitempty"`

	// SessionID correlates the event with an authenticated session.
	SessionID string `json:"session_id,omitempty"`

	// CorrelationID links related events.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Frameworks is the set of compliance frameworks the event is tagged
	// for, kept sorted and deduplicated. Derived automatically at
	// construction; re-derivation only ever adds tags.
	Frameworks []Framework `json:"compliance_frameworks"`

	// RiskScore is a 0-100 risk assessment.
	RiskScore int `json:"risk_score"`

	// SensitiveData marks events touching personal or otherwise
	// sensitive data.
	SensitiveData bool `json:"sensitive_data"`
}

// NewEvent builds an event, assigning an ID and UTC timestamp when
// absent, normalizing Details to a non-nil map, and deriving compliance
// framework tags from the other fields.
func NewEvent(level Level, category Category, action Action, actor, target, result, message string) *Event {
	e := &Event{
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Level:     level,
		Category:  category,
		Action:    action,
		Actor:     actor,
		Target:    target,
		Result:    result,
		Message:   message,
		Details:   map[string]any{},
	}
	e.deriveFrameworks()
	return e
}

// deriveFrameworks applies the compliance tagging rule table. The
// derivation is a pure function of the event's other fields and is a
// union: tags already present are kept, matching rules only add.
//
// Rules:
//   - data_access or data_modification  -> GDPR
//   - system_configuration, or a target containing "financial" -> SOX
//   - security_event -> ISO27001, SOC2, NIST
//   - authentication -> SOC2, ISO27001, PCI_DSS
func (e *Event) deriveFrameworks() {
	tags := make(map[Framework]struct{}, len(e.Frameworks)+4)
	for _, f := range e.Frameworks {
		tags[f] = struct{}{}
	}

	if e.Category == CategoryDataAccess || e.Category == CategoryDataModification {
		tags[FrameworkGDPR] = struct{}{}
	}
	if e.Category == CategorySystemConfiguration || strings.Contains(strings.ToLower(e.Target), "financial") {
		tags[FrameworkSOX] = struct{}{}
	}
	if e.Category == CategorySecurityEvent {
		tags[FrameworkISO27001] = struct{}{}
		tags[FrameworkSOC2] = struct{}{}
		tags[FrameworkNIST] = struct{}{}
	}
	if e.Category == CategoryAuthentication {
		tags[FrameworkSOC2] = struct{}{}
		tags[FrameworkISO27001] = struct{}{}
		tags[FrameworkPCIDSS] = struct{}{}
	}

	e.Frameworks = e.Frameworks[:0]
	for f := range tags {
		e.Frameworks = append(e.Frameworks, f)
	}
	sort.Slice(e.Frameworks, func(i, j int) bool { return e.Frameworks[i] < e.Frameworks[j] })
}

// HasFramework reports whether the event is tagged for the framework.
func (e *Event) HasFramework(f Framework) bool {
	for _, tag := range e.Frameworks {
		if tag == f {
			return true
		}
	}
	return false
}

// eventJSON pins the canonical wire form: timestamps as RFC 3339 UTC,
// enums as their string tags, frameworks as a sorted array.
type eventJSON struct {
	EventID       string         `json:"event_id"`
	Timestamp     string         `json:"timestamp"`
	Level         Level          `json:"level"`
	Category      Category       `json:"category"`
	Action        Action         `json:"action"`
	Actor         string         `json:"actor"`
	Target        string         `json:"target"`
	Result        string         `json:"result"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details"`
	SourceIP      string         `json:"source_ip,omitempty"`
	UserAgent     string         `json:"user_agent,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Frameworks    []Framework    `json:"compliance_frameworks"`
	RiskScore     int            `json:"risk_score"`
	SensitiveData bool           `json:"sensitive_data"`
}

// MarshalJSON serializes the event in its canonical form. The same
// event always produces the same bytes, which is what the integrity
// checksum is computed over.
func (e *Event) MarshalJSON() ([]byte, error) {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	frameworks := e.Frameworks
	if frameworks == nil {
		frameworks = []Framework{}
	}
	return json.Marshal(eventJSON{
		EventID:       e.EventID,
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
		Level:         e.Level,
		Category:      e.Category,
		Action:        e.Action,
		Actor:         e.Actor,
		Target:        e.Target,
		Result:        e.Result,
		Message:       e.Message,
		Details:       details,
		SourceIP:      e.SourceIP,
		UserAgent:     e.UserAgent,
		SessionID:     e.SessionID,
		CorrelationID: e.CorrelationID,
		Frameworks:    frameworks,
		RiskScore:     e.RiskScore,
		SensitiveData: e.SensitiveData,
	})
}

// UnmarshalJSON restores an event from its canonical form.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		return err
	}

	e.EventID = raw.EventID
	e.Timestamp = ts.UTC()
	e.Level = raw.Level
	e.Category = raw.Category
	e.Action = raw.Action
	e.Actor = raw.Actor
	e.Target = raw.Target
	e.Result = raw.Result
	e.Message = raw.Message
	e.Details = raw.Details
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.SourceIP = raw.SourceIP
	e.UserAgent = raw.UserAgent
	e.SessionID = raw.SessionID
	e.CorrelationID = raw.CorrelationID
	e.Frameworks = raw.Frameworks
	if e.Frameworks == nil {
		e.Frameworks = []Framework{}
	}
	sort.Slice(e.Frameworks, func(i, j int) bool { return e.Frameworks[i] < e.Frameworks[j] })
	e.RiskScore = raw.RiskScore
	e.SensitiveData = raw.SensitiveData
	return nil
}

// Checksum returns the hex SHA-256 of the event's canonical
// serialization. Used to detect tampering in storage, not for lookup.
func (e *Event) Checksum() (string, error) {
	data, err := e.MarshalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
