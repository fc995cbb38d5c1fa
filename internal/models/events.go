package models

import "time"

// DefaultEventSource labels events raised by the validation pipeline.
const DefaultEventSource = "api_output_validator"

// Known security event types.
const (
	EventBlockedContent    = "blocked_content"
	EventSuspiciousContent = "suspicious_content"
	EventValidationFailure = "validation_failure"
	EventAnomalyDetected   = "anomaly_detected"
)

// SecurityEvent is raised by the alert manager for one finding.
type SecurityEvent struct {
	EventType string         `json:"event_type"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
}

// AlertSummary aggregates the events raised during one validation.
type AlertSummary struct {
	TotalAlerts int             `json:"total_alerts"`
	BySeverity  map[string]int  `json:"by_severity"`
	ByType      map[string]int  `json:"by_type"`
	Events      []SecurityEvent `json:"events,omitempty"`
}

// Audit entry event types.
const (
	AuditValidationStart    = "validation_start"
	AuditSecurityCheck      = "security_check"
	AuditSanitization       = "sanitization"
	AuditAnomalyDetection   = "anomaly_detection"
	AuditValidationComplete = "validation_complete"
	AuditSecurityIncident   = "security_incident"
)

// SecurityLogEntry is one append-only line of the audit trail.
type SecurityLogEntry struct {
	CorrelationID string         `json:"correlation_id"`
	Timestamp     time.Time      `json:"timestamp"`
	EventType     string         `json:"event_type"`
	Severity      Severity       `json:"severity"`
	Action        string         `json:"action"`
	Result        string         `json:"result"`
	Details       map[string]any `json:"details"`
	RequestID     string         `json:"request_id,omitempty"`
}

// AuditRecord is the persisted form of one invocation's audit trail.
type AuditRecord struct {
	Key           string             `json:"-"`
	CorrelationID string             `json:"correlation_id"`
	Timestamp     time.Time          `json:"timestamp"`
	EntryCount    int                `json:"entry_count"`
	Entries       []SecurityLogEntry `json:"entries"`
}

// AuditSummary counts the audit entries of one invocation.
type AuditSummary struct {
	CorrelationID string         `json:"correlation_id"`
	TotalEvents   int            `json:"total_events"`
	ByType        map[string]int `json:"by_type"`
	BySeverity    map[string]int `json:"by_severity"`
	ByResult      map[string]int `json:"by_result"`
}
