package models

// SecurityStatus is the caller-facing verdict of a validation.
type SecurityStatus string

const (
	StatusPassed   SecurityStatus = "PASSED"
	StatusRejected SecurityStatus = "REJECTED"
	StatusError    SecurityStatus = "ERROR"
)

// ValidationReport is returned for every validation call.
type ValidationReport struct {
	Success              bool                `json:"success"`
	SecurityStatus       SecurityStatus      `json:"security_status"`
	Reason               string              `json:"reason,omitempty"`
	Error                string              `json:"error,omitempty"`
	ContentType          string              `json:"content_type,omitempty"`
	SanitizedText        *string             `json:"sanitized_text"`
	Sanitized            bool                `json:"sanitized"`
	Modifications        []string            `json:"modifications,omitempty"`
	ValidationDurationMs float64             `json:"validation_duration_ms"`
	ChecksPerformed      int                 `json:"checks_performed"`
	CheckResults         []CheckResult       `json:"check_results"`
	Statistics           *ResponseStatistics `json:"statistics,omitempty"`
	AnomalyDetection     *AnomalyResult      `json:"anomaly_detection"`
	ContentPolicy        *PolicyResult       `json:"content_policy"`
	Issues               []string            `json:"issues,omitempty"`
	CorrelationID        string              `json:"correlation_id"`
	AlertSummary         *AlertSummary       `json:"alert_summary,omitempty"`
	AuditSummary         *AuditSummary       `json:"audit_summary,omitempty"`
	AuditSaved           bool                `json:"audit_saved"`
}
