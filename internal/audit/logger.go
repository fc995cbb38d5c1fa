package audit

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/store"
	"github.com/stoicmail/reflection-guard/internal/utils"
)

// Entry results.
const (
	ResultStarted         = "STARTED"
	ResultPass            = "PASS"
	ResultFail            = "FAIL"
	ResultModified        = "MODIFIED"
	ResultUnchanged       = "UNCHANGED"
	ResultNormal          = "NORMAL"
	ResultAnomalyDetected = "ANOMALY_DETECTED"
	ResultIncident        = "INCIDENT"
)

// correlationIDPattern admits UUIDs and similar opaque tokens. Correlation ids
// become part of audit object keys, so path separators and dots are refused.
var correlationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidCorrelationID reports whether id may name an audit trail.
func ValidCorrelationID(id string) bool {
	return correlationIDPattern.MatchString(id)
}

// maxLoggedIssues bounds the issues copied into a validation_complete entry.
const maxLoggedIssues = 10

// Logger collects the audit trail of one validation under a single
// correlation id and flushes it as one record.
type Logger struct {
	correlationID string
	requestID     string
	store         store.AuditStore
	logger        *slog.Logger
	now           func() time.Time

	mu      sync.Mutex
	entries []models.SecurityLogEntry
}

// NewLogger starts an audit trail. An empty or malformed correlationID gets a
// fresh UUID. A nil store makes Save report failure, as there is nowhere to persist.
func NewLogger(st store.AuditStore, correlationID, requestID string, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if correlationID != "" && !ValidCorrelationID(correlationID) {
		logger.Warn("discarding malformed correlation id", slog.String("rejected_correlation_id", correlationID))
		correlationID = ""
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return &Logger{
		correlationID: correlationID,
		requestID:     requestID,
		store:         st,
		logger:        logger.With(slog.String("correlation_id", correlationID)),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CorrelationID identifies this trail.
func (l *Logger) CorrelationID() string { return l.correlationID }

func (l *Logger) append(eventType string, sev models.Severity, action, result string, details map[string]any) models.SecurityLogEntry {
	entry := models.SecurityLogEntry{
		CorrelationID: l.correlationID,
		Timestamp:     l.now(),
		EventType:     eventType,
		Severity:      sev,
		Action:        action,
		Result:        result,
		Details:       Redact(details),
		RequestID:     l.requestID,
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return entry
}

// LogSecurityCheck records the outcome of one rule check.
func (l *Logger) LogSecurityCheck(checkName string, passed bool, sev models.Severity, details map[string]any) {
	result := ResultPass
	if !passed {
		result = ResultFail
	}
	l.append(models.AuditSecurityCheck, sev, checkName, result, details)
	l.logger.Log(context.Background(), utils.SeverityLevel(sev), "security check",
		slog.String("check", checkName), slog.String("result", result))
}

// LogValidationStart records the beginning of a validation.
func (l *Logger) LogValidationStart(contentType, contentHash string) {
	l.append(models.AuditValidationStart, models.SeverityInfo, "begin_validation", ResultStarted, map[string]any{
		"content_type": contentType,
		"content_hash": contentHash,
	})
	l.logger.Info("starting validation", slog.String("content_type", contentType))
}

// LogValidationComplete records the verdict of a validation.
func (l *Logger) LogValidationComplete(passed bool, duration time.Duration, checksPerformed int, issues []string) {
	sev, result := models.SeverityInfo, ResultPass
	if !passed {
		sev, result = models.SeverityWarning, ResultFail
	}
	logged := issues
	if len(logged) > maxLoggedIssues {
		logged = logged[:maxLoggedIssues]
	}
	durationMs := float64(duration) / float64(time.Millisecond)
	l.append(models.AuditValidationComplete, sev, "complete_validation", result, map[string]any{
		"duration_ms":      durationMs,
		"checks_performed": checksPerformed,
		"issues_count":     len(issues),
		"issues":           append([]string{}, logged...),
	})
	l.logger.Info("validation complete",
		slog.String("result", result),
		slog.Float64("duration_ms", durationMs),
		slog.Int("checks", checksPerformed))
}

// LogSanitization records what the sanitizer changed.
func (l *Logger) LogSanitization(modifications []string, originalLength, sanitizedLength int) {
	result := ResultUnchanged
	if len(modifications) > 0 {
		result = ResultModified
	}
	l.append(models.AuditSanitization, models.SeverityInfo, "sanitize_content", result, map[string]any{
		"modifications":    append([]string{}, modifications...),
		"original_length":  originalLength,
		"sanitized_length": sanitizedLength,
		"bytes_removed":    originalLength - sanitizedLength,
	})
	if len(modifications) > 0 {
		l.logger.Info("content sanitized", slog.Any("modifications", modifications))
	}
}

// LogAnomalyDetection records the anomaly verdict.
func (l *Logger) LogAnomalyDetection(isAnomaly bool, score float64, anomalies []string) {
	sev, result := models.SeverityInfo, ResultNormal
	if isAnomaly {
		sev, result = models.SeverityWarning, ResultAnomalyDetected
	}
	l.append(models.AuditAnomalyDetection, sev, "detect_anomalies", result, map[string]any{
		"anomaly_score": score,
		"anomalies":     append([]string{}, anomalies...),
	})
	if isAnomaly {
		l.logger.Warn("anomaly detected", slog.Float64("score", score), slog.Int("anomalies", len(anomalies)))
	}
}

// LogSecurityIncident records a blocking finding or an unexpected failure.
func (l *Logger) LogSecurityIncident(incidentType string, sev models.Severity, description string, evidence map[string]any) {
	l.append(models.AuditSecurityIncident, sev, incidentType, ResultIncident, map[string]any{
		"description": description,
		"evidence":    evidence,
	})
	l.logger.Error("security incident",
		slog.String("incident", incidentType),
		slog.String("severity", string(sev)),
		slog.String("description", description))
}

// Entries returns a copy of the trail so far.
func (l *Logger) Entries() []models.SecurityLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.SecurityLogEntry(nil), l.entries...)
}

// Save persists the trail as one record. It reports success without writing
// when there is nothing to save, and returns false instead of an error when
// the store fails so the caller can still return its verdict.
func (l *Logger) Save(ctx context.Context) bool {
	entries := l.Entries()
	if len(entries) == 0 {
		l.logger.Debug("no audit entries to save")
		return true
	}
	if l.store == nil {
		l.logger.Debug("audit store not configured, skipping save")
		return false
	}

	record := models.AuditRecord{
		CorrelationID: l.correlationID,
		Timestamp:     l.now(),
		EntryCount:    len(entries),
		Entries:       entries,
	}
	if err := l.store.AppendAuditLog(ctx, record); err != nil {
		l.logger.Error("failed to save audit log", slog.Any("error", err))
		return false
	}
	l.logger.Info("saved audit log", slog.String("key", store.AuditKey(record)), slog.Int("entries", len(entries)))
	return true
}

// Summary counts the trail by event type, severity and result.
func (l *Logger) Summary() models.AuditSummary {
	entries := l.Entries()
	s := models.AuditSummary{
		CorrelationID: l.correlationID,
		TotalEvents:   len(entries),
		ByType:        make(map[string]int),
		BySeverity:    make(map[string]int),
		ByResult:      make(map[string]int),
	}
	for _, e := range entries {
		s.ByType[e.EventType]++
		s.BySeverity[string(e.Severity)]++
		s.ByResult[e.Result]++
	}
	return s
}
