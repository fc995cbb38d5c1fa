package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stoicmail/reflection-guard/internal/config"
	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/utils"
)

// summaryEvents is how many recent events Summary returns.
const summaryEvents = 10

// MetricsSink receives counts for every raised event and one measurement per validation.
type MetricsSink interface {
	PublishSecurityEvent(eventType string, severity models.Severity)
	PublishValidation(passed bool, duration time.Duration, checksPerformed int)
}

// Manager raises security events for a single validation. It keeps the events
// in memory for the caller-facing summary, counts them in the metrics sink and
// forwards the ones the routing rules select to the notifier.
type Manager struct {
	cfg      config.AlertingConfig
	metrics  MetricsSink
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	history []models.SecurityEvent
}

// NewManager builds a Manager. metrics and notifier may be nil.
func NewManager(cfg config.AlertingConfig, metrics MetricsSink, notifier Notifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		metrics:  metrics,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Alert records and routes one security event. It is a no-op when alerting is disabled.
func (m *Manager) Alert(ctx context.Context, eventType string, severity models.Severity, message string, details map[string]any) {
	if !m.cfg.Enabled {
		m.logger.Info("alerting disabled, suppressing alert", slog.String("event_type", eventType))
		return
	}
	if details == nil {
		details = map[string]any{}
	}

	event := models.SecurityEvent{
		EventType: eventType,
		Severity:  severity,
		Message:   message,
		Details:   details,
		Timestamp: m.now(),
		Source:    models.DefaultEventSource,
	}

	m.mu.Lock()
	m.history = append(m.history, event)
	m.mu.Unlock()

	m.logger.Log(ctx, utils.SeverityLevel(severity), "security event",
		slog.String("event_type", eventType),
		slog.String("severity", string(severity)),
		slog.String("message", message))

	if m.metrics != nil {
		m.metrics.PublishSecurityEvent(eventType, severity)
	}

	if m.notifier == nil || !m.shouldNotify(eventType, severity) {
		return
	}
	if err := m.notifier.Notify(ctx, NewNotification(event)); err != nil {
		if errors.Is(err, ErrThrottled) {
			m.logger.Warn("notification throttled", slog.String("event_type", eventType))
			return
		}
		m.logger.Error("failed to send notification",
			slog.String("event_type", eventType),
			slog.Any("error", err))
	}
}

func (m *Manager) shouldNotify(eventType string, severity models.Severity) bool {
	switch eventType {
	case models.EventBlockedContent:
		return m.cfg.AlertOnBlockedContent
	case models.EventSuspiciousContent:
		return m.cfg.AlertOnSuspiciousContent
	case models.EventValidationFailure:
		return m.cfg.AlertOnValidationFailure
	case models.EventAnomalyDetected:
		return m.cfg.AlertOnAnomaly
	}
	return severity == models.SeverityWarning || severity == models.SeverityCritical
}

// AlertBlockedContent raises a CRITICAL event for content that was rejected.
func (m *Manager) AlertBlockedContent(ctx context.Context, checkName, reason string, blockedPatterns []string) {
	m.Alert(ctx, models.EventBlockedContent, models.SeverityCritical,
		fmt.Sprintf("Blocked malicious content in %s: %s", checkName, reason),
		map[string]any{
			"check_name":       checkName,
			"reason":           reason,
			"blocked_patterns": nonNil(blockedPatterns),
			"action_taken":     "Content rejected",
		})
}

// AlertSuspiciousContent raises a WARNING event for content that was allowed but flagged.
func (m *Manager) AlertSuspiciousContent(ctx context.Context, checkName, reason string, patterns []string) {
	m.Alert(ctx, models.EventSuspiciousContent, models.SeverityWarning,
		fmt.Sprintf("Suspicious content detected in %s: %s", checkName, reason),
		map[string]any{
			"check_name":   checkName,
			"reason":       reason,
			"patterns":     nonNil(patterns),
			"action_taken": "Content allowed with warning",
		})
}

// AlertValidationFailure raises a WARNING event carrying the failing results.
func (m *Manager) AlertValidationFailure(ctx context.Context, reason string, results map[string]any) {
	m.Alert(ctx, models.EventValidationFailure, models.SeverityWarning,
		"Content validation failed: "+reason, results)
}

// AlertAnomalyDetected raises a WARNING event for a statistical outlier.
func (m *Manager) AlertAnomalyDetected(ctx context.Context, anomalies []string, score float64) {
	m.Alert(ctx, models.EventAnomalyDetected, models.SeverityWarning,
		"Statistical anomaly detected in API response",
		map[string]any{
			"anomalies":     nonNil(anomalies),
			"anomaly_score": score,
			"action_taken":  "Content allowed but flagged",
		})
}

// PublishValidationMetrics forwards the per-validation measurement to the metrics sink.
func (m *Manager) PublishValidationMetrics(passed bool, duration time.Duration, checksPerformed int) {
	if m.metrics == nil {
		return
	}
	m.metrics.PublishValidation(passed, duration, checksPerformed)
}

// Events returns every event raised so far.
func (m *Manager) Events() []models.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SecurityEvent(nil), m.history...)
}

// Summary counts the raised events by severity and type and includes the most recent ones.
func (m *Manager) Summary() models.AlertSummary {
	events := m.Events()
	s := models.AlertSummary{
		TotalAlerts: len(events),
		BySeverity:  make(map[string]int),
		ByType:      make(map[string]int),
	}
	if len(events) == 0 {
		return s
	}
	for _, e := range events {
		s.BySeverity[string(e.Severity)]++
		s.ByType[e.EventType]++
	}
	if len(events) > summaryEvents {
		events = events[len(events)-summaryEvents:]
	}
	s.Events = events
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
