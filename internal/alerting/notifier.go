package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stoicmail/reflection-guard/internal/metrics"
	"github.com/stoicmail/reflection-guard/internal/models"
)

// ErrThrottled is returned when a notification is dropped by the rate limiter.
var ErrThrottled = errors.New("notification throttled")

const (
	rule   = "======================================================================"
	footer = "This is an automated security alert from the reflection-guard service."
)

// Notification is the human-readable form of a security event.
type Notification struct {
	Subject string               `json:"subject"`
	Body    string               `json:"body"`
	Event   models.SecurityEvent `json:"event"`
}

// NewNotification formats event for operators.
func NewNotification(event models.SecurityEvent) Notification {
	return Notification{
		Subject: fmt.Sprintf("[%s] Security Alert: %s", event.Severity, event.EventType),
		Body:    formatBody(event),
		Event:   event,
	}
}

func formatBody(event models.SecurityEvent) string {
	lines := []string{
		"SECURITY ALERT",
		rule,
		"Event Type: " + event.EventType,
		"Severity: " + string(event.Severity),
		"Timestamp: " + event.Timestamp.Format("2006-01-02T15:04:05.000000Z07:00"),
		"Source: " + event.Source,
		"",
		"Message:",
		event.Message,
	}
	if len(event.Details) > 0 {
		details, err := json.MarshalIndent(event.Details, "", "  ")
		if err != nil {
			details = []byte(fmt.Sprintf("%v", event.Details))
		}
		lines = append(lines, "", "Details:", string(details))
	}
	lines = append(lines, "", rule, footer)
	return strings.Join(lines, "\n")
}

// Notifier delivers notifications to operators.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs at warn level.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.WarnContext(ctx, n.Subject,
		slog.String("event_type", n.Event.EventType),
		slog.String("severity", string(n.Event.Severity)),
		slog.String("message", n.Event.Message))
	return nil
}

// MultiNotifier fans a notification out to every child and joins their errors.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier skips nil children.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

func (m *MultiNotifier) Name() string {
	names := make([]string, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		names = append(names, n.Name())
	}
	return strings.Join(names, "+")
}

func (m *MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, child := range m.notifiers {
		if err := child.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", child.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// instrumented counts delivery outcomes of a leaf notifier.
type instrumented struct {
	Notifier
}

func (i instrumented) Notify(ctx context.Context, n Notification) error {
	err := i.Notifier.Notify(ctx, n)
	outcome := metrics.NotificationSent
	if err != nil {
		outcome = metrics.NotificationFailed
	}
	metrics.ObserveNotification(i.Name(), outcome)
	return err
}
