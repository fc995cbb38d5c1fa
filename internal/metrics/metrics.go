package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stoicmail/reflection-guard/internal/models"
)

const (
	// OutcomePassed labels validations that returned sanitized content.
	OutcomePassed = "passed"
	// OutcomeRejected labels validations blocked by a critical check.
	OutcomeRejected = "rejected"
	// OutcomeError labels validations that failed unexpectedly.
	OutcomeError = "error"

	// NotificationSent labels notifications accepted by a sink.
	NotificationSent = "sent"
	// NotificationFailed labels notifications the sink could not deliver.
	NotificationFailed = "failed"
	// NotificationThrottled labels notifications dropped by the rate limiter.
	NotificationThrottled = "throttled"
)

var (
	securityEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reflection_guard",
			Name:      "security_events_total",
			Help:      "Security events raised by the alert manager, partitioned by type and severity.",
		},
		[]string{"event_type", "severity"},
	)

	validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reflection_guard",
			Name:      "validations_total",
			Help:      "Total number of validations handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	validationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reflection_guard",
			Name:      "validation_duration_seconds",
			Help:      "Validation latency in seconds.",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	securityChecksPerformed = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reflection_guard",
			Name:      "security_checks_performed",
			Help:      "Number of rule checks run per validation.",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reflection_guard",
			Name:      "notifications_total",
			Help:      "Alert notifications, partitioned by sink and delivery outcome.",
		},
		[]string{"sink", "outcome"},
	)

	historyUpdateConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reflection_guard",
			Name:      "history_update_conflicts_total",
			Help:      "Optimistic baseline updates that lost a race and were retried.",
		},
	)
)

// Register attaches reflection-guard collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		securityEventsTotal,
		validationsTotal,
		validationDurationSeconds,
		securityChecksPerformed,
		notificationsTotal,
		historyUpdateConflictsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveValidation counts a finished validation under its outcome label.
func ObserveValidation(outcome string) {
	switch outcome {
	case OutcomePassed, OutcomeRejected:
	default:
		outcome = OutcomeError
	}
	validationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveNotification counts one delivery attempt for a notification sink.
func ObserveNotification(sink, outcome string) {
	notificationsTotal.WithLabelValues(sink, outcome).Inc()
}

// HistoryConflict counts one lost optimistic baseline update.
func HistoryConflict() {
	historyUpdateConflictsTotal.Inc()
}

// Sink publishes alert manager events and per-validation measurements to Prometheus.
type Sink struct{}

// PublishSecurityEvent counts one security event.
func (Sink) PublishSecurityEvent(eventType string, severity models.Severity) {
	securityEventsTotal.WithLabelValues(eventType, string(severity)).Inc()
}

// PublishValidation records the duration and check count of one validation.
func (Sink) PublishValidation(_ bool, duration time.Duration, checksPerformed int) {
	if duration < 0 {
		duration = 0
	}
	validationDurationSeconds.Observe(duration.Seconds())
	securityChecksPerformed.Observe(float64(checksPerformed))
}
