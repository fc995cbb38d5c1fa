package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/stoicmail/reflection-guard/internal/models"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should tolerate duplicates: %v", err)
	}
}

func TestObserveValidationNormalisesOutcome(t *testing.T) {
	before := testutil.ToFloat64(validationsTotal.WithLabelValues(OutcomeError))
	beforePassed := testutil.ToFloat64(validationsTotal.WithLabelValues(OutcomePassed))

	ObserveValidation("weird")
	ObserveValidation(OutcomePassed)

	if got := testutil.ToFloat64(validationsTotal.WithLabelValues(OutcomeError)) - before; got != 1 {
		t.Fatalf("expected unknown outcome counted as error, delta %v", got)
	}
	if got := testutil.ToFloat64(validationsTotal.WithLabelValues(OutcomePassed)) - beforePassed; got != 1 {
		t.Fatalf("expected passed delta 1, got %v", got)
	}
}

func TestSinkPublishesSecurityEvents(t *testing.T) {
	counter := securityEventsTotal.WithLabelValues(models.EventBlockedContent, string(models.SeverityCritical))
	before := testutil.ToFloat64(counter)

	Sink{}.PublishSecurityEvent(models.EventBlockedContent, models.SeverityCritical)
	Sink{}.PublishSecurityEvent(models.EventBlockedContent, models.SeverityCritical)

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Fatalf("expected 2 events, got %v", got)
	}
}

func TestSinkPublishesValidationMeasurements(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	Sink{}.PublishValidation(true, 3*time.Millisecond, 4)
	Sink{}.PublishValidation(false, -time.Second, 4)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]uint64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if h := m.GetHistogram(); h != nil {
				counts[mf.GetName()] = h.GetSampleCount()
			}
		}
	}
	if counts["reflection_guard_validation_duration_seconds"] < 2 {
		t.Fatalf("expected duration samples, got %v", counts)
	}
	if counts["reflection_guard_security_checks_performed"] < 2 {
		t.Fatalf("expected check count samples, got %v", counts)
	}
}

func TestNotificationAndConflictCounters(t *testing.T) {
	n := notificationsTotal.WithLabelValues("webhook", NotificationFailed)
	beforeN := testutil.ToFloat64(n)
	beforeC := testutil.ToFloat64(historyUpdateConflictsTotal)

	ObserveNotification("webhook", NotificationFailed)
	HistoryConflict()

	if testutil.ToFloat64(n)-beforeN != 1 || testutil.ToFloat64(historyUpdateConflictsTotal)-beforeC != 1 {
		t.Fatalf("counters did not advance")
	}
}
