package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stoicmail/reflection-guard/internal/alerting"
	"github.com/stoicmail/reflection-guard/internal/models"
)

func TestReceivesWebhookNotifications(t *testing.T) {
	srv := httptest.NewServer(newMux(log.New(io.Discard, "", 0), &inbox{}))
	defer srv.Close()

	notifier := alerting.NewWebhookNotifier(srv.URL+"/alerts", time.Second, nil)
	event := models.SecurityEvent{
		EventType: models.EventAnomalyDetected,
		Severity:  models.SeverityWarning,
		Message:   "Statistical anomaly detected in API response",
		Timestamp: time.Now().UTC(),
		Source:    models.DefaultEventSource,
	}
	if err := notifier.Notify(context.Background(), alerting.NewNotification(event)); err != nil {
		t.Fatalf("notify: %v", err)
	}

	resp, err := http.Get(srv.URL + "/alerts")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Alerts []alerting.Notification `json:"alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Alerts) != 1 || body.Alerts[0].Subject != "[WARNING] Security Alert: anomaly_detected" {
		t.Fatalf("unexpected alerts %+v", body.Alerts)
	}
}

func TestInboxIsBounded(t *testing.T) {
	box := &inbox{}
	for i := 0; i < maxKept+5; i++ {
		box.add(alerting.Notification{Subject: "s"})
	}
	if got := len(box.list()); got != maxKept {
		t.Fatalf("expected %d kept, got %d", maxKept, got)
	}
}
