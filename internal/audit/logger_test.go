package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/store"
)

func TestLoggerGeneratesCorrelationID(t *testing.T) {
	a := NewLogger(nil, "", "", nil)
	b := NewLogger(nil, "", "", nil)
	if a.CorrelationID() == "" || a.CorrelationID() == b.CorrelationID() {
		t.Fatalf("expected unique generated ids, got %q and %q", a.CorrelationID(), b.CorrelationID())
	}
	if NewLogger(nil, "given", "", nil).CorrelationID() != "given" {
		t.Fatalf("supplied id must be kept")
	}
}

func TestLoggerReplacesMalformedCorrelationID(t *testing.T) {
	for _, cid := range []string{"/../../response_statistics", "a/b", "with space", strings.Repeat("x", 65)} {
		got := NewLogger(nil, cid, "", nil).CorrelationID()
		if got == cid || !ValidCorrelationID(got) {
			t.Fatalf("malformed id %q must be replaced, got %q", cid, got)
		}
	}
	if !ValidCorrelationID("cid_42-A") {
		t.Fatalf("plain tokens must be accepted")
	}
}

func TestLoggerSaveStaysUnderAuditPrefix(t *testing.T) {
	st := store.NewMemory()
	l := NewLogger(st, "/../../response_statistics", "", nil)
	l.LogValidationStart("reflection", "abc")
	if !l.Save(context.Background()) {
		t.Fatalf("save must succeed under a generated id")
	}
	records := st.AuditRecords()
	if len(records) != 1 || store.CheckAuditKey(records[0].Key) != nil {
		t.Fatalf("unexpected audit records %+v", records)
	}
}

func TestLoggerTrail(t *testing.T) {
	st := store.NewMemory()
	l := NewLogger(st, "cid-42", "req-7", nil)

	l.LogValidationStart("reflection", HashContent("hello"))
	l.LogSanitization([]string{"Normalized whitespace"}, 120, 110)
	l.LogSecurityCheck("malicious_patterns", false, models.SeverityCritical, map[string]any{
		"details":       "Detected 1 malicious pattern(s)",
		"session_token": "abc",
	})
	l.LogAnomalyDetection(true, 4.2, []string{"word_count: 1000.00"})
	l.LogSecurityIncident("blocked_content", models.SeverityCritical, "Content blocked", map[string]any{"api_key": "k"})

	issues := make([]string, 12)
	for i := range issues {
		issues[i] = "issue"
	}
	l.LogValidationComplete(false, 1500*time.Microsecond, 4, issues)

	entries := l.Entries()
	if len(entries) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.CorrelationID != "cid-42" || e.RequestID != "req-7" {
			t.Fatalf("entry missing ids: %+v", e)
		}
	}

	wantResults := []string{ResultStarted, ResultModified, ResultFail, ResultAnomalyDetected, ResultIncident, ResultFail}
	for i, want := range wantResults {
		if entries[i].Result != want {
			t.Fatalf("entry %d: expected %s, got %s", i, want, entries[i].Result)
		}
	}

	if entries[2].Details["session_token"] != RedactedMarker {
		t.Fatalf("check details must be redacted")
	}
	evidence := entries[4].Details["evidence"].(map[string]any)
	if evidence["api_key"] != RedactedMarker {
		t.Fatalf("incident evidence must be redacted")
	}
	complete := entries[5].Details
	if complete["issues_count"] != 12 || len(complete["issues"].([]any)) != 10 {
		t.Fatalf("expected issues capped at 10, got %v", complete)
	}
	if complete["duration_ms"] != 1.5 {
		t.Fatalf("unexpected duration %v", complete["duration_ms"])
	}
	if entries[5].Severity != models.SeverityWarning {
		t.Fatalf("failed validation logs as warning")
	}
	if entries[1].Details["bytes_removed"] != 10 {
		t.Fatalf("unexpected sanitization details %v", entries[1].Details)
	}

	sum := l.Summary()
	if sum.TotalEvents != 6 || sum.ByType[models.AuditSecurityCheck] != 1 || sum.BySeverity["CRITICAL"] != 2 || sum.ByResult[ResultFail] != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	if !l.Save(context.Background()) {
		t.Fatalf("expected save to succeed")
	}
	records := st.AuditRecords()
	if len(records) != 1 || records[0].EntryCount != 6 || records[0].CorrelationID != "cid-42" {
		t.Fatalf("unexpected stored records %+v", records)
	}
	if !strings.HasPrefix(records[0].Key, "security/audit_logs/") || !strings.HasSuffix(records[0].Key, "_cid-42.json") {
		t.Fatalf("unexpected key %s", records[0].Key)
	}

	raw, err := json.Marshal(records[0])
	if err != nil {
		t.Fatalf("record must serialise: %v", err)
	}
	if strings.Contains(string(raw), `"abc"`) {
		t.Fatalf("secret leaked into persisted record")
	}
}

func TestLoggerSaveEmptyTrail(t *testing.T) {
	st := store.NewMemory()
	if !NewLogger(st, "", "", nil).Save(context.Background()) {
		t.Fatalf("empty trail saves trivially")
	}
	if len(st.AuditRecords()) != 0 {
		t.Fatalf("empty trail must not be written")
	}
}

type failingAuditStore struct{}

func (failingAuditStore) AppendAuditLog(context.Context, models.AuditRecord) error {
	return errors.New("access denied")
}

func TestLoggerSaveFailureIsBoolean(t *testing.T) {
	l := NewLogger(failingAuditStore{}, "", "", nil)
	l.LogValidationStart("reflection", "h")
	if l.Save(context.Background()) {
		t.Fatalf("expected save failure")
	}

	unconfigured := NewLogger(nil, "", "", nil)
	unconfigured.LogValidationStart("reflection", "h")
	if unconfigured.Save(context.Background()) {
		t.Fatalf("no store means nothing was persisted")
	}
}
