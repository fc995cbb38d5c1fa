package audit

import (
	"strings"
	"testing"
)

func TestRedactSensitiveAndLongValues(t *testing.T) {
	out := Redact(map[string]any{"api_key": "sk-abc", "note": strings.Repeat("x", 600)})

	if out["api_key"] != RedactedMarker {
		t.Fatalf("expected api_key redacted, got %v", out["api_key"])
	}
	note, ok := out["note"].(map[string]any)
	if !ok {
		t.Fatalf("expected truncated structure, got %T", out["note"])
	}
	if note["truncated"] != true || note["full_length"] != 600 {
		t.Fatalf("unexpected truncation %v", note)
	}
	if preview := note["preview"].(string); len(preview) != 503 || !strings.HasSuffix(preview, "...") {
		t.Fatalf("unexpected preview length %d", len(preview))
	}
	if note["hash"] != HashContent(strings.Repeat("x", 600)) {
		t.Fatalf("hash mismatch")
	}
}

func TestRedactMatchesKeySubstrings(t *testing.T) {
	out := Redact(map[string]any{
		"AUTH_TOKEN":       "t",
		"db_password_hint": "p",
		"client_secret":    "s",
		"credentials":      map[string]any{"user": "u"},
		"content_type":     "reflection",
	})
	for _, k := range []string{"AUTH_TOKEN", "db_password_hint", "client_secret", "credentials"} {
		if out[k] != RedactedMarker {
			t.Fatalf("%s: expected redaction, got %v", k, out[k])
		}
	}
	if out["content_type"] != "reflection" {
		t.Fatalf("non-sensitive values must pass through")
	}
}

func TestRedactRecursesIntoNestedValues(t *testing.T) {
	long := strings.Repeat("é", 501)
	out := Redact(map[string]any{
		"evidence": map[string]any{
			"password": "hunter2",
			"text":     long,
			"matches":  []string{"<script>", long},
			"items":    []any{map[string]any{"secret": "x"}, 3},
		},
		"count": 3,
	})

	ev := out["evidence"].(map[string]any)
	if ev["password"] != RedactedMarker {
		t.Fatalf("nested secret not redacted")
	}
	if ev["text"].(map[string]any)["full_length"] != 501 {
		t.Fatalf("length must count characters, got %v", ev["text"])
	}
	matches := ev["matches"].([]any)
	if matches[0] != "<script>" {
		t.Fatalf("short list values must pass through")
	}
	if _, ok := matches[1].(map[string]any); !ok {
		t.Fatalf("long list values must be truncated")
	}
	items := ev["items"].([]any)
	if items[0].(map[string]any)["secret"] != RedactedMarker || items[1] != 3 {
		t.Fatalf("unexpected items %v", items)
	}
	if out["count"] != 3 {
		t.Fatalf("non-string values must pass through")
	}
}

func TestRedactNil(t *testing.T) {
	if out := Redact(nil); out == nil || len(out) != 0 {
		t.Fatalf("expected empty map, got %v", out)
	}
}

func TestHashContent(t *testing.T) {
	// sha256("abc") = ba7816bf8f01cfea...
	if got := HashContent("abc"); got != "ba7816bf8f01cfea" {
		t.Fatalf("unexpected hash %s", got)
	}
}
