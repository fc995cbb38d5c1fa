package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// RedactedMarker replaces the value of any sensitive field.
const RedactedMarker = "[REDACTED]"

// MaxContentLength is the longest string kept verbatim in an audit entry.
const MaxContentLength = 500

var sensitiveKeys = []string{"api_key", "token", "password", "secret", "credential"}

// HashContent returns the first 16 hex characters of the SHA-256 of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// Redact returns a copy of details safe to persist. Values under keys that
// look sensitive are replaced with RedactedMarker, strings longer than
// MaxContentLength become a preview with length and hash, and nested maps and
// slices are walked.
func Redact(details map[string]any) map[string]any {
	if details == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if isSensitive(k) {
			out[k] = RedactedMarker
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Redact(val)
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}
		return Redact(m)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = truncate(item)
		}
		return out
	case string:
		return truncate(val)
	default:
		return v
	}
}

func truncate(s string) any {
	n := utf8.RuneCountInString(s)
	if n <= MaxContentLength {
		return s
	}
	runes := []rune(s)
	return map[string]any{
		"preview":     string(runes[:MaxContentLength]) + "...",
		"full_length": n,
		"hash":        HashContent(s),
		"truncated":   true,
	}
}
