package models

// Severity captures how much weight a finding carries.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// MaxMatchedPatterns bounds the examples attached to a CheckResult.
const MaxMatchedPatterns = 5

// CheckResult is the outcome of a single rule check. It is built once by
// NewCheckResult and not modified afterwards.
type CheckResult struct {
	CheckName       string   `json:"check_name"`
	Passed          bool     `json:"passed"`
	Severity        Severity `json:"severity"`
	Details         string   `json:"details"`
	MatchedPatterns []string `json:"matched_patterns,omitempty"`
}

// NewCheckResult constructs a CheckResult, copying and capping matched patterns.
func NewCheckResult(name string, passed bool, severity Severity, details string, matched ...string) CheckResult {
	if len(matched) > MaxMatchedPatterns {
		matched = matched[:MaxMatchedPatterns]
	}
	var patterns []string
	if len(matched) > 0 {
		patterns = append([]string(nil), matched...)
	}
	return CheckResult{
		CheckName:       name,
		Passed:          passed,
		Severity:        severity,
		Details:         details,
		MatchedPatterns: patterns,
	}
}

// Blocking reports whether the result forces overall validation to fail.
func (r CheckResult) Blocking() bool {
	return !r.Passed && r.Severity == SeverityCritical
}

// Flagged reports whether the result is an advisory finding: a failed
// warning, or a passing check that still matched suspicious content.
func (r CheckResult) Flagged() bool {
	if r.Severity != SeverityWarning {
		return false
	}
	return !r.Passed || len(r.MatchedPatterns) > 0
}
