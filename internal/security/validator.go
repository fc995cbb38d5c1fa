package security

import (
	"context"
	"log/slog"

	"github.com/stoicmail/reflection-guard/internal/config"
	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/utils"
)

// Result is the outcome of ValidateAndSanitize.
type Result struct {
	Safe          bool
	Sanitized     string
	Modifications []string
	Checks        []models.CheckResult
}

// Critical returns the results that block the content.
func (r Result) Critical() []models.CheckResult {
	var out []models.CheckResult
	for _, c := range r.Checks {
		if c.Blocking() {
			out = append(out, c)
		}
	}
	return out
}

// Flagged returns advisory findings that do not block the content.
func (r Result) Flagged() []models.CheckResult {
	var out []models.CheckResult
	for _, c := range r.Checks {
		if c.Flagged() {
			out = append(out, c)
		}
	}
	return out
}

// Validator sanitizes text and runs every rule check against the result.
// It is immutable after construction and safe for concurrent use.
type Validator struct {
	sanitizer *Sanitizer
	checks    []Check
	logger    *slog.Logger
}

// NewValidator compiles the policy. It fails only on malformed configuration.
func NewValidator(cfg config.SecurityConfig, logger *slog.Logger) (*Validator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	patterns, err := NewPatternCheck(cfg.MaliciousPatterns)
	if err != nil {
		return nil, err
	}
	urls, err := NewURLCheck(cfg.URLDetection)
	if err != nil {
		return nil, err
	}
	if cfg.CharacterValidation.Enabled && cfg.CharacterValidation.MaxConsecutiveSameChar < 1 {
		return nil, utils.ConfigError("security.NewValidator", "max_consecutive_same_char must be positive", nil)
	}

	return &Validator{
		sanitizer: NewSanitizer(cfg.Sanitization),
		checks: []Check{
			NewLengthCheck(cfg.ContentLimits),
			patterns,
			urls,
			NewCharacterCheck(cfg.CharacterValidation),
		},
		logger: logger,
	}, nil
}

// Sanitizer exposes the configured sanitizer.
func (v *Validator) Sanitizer() *Sanitizer { return v.sanitizer }

// ValidateAndSanitize sanitizes text, then runs the length, pattern, URL and
// character checks against the sanitized text. Detections are returned as
// data; the content is safe when no check failed with CRITICAL severity.
func (v *Validator) ValidateAndSanitize(text, contentType string) Result {
	sanitized, mods := v.sanitizer.Sanitize(text)
	if len(mods) > 0 {
		v.logger.Info("sanitized content", slog.String("content_type", contentType), slog.Any("modifications", mods))
	}

	res := Result{
		Safe:          true,
		Sanitized:     sanitized,
		Modifications: mods,
		Checks:        make([]models.CheckResult, 0, len(v.checks)),
	}
	critical, warnings := 0, 0
	for _, check := range v.checks {
		cr := check.Check(sanitized)
		res.Checks = append(res.Checks, cr)

		level := slog.LevelInfo
		switch {
		case cr.Blocking():
			res.Safe = false
			critical++
			level = slog.LevelError
		case !cr.Passed:
			warnings++
			level = slog.LevelWarn
		}
		v.logger.Log(context.Background(), level, "security check",
			slog.String("check", cr.CheckName),
			slog.String("content_type", contentType),
			slog.String("details", cr.Details),
			slog.Any("matched_patterns", cr.MatchedPatterns),
		)
	}

	if critical > 0 {
		v.logger.Error("security violation", slog.String("content_type", contentType), slog.Int("critical_failures", critical))
	}
	if warnings > 0 {
		v.logger.Warn("security warning", slog.String("content_type", contentType), slog.Int("warnings", warnings))
	}
	return res
}
