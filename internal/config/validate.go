package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stoicmail/reflection-guard/internal/utils"
)

// Validate rejects configuration that cannot produce a working pipeline. It
// runs once at startup so malformed policy fails fast instead of per request.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "file", "redis":
	case "sql":
		switch c.Store.SQL.Dialect {
		case "sqlite", "postgres":
		default:
			return utils.ConfigError("config.Validate", fmt.Sprintf("unknown sql dialect %q", c.Store.SQL.Dialect), nil)
		}
	default:
		return utils.ConfigError("config.Validate", fmt.Sprintf("unknown store driver %q", c.Store.Driver), nil)
	}
	if c.Store.Retry.Attempts < 0 {
		return utils.ConfigError("config.Validate", "store.retry.attempts must not be negative", nil)
	}
	return c.Security.Validate()
}

// Validate checks thresholds and compiles every configured pattern.
func (s *SecurityConfig) Validate() error {
	const op = "config.SecurityConfig.Validate"

	lim := s.ContentLimits
	if lim.MaxChars < 0 || lim.MaxWords < 0 || lim.MinChars < 0 || lim.MinWords < 0 {
		return utils.ConfigError(op, "content_limits must not be negative", nil)
	}
	if lim.MaxChars > 0 && lim.MinChars > lim.MaxChars {
		return utils.ConfigError(op, fmt.Sprintf("min_reflection_length_chars %d exceeds max %d", lim.MinChars, lim.MaxChars), nil)
	}
	if lim.MaxWords > 0 && lim.MinWords > lim.MaxWords {
		return utils.ConfigError(op, fmt.Sprintf("min_reflection_length_words %d exceeds max %d", lim.MinWords, lim.MaxWords), nil)
	}

	for _, group := range [][]string{s.MaliciousPatterns.Patterns, s.MaliciousPatterns.SuspiciousPatterns} {
		for _, p := range group {
			if _, err := regexp.Compile(p); err != nil {
				return utils.ConfigError(op, fmt.Sprintf("invalid pattern %q", p), err)
			}
		}
	}
	if s.URLDetection.URLPattern != "" {
		if _, err := regexp.Compile(s.URLDetection.URLPattern); err != nil {
			return utils.ConfigError(op, "invalid url_pattern", err)
		}
	}
	if s.URLDetection.MaxURLsAllowed < 0 {
		return utils.ConfigError(op, "url_detection.max_urls_allowed must not be negative", nil)
	}

	if s.Sanitization.MaxConsecutiveNewlines < 0 {
		return utils.ConfigError(op, "sanitization.max_consecutive_newlines must not be negative", nil)
	}
	if s.CharacterValidation.MaxConsecutiveSameChar < 1 {
		return utils.ConfigError(op, "character_validation.max_consecutive_same_char must be positive", nil)
	}

	req := s.ContentPolicy.RequiredElements
	if req.MinParagraphs < 0 || req.MaxParagraphs < 0 || req.MinParagraphs > req.MaxParagraphs {
		return utils.ConfigError(op, fmt.Sprintf("invalid paragraph bounds [%d, %d]", req.MinParagraphs, req.MaxParagraphs), nil)
	}
	for _, topic := range s.ContentPolicy.ForbiddenTopics {
		if strings.TrimSpace(topic) == "" {
			return utils.ConfigError(op, "forbidden_topics must not contain empty entries", nil)
		}
	}

	an := s.AnomalyDetection
	if an.DeviationThresholdSigma <= 0 {
		return utils.ConfigError(op, "anomaly_detection.deviation_threshold_sigma must be positive", nil)
	}
	if an.MinSamplesForDetection < 2 {
		return utils.ConfigError(op, "anomaly_detection.min_samples_for_detection must be at least 2", nil)
	}
	if an.MaxHistory < an.MinSamplesForDetection {
		return utils.ConfigError(op, fmt.Sprintf("anomaly_detection.max_history %d is below min_samples_for_detection %d", an.MaxHistory, an.MinSamplesForDetection), nil)
	}
	if an.HistoryKey == "" {
		return utils.ConfigError(op, "anomaly_detection.history_key must be set", nil)
	}

	if s.Alerting.MaxNotificationsPerMinute < 0 {
		return utils.ConfigError(op, "alerting.max_notifications_per_minute must not be negative", nil)
	}
	return nil
}
