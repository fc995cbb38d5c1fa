package config

// SecurityConfig is the validation policy. Field tags follow the policy file
// layout (content_limits.max_reflection_length_chars and so on), so JSON
// policy files written for earlier deployments load unchanged.
type SecurityConfig struct {
	ContentLimits       ContentLimitsConfig       `yaml:"content_limits" json:"content_limits"`
	MaliciousPatterns   MaliciousPatternsConfig   `yaml:"malicious_patterns" json:"malicious_patterns"`
	URLDetection        URLDetectionConfig        `yaml:"url_detection" json:"url_detection"`
	Sanitization        SanitizationConfig        `yaml:"sanitization" json:"sanitization"`
	CharacterValidation CharacterValidationConfig `yaml:"character_validation" json:"character_validation"`
	ContentPolicy       ContentPolicyConfig       `yaml:"content_policy" json:"content_policy"`
	AnomalyDetection    AnomalyDetectionConfig    `yaml:"anomaly_detection" json:"anomaly_detection"`
	Alerting            AlertingConfig            `yaml:"alerting" json:"alerting"`
}

type ContentLimitsConfig struct {
	MaxChars int `yaml:"max_reflection_length_chars" json:"max_reflection_length_chars"`
	MaxWords int `yaml:"max_reflection_length_words" json:"max_reflection_length_words"`
	MinChars int `yaml:"min_reflection_length_chars" json:"min_reflection_length_chars"`
	MinWords int `yaml:"min_reflection_length_words" json:"min_reflection_length_words"`
}

type MaliciousPatternsConfig struct {
	Enabled            bool     `yaml:"enabled" json:"enabled"`
	Patterns           []string `yaml:"patterns" json:"patterns"`
	SuspiciousPatterns []string `yaml:"suspicious_patterns" json:"suspicious_patterns"`
}

type URLDetectionConfig struct {
	Enabled           bool     `yaml:"enabled" json:"enabled"`
	MaxURLsAllowed    int      `yaml:"max_urls_allowed" json:"max_urls_allowed"`
	BlockAllURLs      bool     `yaml:"block_all_urls" json:"block_all_urls"`
	SuspiciousDomains []string `yaml:"suspicious_domains" json:"suspicious_domains"`
	URLPattern        string   `yaml:"url_pattern" json:"url_pattern"`
}

type SanitizationConfig struct {
	Enabled                bool `yaml:"enabled" json:"enabled"`
	RemoveControlChars     bool `yaml:"remove_control_chars" json:"remove_control_chars"`
	StripInvisibleChars    bool `yaml:"strip_invisible_chars" json:"strip_invisible_chars"`
	NormalizeWhitespace    bool `yaml:"normalize_whitespace" json:"normalize_whitespace"`
	MaxConsecutiveNewlines int  `yaml:"max_consecutive_newlines" json:"max_consecutive_newlines"`
}

type CharacterValidationConfig struct {
	Enabled                bool `yaml:"enabled" json:"enabled"`
	MaxConsecutiveSameChar int  `yaml:"max_consecutive_same_char" json:"max_consecutive_same_char"`
	BlockHomoglyphs        bool `yaml:"block_homoglyphs" json:"block_homoglyphs"`
}

type ContentPolicyConfig struct {
	Enabled          bool                   `yaml:"enabled" json:"enabled"`
	RequiredElements RequiredElementsConfig `yaml:"required_elements" json:"required_elements"`
	ForbiddenTopics  []string               `yaml:"forbidden_topics" json:"forbidden_topics"`
}

type RequiredElementsConfig struct {
	CheckParagraphStructure bool `yaml:"check_paragraph_structure" json:"check_paragraph_structure"`
	MinParagraphs           int  `yaml:"min_paragraphs" json:"min_paragraphs"`
	MaxParagraphs           int  `yaml:"max_paragraphs" json:"max_paragraphs"`
	CheckFormatting         bool `yaml:"check_formatting" json:"check_formatting"`
}

type AnomalyDetectionConfig struct {
	Enabled                 bool    `yaml:"enabled" json:"enabled"`
	DeviationThresholdSigma float64 `yaml:"deviation_threshold_sigma" json:"deviation_threshold_sigma"`
	MinSamplesForDetection  int     `yaml:"min_samples_for_detection" json:"min_samples_for_detection"`
	HistoryKey              string  `yaml:"history_key" json:"history_key"`
	MaxHistory              int     `yaml:"max_history" json:"max_history"`
}

type AlertingConfig struct {
	Enabled                   bool `yaml:"enabled" json:"enabled"`
	AlertOnBlockedContent     bool `yaml:"alert_on_blocked_content" json:"alert_on_blocked_content"`
	AlertOnSuspiciousContent  bool `yaml:"alert_on_suspicious_content" json:"alert_on_suspicious_content"`
	AlertOnValidationFailure  bool `yaml:"alert_on_validation_failure" json:"alert_on_validation_failure"`
	AlertOnAnomaly            bool `yaml:"alert_on_anomaly" json:"alert_on_anomaly"`
	MaxNotificationsPerMinute int  `yaml:"max_notifications_per_minute" json:"max_notifications_per_minute"`
}

// Default policy values.
const (
	DefaultURLPattern       = `(?i)(?:https?://|www\.)\S+`
	DefaultHistoryKey       = "security/response_statistics.json"
	DefaultMaxHistory       = 100
	DefaultMaxNewlines      = 3
	DefaultMaxSameCharRun   = 50
	DefaultSigmaThreshold   = 3.0
	DefaultMinSamples       = 10
	DefaultNotificationRate = 30
)

// DefaultSecurity returns the built-in validation policy.
func DefaultSecurity() SecurityConfig {
	return SecurityConfig{
		ContentLimits: ContentLimitsConfig{
			MaxChars: 10000,
			MaxWords: 2000,
			MinChars: 100,
			MinWords: 50,
		},
		MaliciousPatterns: MaliciousPatternsConfig{
			Enabled: true,
			Patterns: []string{
				`(?i)<script[^>]*>`,
				`(?i)javascript:`,
				`(?i)on(?:load|error|click|mouse|key)\s*=`,
			},
			SuspiciousPatterns: []string{
				`(?i)ignore\s+(?:all\s+)?(?:previous|prior|above)\s+instructions`,
				`(?i)(?:reveal|print|repeat)\s+(?:your|the)\s+system\s+prompt`,
				`(?i)you\s+are\s+now\s+in\s+developer\s+mode`,
			},
		},
		URLDetection: URLDetectionConfig{
			Enabled:        true,
			MaxURLsAllowed: 0,
			BlockAllURLs:   true,
			URLPattern:     DefaultURLPattern,
		},
		Sanitization: SanitizationConfig{
			Enabled:                true,
			RemoveControlChars:     true,
			StripInvisibleChars:    true,
			NormalizeWhitespace:    true,
			MaxConsecutiveNewlines: DefaultMaxNewlines,
		},
		CharacterValidation: CharacterValidationConfig{
			Enabled:                true,
			MaxConsecutiveSameChar: DefaultMaxSameCharRun,
			BlockHomoglyphs:        true,
		},
		ContentPolicy: ContentPolicyConfig{
			Enabled: true,
			RequiredElements: RequiredElementsConfig{
				CheckParagraphStructure: true,
				MinParagraphs:           1,
				MaxParagraphs:           10,
				CheckFormatting:         true,
			},
		},
		AnomalyDetection: AnomalyDetectionConfig{
			Enabled:                 true,
			DeviationThresholdSigma: DefaultSigmaThreshold,
			MinSamplesForDetection:  DefaultMinSamples,
			HistoryKey:              DefaultHistoryKey,
			MaxHistory:              DefaultMaxHistory,
		},
		Alerting: AlertingConfig{
			Enabled:                   true,
			AlertOnBlockedContent:     true,
			AlertOnSuspiciousContent:  true,
			AlertOnValidationFailure:  false,
			AlertOnAnomaly:            true,
			MaxNotificationsPerMinute: DefaultNotificationRate,
		},
	}
}
