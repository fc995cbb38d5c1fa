package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/stoicmail/reflection-guard/internal/config"
	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/utils"
)

// Check names as they appear in reports and audit entries.
const (
	CheckContentLength       = "content_length"
	CheckMaliciousPatterns   = "malicious_patterns"
	CheckURLDetection        = "url_detection"
	CheckCharacterValidation = "character_validation"
)

// matchesPerPattern bounds the examples collected from a single regex.
const matchesPerPattern = 3

// Check is a stateless rule run against sanitized text.
type Check interface {
	Name() string
	Check(text string) models.CheckResult
}

func disabled(name string) models.CheckResult {
	return models.NewCheckResult(name, true, models.SeverityInfo, "Check disabled")
}

// LengthCheck bounds the size of the content. Exceeding a maximum is treated
// as a resource exhaustion attempt, falling short of a minimum as low quality.
type LengthCheck struct {
	limits config.ContentLimitsConfig
}

func NewLengthCheck(limits config.ContentLimitsConfig) *LengthCheck {
	return &LengthCheck{limits: limits}
}

func (c *LengthCheck) Name() string { return CheckContentLength }

func (c *LengthCheck) Check(text string) models.CheckResult {
	chars := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	lim := c.limits

	switch {
	case lim.MaxChars > 0 && chars > lim.MaxChars:
		return models.NewCheckResult(c.Name(), false, models.SeverityCritical,
			fmt.Sprintf("Content too long: %d chars (max %d)", chars, lim.MaxChars))
	case lim.MaxWords > 0 && words > lim.MaxWords:
		return models.NewCheckResult(c.Name(), false, models.SeverityCritical,
			fmt.Sprintf("Content too long: %d words (max %d)", words, lim.MaxWords))
	case chars < lim.MinChars:
		return models.NewCheckResult(c.Name(), false, models.SeverityWarning,
			fmt.Sprintf("Content too short: %d chars (min %d)", chars, lim.MinChars))
	case words < lim.MinWords:
		return models.NewCheckResult(c.Name(), false, models.SeverityWarning,
			fmt.Sprintf("Content too short: %d words (min %d)", words, lim.MinWords))
	}
	return models.NewCheckResult(c.Name(), true, models.SeverityInfo,
		fmt.Sprintf("Content length acceptable: %d chars, %d words", chars, words))
}

// PatternCheck matches critical and suspicious regexes. Critical matches
// block; suspicious matches only annotate.
type PatternCheck struct {
	enabled    bool
	critical   []*regexp.Regexp
	suspicious []*regexp.Regexp
}

func NewPatternCheck(cfg config.MaliciousPatternsConfig) (*PatternCheck, error) {
	critical, err := compileAll(cfg.Patterns)
	if err != nil {
		return nil, err
	}
	suspicious, err := compileAll(cfg.SuspiciousPatterns)
	if err != nil {
		return nil, err
	}
	return &PatternCheck{enabled: cfg.Enabled, critical: critical, suspicious: suspicious}, nil
}

func (c *PatternCheck) Name() string { return CheckMaliciousPatterns }

func (c *PatternCheck) Check(text string) models.CheckResult {
	if !c.enabled {
		return disabled(c.Name())
	}

	if blocked := findExamples(c.critical, text); len(blocked) > 0 {
		return models.NewCheckResult(c.Name(), false, models.SeverityCritical,
			fmt.Sprintf("Detected %d malicious pattern(s)", len(blocked)), blocked...)
	}
	if flagged := findExamples(c.suspicious, text); len(flagged) > 0 {
		return models.NewCheckResult(c.Name(), true, models.SeverityWarning,
			fmt.Sprintf("Detected %d suspicious pattern(s)", len(flagged)), flagged...)
	}
	return models.NewCheckResult(c.Name(), true, models.SeverityInfo, "No malicious patterns detected")
}

func findExamples(patterns []*regexp.Regexp, text string) []string {
	var found []string
	for _, re := range patterns {
		found = append(found, re.FindAllString(text, matchesPerPattern)...)
	}
	return found
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, utils.ConfigError("security.compile", fmt.Sprintf("invalid pattern %q", p), err)
		}
		out = append(out, re)
	}
	return out, nil
}

// URLCheck enforces the link policy. Reflections are plain prose, so by
// default any link is blocked.
type URLCheck struct {
	cfg     config.URLDetectionConfig
	pattern *regexp.Regexp
	domains []string
}

func NewURLCheck(cfg config.URLDetectionConfig) (*URLCheck, error) {
	expr := cfg.URLPattern
	if expr == "" {
		expr = config.DefaultURLPattern
	}
	if !strings.HasPrefix(expr, "(?i)") {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, utils.ConfigError("security.NewURLCheck", "invalid url_pattern", err)
	}
	domains := make([]string, 0, len(cfg.SuspiciousDomains))
	for _, d := range cfg.SuspiciousDomains {
		domains = append(domains, strings.ToLower(d))
	}
	return &URLCheck{cfg: cfg, pattern: re, domains: domains}, nil
}

func (c *URLCheck) Name() string { return CheckURLDetection }

func (c *URLCheck) Check(text string) models.CheckResult {
	if !c.cfg.Enabled {
		return disabled(c.Name())
	}

	urls := c.pattern.FindAllString(text, -1)
	if len(urls) == 0 {
		return models.NewCheckResult(c.Name(), true, models.SeverityInfo, "No URLs detected")
	}

	if c.cfg.BlockAllURLs || len(urls) > c.cfg.MaxURLsAllowed {
		allowed := c.cfg.MaxURLsAllowed
		if c.cfg.BlockAllURLs {
			allowed = 0
		}
		return models.NewCheckResult(c.Name(), false, models.SeverityCritical,
			fmt.Sprintf("Detected %d URL(s), policy allows %d", len(urls), allowed), urls...)
	}

	var suspicious []string
	for _, u := range urls {
		lower := strings.ToLower(u)
		for _, d := range c.domains {
			if strings.Contains(lower, d) {
				suspicious = append(suspicious, u)
				break
			}
		}
	}
	if len(suspicious) > 0 {
		return models.NewCheckResult(c.Name(), false, models.SeverityWarning,
			fmt.Sprintf("Detected %d suspicious URL(s)", len(suspicious)), suspicious...)
	}
	return models.NewCheckResult(c.Name(), true, models.SeverityInfo,
		fmt.Sprintf("Detected %d allowed URL(s)", len(urls)))
}

// homoglyphs are Cyrillic and Greek letters that render like Latin ones.
var homoglyphs = map[rune]struct{}{
	'\u0430': {}, // cyrillic a
	'\u0435': {}, // cyrillic e
	'\u043e': {}, // cyrillic o
	'\u0440': {}, // cyrillic p
	'\u0441': {}, // cyrillic c
	'\u0445': {}, // cyrillic x
	'\u0391': {}, // greek A
	'\u0392': {}, // greek B
	'\u039f': {}, // greek O
}

// CharacterCheck flags long single-character runs and look-alike letters.
type CharacterCheck struct {
	cfg config.CharacterValidationConfig
}

func NewCharacterCheck(cfg config.CharacterValidationConfig) *CharacterCheck {
	return &CharacterCheck{cfg: cfg}
}

func (c *CharacterCheck) Name() string { return CheckCharacterValidation }

func (c *CharacterCheck) Check(text string) models.CheckResult {
	if !c.cfg.Enabled {
		return disabled(c.Name())
	}

	var issues []string
	if longestRun(text) > c.cfg.MaxConsecutiveSameChar {
		issues = append(issues, fmt.Sprintf("Excessive consecutive characters (>%d)", c.cfg.MaxConsecutiveSameChar))
	}
	if c.cfg.BlockHomoglyphs && containsHomoglyph(text) {
		issues = append(issues, "Potential homoglyph characters detected")
	}

	if len(issues) > 0 {
		return models.NewCheckResult(c.Name(), false, models.SeverityWarning, strings.Join(issues, "; "))
	}
	return models.NewCheckResult(c.Name(), true, models.SeverityInfo, "Character validation passed")
}

// longestRun returns the longest run of one repeated rune. Newlines are
// excluded since blank-line runs are bounded by the sanitizer.
func longestRun(text string) int {
	longest, run := 0, 0
	var prev rune = -1
	for _, r := range text {
		if r == '\n' {
			prev, run = -1, 0
			continue
		}
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

func containsHomoglyph(text string) bool {
	for _, r := range text {
		if _, ok := homoglyphs[r]; ok {
			return true
		}
	}
	return false
}
