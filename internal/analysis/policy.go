package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stoicmail/reflection-guard/internal/config"
	"github.com/stoicmail/reflection-guard/internal/models"
)

var markdownHeading = regexp.MustCompile(`(?m)^#{1,6}\s`)

// PolicyValidator enforces the structural and style rules for reflections.
type PolicyValidator struct {
	cfg    config.ContentPolicyConfig
	topics []topic
}

// topic is a forbidden topic split into keywords. It matches when every
// keyword occurs somewhere in the text, not necessarily together, so
// unrelated co-occurring words can produce a false positive.
type topic struct {
	label    string
	keywords []string
}

// NewPolicyValidator prepares the forbidden topic keyword sets.
func NewPolicyValidator(cfg config.ContentPolicyConfig) *PolicyValidator {
	topics := make([]topic, 0, len(cfg.ForbiddenTopics))
	for _, t := range cfg.ForbiddenTopics {
		kw := strings.Fields(strings.ToLower(t))
		if len(kw) == 0 {
			continue
		}
		topics = append(topics, topic{label: t, keywords: kw})
	}
	return &PolicyValidator{cfg: cfg, topics: topics}
}

// Validate returns the policy verdict and every violation found.
func (p *PolicyValidator) Validate(text string) models.PolicyResult {
	res := models.PolicyResult{Valid: true, Violations: []string{}}
	if !p.cfg.Enabled {
		return res
	}

	req := p.cfg.RequiredElements
	if req.CheckParagraphStructure {
		n := CountParagraphs(text)
		if n < req.MinParagraphs {
			res.Violations = append(res.Violations, fmt.Sprintf("Too few paragraphs: %d (min %d)", n, req.MinParagraphs))
		}
		if n > req.MaxParagraphs {
			res.Violations = append(res.Violations, fmt.Sprintf("Too many paragraphs: %d (max %d)", n, req.MaxParagraphs))
		}
	}

	lower := strings.ToLower(text)
	for _, t := range p.topics {
		if containsAll(lower, t.keywords) {
			res.Violations = append(res.Violations, "Contains forbidden topic: "+t.label)
		}
	}

	if req.CheckFormatting {
		if markdownHeading.MatchString(text) {
			res.Violations = append(res.Violations, "Contains markdown headings (not expected in reflection)")
		}
		if strings.Contains(text, "`") {
			res.Violations = append(res.Violations, "Contains code blocks or inline code (unexpected)")
		}
	}

	res.Valid = len(res.Violations) == 0
	return res
}

func containsAll(text string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	return true
}
