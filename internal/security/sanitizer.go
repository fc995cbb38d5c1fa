package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stoicmail/reflection-guard/internal/config"
)

// Modification labels reported by the sanitizer.
const (
	ModRemovedControl   = "Removed control characters"
	ModRemovedInvisible = "Removed invisible characters"
	ModNormalized       = "Normalized whitespace"
)

// invisibleChars are zero-width code points that render as nothing but can
// smuggle content past keyword checks.
var invisibleChars = strings.NewReplacer(
	"\u200b", "", // zero-width space
	"\u200c", "", // zero-width non-joiner
	"\u200d", "", // zero-width joiner
	"\u2060", "", // word joiner
	"\ufeff", "", // byte order mark
	"\u180e", "", // mongolian vowel separator
)

var horizontalSpace = regexp.MustCompile(`[ \t]+`)

// Sanitizer normalises untrusted text. It holds no mutable state and is safe
// for concurrent use.
type Sanitizer struct {
	cfg config.SanitizationConfig
}

// NewSanitizer builds a sanitizer for the given policy.
func NewSanitizer(cfg config.SanitizationConfig) *Sanitizer {
	return &Sanitizer{cfg: cfg}
}

// Sanitize returns the cleaned text and a label for each step that changed it.
func (s *Sanitizer) Sanitize(text string) (string, []string) {
	if !s.cfg.Enabled {
		return text, nil
	}

	var mods []string
	out := text

	if s.cfg.RemoveControlChars {
		before := len(out)
		out = removeControlChars(out)
		if len(out) != before {
			mods = append(mods, ModRemovedControl)
		}
	}

	if s.cfg.StripInvisibleChars {
		before := len(out)
		out = invisibleChars.Replace(out)
		if len(out) != before {
			mods = append(mods, ModRemovedInvisible)
		}
	}

	if s.cfg.NormalizeWhitespace {
		before := len(out)
		out = normalizeWhitespace(out)
		if len(out) != before {
			mods = append(mods, ModNormalized)
		}
	}

	if max := s.cfg.MaxConsecutiveNewlines; max > 0 {
		if capped, changed := capNewlines(out, max); changed {
			out = capped
			mods = append(mods, fmt.Sprintf("Limited consecutive newlines to %d", max))
		}
	}

	return strings.TrimSpace(out), mods
}

// removeControlChars drops every rune in the Unicode "Other" categories
// (control, format, private use, unassigned) except newline, carriage return
// and tab. Invalid UTF-8 bytes are dropped as well.
func removeControlChars(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(text[i:]); size <= 1 {
				continue
			}
		}
		if r == '\n' || r == '\r' || r == '\t' || !isOther(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isOther(r rune) bool {
	if unicode.Is(unicode.C, r) {
		return true
	}
	return !unicode.In(r, unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Z)
}

func normalizeWhitespace(text string) string {
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return strings.Join(lines, "\n")
}

// capNewlines collapses every run of more than max newlines to exactly max.
func capNewlines(text string, max int) (string, bool) {
	var b strings.Builder
	b.Grow(len(text))
	changed := false
	run := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\n' {
			run++
			if run > max {
				changed = true
				continue
			}
		} else {
			run = 0
		}
		b.WriteByte(c)
	}
	if !changed {
		return text, false
	}
	return b.String(), true
}
