// Package sanitization scrubs outbound notification text before it
// reaches any NotificationTransport, so a Slack/email/SNS message can
// never leak content the Sensitivity Gate would flag. Two tiers compose:
// a regex-based primary pass producing "***REDACTED***" markers, and a
// safe string-matching fallback that can never panic or fail, used when
// the primary pass itself errors (modeled on this package's sanitizer
// fallback test).
package sanitization

import (
	"regexp"
	"strings"
)

// Sanitizer scrubs sensitive substrings from outbound text.
type Sanitizer struct {
	patterns []*regexp.Regexp
	keywords []string
}

// New constructs a Sanitizer with the default pattern/keyword sets.
func New() *Sanitizer {
	return &Sanitizer{
		patterns: defaultPatterns(),
		keywords: defaultKeywords(),
	}
}

func defaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password)\s*[:=]\s*['"]?[A-Za-z0-9_\-/+=]{8,}['"]?`),
		regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH )?PRIVATE KEY-----[\s\S]*?-----END (RSA |EC |OPENSSH )?PRIVATE KEY-----`),
	}
}

func defaultKeywords() []string {
	return []string{"password", "secret", "private key", "ssn", "api_key", "apikey"}
}

// Sanitize runs the regex primary pass. If any pattern panics (it never
// should, but regex inputs from untrusted upstream content are not fully
// trusted here) the caller should use SanitizeSafe instead as a fallback.
func (s *Sanitizer) Sanitize(text string) string {
	out := text
	for _, p := range s.patterns {
		out = p.ReplaceAllString(out, "***REDACTED***")
	}
	return out
}

// SanitizeSafe is the fallback tier: pure substring matching, no regexp
// engine involved, guaranteed not to panic regardless of input. Used when
// the primary Sanitize pass cannot be trusted to run (e.g. recovering
// from a panic in a custom pattern set).
func (s *Sanitizer) SanitizeSafe(text string) string {
	defer func() { recover() }() //nolint:errcheck // never allow this path to fail the caller

	lower := strings.ToLower(text)
	for _, kw := range s.keywords {
		if strings.Contains(lower, kw) {
			return "***REDACTED (contains sensitive keyword)***"
		}
	}
	return text
}

// SanitizeWithFallback runs Sanitize, recovering to SanitizeSafe if the
// primary pass panics. This is the entry point every NotificationTransport
// should call: it must never fail closed into an unscrubbed message.
func (s *Sanitizer) SanitizeWithFallback(text string) (result string, usedFallback bool) {
	defer func() {
		if r := recover(); r != nil {
			result = s.SanitizeSafe(text)
			usedFallback = true
		}
	}()
	return s.Sanitize(text), false
}
