package sensitivity

import (
	"regexp"
	"strings"

	"github.com/taskforge/orchestrator/pkg/model"
)

// Rule is a regex-based detector over one category of content: a
// battery of regex rules for credentials, financial identifiers, and
// proprietary markers, each carrying a severity.
type Rule struct {
	Category model.DetectionCategory
	Type     string
	Severity model.Severity
	pattern  *regexp.Regexp
	// reject, when set, filters out matches that look like known false
	// positives (sequential/repeated/common test numbers for financial
	// identifiers).
	reject func(match string) bool
}

// Detect returns every non-overlapping match of the rule's pattern.
func (r Rule) Detect(content string) []model.Detection {
	var out []model.Detection
	for _, loc := range r.pattern.FindAllStringIndex(content, -1) {
		match := content[loc[0]:loc[1]]
		if r.reject != nil && r.reject(match) {
			continue
		}
		out = append(out, model.Detection{
			Category:   r.Category,
			Type:       r.Type,
			Start:      loc[0],
			End:        loc[1],
			Confidence: 1.0,
			Severity:   r.Severity,
		})
	}
	return out
}

// DefaultRules returns the standard credentials/financial/proprietary
// regex battery.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category: model.CategoryCredentials,
			Type:     "aws_access_key",
			Severity: model.SeverityCritical,
			pattern:  regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		},
		{
			Category: model.CategoryCredentials,
			Type:     "aws_secret_key",
			Severity: model.SeverityCritical,
			pattern:  regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`),
		},
		{
			Category: model.CategoryCredentials,
			Type:     "generic_api_key",
			Severity: model.SeverityHigh,
			pattern:  regexp.MustCompile(`(?i)(api[_-]?key|secret|token)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{20,}['"]?`),
		},
		{
			Category: model.CategoryCredentials,
			Type:     "private_key_block",
			Severity: model.SeverityCritical,
			pattern:  regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH )?PRIVATE KEY-----`),
		},
		{
			Category: model.CategoryFinancial,
			Type:     "credit_card",
			Severity: model.SeverityHigh,
			pattern:  regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`),
			reject:   isFalsePositiveCardNumber,
		},
		{
			Category: model.CategoryFinancial,
			Type:     "us_bank_routing",
			Severity: model.SeverityMedium,
			pattern:  regexp.MustCompile(`\b\d{9}\b`),
			reject:   isFalsePositiveDigitRun,
		},
		{
			Category: model.CategoryPII,
			Type:     "ssn",
			Severity: model.SeverityHigh,
			pattern:  regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		},
		{
			Category: model.CategoryPII,
			Type:     "email",
			Severity: model.SeverityLow,
			pattern:  regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		},
		{
			Category: model.CategoryProprietary,
			Type:     "confidential_marker",
			Severity: model.SeverityMedium,
			pattern:  regexp.MustCompile(`(?i)\b(confidential|proprietary|internal use only|trade secret)\b`),
		},
	}
}

// digitsOnly strips separators from a matched numeric string.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isFalsePositiveCardNumber rejects sequential, repeated, or common test
// card numbers so financial detectors don't flag obvious placeholders.
func isFalsePositiveCardNumber(match string) bool {
	digits := digitsOnly(match)
	if len(digits) < 13 || len(digits) > 19 {
		return true
	}
	if isRepeatedDigit(digits) || isSequential(digits) {
		return true
	}
	for _, testNum := range knownTestCardNumbers {
		if digits == testNum {
			return true
		}
	}
	return false
}

func isFalsePositiveDigitRun(match string) bool {
	digits := digitsOnly(match)
	return isRepeatedDigit(digits) || isSequential(digits)
}

func isRepeatedDigit(digits string) bool {
	if len(digits) == 0 {
		return true
	}
	for _, r := range digits {
		if r != rune(digits[0]) {
			return false
		}
	}
	return true
}

func isSequential(digits string) bool {
	ascending, descending := true, true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[i-1]+1 {
			ascending = false
		}
		if digits[i] != digits[i-1]-1 {
			descending = false
		}
	}
	return ascending || descending
}

var knownTestCardNumbers = []string{
	"4111111111111111", // Visa test number
	"5500000000000004", // Mastercard test number
	"340000000000009",  // Amex test number
	"6011000000000004", // Discover test number
}
