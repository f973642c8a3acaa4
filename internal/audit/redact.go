package audit

import (
	"regexp"
	"strings"
)

// RedactionMark replaces every masked span.
const RedactionMark = "[…]"

var (
	fairHousingTerms = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(race|ethnicity|religion|national origin|familial status|pregnant|wheelchair|handicap|disability)\b`),
		regexp.MustCompile(`(?i)\bfamily[- ]?friendly\b`),
		regexp.MustCompile(`(?i)\bdesirable (?:area|neighborhood)\b`),
		regexp.MustCompile(`(?i)\bhigh crime\b`),
	}

	piiPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bSSN[:#]?\s*\d{3}-?\d{2}-?\d{4}\b`),
		regexp.MustCompile(`(?i)\bLoan(?:\s*ID|\s*#):?\s*[A-Za-z0-9-]{6,}\b`),
		regexp.MustCompile(`\b[\w.+-]+@[\w-]+(?:\.[\w-]+)+\b`),
		regexp.MustCompile(`\(\d{3}\)\s?\d{3}-\d{4}\b`),
		regexp.MustCompile(`\b\d{3}[-.]\d{3}[-.]\d{4}\b`),
	}
)

// Redactor masks fair-housing-sensitive language and, when enabled, PII in
// any text destined for output.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor builds a redactor. Fair-housing terms are always masked.
func NewRedactor(redactPII bool) *Redactor {
	patterns := make([]*regexp.Regexp, 0, len(fairHousingTerms)+len(piiPatterns))
	patterns = append(patterns, fairHousingTerms...)
	if redactPII {
		patterns = append(patterns, piiPatterns...)
	}
	return &Redactor{patterns: patterns}
}

// Redact returns s with sensitive spans replaced by RedactionMark and all
// whitespace collapsed. Redact(Redact(s)) == Redact(s).
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return ""
	}
	out := collapseSpace(s)
	for _, p := range r.patterns {
		out = p.ReplaceAllString(out, RedactionMark)
	}
	return collapseSpace(out)
}

// RedactLines redacts each line of s on its own, keeping the line breaks.
func (r *Redactor) RedactLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = r.Redact(line)
	}
	return strings.Join(lines, "\n")
}
