package audit

import (
	"fmt"
	"strings"
)

// Style selects the rendered output variant.
type Style string

const (
	StyleAnalyst Style = "analyst"
	StyleLegacy  Style = "legacy"
)

// ParseStyle maps a caller-supplied flag to a Style. Empty input selects the
// analyst view.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case "", StyleAnalyst:
		return StyleAnalyst, nil
	case StyleLegacy:
		return StyleLegacy, nil
	default:
		return StyleAnalyst, fmt.Errorf("unknown style %q (must be analyst or legacy)", s)
	}
}

// MissingFieldPolicy controls what happens when a field needed by a
// consistency check could not be extracted.
type MissingFieldPolicy string

const (
	// MissingFieldSkip leaves the check silent.
	MissingFieldSkip MissingFieldPolicy = "skip"
	// MissingFieldAnnotate emits a MINOR "cannot test" finding.
	MissingFieldAnnotate MissingFieldPolicy = "annotate"
)

// ParseMissingFieldPolicy validates a configured policy name.
func ParseMissingFieldPolicy(s string) (MissingFieldPolicy, error) {
	switch MissingFieldPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MissingFieldSkip:
		return MissingFieldSkip, nil
	case MissingFieldAnnotate:
		return MissingFieldAnnotate, nil
	default:
		return MissingFieldSkip, fmt.Errorf("unknown missing field policy %q (must be skip or annotate)", s)
	}
}

const (
	DefaultEvidenceMaxWords = 15
	snippetRadius           = 160
	valueWindowRadius       = 40
)

// Options are the tunables consumed by extraction and rendering.
type Options struct {
	EvidenceMaxWords int
	PublicMode       bool
	RedactPII        bool
	Style            Style
}

// DefaultOptions mirrors the service defaults: public output with PII masking.
func DefaultOptions() Options {
	return Options{
		EvidenceMaxWords: DefaultEvidenceMaxWords,
		PublicMode:       true,
		RedactPII:        true,
		Style:            StyleAnalyst,
	}
}

func (o Options) maxWords() int {
	if o.EvidenceMaxWords <= 0 {
		return DefaultEvidenceMaxWords
	}
	return o.EvidenceMaxWords
}
