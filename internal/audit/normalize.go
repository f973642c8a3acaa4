package audit

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	dashReplacer = strings.NewReplacer(
		"\r\n", "\n",
		"\r", "\n",
		"‒", "-", // figure dash
		"–", "-", // en dash
		"—", "-", // em dash
		"―", "-", // horizontal bar
		"−", "-", // minus sign
	)
	horizontalSpace = regexp.MustCompile(`[\t\v\f \p{Zs}]+`)
	spaceAroundLF   = regexp.MustCompile(` ?\n ?`)
	blankLineRun    = regexp.MustCompile(`\n{4,}`)
)

// Normalize canonicalizes raw extracted text: NFC form, LF line endings,
// ASCII hyphens and single spaces, with runs of three or more blank lines
// collapsed to one. Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := norm.NFC.String(text)
	s = dashReplacer.Replace(s)
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = spaceAroundLF.ReplaceAllString(s, "\n")
	s = blankLineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// collapseSpace flattens all whitespace, newlines included, to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// limitWords truncates s to at most n whitespace-separated words.
func limitWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
