package audit

import (
	"slices"
	"strings"
)

// CondensedLimit is the number of ranked findings shown in the top-flags view.
const CondensedLimit = 3

// Rank returns a copy of findings ordered by severity and then issue text.
// The input slice is not modified.
func Rank(findings []Finding) []Finding {
	out := slices.Clone(findings)
	slices.SortStableFunc(out, func(a, b Finding) int {
		if a.Severity != b.Severity {
			return int(a.Severity) - int(b.Severity)
		}
		return strings.Compare(a.Issue, b.Issue)
	})
	return out
}

// Condensed returns the first CondensedLimit entries of an already ranked list.
func Condensed(ranked []Finding) []Finding {
	if len(ranked) <= CondensedLimit {
		return ranked
	}
	return ranked[:CondensedLimit]
}
