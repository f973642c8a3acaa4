package audit

import "fmt"

const (
	RuleInconsistentEffectiveDate   = "CONS-02"
	RuleInconsistentValueConclusion = "CONS-03"
	RuleEffectiveDateUntestable     = "CONS-04"
	RuleValueConclusionUntestable   = "CONS-05"
)

type crossCheck struct {
	issue      string
	ruleID     string
	untestable string
	untestID   string
	field      func(*Document) Field
	conflict   func(*Document) *Conflict
}

var crossChecks = []crossCheck{
	{
		issue:      "Inconsistent Effective Date",
		ruleID:     RuleInconsistentEffectiveDate,
		untestable: "Effective date not extracted; consistency cannot be tested",
		untestID:   RuleEffectiveDateUntestable,
		field:      func(d *Document) Field { return d.EffectiveDate },
		conflict:   func(d *Document) *Conflict { return d.EffectiveDateConflict },
	},
	{
		issue:      "Inconsistent Value Conclusion",
		ruleID:     RuleInconsistentValueConclusion,
		untestable: "Value conclusion not extracted; consistency cannot be tested",
		untestID:   RuleValueConclusionUntestable,
		field:      func(d *Document) Field { return d.ValueConclusion },
		conflict:   func(d *Document) *Conflict { return d.ValueConclusionConflict },
	},
}

// CheckConsistency reports fields whose structured and free-text values
// disagree. The returned findings bypass ranking: the renderer pins them to
// the top of the summary and condensed views.
func CheckConsistency(doc *Document) []Finding {
	var out []Finding
	for _, c := range crossChecks {
		conflict := c.conflict(doc)
		if conflict == nil {
			continue
		}
		out = append(out, Finding{
			Severity: Moderate,
			Issue:    c.issue,
			Detail:   fmt.Sprintf(`"%s" vs "%s"`, conflict.Structured.Value, conflict.FreeText.Value),
			Evidence: []Evidence{
				{Page: conflict.Structured.page()},
				{Page: conflict.FreeText.page()},
			},
			RuleID: c.ruleID,
		})
	}
	return out
}

// untestableFields annotates consistency checks that could not run because
// the field was not extracted at all.
func untestableFields(doc *Document) []Finding {
	var out []Finding
	for _, c := range crossChecks {
		if c.field(doc).Found() {
			continue
		}
		out = append(out, Finding{Severity: Minor, Issue: c.untestable, RuleID: c.untestID})
	}
	return out
}
