package audit

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Rule is one independent compliance check. A rule never reads another
// rule's output.
type Rule struct {
	ID    string
	Check func(rc *RuleContext) []Finding
}

// RuleContext is the read-only input handed to every rule.
type RuleContext struct {
	Doc    *Document
	Policy Policy
	x      *Extractor
}

// cite returns evidence for a span of the document text.
func (rc *RuleContext) cite(loc []int) []Evidence {
	if loc == nil {
		return nil
	}
	return []Evidence{*rc.x.textEvidence(&rc.Doc.Source, loc[0], loc[1])}
}

// citeField returns the field's own evidence, if any.
func citeField(f Field) []Evidence {
	if f.Evidence == nil {
		return nil
	}
	return []Evidence{*f.Evidence}
}

const (
	netAdjustmentLimit   = 15.0
	grossAdjustmentLimit = 25.0
	minComparables       = 3
)

var (
	marketConditionsMarker = regexp.MustCompile(`(?i)\b1004MC\b|MARKET CONDITIONS ADDENDUM`)
	vaRequirementMarker    = regexp.MustCompile(`(?i:\bMPR\b|MINIMUM PROPERTY REQUIREMENTS|TIDEWATER|NOTICE OF VALUE)|\bNOV\b`)
	fhaMarker              = regexp.MustCompile(`(?i)\bFHA\b|\bHUD\b`)
	highestBestUse         = regexp.MustCompile(`(?i)highest\s*(?:&|and)\s*best\s*use`)
	costNotDeveloped       = regexp.MustCompile(`(?i)cost approach (?:was |is )?not developed`)
	costApproachValue      = regexp.MustCompile(`(?i)(?:indicated value by|value by|estimated)?\s*cost approach\s*[:=]?\s*\$\s?\d`)
	marketTrendClaim       = regexp.MustCompile(`(?i)market (?:values )?(?:is |are )?(stable|declining|increasing)`)
	marketTrendSupport     = regexp.MustCompile(`(?i)\bDOM\b|median|inventory|trend|absorption|months of supply`)
	reconciliation         = regexp.MustCompile(`(?i)reconcil`)
	adjustedRange          = regexp.MustCompile(`(?i)adjusted range|range of adjusted values`)
	subjectToCondition     = regexp.MustCompile(`(?i)\bsubject to (?:the )?(?:completion|repairs?|alterations|inspection)|conditional upon|repair completion`)
	completionReference    = regexp.MustCompile(`(?i)\b1004D\b|certification of completion|completion report`)

	// fairHousingExclusions masks phrasing that contains a protected term
	// without describing occupants.
	fairHousingExclusions = regexp.MustCompile(
		`(?i)\b(?:family room|single[- ]family|multi[- ]?family|two[- ]family|family dwelling|family residence|race ?track)\b`)
)

// DefaultRules is the fixed, ordered rule set.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "GSE-01", Check: checkMarketConditions},
		{ID: "VA-01", Check: checkVARequirements},
		{ID: "VA-02", Check: checkVACaseNumber},
		{ID: "FHA-01", Check: checkFHAMarker},
		{ID: "USPAP-13", Check: checkHighestBestUse},
		{ID: "CONS-01", Check: checkSubjectAddress},
		{ID: "USPAP-21", Check: checkScopeOfWork},
		{ID: "USPAP-22", Check: checkMarketTrend},
		{ID: "USPAP-23", Check: checkReconciliation},
		{ID: "FH-01", Check: checkFairHousing},
		{ID: "COND-01", Check: checkCompletionReference},
		{ID: "COMP-01", Check: checkNetAdjustments},
		{ID: "COMP-02", Check: checkGrossAdjustments},
		{ID: "COMP-03", Check: checkComparableCount},
		{ID: "STATE", Check: checkStateHooks},
		{ID: "CONS-04", Check: checkUntestableFields},
	}
}

func checkMarketConditions(rc *RuleContext) []Finding {
	if marketConditionsMarker.MatchString(rc.Doc.Text) {
		return nil
	}
	return []Finding{{
		Severity: Moderate,
		Issue:    "Missing 1004MC when applicable",
		Detail:   "No Market Conditions Addendum (Form 1004MC) reference found",
		RuleID:   "GSE-01",
	}}
}

func checkVARequirements(rc *RuleContext) []Finding {
	if rc.Doc.LoanType.Value != LoanVA || vaRequirementMarker.MatchString(rc.Doc.Text) {
		return nil
	}
	return []Finding{{
		Severity: Critical,
		Issue:    "VA MPR references missing in VA context",
		Detail:   "No MPR, Tidewater or Notice of Value reference found",
		Evidence: citeField(rc.Doc.LoanType),
		RuleID:   "VA-01",
	}}
}

func checkVACaseNumber(rc *RuleContext) []Finding {
	if rc.Doc.LoanType.Value != LoanVA || rc.Doc.VACaseNumber.Found() {
		return nil
	}
	return []Finding{{
		Severity: Minor,
		Issue:    "VA case number not found in VA context",
		RuleID:   "VA-02",
	}}
}

func checkFHAMarker(rc *RuleContext) []Finding {
	if rc.Doc.LoanType.Value != LoanFHA || fhaMarker.MatchString(rc.Doc.Text) {
		return nil
	}
	return []Finding{{
		Severity: Critical,
		Issue:    "FHA exhibit/certification missing in FHA context",
		Evidence: citeField(rc.Doc.LoanType),
		RuleID:   "FHA-01",
	}}
}

func checkHighestBestUse(rc *RuleContext) []Finding {
	if highestBestUse.MatchString(rc.Doc.Text) {
		return nil
	}
	return []Finding{{
		Severity: Moderate,
		Issue:    "H&BU statement/support not found",
		RuleID:   "USPAP-13",
	}}
}

func checkSubjectAddress(rc *RuleContext) []Finding {
	if rc.Doc.SubjectAddress.Found() {
		return nil
	}
	return []Finding{{
		Severity: Minor,
		Issue:    "Subject address not extracted; consistency cannot be tested",
		RuleID:   "CONS-01",
	}}
}

func checkScopeOfWork(rc *RuleContext) []Finding {
	loc := costNotDeveloped.FindStringIndex(rc.Doc.Text)
	if loc == nil || !costApproachValue.MatchString(rc.Doc.Text) {
		return nil
	}
	return []Finding{{
		Severity: Moderate,
		Issue:    "Scope of work contradiction detected",
		Detail:   "Cost approach reported as not developed but a cost approach value is presented",
		Evidence: rc.cite(loc),
		RuleID:   "USPAP-21",
	}}
}

func checkMarketTrend(rc *RuleContext) []Finding {
	loc := marketTrendClaim.FindStringIndex(rc.Doc.Text)
	if loc == nil || marketTrendSupport.MatchString(rc.Doc.Text) {
		return nil
	}
	return []Finding{{
		Severity: Moderate,
		Issue:    "Market trend stated without supporting data",
		Evidence: rc.cite(loc),
		RuleID:   "USPAP-22",
	}}
}

func checkReconciliation(rc *RuleContext) []Finding {
	loc := reconciliation.FindStringIndex(rc.Doc.Text)
	if loc == nil || adjustedRange.MatchString(rc.Doc.Text) {
		return nil
	}
	return []Finding{{
		Severity: Minor,
		Issue:    "Final value not reconciled against adjusted range",
		RuleID:   "USPAP-23",
	}}
}

func checkFairHousing(rc *RuleContext) []Finding {
	masked := fairHousingExclusions.ReplaceAllStringFunc(rc.Doc.Text, func(m string) string {
		return strings.Repeat("#", len(m))
	})
	for _, p := range fairHousingTerms {
		if loc := p.FindStringIndex(masked); loc != nil {
			return []Finding{{
				Severity: Moderate,
				Issue:    "Potential Fair Housing concern detected in narrative",
				Evidence: rc.cite(loc),
				RuleID:   "FH-01",
			}}
		}
	}
	return nil
}

func checkCompletionReference(rc *RuleContext) []Finding {
	loc := subjectToCondition.FindStringIndex(rc.Doc.Text)
	if loc == nil || completionReference.MatchString(rc.Doc.Text) {
		return nil
	}
	return []Finding{{
		Severity: Minor,
		Issue:    "Subject-to conditions without completion certification reference",
		Detail:   "No Form 1004D or certification of completion referenced",
		Evidence: rc.cite(loc),
		RuleID:   "COND-01",
	}}
}

func checkNetAdjustments(rc *RuleContext) []Finding {
	return adjustmentFinding(rc.Doc.Comparables, "COMP-01", "net", netAdjustmentLimit,
		func(c Comparable) *float64 { return c.NetAdjPct })
}

func checkGrossAdjustments(rc *RuleContext) []Finding {
	return adjustmentFinding(rc.Doc.Comparables, "COMP-02", "gross", grossAdjustmentLimit,
		func(c Comparable) *float64 { return c.GrossAdjPct })
}

func adjustmentFinding(comps []Comparable, ruleID, kind string, limit float64, pct func(Comparable) *float64) []Finding {
	var over []string
	for i, c := range comps {
		p := pct(c)
		if p == nil || math.Abs(*p) <= limit {
			continue
		}
		label := c.Label
		if label == "" {
			label = fmt.Sprintf("Comparable %d", i+1)
		}
		over = append(over, fmt.Sprintf("%s %.1f%%", label, *p))
	}
	if len(over) == 0 {
		return nil
	}
	return []Finding{{
		Severity: Minor,
		Issue:    fmt.Sprintf("Comparable %s adjustment exceeds %.0f%%", kind, limit),
		Detail:   strings.Join(over, "; "),
		RuleID:   ruleID,
	}}
}

func checkComparableCount(rc *RuleContext) []Finding {
	n := len(rc.Doc.Comparables)
	if n == 0 || n >= minComparables {
		return nil
	}
	return []Finding{{
		Severity: Minor,
		Issue:    "Fewer than three comparable sales identified",
		Detail:   fmt.Sprintf("%d comparable(s) parsed", n),
		RuleID:   "COMP-03",
	}}
}

func checkStateHooks(rc *RuleContext) []Finding {
	hooks := rc.Policy.StateHooks[rc.Doc.State.Value]
	var out []Finding
	for _, h := range hooks {
		if h.Pattern == nil || h.Pattern.MatchString(rc.Doc.Text) {
			continue
		}
		issue := h.Issue
		if issue == "" {
			issue = "State disclosure missing"
		}
		out = append(out, Finding{
			Severity: h.Severity,
			Issue:    issue,
			Detail:   fmt.Sprintf("%s requirement not found", rc.Doc.State.Value),
			RuleID:   h.ID,
		})
	}
	return out
}

func checkUntestableFields(rc *RuleContext) []Finding {
	if rc.Policy.MissingFields != MissingFieldAnnotate {
		return nil
	}
	return untestableFields(rc.Doc)
}
