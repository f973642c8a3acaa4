package audit

import (
	"fmt"
	"strings"
)

// NotFound is rendered for every absent field value.
const NotFound = "[Not found]"

// Redacted replaces identifying values in public mode.
const Redacted = "[Redacted]"

// SectionHeaders are the five fixed section labels, in output order.
var SectionHeaders = [5]string{
	"[SECTION 1] REPORT METADATA SNAPSHOT",
	"[SECTION 2] SUMMARY OF COMPLIANCE FLAGS",
	"[SECTION 3] DETAILED FLAGS AND REFERENCES",
	"[SECTION 4] TOP FLAGS (CONDENSED)",
	"[SECTION 5] ADDITIONAL NOTES",
}

const (
	noteMissingDate = "→ Effective date not found; cannot compare to inspection date."
	noteFailure     = "→ Audit could not be completed; no compliance conclusions can be drawn from this output."
	noteDisclaimer  = "→ Automated audit. Use professional judgment when making final report decisions."
)

// Report is everything the renderer needs for one run.
type Report struct {
	Document *Document
	// Ranked rule-engine findings.
	Findings []Finding
	// Consistency findings, pinned ahead of the ranked views.
	Consistency []Finding
	Failure     *Failure
}

// Sections holds the five rendered blocks.
type Sections [5][]string

// String joins the sections under their headers.
func (s Sections) String() string {
	var lines []string
	for i, body := range s {
		lines = append(lines, SectionHeaders[i])
		for _, l := range body {
			if l = collapseSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// Renderer produces the deterministic plain-text report.
type Renderer struct {
	opts     Options
	redactor *Redactor
}

// NewRenderer creates a renderer for opts.
func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts, redactor: NewRedactor(opts.RedactPII)}
}

// Render returns the five-section text for rep.
func (r *Renderer) Render(rep Report) string {
	return r.Sections(rep).String()
}

// RenderFailure returns the error-shaped report for f. Every metadata field
// shows the not-found sentinel.
func (r *Renderer) RenderFailure(f *Failure) string {
	return r.Render(Report{
		Document: &Document{},
		Findings: []Finding{f.Finding()},
		Failure:  f,
	})
}

// Sections builds the five blocks for rep.
func (r *Renderer) Sections(rep Report) Sections {
	doc := rep.Document
	if doc == nil {
		doc = &Document{}
	}

	var s Sections
	s[0] = r.metadata(doc)

	for _, f := range rep.Consistency {
		s[1] = append(s[1], r.summaryLine(f))
	}
	for _, f := range rep.Findings {
		s[1] = append(s[1], r.summaryLine(f))
	}
	if len(s[1]) == 0 {
		s[1] = append(s[1], "→ No compliance flags identified.")
	}

	for _, f := range rep.Findings {
		s[2] = append(s[2], r.detailLine(f))
	}
	for _, f := range rep.Consistency {
		s[2] = append(s[2], r.detailLine(f))
	}
	if len(s[2]) == 0 {
		s[2] = append(s[2], "→ None.")
	}

	for _, f := range rep.Consistency {
		s[3] = append(s[3], r.condensedLine(f))
	}
	for _, f := range Condensed(rep.Findings) {
		s[3] = append(s[3], r.condensedLine(f))
	}
	if len(s[3]) == 0 {
		s[3] = append(s[3], "→ None.")
	}

	if rep.Failure != nil {
		s[4] = append(s[4], noteFailure)
	} else if !doc.EffectiveDate.Found() {
		s[4] = append(s[4], noteMissingDate)
	}
	s[4] = append(s[4], noteDisclaimer)
	return s
}

func (r *Renderer) metadata(doc *Document) []string {
	isVA := NotFound
	if doc.LoanType.Found() {
		isVA = "No"
		if doc.LoanType.Value == LoanVA {
			isVA = "Yes"
		}
	}

	fileName := NotFound
	if doc.FileName != "" {
		fileName = doc.FileName
	}

	return []string{
		"→ File Name = " + fileName,
		r.fieldLine("Effective Date", doc.EffectiveDate, false),
		r.fieldLine("Form Type", doc.FormType, false),
		r.fieldLine("Appraiser Name", doc.Appraiser, true),
		r.fieldLine("Intended Use / Client", doc.Client, true),
		r.fieldLine("Subject Address", doc.SubjectAddress, false),
		r.plainLine("State", doc.State),
		r.fieldLine("Loan Type", doc.LoanType, false),
		"→ Is VA Loan = " + isVA,
		r.plainLine("VA Case Number", doc.VACaseNumber),
		r.fieldLine("Value Conclusion", doc.ValueConclusion, false),
	}
}

// fieldLine renders "label = value" with an evidence citation when one is
// available. Identifying fields are masked in public mode.
func (r *Renderer) fieldLine(label string, f Field, identifying bool) string {
	if !f.Found() {
		return fmt.Sprintf("→ %s = %s", label, NotFound)
	}
	if identifying && r.opts.PublicMode {
		return fmt.Sprintf("→ %s = %s", label, Redacted)
	}
	line := fmt.Sprintf("→ %s = %s", label, f.Value)
	if f.Evidence != nil && r.opts.Style != StyleLegacy {
		line += " (Evidence: " + r.citation([]Evidence{*f.Evidence}) + ")"
	}
	return line
}

func (r *Renderer) plainLine(label string, f Field) string {
	if !f.Found() {
		return fmt.Sprintf("→ %s = %s", label, NotFound)
	}
	return fmt.Sprintf("→ %s = %s", label, f.Value)
}

func (r *Renderer) summaryLine(f Finding) string {
	if r.opts.Style == StyleLegacy {
		return fmt.Sprintf("→ %s %s: %s", f.Severity.Symbol(), f.Severity, f.Issue)
	}
	return fmt.Sprintf("→ [%s] %s", f.Severity, f.Issue)
}

func (r *Renderer) detailLine(f Finding) string {
	var b strings.Builder
	b.WriteString("→ ")
	b.WriteString(f.Issue)
	if detail := r.redactor.Redact(f.Detail); detail != "" {
		b.WriteString(": ")
		b.WriteString(detail)
	}
	if len(f.Evidence) > 0 && r.opts.Style != StyleLegacy {
		b.WriteString(". (Evidence: ")
		b.WriteString(r.citation(f.Evidence))
		b.WriteString(")")
	}
	if f.RuleID != "" {
		b.WriteString(" [")
		b.WriteString(f.RuleID)
		b.WriteString("]")
	}
	return b.String()
}

func (r *Renderer) condensedLine(f Finding) string {
	if r.opts.Style == StyleLegacy {
		return fmt.Sprintf("→ %s %s", f.Severity.Symbol(), f.Issue)
	}
	return "→ " + f.Issue
}

// citation formats one or more evidence references. A single reference
// carries its snippet; multiple references cite pages only.
func (r *Renderer) citation(ev []Evidence) string {
	if len(ev) == 1 {
		e := ev[0]
		if snippet := r.redactor.Redact(e.Snippet); snippet != "" {
			return fmt.Sprintf(`p.%d: "%s"`, e.Page, snippet)
		}
		return fmt.Sprintf("p.%d", e.Page)
	}
	pages := make([]string, len(ev))
	for i, e := range ev {
		pages[i] = fmt.Sprintf("p.%d", e.Page)
	}
	return strings.Join(pages, " / ")
}
