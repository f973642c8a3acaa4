package audit

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	effectiveDateStructured = []Strategy{kvEffectiveDate}
	effectiveDateFreeText   = []Strategy{labeledEffectiveDate, firstDateInText}

	valueConclusionStructured = []Strategy{kvValueConclusion}
	valueConclusionFreeText   = []Strategy{valueNearKeyword}

	formTypeChain       = []Strategy{kvFormType, formMarkerInText}
	appraiserChain      = []Strategy{kvAppraiser, labeledAppraiser}
	clientChain         = []Strategy{kvClient, labeledClient}
	subjectAddressChain = []Strategy{kvSubjectAddress, addressInText}
	loanTypeChain       = []Strategy{kvLoanType, loanMarkersInText, defaultLoanType}
	vaCaseChain         = []Strategy{kvVACase, vaCaseInText}
)

// Effective date

var effectiveDateLabel = regexp.MustCompile(
	`(?i)effective\s+date(?:\s+of\s+(?:the\s+)?(?:appraisal|value|report))?\s*(?:is\s*)?[:\-]?\s*`)

func kvEffectiveDate(x *Extractor, src *Source) Field {
	row, ok := lookupKV(src, "Effective Date")
	if !ok {
		return Field{}
	}
	value, ok := FormatDate(row.Value)
	if !ok {
		value = row.Value
	}
	return Field{Value: value, Evidence: x.kvEvidence(row)}
}

func labeledEffectiveDate(x *Extractor, src *Source) Field {
	for _, loc := range effectiveDateLabel.FindAllStringIndex(src.Text, -1) {
		tail := src.Text[loc[1]:min(loc[1]+40, len(src.Text))]
		m, ok := findDate(tail)
		if !ok || m.start != 0 {
			continue
		}
		return Field{
			Value:    m.formatted,
			Evidence: x.textEvidence(src, loc[1]+m.start, loc[1]+m.end),
		}
	}
	return Field{}
}

func firstDateInText(x *Extractor, src *Source) Field {
	m, ok := findDate(src.Text)
	if !ok {
		return Field{}
	}
	return Field{Value: m.formatted, Evidence: x.textEvidence(src, m.start, m.end)}
}

// Value conclusion

func kvValueConclusion(x *Extractor, src *Source) Field {
	row, ok := lookupKV(src, "Final Value", "Appraised Value", "Opinion of Value")
	if !ok {
		return Field{}
	}
	return Field{Value: FormatMoney(row.Value), Evidence: x.kvEvidence(row)}
}

func valueNearKeyword(x *Extractor, src *Source) Field {
	text := src.Text
	for _, loc := range moneyPattern.FindAllStringIndex(text, -1) {
		window := text[max(loc[0]-valueWindowRadius, 0):min(loc[1]+valueWindowRadius, len(text))]
		if !valueKeyword.MatchString(window) {
			continue
		}
		return Field{
			Value:    strings.ReplaceAll(text[loc[0]:loc[1]], " ", ""),
			Evidence: x.textEvidence(src, loc[0], loc[1]),
		}
	}
	return Field{}
}

// Form type

type formMarkers struct {
	code    string
	markers []*regexp.Regexp
}

func markerSet(terms ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(t) + `\b`)
	}
	return out
}

// formTable is searched in order; the first code with any marker wins.
var formTable = []formMarkers{
	{"1004", markerSet("UNIFORM RESIDENTIAL APPRAISAL REPORT", "URAR", "1004")},
	{"1025", markerSet("SMALL RESIDENTIAL INCOME PROPERTY APPRAISAL REPORT", "1025")},
	{"1004C", markerSet("MANUFACTURED HOME APPRAISAL REPORT", "1004C")},
	{"1073", markerSet("INDIVIDUAL CONDOMINIUM UNIT APPRAISAL REPORT", "1073")},
	{"2055", markerSet("EXTERIOR-ONLY INSPECTION RESIDENTIAL APPRAISAL REPORT", "2055")},
}

// classifyForm returns the first form code with a marker in s and the
// matched span.
func classifyForm(s string) (string, []int) {
	for _, f := range formTable {
		for _, m := range f.markers {
			if loc := m.FindStringIndex(s); loc != nil {
				return f.code, loc
			}
		}
	}
	return "", nil
}

func kvFormType(x *Extractor, src *Source) Field {
	row, ok := lookupKV(src, "Form Type", "Form No", "Form Number")
	if !ok {
		return Field{}
	}
	value := row.Value
	if code, _ := classifyForm(row.Value); code != "" {
		value = code
	}
	return Field{Value: value, Evidence: x.kvEvidence(row)}
}

func formMarkerInText(x *Extractor, src *Source) Field {
	code, loc := classifyForm(src.Text)
	if code == "" {
		return Field{}
	}
	return Field{Value: code, Evidence: x.textEvidence(src, loc[0], loc[1])}
}

// Named parties

var (
	appraiserLabel = regexp.MustCompile(
		`(?i:\bappraiser(?:'s)?(?:\s+name)?|\bsigned\s+by)\s*[:\-]\s*([A-Z][A-Za-z.'-]+(?: [A-Za-z][A-Za-z.'-]*){0,5})`)
	clientLabel = regexp.MustCompile(
		`(?i:\b(?:lender\s*/\s*client|client|lender)(?:\s+name)?)\s*[:\-]\s*([A-Za-z0-9][^\n]{1,80})`)
	// trailingLabel finds the next form label sharing the OCR line.
	trailingLabel = regexp.MustCompile(
		`(?i)\s+(?:date|license|cert(?:ification)?|state|address|phone|e-?mail|company|signature|client|lender|appraiser|file|loan|borrower|intended|effective|supervisory)\b`)
)

func kvAppraiser(x *Extractor, src *Source) Field {
	return x.kvField(src, "Appraiser", "Signed By")
}

func kvClient(x *Extractor, src *Source) Field {
	return x.kvField(src, "Client", "Lender")
}

func (x *Extractor) kvField(src *Source, keys ...string) Field {
	row, ok := lookupKV(src, keys...)
	if !ok {
		return Field{}
	}
	return Field{Value: row.Value, Evidence: x.kvEvidence(row)}
}

func labeledAppraiser(x *Extractor, src *Source) Field {
	return x.labeled(src, appraiserLabel, 4)
}

func labeledClient(x *Extractor, src *Source) Field {
	return x.labeled(src, clientLabel, 8)
}

// labeled extracts the first capture group of re, cut at the next inline
// label so a single OCR line holding several form fields yields one value.
func (x *Extractor) labeled(src *Source, re *regexp.Regexp, maxWords int) Field {
	loc := re.FindStringSubmatchIndex(src.Text)
	if loc == nil {
		return Field{}
	}
	start, end := loc[2], loc[3]
	value := src.Text[start:end]
	if cut := trailingLabel.FindStringIndex(value); cut != nil {
		value = value[:cut[0]]
		end = start + cut[0]
	}
	value = limitWords(strings.TrimRight(strings.TrimSpace(value), ",;:"), maxWords)
	if value == "" {
		return Field{}
	}
	return Field{Value: value, Evidence: x.textEvidence(src, start, end)}
}

// Subject address and state

var (
	addressPattern = regexp.MustCompile(
		`\b(\d{1,6} +[A-Za-z0-9][A-Za-z0-9 .'#-]*, *[A-Za-z][A-Za-z .'-]*,) *([A-Z]{2}) *(\d{5}(?:-\d{4})?)\b`)
	stateZipPattern = regexp.MustCompile(`\b([A-Z]{2})\b\s*\d{5}(?:-\d{4})?`)
)

var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true, "CT": true, "DE": true,
	"DC": true, "FL": true, "GA": true, "HI": true, "ID": true, "IL": true, "IN": true, "IA": true,
	"KS": true, "KY": true, "LA": true, "ME": true, "MD": true, "MA": true, "MI": true, "MN": true,
	"MS": true, "MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true, "NM": true,
	"NY": true, "NC": true, "ND": true, "OH": true, "OK": true, "OR": true, "PA": true, "RI": true,
	"SC": true, "SD": true, "TN": true, "TX": true, "UT": true, "VT": true, "VA": true, "WA": true,
	"WV": true, "WI": true, "WY": true, "PR": true, "GU": true, "VI": true,
}

func kvSubjectAddress(x *Extractor, src *Source) Field {
	return x.kvField(src, "Subject Address", "Property Address", "Street Address")
}

func addressInText(x *Extractor, src *Source) Field {
	for _, loc := range addressPattern.FindAllStringSubmatchIndex(src.Text, -1) {
		state := src.Text[loc[4]:loc[5]]
		if !usStates[state] {
			continue
		}
		street := cases.Title(language.English).String(src.Text[loc[2]:loc[3]])
		value := fmt.Sprintf("%s %s %s", collapseSpace(street), state, src.Text[loc[6]:loc[7]])
		return Field{Value: value, Evidence: x.textEvidence(src, loc[0], loc[1])}
	}
	return Field{}
}

// stateFromAddress derives the two-letter code preceding the ZIP.
func stateFromAddress(addr Field) Field {
	if !addr.Found() {
		return Field{}
	}
	for _, m := range stateZipPattern.FindAllStringSubmatch(strings.ToUpper(addr.Value), -1) {
		if usStates[m[1]] {
			return Field{Value: m[1], Evidence: addr.Evidence}
		}
	}
	return Field{}
}

// Loan type

const (
	LoanVA           = "VA"
	LoanFHA          = "FHA"
	LoanUSDA         = "USDA"
	LoanConventional = "Conventional"
)

type loanMarkers struct {
	loanType string
	markers  []*regexp.Regexp
}

// loanTable is checked in priority order.
var loanTable = []loanMarkers{
	{LoanVA, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bVETERANS AFFAIRS\b`),
		regexp.MustCompile(`\bVA\b`),
		regexp.MustCompile(`(?i)\bVA (?:CASE|MPR|LOAN|GUARANT)`),
		regexp.MustCompile(`(?i)\bMINIMUM PROPERTY REQUIREMENTS\b`),
	}},
	{LoanFHA, markerSet("FHA", "HUD")},
	{LoanUSDA, markerSet("USDA", "RURAL DEVELOPMENT")},
}

// stateZipToken masks "VA 22150" style tokens so an address in Virginia does
// not read as a VA loan.
var stateZipToken = regexp.MustCompile(`\b[A-Z]{2}\s+\d{5}(?:-\d{4})?\b`)

// cityStateToken masks ", VA" closing a city name ("Arlington, VA." or
// "Fairfax, VA" at end of line).
var cityStateToken = regexp.MustCompile(`(?m),[ \t]*VA(?:[.,;:)]|[ \t]*$)`)

func classifyLoan(s string) (string, []int) {
	hide := func(m string) string {
		return strings.Repeat("#", len(m))
	}
	masked := stateZipToken.ReplaceAllStringFunc(s, hide)
	masked = cityStateToken.ReplaceAllStringFunc(masked, hide)
	for _, l := range loanTable {
		for _, m := range l.markers {
			if loc := m.FindStringIndex(masked); loc != nil {
				return l.loanType, loc
			}
		}
	}
	return "", nil
}

func kvLoanType(x *Extractor, src *Source) Field {
	row, ok := lookupKV(src, "Loan Type", "Program", "Assignment Type")
	if !ok {
		return Field{}
	}
	if lt, _ := classifyLoan(strings.ToUpper(row.Value)); lt != "" {
		return Field{Value: lt, Evidence: x.kvEvidence(row)}
	}
	if strings.Contains(strings.ToLower(row.Value), "conventional") {
		return Field{Value: LoanConventional, Evidence: x.kvEvidence(row)}
	}
	return Field{}
}

func loanMarkersInText(x *Extractor, src *Source) Field {
	lt, loc := classifyLoan(src.Text)
	if lt == "" {
		return Field{}
	}
	return Field{Value: lt, Evidence: x.textEvidence(src, loc[0], loc[1])}
}

func defaultLoanType(*Extractor, *Source) Field {
	return Field{Value: LoanConventional}
}

// VA case number

var vaCasePattern = regexp.MustCompile(
	`\b26[\s\-_/.]*26[\s\-_/.]*([A-Za-z0-9])[\s\-_/.]*([A-Za-z0-9]{1,12})`)

// NormalizeVACase rebuilds the canonical 26-26-X-XXXXXXX form from the first
// case-number-shaped token in raw.
func NormalizeVACase(raw string) (string, bool) {
	m := vaCasePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return canonicalVACase(m[1], m[2]), true
}

func canonicalVACase(mid, tail string) string {
	tail = strings.ToUpper(tail)
	if len(tail) > 7 {
		tail = tail[:7]
	}
	tail = strings.Repeat("0", 7-len(tail)) + tail
	return fmt.Sprintf("26-26-%s-%s", strings.ToUpper(mid), tail)
}

func kvVACase(x *Extractor, src *Source) Field {
	row, ok := lookupKV(src, "VA Case", "Case No", "Case Number")
	if !ok {
		return Field{}
	}
	value, ok := NormalizeVACase(row.Value)
	if !ok {
		return Field{}
	}
	return Field{Value: value, Evidence: x.kvEvidence(row)}
}

func vaCaseInText(x *Extractor, src *Source) Field {
	loc := vaCasePattern.FindStringSubmatchIndex(src.Text)
	if loc == nil {
		return Field{}
	}
	value := canonicalVACase(src.Text[loc[2]:loc[3]], src.Text[loc[4]:loc[5]])
	return Field{Value: value, Evidence: x.textEvidence(src, loc[0], loc[1])}
}
