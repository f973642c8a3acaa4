package audit

import (
	"fmt"
	"regexp"
	"strings"
)

// Severity classifies a finding. Lower values rank first.
type Severity int

const (
	Critical Severity = iota
	Moderate
	Minor
)

// String returns the upper-case label used in rendered output
func (s Severity) String() string {
	switch s {
	case Critical:
		return "CRITICAL"
	case Moderate:
		return "MODERATE"
	case Minor:
		return "MINOR"
	default:
		return "UNKNOWN"
	}
}

// Symbol returns the decoration used by the legacy output style
func (s Severity) Symbol() string {
	switch s {
	case Critical:
		return "🔴"
	case Moderate:
		return "🟠"
	case Minor:
		return "🟡"
	default:
		return "⚪"
	}
}

// ParseSeverity maps a case-insensitive label to a Severity. Unknown labels
// are reported as an error so policy documents cannot silently downgrade.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return Critical, nil
	case "MODERATE":
		return Moderate, nil
	case "MINOR", "":
		return Minor, nil
	default:
		return Minor, fmt.Errorf("unknown severity %q", s)
	}
}

// Evidence is a page citation with a bounded snippet.
type Evidence struct {
	Page    int    `json:"page"`
	Snippet string `json:"snippet,omitempty"`
}

// Field is the result of one extraction attempt. An empty Value means the
// field was not found.
type Field struct {
	Value    string    `json:"value,omitempty"`
	Evidence *Evidence `json:"evidence,omitempty"`
}

// Found reports whether the extraction produced a value
func (f Field) Found() bool {
	return f.Value != ""
}

// page returns the cited page, or 1 when the field has no evidence
func (f Field) page() int {
	if f.Evidence != nil && f.Evidence.Page > 0 {
		return f.Evidence.Page
	}
	return 1
}

// KVPair is a structured key/value row reported by the layout backend.
type KVPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Page  int    `json:"page"`
}

// TableCell is one cell of a detected table.
type TableCell struct {
	Row     int    `json:"row"`
	Column  int    `json:"column"`
	Content string `json:"content"`
}

// Table is a detected table and the page it starts on.
type Table struct {
	Page  int         `json:"page"`
	Cells []TableCell `json:"cells"`
}

// Comparable is one comparable-sale record. Numeric attributes are nil when
// the grid did not report them.
type Comparable struct {
	Label       string   `json:"label,omitempty"`
	Address     string   `json:"address,omitempty"`
	Proximity   *float64 `json:"proximity_miles,omitempty"`
	GLA         *float64 `json:"gla,omitempty"`
	Site        string   `json:"site,omitempty"`
	Age         string   `json:"age,omitempty"`
	Condition   string   `json:"condition,omitempty"`
	Quality     string   `json:"quality,omitempty"`
	SaleDate    string   `json:"sale_date,omitempty"`
	DOM         *int     `json:"dom,omitempty"`
	GrossAdjPct *float64 `json:"gross_adj_pct,omitempty"`
	NetAdjPct   *float64 `json:"net_adj_pct,omitempty"`
}

// Source is the normalized OCR output every extraction strategy reads.
type Source struct {
	Text   string   `json:"text"`
	Pages  []string `json:"pages"`
	KV     []KVPair `json:"kv,omitempty"`
	Tables []Table  `json:"tables,omitempty"`
}

// Conflict records a field whose structured and free-text values disagree.
type Conflict struct {
	Structured Field `json:"structured"`
	FreeText   Field `json:"free_text"`
}

// Document is the structured model for a single audit run.
type Document struct {
	Source

	FileName string `json:"file_name,omitempty"`

	EffectiveDate         Field     `json:"effective_date"`
	EffectiveDateConflict *Conflict `json:"effective_date_conflict,omitempty"`

	ValueConclusion         Field     `json:"value_conclusion"`
	ValueConclusionConflict *Conflict `json:"value_conclusion_conflict,omitempty"`

	FormType       Field        `json:"form_type"`
	Appraiser      Field        `json:"appraiser"`
	Client         Field        `json:"client"`
	SubjectAddress Field        `json:"subject_address"`
	State          Field        `json:"state"`
	LoanType       Field        `json:"loan_type"`
	VACaseNumber   Field        `json:"va_case_number"`
	Comparables    []Comparable `json:"comparables,omitempty"`
}

// Finding is one compliance flag. Findings are values and are never mutated
// after creation.
type Finding struct {
	Severity Severity   `json:"severity"`
	Issue    string     `json:"issue"`
	Detail   string     `json:"detail,omitempty"`
	Evidence []Evidence `json:"evidence,omitempty"`
	RuleID   string     `json:"rule_id,omitempty"`
}

// StateHook is a per-state disclosure requirement. A hook fires when its
// pattern is absent from the report text.
type StateHook struct {
	ID       string
	Issue    string
	Severity Severity
	Pattern  *regexp.Regexp
}

// Policy is the immutable rule configuration handed to the engine.
type Policy struct {
	RulesVersion     string
	SchematicVersion string
	StateHooks       map[string][]StateHook
	MissingFields    MissingFieldPolicy
}

// Input is the single request shape accepted by the pipeline.
type Input struct {
	Data     []byte
	FileName string
}
