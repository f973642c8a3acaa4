package audit

import (
	"strings"
	"unicode/utf8"
)

// Strategy is one way of extracting a field from a source. It returns an
// empty Field when it finds nothing; absence is never an error.
type Strategy func(x *Extractor, src *Source) Field

// Extractor turns a normalized source into a Document.
type Extractor struct {
	opts     Options
	redactor *Redactor
}

// NewExtractor creates an extractor that cites evidence under opts.
func NewExtractor(opts Options) *Extractor {
	return &Extractor{
		opts:     opts,
		redactor: NewRedactor(opts.RedactPII),
	}
}

// NewSource normalizes raw collaborator output. When the backend reports no
// full text the page texts are joined; when it reports no pages the full
// text is treated as a single page.
func NewSource(text string, pages []string, kv []KVPair, tables []Table) Source {
	src := Source{Text: Normalize(text)}

	for _, p := range pages {
		src.Pages = append(src.Pages, Normalize(p))
	}
	if src.Text == "" && len(src.Pages) > 0 {
		src.Text = Normalize(strings.Join(src.Pages, "\n\n"))
	}
	if len(src.Pages) == 0 || strings.TrimSpace(strings.Join(src.Pages, "")) == "" {
		src.Pages = []string{src.Text}
	}

	for _, row := range kv {
		key, value := collapseSpace(row.Key), collapseSpace(row.Value)
		if key == "" && value == "" {
			continue
		}
		if row.Page < 1 {
			row.Page = 1
		}
		src.KV = append(src.KV, KVPair{Key: key, Value: value, Page: row.Page})
	}

	for _, t := range tables {
		nt := Table{Page: t.Page, Cells: make([]TableCell, 0, len(t.Cells))}
		if nt.Page < 1 {
			nt.Page = 1
		}
		for _, c := range t.Cells {
			nt.Cells = append(nt.Cells, TableCell{Row: c.Row, Column: c.Column, Content: collapseSpace(c.Content)})
		}
		src.Tables = append(src.Tables, nt)
	}
	return src
}

// Extract runs every field chain over src and returns the immutable
// document model for this request.
func (x *Extractor) Extract(fileName string, src Source) *Document {
	doc := &Document{Source: src, FileName: fileName}
	s := &doc.Source

	doc.EffectiveDate, doc.EffectiveDateConflict = x.resolve(s, effectiveDateStructured, effectiveDateFreeText)
	doc.ValueConclusion, doc.ValueConclusionConflict = x.resolve(s, valueConclusionStructured, valueConclusionFreeText)
	doc.FormType = x.first(s, formTypeChain)
	doc.Appraiser = x.first(s, appraiserChain)
	doc.Client = x.first(s, clientChain)
	doc.SubjectAddress = x.first(s, subjectAddressChain)
	doc.State = stateFromAddress(doc.SubjectAddress)
	doc.LoanType = x.first(s, loanTypeChain)
	doc.VACaseNumber = x.first(s, vaCaseChain)
	doc.Comparables = firstComparables(s, comparableChain)

	return doc
}

// first tries each strategy in priority order and returns the first hit.
func (x *Extractor) first(src *Source, chain []Strategy) Field {
	for _, strategy := range chain {
		if f := strategy(x, src); f.Found() {
			return f
		}
	}
	return Field{}
}

// resolve evaluates the structured and free-text chains independently. The
// structured hit wins; a disagreement between two hits is reported as a
// conflict.
func (x *Extractor) resolve(src *Source, structured, freeText []Strategy) (Field, *Conflict) {
	s := x.first(src, structured)
	f := x.first(src, freeText)

	var conflict *Conflict
	if s.Found() && f.Found() && s.Value != f.Value {
		conflict = &Conflict{Structured: s, FreeText: f}
	}
	if s.Found() {
		return s, conflict
	}
	return f, conflict
}

// lookupKV returns the first structured row whose key contains any of keys
// (case-insensitive) and whose value is non-empty.
func lookupKV(src *Source, keys ...string) (KVPair, bool) {
	for _, row := range src.KV {
		rk := strings.ToLower(row.Key)
		for _, k := range keys {
			if strings.Contains(rk, strings.ToLower(k)) && row.Value != "" {
				return row, true
			}
		}
	}
	return KVPair{}, false
}

// kvEvidence cites a structured row.
func (x *Extractor) kvEvidence(row KVPair) *Evidence {
	return &Evidence{
		Page:    max(row.Page, 1),
		Snippet: limitWords(x.redactor.Redact(row.Value), x.opts.maxWords()),
	}
}

// textEvidence cites text[start:end] with surrounding context.
func (x *Extractor) textEvidence(src *Source, start, end int) *Evidence {
	text := src.Text
	from := max(start-snippetRadius, 0)
	to := min(end+snippetRadius, len(text))
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return &Evidence{
		Page:    pageOf(src, text[start:end]),
		Snippet: limitWords(x.redactor.Redact(text[from:to]), x.opts.maxWords()),
	}
}

// pageOf returns the first page containing needle, or 1.
func pageOf(src *Source, needle string) int {
	if needle == "" {
		return 1
	}
	for i, p := range src.Pages {
		if strings.Contains(p, needle) {
			return i + 1
		}
	}
	lower := strings.ToLower(needle)
	for i, p := range src.Pages {
		if strings.Contains(strings.ToLower(p), lower) {
			return i + 1
		}
	}
	return 1
}
