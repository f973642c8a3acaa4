package audit

// Engine evaluates an ordered rule set against a document.
type Engine struct {
	rules []Rule
	x     *Extractor
}

// NewEngine creates an engine over rules. A nil rule set selects
// DefaultRules.
func NewEngine(opts Options, rules []Rule) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{rules: rules, x: NewExtractor(opts)}
}

// Evaluate runs every rule and merges the results in rule order. Findings
// that repeat an (issue, rule id) pair are dropped.
func (e *Engine) Evaluate(doc *Document, policy Policy) []Finding {
	rc := &RuleContext{Doc: doc, Policy: policy, x: e.x}

	type key struct{ issue, rule string }
	seen := map[key]bool{}

	var out []Finding
	for _, r := range e.rules {
		for _, f := range r.Check(rc) {
			k := key{f.Issue, f.RuleID}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, f)
		}
	}
	return out
}
