package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConsistency(t *testing.T) {
	doc := extractText("Effective Date: 02/02/2024",
		KVPair{Key: "Effective Date", Value: "Jan 01, 2024", Page: 1})

	findings := CheckConsistency(doc)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, Moderate, f.Severity)
	assert.Equal(t, "Inconsistent Effective Date", f.Issue)
	assert.Equal(t, RuleInconsistentEffectiveDate, f.RuleID)
	assert.Equal(t, `"Jan 01, 2024" vs "Feb 02, 2024"`, f.Detail)
	assert.Len(t, f.Evidence, 2)
}

func TestCheckConsistency_NoConflict(t *testing.T) {
	doc := extractText("Effective Date: 01/01/2024 Final value $450,000",
		KVPair{Key: "Effective Date", Value: "Jan 1, 2024"},
		KVPair{Key: "Final Value", Value: "$450,000"})
	assert.Empty(t, CheckConsistency(doc))
}

func TestCheckConsistency_ValueConclusion(t *testing.T) {
	doc := extractText("Final value $450,000",
		KVPair{Key: "Final Value", Value: "$455,000", Page: 3})
	findings := CheckConsistency(doc)
	require.Len(t, findings, 1)
	assert.Equal(t, "Inconsistent Value Conclusion", findings[0].Issue)
	assert.Equal(t, 3, findings[0].Evidence[0].Page)
}

func TestConsistency_RenderedOnceInSummary(t *testing.T) {
	doc := extractText("Effective Date: 02/02/2024",
		KVPair{Key: "Effective Date", Value: "Jan 01, 2024", Page: 1})

	opts := DefaultOptions()
	engine := NewEngine(opts, nil)
	out := NewRenderer(opts).Render(Report{
		Document:    doc,
		Findings:    Rank(engine.Evaluate(doc, Policy{})),
		Consistency: CheckConsistency(doc),
	})

	assert.Equal(t, 1, strings.Count(out, "[MODERATE] Inconsistent Effective Date"))
	assert.Contains(t, out, `"Jan 01, 2024" vs "Feb 02, 2024"`)
}

func TestUntestableFields(t *testing.T) {
	findings := untestableFields(&Document{})
	require.Len(t, findings, 2)
	for _, f := range findings {
		assert.Equal(t, Minor, f.Severity)
		assert.Contains(t, f.Issue, "consistency cannot be tested")
	}
	assert.Equal(t, RuleEffectiveDateUntestable, findings[0].RuleID)
	assert.Equal(t, RuleValueConclusionUntestable, findings[1].RuleID)
}
