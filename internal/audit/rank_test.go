package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRank(t *testing.T) {
	input := []Finding{
		{Severity: Minor, Issue: "b"},
		{Severity: Critical, Issue: "z"},
		{Severity: Moderate, Issue: "a"},
		{Severity: Critical, Issue: "a"},
	}
	original := append([]Finding(nil), input...)

	ranked := Rank(input)

	assert.Equal(t, []Finding{
		{Severity: Critical, Issue: "a"},
		{Severity: Critical, Issue: "z"},
		{Severity: Moderate, Issue: "a"},
		{Severity: Minor, Issue: "b"},
	}, ranked)
	assert.Equal(t, original, input, "input must not be reordered")
}

func TestCondensed(t *testing.T) {
	ranked := []Finding{{Issue: "1"}, {Issue: "2"}, {Issue: "3"}, {Issue: "4"}}
	assert.Len(t, Condensed(ranked), CondensedLimit)
	assert.Len(t, Condensed(ranked[:2]), 2)
	assert.Empty(t, Condensed(nil))
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("critical")
	assert.NoError(t, err)
	assert.Equal(t, Critical, s)

	s, err = ParseSeverity("")
	assert.NoError(t, err)
	assert.Equal(t, Minor, s)

	_, err = ParseSeverity("urgent")
	assert.Error(t, err)
}
