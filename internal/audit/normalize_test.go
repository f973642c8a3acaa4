package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"crlf_and_dashes", "Jan 1 – Jan 5\r\nnext", "Jan 1 - Jan 5\nnext"},
		{"blank_line_run", "a—b  c\r\n\r\n\r\n\r\nd", "a-b c\n\nd"},
		{"tabs_and_nbsp", "x\t\t y z", "x y z"},
		{"space_around_newlines", "a \n \n b", "a\n\nb"},
		{"nfc", "Café", "Café"},
		{"trim", "  \n padded \n  ", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"a \n \n \n \n \n b",
		"\t\tEffective Date:  03/04/2024 \r\n",
		"Value − $450,000\n\n\n\n\nPage 2",
		"mixed   widths here\f\v",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestLimitWords(t *testing.T) {
	assert.Equal(t, "one two", limitWords("one  two\nthree", 2))
	assert.Equal(t, "one", limitWords(" one ", 5))
	assert.Equal(t, "", limitWords("", 3))
}
