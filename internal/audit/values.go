package audit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	datePattern = regexp.MustCompile(
		`\b([A-Za-z]{3,9})\.?\s+(\d{1,2}),\s*(\d{4})\b|\b(\d{1,2})[-/](\d{1,2})[-/](\d{2,4})\b`)
	moneyPattern = regexp.MustCompile(`\$\s?(?:\d{1,3}(?:\s?,\s?\d{3})+|\d+)(?:\.\d{2})?`)
	valueKeyword = regexp.MustCompile(`(?i)(final|appraised|opinion of)\s+value`)
)

var monthAbbr = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var monthNames = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

// dateMatch is a validated date token located in a text.
type dateMatch struct {
	start, end int
	formatted  string
}

// findDate returns the first valid date token in text. Tokens that look like
// dates but carry an impossible month or day are skipped.
func findDate(text string) (dateMatch, bool) {
	for _, loc := range datePattern.FindAllStringSubmatchIndex(text, -1) {
		if formatted, ok := formatDateGroups(text, loc); ok {
			return dateMatch{start: loc[0], end: loc[1], formatted: formatted}, true
		}
	}
	return dateMatch{}, false
}

// FormatDate normalizes the first date token in raw to "Mon DD, YYYY".
func FormatDate(raw string) (string, bool) {
	m, ok := findDate(raw)
	if !ok {
		return "", false
	}
	return m.formatted, true
}

func formatDateGroups(text string, loc []int) (string, bool) {
	group := func(i int) string {
		if loc[2*i] < 0 {
			return ""
		}
		return text[loc[2*i]:loc[2*i+1]]
	}

	var month, day, year int
	if name := group(1); name != "" {
		m, ok := monthNames[strings.ToLower(name)]
		if !ok {
			return "", false
		}
		month = m
		day, _ = strconv.Atoi(group(2))
		year, _ = strconv.Atoi(group(3))
	} else {
		month, _ = strconv.Atoi(group(4))
		day, _ = strconv.Atoi(group(5))
		y := group(6)
		switch len(y) {
		case 2:
			year, _ = strconv.Atoi("20" + y)
		case 4:
			year, _ = strconv.Atoi(y)
		default:
			return "", false
		}
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	return fmt.Sprintf("%s %02d, %04d", monthAbbr[month-1], day, year), true
}

// FormatMoney strips internal whitespace from a currency amount and adds the
// dollar sign when a structured source omitted it.
func FormatMoney(raw string) string {
	s := strings.Join(strings.Fields(raw), "")
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "$") && s[0] >= '0' && s[0] <= '9' {
		s = "$" + s
	}
	return s
}

// parseNumber reads the first number in s, ignoring thousands separators.
func parseNumber(s string) (float64, bool) {
	m := numberPattern.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
