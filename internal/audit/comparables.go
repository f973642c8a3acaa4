package audit

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ComparableStrategy is one way of reading the sales-comparison grid.
type ComparableStrategy func(src *Source) []Comparable

var comparableChain = []ComparableStrategy{
	salesGridComparables,
	glaCellComparables,
	comparableSegmentsInText,
	glaInText,
}

func firstComparables(src *Source, chain []ComparableStrategy) []Comparable {
	for _, strategy := range chain {
		if comps := strategy(src); len(comps) > 0 {
			return comps
		}
	}
	return nil
}

var (
	glaPattern       = regexp.MustCompile(`(?i)\bGLA\s*[:=]?\s*(\d{1,3}(?:,\d{3})+|\d{2,5})\b`)
	netAdjPattern    = regexp.MustCompile(`(?i)\bnet\s*adj(?:ustment)?\.?\s*[:=]?\s*(-?\d+(?:\.\d+)?)\s*%`)
	grossAdjPattern  = regexp.MustCompile(`(?i)\bgross\s*adj(?:ustment)?\.?\s*[:=]?\s*(-?\d+(?:\.\d+)?)\s*%`)
	domPattern       = regexp.MustCompile(`(?i)\b(?:DOM|days on market)\s*[:=]?\s*(\d{1,4})\b`)
	proximityPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:miles?|mi)\b`)
	comparableHeader = regexp.MustCompile(`(?i)\bcomparable(?:\s+sale)?\s*(?:no\.?|#)?\s*(\d{1,2})\b`)
)

// gridRow identifies a sales-grid row by its label in column zero.
type gridRow int

const (
	rowUnknown gridRow = iota
	rowAddress
	rowProximity
	rowSaleDate
	rowDOM
	rowSite
	rowQuality
	rowAge
	rowCondition
	rowGLA
	rowNetAdj
	rowGrossAdj
)

var gridLabels = []struct {
	row     gridRow
	pattern *regexp.Regexp
}{
	{rowProximity, regexp.MustCompile(`(?i)proximity`)},
	{rowAddress, regexp.MustCompile(`(?i)\baddress\b`)},
	{rowSaleDate, regexp.MustCompile(`(?i)date of sale|sale date`)},
	{rowDOM, regexp.MustCompile(`(?i)days on market|\bDOM\b`)},
	{rowGLA, regexp.MustCompile(`(?i)gross living area|\bGLA\b`)},
	{rowNetAdj, regexp.MustCompile(`(?i)net adj`)},
	{rowGrossAdj, regexp.MustCompile(`(?i)gross adj`)},
	{rowSite, regexp.MustCompile(`(?i)^site\b`)},
	{rowQuality, regexp.MustCompile(`(?i)quality`)},
	{rowAge, regexp.MustCompile(`(?i)actual age|^age\b`)},
	{rowCondition, regexp.MustCompile(`(?i)condition`)},
}

func classifyGridRow(label string) gridRow {
	for _, l := range gridLabels {
		if l.pattern.MatchString(label) {
			return l.row
		}
	}
	return rowUnknown
}

// salesGridComparables reads tables laid out as a URAR sales grid: row
// labels in column zero, the subject in the first data column, one
// comparable per remaining column.
func salesGridComparables(src *Source) []Comparable {
	var out []Comparable
	for _, t := range src.Tables {
		out = append(out, gridComparables(t)...)
	}
	return out
}

func gridComparables(t Table) []Comparable {
	headers := map[int]string{}
	labels := map[int]gridRow{}
	cells := map[[2]int]string{}
	for _, c := range t.Cells {
		cells[[2]int{c.Row, c.Column}] = c.Content
		if c.Row == 0 {
			headers[c.Column] = c.Content
		}
		if c.Column == 0 {
			labels[c.Row] = classifyGridRow(c.Content)
		}
	}

	known := 0
	for _, r := range labels {
		if r != rowUnknown {
			known++
		}
	}
	if known < 2 {
		return nil
	}

	columns := compColumns(headers)
	rows := make([]int, 0, len(labels))
	for r := range labels {
		rows = append(rows, r)
	}
	sort.Ints(rows)

	var out []Comparable
	for _, col := range columns {
		comp := Comparable{Label: headers[col]}
		filled := false
		for _, r := range rows {
			content, ok := cells[[2]int{r, col}]
			if !ok || content == "" {
				continue
			}
			if applyGridCell(&comp, labels[r], content) {
				filled = true
			}
		}
		if filled {
			out = append(out, comp)
		}
	}
	return out
}

// compColumns picks the comparable columns from the header row. Headers
// naming a comparable win; otherwise every data column except the subject.
func compColumns(headers map[int]string) []int {
	var named, rest []int
	for col, h := range headers {
		if col == 0 {
			continue
		}
		lower := strings.ToLower(h)
		switch {
		case strings.Contains(lower, "comparable"):
			named = append(named, col)
		case strings.Contains(lower, "subject"):
		default:
			rest = append(rest, col)
		}
	}
	cols := rest
	if len(named) > 0 {
		cols = named
	}
	sort.Ints(cols)
	return cols
}

func applyGridCell(c *Comparable, row gridRow, content string) bool {
	switch row {
	case rowAddress:
		c.Address = content
	case rowProximity:
		if m := proximityPattern.FindStringSubmatch(content); m != nil {
			c.Proximity = floatPtr(m[1])
		} else if f, ok := parseNumber(content); ok {
			c.Proximity = &f
		}
	case rowSaleDate:
		if d, ok := FormatDate(content); ok {
			c.SaleDate = d
		} else {
			c.SaleDate = content
		}
	case rowDOM:
		if f, ok := parseNumber(content); ok {
			d := int(f)
			c.DOM = &d
		}
	case rowSite:
		c.Site = content
	case rowQuality:
		c.Quality = content
	case rowAge:
		c.Age = content
	case rowCondition:
		c.Condition = content
	case rowGLA:
		if f, ok := parseNumber(content); ok {
			c.GLA = &f
		}
	case rowNetAdj:
		c.NetAdjPct = pctFrom(content, netAdjPattern)
	case rowGrossAdj:
		c.GrossAdjPct = pctFrom(content, grossAdjPattern)
	default:
		// URAR grids often print "Net Adj. 4.1 % Gross Adj. 12.0 %" in
		// the adjustment total cell.
		found := false
		if m := netAdjPattern.FindStringSubmatch(content); m != nil {
			c.NetAdjPct = floatPtr(m[1])
			found = true
		}
		if m := grossAdjPattern.FindStringSubmatch(content); m != nil {
			c.GrossAdjPct = floatPtr(m[1])
			found = true
		}
		return found
	}
	if row == rowNetAdj || row == rowGrossAdj {
		if m := grossAdjPattern.FindStringSubmatch(content); m != nil {
			c.GrossAdjPct = floatPtr(m[1])
		}
		if m := netAdjPattern.FindStringSubmatch(content); m != nil {
			c.NetAdjPct = floatPtr(m[1])
		}
	}
	return true
}

func pctFrom(content string, labeled *regexp.Regexp) *float64 {
	if m := labeled.FindStringSubmatch(content); m != nil {
		return floatPtr(m[1])
	}
	if f, ok := parseNumber(content); ok {
		return &f
	}
	return nil
}

// glaCellComparables scans any table cell for a "GLA: 1,850" style value.
func glaCellComparables(src *Source) []Comparable {
	var out []Comparable
	for _, t := range src.Tables {
		for _, c := range t.Cells {
			if m := glaPattern.FindStringSubmatch(c.Content); m != nil {
				out = append(out, Comparable{GLA: floatPtr(m[1])})
			}
		}
	}
	return out
}

// comparableSegmentsInText splits the narrative on "Comparable Sale #n"
// headings and reads the attributes that follow each heading.
func comparableSegmentsInText(src *Source) []Comparable {
	locs := comparableHeader.FindAllStringSubmatchIndex(src.Text, -1)
	seen := map[string]bool{}
	var out []Comparable
	for i, loc := range locs {
		label := src.Text[loc[2]:loc[3]]
		if seen[label] {
			continue
		}
		seen[label] = true

		end := len(src.Text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segment := src.Text[loc[1]:end]

		comp := Comparable{Label: "Comparable " + label}
		filled := false
		if m := glaPattern.FindStringSubmatch(segment); m != nil {
			comp.GLA = floatPtr(m[1])
			filled = true
		}
		if m := proximityPattern.FindStringSubmatch(segment); m != nil {
			comp.Proximity = floatPtr(m[1])
			filled = true
		}
		if m := domPattern.FindStringSubmatch(segment); m != nil {
			if d, err := strconv.Atoi(m[1]); err == nil {
				comp.DOM = &d
				filled = true
			}
		}
		if m := netAdjPattern.FindStringSubmatch(segment); m != nil {
			comp.NetAdjPct = floatPtr(m[1])
			filled = true
		}
		if m := grossAdjPattern.FindStringSubmatch(segment); m != nil {
			comp.GrossAdjPct = floatPtr(m[1])
			filled = true
		}
		if filled {
			out = append(out, comp)
		}
	}
	return out
}

func glaInText(src *Source) []Comparable {
	var out []Comparable
	for _, m := range glaPattern.FindAllStringSubmatch(src.Text, -1) {
		out = append(out, Comparable{GLA: floatPtr(m[1])})
	}
	return out
}

func floatPtr(s string) *float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &f
}
