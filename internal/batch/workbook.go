package batch

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/a3tai/reportshield/internal/audit"
)

const (
	summarySheet  = "Summary"
	findingsSheet = "Findings"
)

var (
	summaryHeader  = []any{"File", "State", "Renderer", "Findings", "Top Severity", "Request ID", "Error"}
	findingsHeader = []any{"File", "Severity", "Issue", "Rule ID"}
)

// Workbook lays items out as a summary sheet with one row per file and a
// findings sheet with one row per finding.
func Workbook(items []Item) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, eris.Wrap(err, "xlsx rename sheet")
	}
	if _, err := f.NewSheet(findingsSheet); err != nil {
		return nil, eris.Wrap(err, "xlsx new sheet")
	}

	if err := f.SetSheetRow(summarySheet, "A1", &summaryHeader); err != nil {
		return nil, eris.Wrap(err, "xlsx summary header")
	}
	if err := f.SetSheetRow(findingsSheet, "A1", &findingsHeader); err != nil {
		return nil, eris.Wrap(err, "xlsx findings header")
	}

	findingRow := 2
	for i, it := range items {
		name := filepath.Base(it.Path)
		row := []any{name, "", "", 0, "", "", ""}
		if it.Err != nil {
			row[6] = it.Err.Error()
		}
		if res := it.Result; res != nil {
			row[1] = string(res.State)
			row[2] = res.Renderer
			row[3] = len(res.Findings)
			row[4] = topSeverity(res.Findings)
			row[5] = res.RequestID

			for _, fd := range res.Findings {
				cell, _ := excelize.CoordinatesToCellName(1, findingRow)
				if err := f.SetSheetRow(findingsSheet, cell, &[]any{name, fd.Severity.String(), fd.Issue, fd.RuleID}); err != nil {
					return nil, eris.Wrap(err, "xlsx finding row")
				}
				findingRow++
			}
		}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, eris.Wrap(err, "xlsx summary row")
		}
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 36)
	_ = f.SetColWidth(summarySheet, "F", "F", 38)
	_ = f.SetColWidth(findingsSheet, "A", "A", 36)
	_ = f.SetColWidth(findingsSheet, "C", "C", 80)
	return f, nil
}

// WriteWorkbook saves the workbook for items to path.
func WriteWorkbook(items []Item, path string) error {
	f, err := Workbook(items)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	return eris.Wrapf(f.SaveAs(path), "xlsx save %s", path)
}

func topSeverity(findings []audit.Finding) string {
	if len(findings) == 0 {
		return "NONE"
	}
	top := findings[0].Severity
	for _, f := range findings[1:] {
		if f.Severity < top {
			top = f.Severity
		}
	}
	return top.String()
}
