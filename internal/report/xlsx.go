package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/arena/internal/domain/model"
)

// LeaderboardSheet is the worksheet name used by LeaderboardXLSX.
const LeaderboardSheet = "Leaderboard"

// XLSXContentType is the MIME type of the workbook LeaderboardXLSX writes.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LeaderboardXLSX writes lb as a single-sheet workbook: one row per entry
// in position order, one column per criterion seen in any entry.
func LeaderboardXLSX(w io.Writer, lb model.Leaderboard) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", LeaderboardSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	sw, err := f.NewStreamWriter(LeaderboardSheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}

	criteria := criteriaKeys(lb.Entries)
	team := lb.Metadata.Scope != model.ScopeIndividual

	header := []interface{}{"Position", "ID", "Name", "Average", "Total", "Submissions"}
	for _, k := range criteria {
		header = append(header, k)
	}
	if team {
		header = append(header, "Submitted by")
	}
	if err := sw.SetColWidth(3, 3, 28); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	styled := make([]interface{}, len(header))
	for i, h := range header {
		styled[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", styled); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, e := range lb.Entries {
		row := []interface{}{e.Position, e.ID, sanitize(e.DisplayName), e.AverageScore, e.TotalScore, e.SubmissionCount}
		for _, k := range criteria {
			if v, ok := e.CriteriaScores[k]; ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		if team {
			row = append(row, strings.Join(e.SubmittedBy, ", "))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func criteriaKeys(entries []model.LeaderboardEntry) []string {
	seen := map[string]struct{}{}
	for _, e := range entries {
		for k := range e.CriteriaScores {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sanitize keeps spreadsheet apps from evaluating names as formulas.
func sanitize(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
