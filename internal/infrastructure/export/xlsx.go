// Package export writes league standings to spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/ranking"
)

// Sheet names.
const (
	SheetWeekly  = "Weekly"
	SheetAllTime = "All-time"
)

var (
	weeklyHeader = []any{
		"Rank", "Player", "Payout", "Bonus", "Total", "Highest score", "Most wins", "High score",
	}
	allTimeHeader = []any{
		"Rank", "Player", "Total points", "Payouts", "Bonus points", "Highest score", "Weeks",
	}
)

// Standings is what goes into one workbook. Weekly may be empty when no
// week was finalized yet.
type Standings struct {
	WeekStart string
	Weekly    []ranking.AwardEntry
	AllTime   []ranking.AllTimeEntry
}

// WriteXLSX writes the weekly awards and the all-time table as two sheets.
func WriteXLSX(w io.Writer, s Standings) error {
	f := excelize.NewFile()
	defer f.Close()

	weekly := SheetWeekly
	if s.WeekStart != "" {
		weekly = fmt.Sprintf("%s %s", SheetWeekly, s.WeekStart)
	}
	if err := f.SetSheetName(f.GetSheetName(0), weekly); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetAllTime); err != nil {
		return fmt.Errorf("export: new sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: style: %w", err)
	}

	weeklyRows := make([][]any, 0, len(s.Weekly))
	for _, a := range s.Weekly {
		mostWins, highScore := a.BonusLabels()
		weeklyRows = append(weeklyRows, []any{
			a.Rank, a.Name, a.PointsAwarded, a.BonusPoints, a.TotalPoints, a.HighestScore,
			yesNo(mostWins), yesNo(highScore),
		})
	}
	if err := writeTable(f, weekly, bold, weeklyHeader, weeklyRows); err != nil {
		return err
	}

	allTimeRows := make([][]any, 0, len(s.AllTime))
	for i, e := range s.AllTime {
		allTimeRows = append(allTimeRows, []any{
			i + 1, e.Name, e.TotalPoints, e.Payouts, e.BonusPoints, e.HighestScore, e.Weeks,
		})
	}
	if err := writeTable(f, SheetAllTime, bold, allTimeHeader, allTimeRows); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, headerStyle int, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("export: %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("export: %s header style: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("export: %s row %d: %w", sheet, i+1, err)
		}
	}

	return f.SetColWidth(sheet, "B", "B", 24)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

// FileName suggests a workbook name for a week.
func FileName(weekStart string) string {
	if weekStart == "" {
		return "liga-standings.xlsx"
	}
	return fmt.Sprintf("liga-standings-%s.xlsx", weekStart)
}
