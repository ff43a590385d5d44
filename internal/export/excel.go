// Package export renders reservation reports for the administrator.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"vocalroom/internal/model"
)

var reportColumns = []string{"ID", "Date", "Slot", "User"}

// MonthReport writes an xlsx workbook with one row per reservation to w.
// The sheet is named after the month, e.g. "2024-06"; reservations are
// expected in (date, hour) order as List returns them.
func MonthReport(w io.Writer, sheet string, reservations []model.Reservation) error {
	f := excelize.NewFile()
	defer f.Close()

	if len(sheet) > 31 {
		sheet = sheet[:31] // Excel sheet name limit
	}
	f.SetSheetName("Sheet1", sheet)

	if err := writeRow(f, sheet, 1, []interface{}{
		reportColumns[0], reportColumns[1], reportColumns[2], reportColumns[3],
	}); err != nil {
		return err
	}

	// Bold header
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		start, _ := excelize.CoordinatesToCellName(1, 1)
		end, _ := excelize.CoordinatesToCellName(len(reportColumns), 1)
		_ = f.SetCellStyle(sheet, start, end, style)
	}

	for i := range reservations {
		r := &reservations[i]
		if err := writeRow(f, sheet, i+2, []interface{}{
			r.ID, r.Date, r.HourLabel(), r.User,
		}); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}
