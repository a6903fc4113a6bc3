package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"demand_service/internal/core"
)

const adrSheet = "ADR"

var monthNames = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// WriteADRWorkbook renders an ADR report as a single-sheet workbook.
func WriteADRWorkbook(w io.Writer, report core.ADRReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", adrSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DCE6F1"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	meta := [][2]any{
		{"Location", report.Location},
		{"Context", string(report.Context)},
		{"Mode", string(report.Mode)},
		{"Rating factor", report.RatingFactor},
		{"Baseline", report.Baseline},
		{"Baseline source", report.BaselineSource},
	}
	for i, kv := range meta {
		row := i + 1
		if err := setRow(f, row, kv[0], kv[1]); err != nil {
			return err
		}
	}

	tableRow := len(meta) + 2
	if err := setRow(f, tableRow, "Month", "ADR"); err != nil {
		return err
	}
	if err := f.SetCellStyle(adrSheet, cell(1, tableRow), cell(2, tableRow), header); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	for i, v := range report.ADR {
		if err := setRow(f, tableRow+1+i, monthNames[i], v); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(adrSheet, "A", "A", 18); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, label, value any) error {
	if err := f.SetCellValue(adrSheet, cell(1, row), label); err != nil {
		return fmt.Errorf("set %s: %w", cell(1, row), err)
	}
	if err := f.SetCellValue(adrSheet, cell(2, row), value); err != nil {
		return fmt.Errorf("set %s: %w", cell(2, row), err)
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
