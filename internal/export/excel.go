package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/astelwilliam/expense-tracker/internal/core"
)

const excelSheet = "Expenses"

// WriteExcel writes the expenses as an xlsx workbook with a single
// Expenses sheet mirroring the CSV layout.
func WriteExcel(w io.Writer, expenses []core.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", excelSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for col, name := range Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(excelSheet, cell, name); err != nil {
			return fmt.Errorf("write header cell: %w", err)
		}
	}

	for i, e := range sortByDate(expenses) {
		values := []any{e.Date.ISO(), e.Title, e.Amount.String(), string(e.Category), e.Notes}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(excelSheet, cell, v); err != nil {
				return fmt.Errorf("write cell: %w", err)
			}
		}
	}

	if err := f.SetColWidth(excelSheet, "A", "E", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
