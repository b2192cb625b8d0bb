package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ParseExcel reads the first sheet of an xlsx workbook through the same
// row pipeline as CSV.
func ParseExcel(r io.Reader) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Result{}, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Result{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return parseRecords(rows)
}
