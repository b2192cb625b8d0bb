package importer

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ParseCSV reads a CSV expense file. Rows with the wrong number of
// fields are rejected individually instead of failing the whole file.
func ParseCSV(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return Result{}, fmt.Errorf("read csv: %w", err)
	}
	return parseRecords(records)
}
