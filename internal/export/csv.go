package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/astelwilliam/expense-tracker/internal/core"
)

// WriteCSV writes the expenses as CSV, header row first, oldest expense
// first.
func WriteCSV(w io.Writer, expenses []core.Expense) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, e := range sortByDate(expenses) {
		if err := cw.Write(row(e)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
