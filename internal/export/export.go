// Package export renders a user's expenses as downloadable files. All
// writers share the same column layout so a CSV, an Excel sheet, and a
// PDF table of the same data line up row for row.
package export

import (
	"sort"

	"github.com/astelwilliam/expense-tracker/internal/core"
)

// Header is the column layout shared by every export format.
var Header = []string{"Date", "Title", "Amount", "Category", "Notes"}

// row flattens an expense into the shared column layout.
func row(e core.Expense) []string {
	return []string{
		e.Date.ISO(),
		e.Title,
		e.Amount.String(),
		string(e.Category),
		e.Notes,
	}
}

// sortByDate orders expenses oldest first, breaking ties by ID so the
// output is stable across exports.
func sortByDate(expenses []core.Expense) []core.Expense {
	sorted := make([]core.Expense, len(expenses))
	copy(sorted, expenses)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date.Time) {
			return sorted[i].Date.Before(sorted[j].Date.Time)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
