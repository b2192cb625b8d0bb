// Package sheets defines the outbound port for the spreadsheet mirror.
package sheets

import (
	"context"

	"github.com/astelwilliam/expense-tracker/internal/core"
)

// MirrorWriter mirrors expense rows into an external spreadsheet. The
// mirror is write-behind and best-effort: the SQLite store is always
// authoritative.
type MirrorWriter interface {
	// AppendExpense appends one expense row.
	AppendExpense(ctx context.Context, e core.Expense) error

	// RemoveExpense removes the first row matching the expense's
	// date, title, amount, and category.
	RemoveExpense(ctx context.Context, e core.Expense) error
}
