package services

import (
	"context"

	"github.com/astelwilliam/expense-tracker/internal/core"
)

// Narrow persistence ports consumed by the services. The SQLite repository
// implements all of them; tests substitute in-memory fakes.
type (
	ExpenseStore interface {
		// CreateExpense inserts an expense and returns its ID.
		CreateExpense(ctx context.Context, e core.Expense) (int64, error)

		// GeneratedExpenseExists reports whether an expense matching the
		// full deduplication key already exists.
		GeneratedExpenseExists(ctx context.Context, userID int64, title string, date core.Date, category core.Category, amountCents int64) (bool, error)

		// SumExpensesForMonth totals a user's expenses (in cents) for the
		// month containing the given date. CategoryOverall sums across
		// every category.
		SumExpensesForMonth(ctx context.Context, userID int64, month core.Date, category core.Category) (int64, error)
	}

	BudgetStore interface {
		// GetBudget returns the budget for (user, category, month), or
		// nil when none is set. Absence is not an error.
		GetBudget(ctx context.Context, userID int64, category core.Category, month core.Date) (*core.Budget, error)
	}

	RecurringStore interface {
		// ListActiveRecurring returns the user's active templates.
		ListActiveRecurring(ctx context.Context, userID int64) ([]core.RecurringExpense, error)

		// UpdateRecurringLastGenerated updates a template's advisory
		// last-generated marker.
		UpdateRecurringLastGenerated(ctx context.Context, id int64, date core.Date) error
	}
)
