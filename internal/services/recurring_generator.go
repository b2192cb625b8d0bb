package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/astelwilliam/expense-tracker/internal/core"
)

// ShouldGenerate decides whether a recurring template produces an expense
// on the target date. Pure predicate, no side effects.
//
// Monthly templates match on day-of-month equality with the start date.
// There is no end-of-month rollover: a template starting on the 31st never
// matches a shorter month (no day 31 in February means no February entry).
func ShouldGenerate(t core.RecurringExpense, target core.Date) bool {
	if !t.Active {
		return false
	}
	if target.Before(t.StartDate.Time) {
		return false
	}
	if !t.EndDate.IsZero() && target.After(t.EndDate.Time) {
		return false
	}

	switch t.Frequency {
	case core.Monthly:
		return target.Day() == t.StartDate.Day()
	case core.Weekly:
		return target.Weekday() == t.StartDate.Weekday()
	case core.Daily:
		return true
	default:
		return false
	}
}

// Generator materializes expenses from recurring templates on demand.
type Generator struct {
	recurring RecurringStore
	expenses  ExpenseStore
}

func NewGenerator(recurring RecurringStore, expenses ExpenseStore) *Generator {
	return &Generator{
		recurring: recurring,
		expenses:  expenses,
	}
}

// GenerateForDate creates one expense per template due on the target date
// and returns the number actually created. The operation is idempotent: an
// expense matching the deduplication key (owner, synthesized title, date,
// category, amount) is never created twice, so re-running for the same
// (user, date) pair is a no-op. The template's last-generated marker is a
// best-effort cache updated after the insert; the expense table is the
// sole source of truth for deduplication.
//
// A failure on one template is logged and skipped; the remaining templates
// are still evaluated. Partial success is expected.
func (g *Generator) GenerateForDate(ctx context.Context, userID int64, target core.Date) (int, error) {
	if g.recurring == nil || g.expenses == nil {
		return 0, fmt.Errorf("generator not properly initialized")
	}

	templates, err := g.recurring.ListActiveRecurring(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list active recurring templates: %w", err)
	}

	slog.InfoContext(ctx, "Generating recurring expenses",
		"user_id", userID,
		"total_active", len(templates),
		"target_date", target.ISO())

	created := 0

	for _, t := range templates {
		if !ShouldGenerate(t, target) {
			continue
		}

		title := t.GeneratedTitle()

		exists, err := g.expenses.GeneratedExpenseExists(ctx, userID, title, target, t.Category, t.Amount.Cents)
		if err != nil {
			slog.ErrorContext(ctx, "Failed dedup check for recurring template",
				"template_id", t.ID,
				"title", t.Title,
				"error", err)
			continue
		}
		if exists {
			slog.DebugContext(ctx, "Expense already generated for date",
				"template_id", t.ID,
				"title", t.Title,
				"target_date", target.ISO())
			continue
		}

		expense := core.Expense{
			UserID:   userID,
			Title:    title,
			Amount:   t.Amount,
			Date:     target,
			Category: t.Category,
			Notes:    t.GeneratedNotes(),
		}

		if _, err := g.expenses.CreateExpense(ctx, expense); err != nil {
			slog.ErrorContext(ctx, "Failed to create expense from recurring template",
				"template_id", t.ID,
				"title", t.Title,
				"error", err)
			continue
		}

		// Insert first, marker second. A failed marker update leaves the
		// cache stale but the dedup key above stays authoritative.
		if err := g.recurring.UpdateRecurringLastGenerated(ctx, t.ID, target); err != nil {
			slog.ErrorContext(ctx, "Failed to update last-generated marker",
				"template_id", t.ID,
				"error", err)
		}

		created++
		slog.InfoContext(ctx, "Created expense from recurring template",
			"template_id", t.ID,
			"title", t.Title,
			"amount_cents", t.Amount.Cents,
			"frequency", t.Frequency)
	}

	slog.InfoContext(ctx, "Recurring generation complete",
		"user_id", userID,
		"created", created,
		"total_checked", len(templates))

	return created, nil
}
