package services

import (
	"context"
	"fmt"

	"github.com/astelwilliam/expense-tracker/internal/core"
)

// nearLimitReached reports whether projected is at or past 90% of limit.
// Computed on cents so the threshold is exact: 90.00 of a 100.00 budget
// already triggers the warning.
func nearLimitReached(projected, limit int64) bool {
	return projected*10 >= limit*9
}

// Evaluator computes budget alerts for a candidate expense before it is
// persisted. Read-only: it never mutates stored data, and the candidate
// amount is added to the projection in memory only.
type Evaluator struct {
	budgets  BudgetStore
	expenses ExpenseStore
}

func NewEvaluator(budgets BudgetStore, expenses ExpenseStore) *Evaluator {
	return &Evaluator{
		budgets:  budgets,
		expenses: expenses,
	}
}

// Evaluate returns zero, one, or two advisory messages for a candidate
// expense: one for the matching category budget and one for the overall
// budget, each either "exceeded" (projected >= limit) or "near limit"
// (projected >= 90% of limit). A missing budget produces no message and
// no error. The caller surfaces the messages as non-blocking notices and
// saves the expense regardless.
func (ev *Evaluator) Evaluate(ctx context.Context, userID int64, category core.Category, amount core.Money, date core.Date) ([]string, error) {
	if ev.budgets == nil || ev.expenses == nil {
		return nil, fmt.Errorf("evaluator not properly initialized")
	}

	month := date.MonthStart()
	var alerts []string

	if category != core.CategoryOverall {
		msg, err := ev.evaluateScope(ctx, userID, category, amount, month)
		if err != nil {
			return nil, err
		}
		if msg != "" {
			alerts = append(alerts, msg)
		}
	}

	// The overall check is independent and may fire alongside the
	// category one.
	msg, err := ev.evaluateScope(ctx, userID, core.CategoryOverall, amount, month)
	if err != nil {
		return nil, err
	}
	if msg != "" {
		alerts = append(alerts, msg)
	}

	return alerts, nil
}

// evaluateScope runs the two-tier threshold check for one budget scope.
// Returns "" when no budget is set or no threshold is crossed.
func (ev *Evaluator) evaluateScope(ctx context.Context, userID int64, category core.Category, amount core.Money, month core.Date) (string, error) {
	budget, err := ev.budgets.GetBudget(ctx, userID, category, month)
	if err != nil {
		return "", fmt.Errorf("get %s budget: %w", category, err)
	}
	if budget == nil {
		return "", nil
	}

	spent, err := ev.expenses.SumExpensesForMonth(ctx, userID, month, category)
	if err != nil {
		return "", fmt.Errorf("sum %s expenses: %w", category, err)
	}

	projected := spent + amount.Cents
	limit := budget.Amount.Cents
	monthLabel := month.Format("January 2006")

	switch {
	case projected >= limit:
		if budget.IsOverall() {
			return fmt.Sprintf("Overall budget exceeded: this expense puts total spending for %s over your limit of %s.",
				monthLabel, budget.Amount), nil
		}
		return fmt.Sprintf("%s budget exceeded: this expense puts %s spending for %s over your limit of %s.",
			category, category, monthLabel, budget.Amount), nil
	case nearLimitReached(projected, limit):
		headroom := core.Money{Cents: limit - projected}
		if budget.IsOverall() {
			return fmt.Sprintf("Overall budget nearly reached: only %s left of your %s limit for %s.",
				headroom, budget.Amount, monthLabel), nil
		}
		return fmt.Sprintf("%s budget nearly reached: only %s left of your %s limit for %s.",
			category, headroom, budget.Amount, monthLabel), nil
	}

	return "", nil
}
