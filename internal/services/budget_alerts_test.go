package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/astelwilliam/expense-tracker/internal/core"
)

type fakeBudgetStore struct {
	budgets map[core.Category]*core.Budget
	err     error
}

func (f *fakeBudgetStore) GetBudget(ctx context.Context, userID int64, category core.Category, month core.Date) (*core.Budget, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.budgets[category], nil
}

func budget(category core.Category, cents int64) *core.Budget {
	return &core.Budget{
		UserID:   7,
		Category: category,
		Amount:   core.Money{Cents: cents},
		Month:    core.NewDate(2025, 6, 1),
	}
}

// seedExpenses preloads the fake store with one Food expense of the
// given amount in June 2025.
func seedExpenses(cents int64) *fakeExpenseStore {
	return &fakeExpenseStore{expenses: []core.Expense{{
		UserID:   7,
		Title:    "groceries",
		Amount:   core.Money{Cents: cents},
		Date:     core.NewDate(2025, 6, 5),
		Category: core.CategoryFood,
	}}}
}

func TestEvaluate_NoBudgetsNoAlerts(t *testing.T) {
	ev := NewEvaluator(&fakeBudgetStore{}, seedExpenses(100_00))

	alerts, err := ev.Evaluate(context.Background(), 7, core.CategoryFood,
		core.Money{Cents: 50_00}, core.NewDate(2025, 6, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("alerts = %v, want none", alerts)
	}
}

func TestEvaluate_NearLimit(t *testing.T) {
	// 85 spent + 10 new = 95 projected against a 100 limit: near, not over.
	budgets := &fakeBudgetStore{budgets: map[core.Category]*core.Budget{
		core.CategoryFood: budget(core.CategoryFood, 100_00),
	}}
	ev := NewEvaluator(budgets, seedExpenses(85_00))

	alerts, err := ev.Evaluate(context.Background(), 7, core.CategoryFood,
		core.Money{Cents: 10_00}, core.NewDate(2025, 6, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %v, want exactly 1", alerts)
	}
	if !strings.Contains(alerts[0], "nearly reached") {
		t.Errorf("alert = %q, want a near-limit message", alerts[0])
	}
	if !strings.Contains(alerts[0], "5.00") {
		t.Errorf("alert = %q, want remaining headroom 5.00", alerts[0])
	}
}

func TestEvaluate_Exceeded(t *testing.T) {
	// 85 spent + 20 new = 105 projected against a 100 limit.
	budgets := &fakeBudgetStore{budgets: map[core.Category]*core.Budget{
		core.CategoryFood: budget(core.CategoryFood, 100_00),
	}}
	ev := NewEvaluator(budgets, seedExpenses(85_00))

	alerts, err := ev.Evaluate(context.Background(), 7, core.CategoryFood,
		core.Money{Cents: 20_00}, core.NewDate(2025, 6, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 1 || !strings.Contains(alerts[0], "exceeded") {
		t.Fatalf("alerts = %v, want one exceeded message", alerts)
	}
}

func TestEvaluate_ExactlyAtLimitIsExceeded(t *testing.T) {
	budgets := &fakeBudgetStore{budgets: map[core.Category]*core.Budget{
		core.CategoryFood: budget(core.CategoryFood, 100_00),
	}}
	ev := NewEvaluator(budgets, seedExpenses(85_00))

	alerts, err := ev.Evaluate(context.Background(), 7, core.CategoryFood,
		core.Money{Cents: 15_00}, core.NewDate(2025, 6, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 1 || !strings.Contains(alerts[0], "exceeded") {
		t.Fatalf("alerts = %v, want exceeded at projected == limit", alerts)
	}
}

func TestEvaluate_ExactlyAtNinetyPercentIsNear(t *testing.T) {
	budgets := &fakeBudgetStore{budgets: map[core.Category]*core.Budget{
		core.CategoryFood: budget(core.CategoryFood, 100_00),
	}}
	ev := NewEvaluator(budgets, seedExpenses(85_00))

	alerts, err := ev.Evaluate(context.Background(), 7, core.CategoryFood,
		core.Money{Cents: 5_00}, core.NewDate(2025, 6, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 1 || !strings.Contains(alerts[0], "nearly reached") {
		t.Fatalf("alerts = %v, want near-limit at exactly 90%%", alerts)
	}
}

func TestEvaluate_BelowNinetyPercentIsQuiet(t *testing.T) {
	budgets := &fakeBudgetStore{budgets: map[core.Category]*core.Budget{
		core.CategoryFood: budget(core.CategoryFood, 100_00),
	}}
	ev := NewEvaluator(budgets, seedExpenses(85_00))

	alerts, err := ev.Evaluate(context.Background(), 7, core.CategoryFood,
		core.Money{Cents: 4_99}, core.NewDate(2025, 6, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("alerts = %v, want none below 90%%", alerts)
	}
}

func TestEvaluate_CategoryAndOverallAreIndependent(t *testing.T) {
	budgets := &fakeBudgetStore{budgets: map[core.Category]*core.Budget{
		core.CategoryFood:    budget(core.CategoryFood, 100_00),
		core.CategoryOverall: budget(core.CategoryOverall, 500_00),
	}}

	// Food is nearly exhausted but overall is far from its limit:
	// exactly one alert.
	ev := NewEvaluator(budgets, seedExpenses(85_00))
	alerts, err := ev.Evaluate(context.Background(), 7, core.CategoryFood,
		core.Money{Cents: 10_00}, core.NewDate(2025, 6, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %v, want only the Food alert", alerts)
	}

	// With a tight overall limit both fire.
	budgets.budgets[core.CategoryOverall] = budget(core.CategoryOverall, 90_00)
	alerts, err = ev.Evaluate(context.Background(), 7, core.CategoryFood,
		core.Money{Cents: 10_00}, core.NewDate(2025, 6, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("alerts = %v, want both Food and Overall", alerts)
	}
	if !strings.Contains(alerts[1], "Overall budget exceeded") {
		t.Errorf("second alert = %q, want overall exceeded", alerts[1])
	}
}

func TestEvaluate_OtherCategorySpendingIgnoredByCategoryScope(t *testing.T) {
	budgets := &fakeBudgetStore{budgets: map[core.Category]*core.Budget{
		core.CategoryTravel: budget(core.CategoryTravel, 100_00),
	}}
	// All prior spending is Food; the Travel budget sees none of it.
	ev := NewEvaluator(budgets, seedExpenses(500_00))

	alerts, err := ev.Evaluate(context.Background(), 7, core.CategoryTravel,
		core.Money{Cents: 10_00}, core.NewDate(2025, 6, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("alerts = %v, want none", alerts)
	}
}

func TestEvaluate_StoreErrorPropagates(t *testing.T) {
	ev := NewEvaluator(&fakeBudgetStore{err: errors.New("db closed")}, seedExpenses(0))

	if _, err := ev.Evaluate(context.Background(), 7, core.CategoryFood,
		core.Money{Cents: 100}, core.NewDate(2025, 6, 10)); err == nil {
		t.Error("expected error from budget store")
	}
}

func TestEvaluate_DoesNotMutateStores(t *testing.T) {
	budgets := &fakeBudgetStore{budgets: map[core.Category]*core.Budget{
		core.CategoryFood: budget(core.CategoryFood, 100_00),
	}}
	expenses := seedExpenses(85_00)
	ev := NewEvaluator(budgets, expenses)

	_, err := ev.Evaluate(context.Background(), 7, core.CategoryFood,
		core.Money{Cents: 50_00}, core.NewDate(2025, 6, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(expenses.expenses) != 1 {
		t.Errorf("expense store mutated: %d entries, want 1", len(expenses.expenses))
	}
	if budgets.budgets[core.CategoryFood].Amount.Cents != 100_00 {
		t.Error("budget mutated by evaluation")
	}
}
