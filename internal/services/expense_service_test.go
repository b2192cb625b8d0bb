package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/astelwilliam/expense-tracker/internal/core"
	"github.com/astelwilliam/expense-tracker/internal/storage"
)

func newServiceFixture(t *testing.T) (*ExpenseService, *storage.Repository, int64) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	userID, err := repo.CreateUser(context.Background(), "alice", "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	svc := NewExpenseService(repo, NewEvaluator(repo, repo), nil)
	return svc, repo, userID
}

func TestCreatePersistsExpense(t *testing.T) {
	ctx := context.Background()
	svc, repo, userID := newServiceFixture(t)

	id, alerts, err := svc.Create(ctx, core.Expense{
		UserID:   userID,
		Title:    "coffee",
		Amount:   core.Money{Cents: 350},
		Date:     core.NewDate(2025, 3, 15),
		Category: core.CategoryFood,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("alerts = %v, want none without budgets", alerts)
	}

	got, err := repo.GetExpense(ctx, userID, id)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if got.Title != "coffee" || got.Amount.Cents != 350 {
		t.Errorf("stored expense = %+v", got)
	}
}

func TestCreateRejectsInvalidExpense(t *testing.T) {
	ctx := context.Background()
	svc, repo, userID := newServiceFixture(t)

	_, _, err := svc.Create(ctx, core.Expense{
		UserID:   userID,
		Title:    "",
		Amount:   core.Money{Cents: 100},
		Date:     core.NewDate(2025, 3, 15),
		Category: core.CategoryFood,
	})
	if err == nil {
		t.Fatal("expected validation error for empty title")
	}

	list, err := repo.ListExpenses(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("invalid expense was persisted: %v", list)
	}
}

func TestCreateReturnsAlertsAndStillSaves(t *testing.T) {
	ctx := context.Background()
	svc, repo, userID := newServiceFixture(t)

	if _, err := repo.CreateBudget(ctx, core.Budget{
		UserID:   userID,
		Category: core.CategoryFood,
		Amount:   core.Money{Cents: 100_00},
		Month:    core.NewDate(2025, 3, 1),
	}); err != nil {
		t.Fatalf("create budget: %v", err)
	}

	id, alerts, err := svc.Create(ctx, core.Expense{
		UserID:   userID,
		Title:    "feast",
		Amount:   core.Money{Cents: 150_00},
		Date:     core.NewDate(2025, 3, 15),
		Category: core.CategoryFood,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(alerts) != 1 || !strings.Contains(alerts[0], "exceeded") {
		t.Errorf("alerts = %v, want one exceeded message", alerts)
	}

	// The alert is advisory: the expense is saved regardless.
	if _, err := repo.GetExpense(ctx, userID, id); err != nil {
		t.Errorf("expense not saved despite alert: %v", err)
	}
}

func TestCreateWithoutEvaluator(t *testing.T) {
	ctx := context.Background()
	svc, _, userID := newServiceFixture(t)
	svc.evaluator = nil

	_, alerts, err := svc.Create(ctx, core.Expense{
		UserID:   userID,
		Title:    "coffee",
		Amount:   core.Money{Cents: 350},
		Date:     core.NewDate(2025, 3, 15),
		Category: core.CategoryFood,
	})
	if err != nil {
		t.Fatalf("create without evaluator: %v", err)
	}
	if alerts != nil {
		t.Errorf("alerts = %v, want nil", alerts)
	}
}

func TestDeleteRemovesExpense(t *testing.T) {
	ctx := context.Background()
	svc, repo, userID := newServiceFixture(t)

	id, _, err := svc.Create(ctx, core.Expense{
		UserID:   userID,
		Title:    "coffee",
		Amount:   core.Money{Cents: 350},
		Date:     core.NewDate(2025, 3, 15),
		Category: core.CategoryFood,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, userID, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetExpense(ctx, userID, id); err == nil {
		t.Error("expense still present after delete")
	}

	if err := svc.Delete(ctx, userID, id); err == nil {
		t.Error("expected error deleting a missing expense")
	}
}

func TestCloseWithNilComponents(t *testing.T) {
	svc := &ExpenseService{}
	if err := svc.Close(); err != nil {
		t.Fatalf("close with nil components: %v", err)
	}
}
