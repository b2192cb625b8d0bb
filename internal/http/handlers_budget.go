package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/astelwilliam/expense-tracker/internal/core"
	"github.com/astelwilliam/expense-tracker/internal/storage"
)

// budgetRow is one budget with its current consumption.
type budgetRow struct {
	ID        int64
	Category  string
	Month     string // "January 2006"
	MonthISO  string // "2006-01"
	Limit     string
	Spent     string
	Remaining string
	Percent   int    // capped at 100 for the progress bar
	Status    string // ok, near, over
}

type budgetsViewModel struct {
	Username     string
	CurrentMonth string
	Categories   []core.Category
	Budgets      []budgetRow
	Error        string
}

func (s *Server) handleBudgetsPage(w http.ResponseWriter, r *http.Request) {
	s.renderBudgetsPage(w, r, "")
}

func (s *Server) renderBudgetsPage(w http.ResponseWriter, r *http.Request, formError string) {
	user := userFrom(r)

	budgets, err := s.store.ListBudgets(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List budgets failed", "user_id", user.ID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rows := make([]budgetRow, 0, len(budgets))
	for _, b := range budgets {
		spentCents, err := s.store.SumExpensesForMonth(r.Context(), user.ID, b.Month, b.Category)
		if err != nil {
			slog.ErrorContext(r.Context(), "Sum expenses for budget failed",
				"user_id", user.ID, "budget_id", b.ID, "error", err)
			continue
		}
		rows = append(rows, makeBudgetRow(b, spentCents))
	}

	s.render(w, r, "budgets.html", budgetsViewModel{
		Username:     user.Username,
		CurrentMonth: core.DateOf(time.Now()).MonthStart().Format("2006-01"),
		Categories:   core.BudgetCategories,
		Budgets:      rows,
		Error:        formError,
	})
}

func makeBudgetRow(b core.Budget, spentCents int64) budgetRow {
	row := budgetRow{
		ID:        b.ID,
		Category:  string(b.Category),
		Month:     b.Month.Format("January 2006"),
		MonthISO:  b.Month.Format("2006-01"),
		Limit:     b.Amount.String(),
		Spent:     core.Money{Cents: spentCents}.String(),
		Remaining: b.Amount.Sub(core.Money{Cents: spentCents}).String(),
		Status:    "ok",
	}

	if b.Amount.Cents > 0 {
		pct := spentCents * 100 / b.Amount.Cents
		if pct > 100 {
			pct = 100
		}
		row.Percent = int(pct)
	}

	switch {
	case spentCents >= b.Amount.Cents:
		row.Status = "over"
	case spentCents*10 >= b.Amount.Cents*9:
		row.Status = "near"
	}
	return row
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	if err := r.ParseForm(); err != nil {
		s.renderBudgetsPage(w, r, "Invalid form submission")
		return
	}

	amount, err := formAmount(r, "amount")
	if err != nil {
		s.renderBudgetsPage(w, r, "Invalid amount")
		return
	}

	// The month field arrives as YYYY-MM from <input type="month">.
	monthRaw := strings.TrimSpace(r.FormValue("month"))
	monthTime, err := time.Parse("2006-01", monthRaw)
	if err != nil {
		s.renderBudgetsPage(w, r, "Invalid month, expected YYYY-MM")
		return
	}

	budget := core.Budget{
		UserID:   user.ID,
		Category: formCategory(r, "category"),
		Amount:   amount,
		Month:    core.DateOf(monthTime).MonthStart(),
	}
	// Overall never survives formCategory's fallback, so check the raw
	// field explicitly.
	if strings.EqualFold(strings.TrimSpace(r.FormValue("category")), string(core.CategoryOverall)) {
		budget.Category = core.CategoryOverall
	}

	if err := budget.Validate(); err != nil {
		s.renderBudgetsPage(w, r, "Invalid budget: "+err.Error())
		return
	}

	existing, err := s.store.GetBudget(r.Context(), user.ID, budget.Category, budget.Month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Budget lookup failed", "user_id", user.ID, "error", err)
		s.renderBudgetsPage(w, r, "Could not save budget")
		return
	}
	if existing != nil {
		s.renderBudgetsPage(w, r, "A budget for that category and month already exists")
		return
	}

	if _, err := s.store.CreateBudget(r.Context(), budget); err != nil {
		slog.ErrorContext(r.Context(), "Create budget failed", "user_id", user.ID, "error", err)
		s.renderBudgetsPage(w, r, "Could not save budget")
		return
	}

	http.Redirect(w, r, "/budgets", http.StatusFound)
}

func (s *Server) handleUpdateBudgetAmount(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		BadRequestError("Invalid budget id").Write(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid form submission").Write(w)
		return
	}

	amount, err := formAmount(r, "amount")
	if err != nil || amount.Validate() != nil {
		UnprocessableEntityError("Invalid amount").Write(w)
		return
	}

	if err := s.store.UpdateBudgetAmount(r.Context(), user.ID, id, amount.Cents); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("Budget not found").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Update budget failed",
			"user_id", user.ID, "id", id, "error", err)
		InternalServerError("Could not update budget").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerBudgetChanged().
		TriggerSuccessNotification("Budget updated").
		Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		BadRequestError("Invalid budget id").Write(w)
		return
	}

	if err := s.store.DeleteBudget(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("Budget not found").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Delete budget failed",
			"user_id", user.ID, "id", id, "error", err)
		InternalServerError("Could not delete budget").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerBudgetChanged().
		TriggerSuccessNotification("Budget deleted").
		Write(w)
}
