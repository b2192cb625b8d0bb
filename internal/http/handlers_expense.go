package http

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/astelwilliam/expense-tracker/internal/core"
	"github.com/astelwilliam/expense-tracker/internal/storage"
)

// expenseRow is one expense as shown in a listing.
type expenseRow struct {
	ID       int64
	Title    string
	Amount   string
	Date     string
	Category string
	Notes    string
}

func toExpenseRows(expenses []core.Expense) []expenseRow {
	rows := make([]expenseRow, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, expenseRow{
			ID:       e.ID,
			Title:    e.Title,
			Amount:   e.Amount.String(),
			Date:     e.Date.ISO(),
			Category: string(e.Category),
			Notes:    e.Notes,
		})
	}
	return rows
}

func sumExpenses(expenses []core.Expense) core.Money {
	var total core.Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// indexViewModel drives the home page: the add-expense form plus the
// full expense list, newest first.
type indexViewModel struct {
	Username   string
	Today      string
	Categories []core.Category
	Expenses   []expenseRow
	Total      string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	expenses, err := s.store.ListExpenses(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "index.html", indexViewModel{
		Username:   user.Username,
		Today:      core.DateOf(time.Now()).ISO(),
		Categories: core.ExpenseCategories,
		Expenses:   toExpenseRows(expenses),
		Total:      sumExpenses(expenses).String(),
	})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	title := sanitizeInput(r.FormValue("title"))
	if title == "" {
		UnprocessableEntityError("Title is required").Write(w)
		return
	}

	amount, err := formAmount(r, "amount")
	if err != nil {
		UnprocessableEntityError("Invalid amount").Write(w)
		return
	}

	date, err := formDate(r, "date")
	if err != nil {
		UnprocessableEntityError("Invalid date, expected YYYY-MM-DD").Write(w)
		return
	}

	expense := core.Expense{
		UserID:   user.ID,
		Title:    title,
		Amount:   amount,
		Date:     date,
		Category: formCategory(r, "category"),
		Notes:    sanitizeInput(r.FormValue("notes")),
	}

	id, alerts, err := s.expenses.Create(r.Context(), expense)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create expense failed",
			"user_id", user.ID, "error", err)
		InternalServerError("Could not save expense").Write(w)
		return
	}

	s.invalidateReports(user.ID)

	resp := NewHTMXResponse().
		TriggerExpenseCreated(id).
		TriggerFormReset().
		TriggerSuccessNotification("Expense saved")
	for _, alert := range alerts {
		resp.TriggerWarningNotification(alert)
	}

	body := `<div class="success">Saved: ` + template.HTMLEscapeString(expense.Title) +
		` (` + template.HTMLEscapeString(expense.Amount.String()) + `)</div>`
	for _, alert := range alerts {
		body += `<div class="warning">` + template.HTMLEscapeString(alert) + `</div>`
	}

	resp.BodyHTML(body).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		BadRequestError("Invalid expense id").Write(w)
		return
	}

	if err := s.expenses.Delete(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("Expense not found").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Delete expense failed",
			"user_id", user.ID, "id", id, "error", err)
		InternalServerError("Could not delete expense").Write(w)
		return
	}

	s.invalidateReports(user.ID)

	NewHTMXResponse().
		TriggerExpenseDeleted(id).
		TriggerSuccessNotification("Expense deleted").
		Write(w)
}

// rangeViewModel drives the day, week, and month listing pages.
type rangeViewModel struct {
	Title    string
	From     string
	To       string
	PrevLink string
	NextLink string
	Expenses []expenseRow
	Total    string
	ByCat    []categoryShare
}

type categoryShare struct {
	Category string
	Amount   string
}

func (s *Server) handleDayView(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date")
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	prev := core.DateOf(date.AddDate(0, 0, -1))
	next := core.DateOf(date.AddDate(0, 0, 1))
	s.renderRange(w, r, date, date, rangeViewModel{
		Title:    date.Format("Monday, January 2 2006"),
		PrevLink: "/expenses/day?date=" + prev.ISO(),
		NextLink: "/expenses/day?date=" + next.ISO(),
	})
}

func (s *Server) handleWeekView(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date")
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	// Weeks run Monday through Sunday.
	offset := (int(date.Weekday()) + 6) % 7
	start := core.DateOf(date.AddDate(0, 0, -offset))
	end := core.DateOf(start.AddDate(0, 0, 6))

	prev := core.DateOf(start.AddDate(0, 0, -7))
	next := core.DateOf(start.AddDate(0, 0, 7))
	s.renderRange(w, r, start, end, rangeViewModel{
		Title:    fmt.Sprintf("Week of %s", start.Format("January 2 2006")),
		PrevLink: "/expenses/week?date=" + prev.ISO(),
		NextLink: "/expenses/week?date=" + next.ISO(),
	})
}

func (s *Server) handleMonthView(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	year, month := now.Year(), int(now.Month())
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			month = m
		}
	}

	start := core.NewDate(year, month, 1)
	end := core.DateOf(start.AddDate(0, 1, -1))

	prev := core.DateOf(start.AddDate(0, -1, 0))
	next := core.DateOf(start.AddDate(0, 1, 0))
	monthLink := func(d core.Date) string {
		return fmt.Sprintf("/expenses/month?year=%d&month=%d", d.Year(), int(d.Month()))
	}
	s.renderRange(w, r, start, end, rangeViewModel{
		Title:    start.Format("January 2006"),
		PrevLink: monthLink(prev),
		NextLink: monthLink(next),
	})
}

// renderRange fills the shared parts of a range view (expense rows,
// total, per-category breakdown) and renders it.
func (s *Server) renderRange(w http.ResponseWriter, r *http.Request, from, to core.Date, vm rangeViewModel) {
	user := userFrom(r)

	expenses, err := s.store.ListExpensesInRange(r.Context(), user.ID, from, to)
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses in range failed",
			"user_id", user.ID, "from", from.ISO(), "to", to.ISO(), "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	byCat := make(map[core.Category]core.Money)
	for _, e := range expenses {
		byCat[e.Category] = byCat[e.Category].Add(e.Amount)
	}
	for _, c := range core.RecurringCategories {
		if total, ok := byCat[c]; ok {
			vm.ByCat = append(vm.ByCat, categoryShare{Category: string(c), Amount: total.String()})
		}
	}

	vm.From = from.ISO()
	vm.To = to.ISO()
	vm.Expenses = toExpenseRows(expenses)
	vm.Total = sumExpenses(expenses).String()

	s.render(w, r, "expenses.html", vm)
}
