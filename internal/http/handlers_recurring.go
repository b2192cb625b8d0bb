package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/astelwilliam/expense-tracker/internal/core"
	"github.com/astelwilliam/expense-tracker/internal/storage"
)

type recurringRow struct {
	ID            int64
	Title         string
	Amount        string
	Category      string
	Frequency     string
	StartDate     string
	EndDate       string
	Active        bool
	Notes         string
	LastGenerated string
}

type recurringViewModel struct {
	Username    string
	Categories  []core.Category
	Frequencies []core.Frequency
	Templates   []recurringRow
	Error       string
}

var frequencies = []core.Frequency{core.Daily, core.Weekly, core.Monthly}

func (s *Server) handleRecurringPage(w http.ResponseWriter, r *http.Request) {
	s.renderRecurringPage(w, r, "")
}

func (s *Server) renderRecurringPage(w http.ResponseWriter, r *http.Request, formError string) {
	user := userFrom(r)

	templates, err := s.store.ListRecurring(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List recurring templates failed",
			"user_id", user.ID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rows := make([]recurringRow, 0, len(templates))
	for _, t := range templates {
		row := recurringRow{
			ID:        t.ID,
			Title:     t.Title,
			Amount:    t.Amount.String(),
			Category:  string(t.Category),
			Frequency: string(t.Frequency),
			StartDate: t.StartDate.ISO(),
			Active:    t.Active,
			Notes:     t.Notes,
		}
		if !t.EndDate.IsZero() {
			row.EndDate = t.EndDate.ISO()
		}
		if !t.LastGenerated.IsZero() {
			row.LastGenerated = t.LastGenerated.ISO()
		}
		rows = append(rows, row)
	}

	s.render(w, r, "recurring.html", recurringViewModel{
		Username:    user.Username,
		Categories:  core.RecurringCategories,
		Frequencies: frequencies,
		Templates:   rows,
		Error:       formError,
	})
}

// parseRecurringForm builds a template from form values, shared by
// create and update.
func (s *Server) parseRecurringForm(r *http.Request, userID int64) (core.RecurringExpense, error) {
	title := sanitizeInput(r.FormValue("title"))
	if title == "" {
		return core.RecurringExpense{}, core.ErrEmptyTitle
	}

	amount, err := formAmount(r, "amount")
	if err != nil {
		return core.RecurringExpense{}, core.ErrInvalidAmount
	}

	frequency, err := core.ParseFrequency(r.FormValue("frequency"))
	if err != nil {
		return core.RecurringExpense{}, err
	}

	startDate, err := formDate(r, "start_date")
	if err != nil {
		return core.RecurringExpense{}, errors.New("invalid start date")
	}

	var endDate core.Date
	if v := strings.TrimSpace(r.FormValue("end_date")); v != "" {
		endDate, err = core.ParseDate(v)
		if err != nil {
			return core.RecurringExpense{}, errors.New("invalid end date")
		}
	}

	template := core.RecurringExpense{
		UserID:    userID,
		Title:     title,
		Amount:    amount,
		Category:  formCategory(r, "category"),
		Frequency: frequency,
		StartDate: startDate,
		EndDate:   endDate,
		Active:    true,
		Notes:     sanitizeInput(r.FormValue("notes")),
	}
	return template, template.Validate()
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	if err := r.ParseForm(); err != nil {
		s.renderRecurringPage(w, r, "Invalid form submission")
		return
	}

	template, err := s.parseRecurringForm(r, user.ID)
	if err != nil {
		s.renderRecurringPage(w, r, "Invalid template: "+err.Error())
		return
	}

	if _, err := s.store.CreateRecurring(r.Context(), template); err != nil {
		slog.ErrorContext(r.Context(), "Create recurring template failed",
			"user_id", user.ID, "error", err)
		s.renderRecurringPage(w, r, "Could not save template")
		return
	}

	http.Redirect(w, r, "/recurring", http.StatusFound)
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		BadRequestError("Invalid template id").Write(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid form submission").Write(w)
		return
	}

	template, err := s.parseRecurringForm(r, user.ID)
	if err != nil {
		UnprocessableEntityError("Invalid template: " + err.Error()).Write(w)
		return
	}
	template.ID = id

	if err := s.store.UpdateRecurring(r.Context(), template); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("Template not found").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Update recurring template failed",
			"user_id", user.ID, "id", id, "error", err)
		InternalServerError("Could not update template").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerRecurringChanged().
		TriggerSuccessNotification("Template updated").
		Write(w)
}

func (s *Server) handleToggleRecurring(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		BadRequestError("Invalid template id").Write(w)
		return
	}

	template, err := s.store.GetRecurring(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("Template not found").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Get recurring template failed",
			"user_id", user.ID, "id", id, "error", err)
		InternalServerError("Could not load template").Write(w)
		return
	}

	if err := s.store.SetRecurringActive(r.Context(), user.ID, id, !template.Active); err != nil {
		slog.ErrorContext(r.Context(), "Toggle recurring template failed",
			"user_id", user.ID, "id", id, "error", err)
		InternalServerError("Could not update template").Write(w)
		return
	}

	state := "paused"
	if !template.Active {
		state = "resumed"
	}
	NewHTMXResponse().
		TriggerRecurringChanged().
		TriggerSuccessNotification("Template " + state).
		Write(w)
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		BadRequestError("Invalid template id").Write(w)
		return
	}

	if err := s.store.DeleteRecurring(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("Template not found").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Delete recurring template failed",
			"user_id", user.ID, "id", id, "error", err)
		InternalServerError("Could not delete template").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerRecurringChanged().
		TriggerSuccessNotification("Template deleted").
		Write(w)
}

// handleGenerateRecurring materializes due recurring expenses for the
// given date (today when absent). Running it twice for the same date
// creates nothing new.
func (s *Server) handleGenerateRecurring(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	target, err := queryDate(r, "date")
	if err != nil {
		BadRequestError("Invalid date, expected YYYY-MM-DD").Write(w)
		return
	}

	created, err := s.generator.GenerateForDate(r.Context(), user.ID, target)
	if err != nil {
		slog.ErrorContext(r.Context(), "Recurring generation failed",
			"user_id", user.ID, "date", target.ISO(), "error", err)
		InternalServerError("Could not generate recurring expenses").Write(w)
		return
	}

	if created > 0 {
		s.invalidateReports(user.ID)
	}

	message := fmt.Sprintf("Generated %d expense(s) for %s", created, target.ISO())
	if created == 0 {
		message = "Nothing due for " + target.ISO()
	}
	NewHTMXResponse().
		TriggerRecurringChanged().
		TriggerSuccessNotification(message).
		Write(w)
}
