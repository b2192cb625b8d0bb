package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/astelwilliam/expense-tracker/internal/core"
	"github.com/astelwilliam/expense-tracker/internal/export"
)

// exportFilename builds a dated download name like expenses-2026-08-31.csv.
func exportFilename(ext string) string {
	return fmt.Sprintf("expenses-%s.%s", core.DateOf(time.Now()).ISO(), ext)
}

// loadAllExpenses fetches the user's full history for export.
func (s *Server) loadAllExpenses(w http.ResponseWriter, r *http.Request) ([]core.Expense, bool) {
	user := userFrom(r)
	expenses, err := s.store.ListExpenses(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses for export failed",
			"user_id", user.ID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return expenses, true
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	expenses, ok := s.loadAllExpenses(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename("csv")+`"`)
	if err := export.WriteCSV(w, expenses); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", "error", err)
	}
}

func (s *Server) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	expenses, ok := s.loadAllExpenses(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename("xlsx")+`"`)
	if err := export.WriteExcel(w, expenses); err != nil {
		slog.ErrorContext(r.Context(), "Excel export failed", "error", err)
	}
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	expenses, ok := s.loadAllExpenses(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename("pdf")+`"`)
	if err := export.WritePDF(w, expenses); err != nil {
		slog.ErrorContext(r.Context(), "PDF export failed", "error", err)
	}
}
