package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/astelwilliam/expense-tracker/internal/core"
)

type reportRow struct {
	Label string
	Total string
}

type reportsViewModel struct {
	Username       string
	MonthRows      []reportRow
	CategoryRows   []reportRow
	MonthLabels    string // JSON array for the chart
	MonthValues    string // JSON array of amounts in units
	CategoryLabels string
	CategoryValues string
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	report, err := s.getReport(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Monthly report failed",
			"user_id", user.ID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	vm := reportsViewModel{Username: user.Username}

	monthLabels := make([]string, 0, len(report.MonthTotals))
	monthValues := make([]float64, 0, len(report.MonthTotals))
	for _, m := range report.MonthTotals {
		label := m.Month.Format("Jan 2006")
		vm.MonthRows = append(vm.MonthRows, reportRow{Label: label, Total: m.Total.String()})
		monthLabels = append(monthLabels, label)
		monthValues = append(monthValues, float64(m.Total.Cents)/100)
	}

	categoryLabels := make([]string, 0, len(report.CategoryTotals))
	categoryValues := make([]float64, 0, len(report.CategoryTotals))
	for _, c := range report.CategoryTotals {
		vm.CategoryRows = append(vm.CategoryRows, reportRow{Label: string(c.Category), Total: c.Total.String()})
		categoryLabels = append(categoryLabels, string(c.Category))
		categoryValues = append(categoryValues, float64(c.Total.Cents)/100)
	}

	vm.MonthLabels = mustJSON(monthLabels)
	vm.MonthValues = mustJSON(monthValues)
	vm.CategoryLabels = mustJSON(categoryLabels)
	vm.CategoryValues = mustJSON(categoryValues)

	s.render(w, r, "reports.html", vm)
}

// getReport returns the user's aggregated report, served from the
// report cache when fresh.
func (s *Server) getReport(r *http.Request) (core.MonthlyReport, error) {
	user := userFrom(r)
	key := s.reportCacheKey(user.ID)

	if report, found := s.reportCache.Get(key); found {
		slog.DebugContext(r.Context(), "Report cache hit", "user_id", user.ID)
		return report, nil
	}

	report, err := s.store.MonthlyReport(r.Context(), user.ID)
	if err != nil {
		return core.MonthlyReport{}, err
	}

	s.reportCache.Set(key, report)
	return report, nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
