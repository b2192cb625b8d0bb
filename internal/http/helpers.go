package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/astelwilliam/expense-tracker/internal/core"
)

// render executes a page template inside the shared base layout. HTMX
// requests get only the content block so partial swaps stay cheap.
func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, data any) {
	t, ok := s.templates[page]
	if !ok {
		slog.ErrorContext(r.Context(), "Unknown template", "template", page)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	target := "base"
	if r.Header.Get("HX-Request") == "true" {
		target = "content"
	}
	if err := t.ExecuteTemplate(w, target, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed",
			"template", page, "error", err)
	}
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// formDate parses a YYYY-MM-DD form value, defaulting to today when
// empty.
func formDate(r *http.Request, field string) (core.Date, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return core.DateOf(time.Now()), nil
	}
	return core.ParseDate(v)
}

// queryDate parses a YYYY-MM-DD query parameter, defaulting to today
// when absent.
func queryDate(r *http.Request, param string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(param))
	if v == "" {
		return core.DateOf(time.Now()), nil
	}
	return core.ParseDate(v)
}

// formAmount parses a decimal amount form value into money.
func formAmount(r *http.Request, field string) (core.Money, error) {
	return core.ParseMoney(strings.TrimSpace(r.FormValue(field)))
}

// formCategory resolves a category form value, falling back to Other.
func formCategory(r *http.Request, field string) core.Category {
	c, _ := core.ParseCategory(r.FormValue(field))
	return c
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
