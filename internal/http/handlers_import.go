package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/astelwilliam/expense-tracker/internal/importer"
)

// maxImportSize caps upload size at 5 MiB.
const maxImportSize = 5 << 20

// maxShownErrors limits how many rejected rows are listed on the result
// page; the rest are summarized as a count.
const maxShownErrors = 5

type importViewModel struct {
	Username     string
	Error        string
	Imported     int
	Rejected     int
	RowErrors    []string
	HiddenErrors int
	Done         bool
}

func (s *Server) handleImportForm(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	s.render(w, r, "import.html", importViewModel{Username: user.Username})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	vm := importViewModel{Username: user.Username}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		vm.Error = "Upload too large or malformed (max 5 MB)"
		s.render(w, r, "import.html", vm)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		vm.Error = "Choose a CSV or xlsx file to import"
		s.render(w, r, "import.html", vm)
		return
	}
	defer file.Close()

	var result importer.Result
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		result, err = importer.ParseCSV(file)
	case ".xlsx":
		result, err = importer.ParseExcel(file)
	default:
		vm.Error = "Unsupported file type, expected .csv or .xlsx"
		s.render(w, r, "import.html", vm)
		return
	}
	if err != nil {
		vm.Error = "Could not read file: " + err.Error()
		s.render(w, r, "import.html", vm)
		return
	}

	imported := 0
	for _, e := range result.Expenses {
		e.UserID = user.ID
		if _, _, err := s.expenses.Create(r.Context(), e); err != nil {
			slog.ErrorContext(r.Context(), "Import row save failed",
				"user_id", user.ID, "title", e.Title, "error", err)
			result.Rejected = append(result.Rejected, importer.RowError{
				Reason: fmt.Sprintf("%q could not be saved", e.Title),
			})
			continue
		}
		imported++
	}

	if imported > 0 {
		s.invalidateReports(user.ID)
	}

	vm.Done = true
	vm.Imported = imported
	vm.Rejected = len(result.Rejected)
	for i, rowErr := range result.Rejected {
		if i == maxShownErrors {
			vm.HiddenErrors = len(result.Rejected) - maxShownErrors
			break
		}
		vm.RowErrors = append(vm.RowErrors, rowErr.String())
	}

	slog.InfoContext(r.Context(), "Import completed",
		"user_id", user.ID,
		"file", header.Filename,
		"imported", imported,
		"rejected", len(result.Rejected))

	s.render(w, r, "import.html", vm)
}
