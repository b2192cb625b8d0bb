// Package http serves the web UI: session-authenticated pages rendered
// from embedded templates, with HTMX partials for the interactive bits.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/astelwilliam/expense-tracker/internal/cache"
	"github.com/astelwilliam/expense-tracker/internal/core"
	"github.com/astelwilliam/expense-tracker/internal/services"
	"github.com/astelwilliam/expense-tracker/internal/storage"
	appweb "github.com/astelwilliam/expense-tracker/web"
)

// pageTemplates are the views rendered on top of base.html.
var pageTemplates = []string{
	"login.html",
	"signup.html",
	"index.html",
	"expenses.html",
	"budgets.html",
	"recurring.html",
	"reports.html",
	"import.html",
}

// Options carries the server knobs taken from configuration.
type Options struct {
	Addr            string
	SecureCookie    bool
	SessionDuration time.Duration
}

type Server struct {
	http.Server

	store     *storage.Repository
	expenses  *services.ExpenseService
	generator *services.Generator

	// One parsed template set per page, each sharing base.html.
	templates map[string]*template.Template

	secureCookie    bool
	sessionDuration time.Duration

	rateLimiter *rateLimiter
	metrics     *securityMetrics

	// Report data is expensive to aggregate; cache it per user.
	reportCache *cache.TTLCache[core.MonthlyReport]

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(opts Options, store *storage.Repository, expenses *services.ExpenseService, generator *services.Generator) (*Server, error) {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    opts.Addr,
			Handler: mux,
		},
		store:           store,
		expenses:        expenses,
		generator:       generator,
		secureCookie:    opts.SecureCookie,
		sessionDuration: opts.SessionDuration,
		rateLimiter:     newRateLimiter(),
		metrics:         &securityMetrics{},
		reportCache:     cache.New[core.MonthlyReport](100, 5*time.Minute),
		stopCleanup:     make(chan struct{}),
	}

	if err := s.parseTemplates(); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	go s.startBackgroundCleanup()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	// Public pages
	mux.HandleFunc("GET /login", s.withSecurity(s.handleLoginForm))
	mux.HandleFunc("POST /login", s.withSecurity(s.handleLogin))
	mux.HandleFunc("GET /signup", s.withSecurity(s.handleSignupForm))
	mux.HandleFunc("POST /signup", s.withSecurity(s.handleSignup))
	mux.HandleFunc("POST /logout", s.withSecurity(s.handleLogout))

	// Everything below requires a session.
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return s.withSecurity(s.requireAuth(h))
	}

	mux.HandleFunc("GET /{$}", protected(s.handleIndex))

	mux.HandleFunc("POST /expenses", protected(s.handleCreateExpense))
	mux.HandleFunc("POST /expenses/{id}/delete", protected(s.handleDeleteExpense))
	mux.HandleFunc("GET /expenses/day", protected(s.handleDayView))
	mux.HandleFunc("GET /expenses/week", protected(s.handleWeekView))
	mux.HandleFunc("GET /expenses/month", protected(s.handleMonthView))

	mux.HandleFunc("GET /budgets", protected(s.handleBudgetsPage))
	mux.HandleFunc("POST /budgets", protected(s.handleCreateBudget))
	mux.HandleFunc("POST /budgets/{id}/amount", protected(s.handleUpdateBudgetAmount))
	mux.HandleFunc("POST /budgets/{id}/delete", protected(s.handleDeleteBudget))

	mux.HandleFunc("GET /recurring", protected(s.handleRecurringPage))
	mux.HandleFunc("POST /recurring", protected(s.handleCreateRecurring))
	mux.HandleFunc("POST /recurring/{id}", protected(s.handleUpdateRecurring))
	mux.HandleFunc("POST /recurring/{id}/toggle", protected(s.handleToggleRecurring))
	mux.HandleFunc("POST /recurring/{id}/delete", protected(s.handleDeleteRecurring))
	mux.HandleFunc("POST /recurring/generate", protected(s.handleGenerateRecurring))

	mux.HandleFunc("GET /reports", protected(s.handleReports))

	mux.HandleFunc("GET /export/csv", protected(s.handleExportCSV))
	mux.HandleFunc("GET /export/xlsx", protected(s.handleExportExcel))
	mux.HandleFunc("GET /export/pdf", protected(s.handleExportPDF))

	mux.HandleFunc("GET /import", protected(s.handleImportForm))
	mux.HandleFunc("POST /import", protected(s.handleImport))

	return s, nil
}

// parseTemplates builds one template set per page, each combining the
// page with the shared base layout.
func (s *Server) parseTemplates() error {
	s.templates = make(map[string]*template.Template, len(pageTemplates))
	for _, page := range pageTemplates {
		t, err := template.ParseFS(appweb.TemplatesFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return fmt.Errorf("parse %s: %w", page, err)
		}
		s.templates[page] = t
	}
	return nil
}

// startBackgroundCleanup periodically expires cache entries and purges
// stale sessions.
func (s *Server) startBackgroundCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.reportCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Report cache cleanup completed", "entries_removed", cleaned)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if purged, err := s.store.DeleteExpiredSessions(ctx); err != nil {
				slog.Error("Session cleanup failed", "error", err)
			} else if purged > 0 {
				slog.Debug("Expired sessions purged", "count", purged)
			}
			cancel()
		case <-s.stopCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCleanup != nil {
			close(s.stopCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) reportCacheKey(userID int64) string {
	return "report:" + strconv.FormatInt(userID, 10)
}

// invalidateReports drops the cached report for a user after any write
// that changes their expense history.
func (s *Server) invalidateReports(userID int64) {
	s.reportCache.Delete(s.reportCacheKey(userID))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
