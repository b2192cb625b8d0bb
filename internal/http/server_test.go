package http

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/astelwilliam/expense-tracker/internal/auth"
	"github.com/astelwilliam/expense-tracker/internal/core"
	"github.com/astelwilliam/expense-tracker/internal/services"
	"github.com/astelwilliam/expense-tracker/internal/storage"
)

type serverFixture struct {
	server *Server
	repo   *storage.Repository
	userID int64
	cookie *http.Cookie
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	evaluator := services.NewEvaluator(repo, repo)
	expenses := services.NewExpenseService(repo, evaluator, nil)
	generator := services.NewGenerator(repo, repo)

	srv, err := NewServer(Options{
		Addr:            ":0",
		SessionDuration: time.Hour,
	}, repo, expenses, generator)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	ctx := context.Background()
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	userID, err := repo.CreateUser(ctx, "alice", "alice@example.com", hash)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := repo.CreateSession(ctx, "test-token", userID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("create session: %v", err)
	}

	return &serverFixture{
		server: srv,
		repo:   repo,
		userID: userID,
		cookie: &http.Cookie{Name: SessionCookieName, Value: "test-token"},
	}
}

func (f *serverFixture) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.AddCookie(f.cookie)
	w := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	f := newServerFixture(t)

	w := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	f.server.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("readyz = %d, want 200", w.Code)
	}
}

func TestUnauthenticatedRedirectsToLogin(t *testing.T) {
	f := newServerFixture(t)

	w := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestIndexRendersForAuthenticatedUser(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(t, "GET", "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "alice") {
		t.Error("index does not show the logged-in username")
	}
}

func TestLoginFlow(t *testing.T) {
	f := newServerFixture(t)

	w := httptest.NewRecorder()
	form := url.Values{"username": {"alice"}, "password": {"password123"}}
	req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	f.server.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302: %s", w.Code, w.Body.String())
	}
	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("login did not set a session cookie")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	f := newServerFixture(t)

	w := httptest.NewRecorder()
	form := url.Values{"username": {"alice"}, "password": {"wrong"}}
	req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	f.server.Handler.ServeHTTP(w, req)

	if w.Code == http.StatusFound {
		t.Fatal("wrong password must not log in")
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName && c.Value != "" {
			t.Error("wrong password must not set a session cookie")
		}
	}
}

func TestCreateExpenseSetsHTMXTriggers(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(t, "POST", "/expenses", url.Values{
		"title":    {"Coffee"},
		"amount":   {"3.50"},
		"date":     {"2025-03-15"},
		"category": {"Food"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	trigger := w.Header().Get("HX-Trigger")
	for _, part := range []string{`"expense:created"`, `"form:reset"`, `"show-notification"`} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}

	list, err := f.repo.ListExpenses(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Coffee" {
		t.Errorf("stored expenses = %v", list)
	}
}

func TestCreateExpenseRejectsBadAmount(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(t, "POST", "/expenses", url.Values{
		"title":    {"Coffee"},
		"amount":   {"zero"},
		"date":     {"2025-03-15"},
		"category": {"Food"},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestCreateExpenseSurfacesBudgetWarning(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	if _, err := f.repo.CreateBudget(ctx, core.Budget{
		UserID:   f.userID,
		Category: core.CategoryFood,
		Amount:   core.Money{Cents: 100},
		Month:    core.NewDate(2025, 3, 1),
	}); err != nil {
		t.Fatalf("create budget: %v", err)
	}

	w := f.do(t, "POST", "/expenses", url.Values{
		"title":    {"Feast"},
		"amount":   {"50.00"},
		"date":     {"2025-03-15"},
		"category": {"Food"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "exceeded") {
		t.Errorf("response missing budget warning: %s", w.Body.String())
	}
}

func TestDeleteExpense(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	id, err := f.repo.CreateExpense(ctx, core.Expense{
		UserID:   f.userID,
		Title:    "Coffee",
		Amount:   core.Money{Cents: 350},
		Date:     core.NewDate(2025, 3, 15),
		Category: core.CategoryFood,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	w := f.do(t, "POST", "/expenses/42000/delete", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleting missing expense = %d, want 404", w.Code)
	}

	w = f.do(t, "POST", "/expenses/"+strconv.FormatInt(id, 10)+"/delete", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d: %s", w.Code, w.Body.String())
	}
	if _, err := f.repo.GetExpense(ctx, f.userID, id); err == nil {
		t.Error("expense still present after delete")
	}
}

func TestExportCSVDownload(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	if _, err := f.repo.CreateExpense(ctx, core.Expense{
		UserID:   f.userID,
		Title:    "Coffee",
		Amount:   core.Money{Cents: 350},
		Date:     core.NewDate(2025, 3, 15),
		Category: core.CategoryFood,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	w := f.do(t, "GET", "/export/csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(w.Body.String(), "Coffee") {
		t.Error("csv missing expense row")
	}
}

func TestGenerateRecurringEndpoint(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	if _, err := f.repo.CreateRecurring(ctx, core.RecurringExpense{
		UserID:    f.userID,
		Title:     "Rent",
		Amount:    core.Money{Cents: 90000},
		Category:  core.CategoryRent,
		Frequency: core.Monthly,
		StartDate: core.NewDate(2025, 1, 1),
		Active:    true,
	}); err != nil {
		t.Fatalf("create recurring: %v", err)
	}

	w := f.do(t, "POST", "/recurring/generate?date=2025-03-01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	list, err := f.repo.ListExpenses(ctx, f.userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || !strings.HasPrefix(list[0].Title, core.RecurringTitlePrefix) {
		t.Errorf("generated expenses = %v", list)
	}

	// Same day again: nothing new.
	w = f.do(t, "POST", "/recurring/generate?date=2025-03-01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	list, _ = f.repo.ListExpenses(ctx, f.userID)
	if len(list) != 1 {
		t.Errorf("idempotent generation produced %d expenses", len(list))
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	f := newServerFixture(t)

	w := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/login", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy not set")
	}
}

func (f *serverFixture) doUpload(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(f.cookie)
	w := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(w, req)
	return w
}

func TestImportPersistsRows(t *testing.T) {
	f := newServerFixture(t)

	csv := "date,title,amount,category,notes\n" +
		"2025-03-01,Groceries,42.00,Food,weekly shop\n" +
		"2025-03-02,Bus,2.50,Travel,\n"

	w := f.doUpload(t, "expenses.csv", csv)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if body := w.Body.String(); !strings.Contains(body, "Imported 2 expense(s), rejected 0 row(s)") {
		t.Errorf("result summary missing from body:\n%s", body)
	}

	list, err := f.repo.ListExpenses(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("persisted %d expenses, want 2", len(list))
	}
}

func TestImportCapsDisplayedRowErrors(t *testing.T) {
	f := newServerFixture(t)

	// One good row and seven bad ones, rows 2 through 9 of the file.
	csv := "date,title,amount\n" +
		"2025-03-01,Groceries,42.00\n" +
		"bad,Row A,1.00\n" +
		"bad,Row B,1.00\n" +
		"bad,Row C,1.00\n" +
		"bad,Row D,1.00\n" +
		"bad,Row E,1.00\n" +
		"bad,Row F,1.00\n" +
		"bad,Row G,1.00\n"

	w := f.doUpload(t, "expenses.csv", csv)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	body := w.Body.String()
	if !strings.Contains(body, "Imported 1 expense(s), rejected 7 row(s)") {
		t.Errorf("result summary missing from body:\n%s", body)
	}
	for _, want := range []string{"row 3:", "row 4:", "row 5:", "row 6:", "row 7:"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing listed error %q", want)
		}
	}
	for _, hidden := range []string{"row 8:", "row 9:"} {
		if strings.Contains(body, hidden) {
			t.Errorf("body lists %q past the display cap", hidden)
		}
	}
	if !strings.Contains(body, "and 2 more") {
		t.Errorf("hidden error count missing from body:\n%s", body)
	}

	list, err := f.repo.ListExpenses(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("persisted %d expenses, want 1", len(list))
	}
}

func TestImportRejectsUnsupportedFileType(t *testing.T) {
	f := newServerFixture(t)

	w := f.doUpload(t, "expenses.txt", "not a spreadsheet")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Unsupported file type") {
		t.Errorf("body missing file type error:\n%s", w.Body.String())
	}
}

func TestHeavyEndpointRateLimitReturnsHTMXError(t *testing.T) {
	f := newServerFixture(t)

	var w *httptest.ResponseRecorder
	for i := 0; i < 10; i++ {
		w = f.do(t, "POST", "/recurring/generate?date=2025-03-01", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, w.Code)
		}
	}

	w = f.do(t, "POST", "/recurring/generate?date=2025-03-01", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("request 11 status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After not set")
	}
	if trigger := w.Header().Get("HX-Trigger"); !strings.Contains(trigger, "show-notification") {
		t.Errorf("HX-Trigger = %q, want a show-notification trigger", trigger)
	}
	if !strings.Contains(w.Body.String(), `<div class="error">`) {
		t.Errorf("body = %q, want an error div", w.Body.String())
	}

	// The heavy budget does not spill into plain form posts.
	w = f.do(t, "POST", "/expenses", url.Values{
		"title":    {"Coffee"},
		"amount":   {"3.50"},
		"date":     {"2025-03-15"},
		"category": {"Food"},
	})
	if w.Code != http.StatusOK {
		t.Errorf("form post status = %d after heavy limit hit", w.Code)
	}
}
