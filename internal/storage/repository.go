package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/astelwilliam/expense-tracker/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist or is not owned
// by the requesting user.
var ErrNotFound = errors.New("record not found")

// Repository is the SQLite-backed store for users, sessions, expenses,
// budgets, and recurring templates.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database connection, for readiness probes.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// --- users ---

func (r *Repository) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		username, email, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user insert id: %w", err)
	}
	slog.InfoContext(ctx, "User created", "id", id, "username", username)
	return id, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	u := &core.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?`,
		username).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// --- sessions ---

func (r *Repository) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt.UTC()); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSessionUser resolves a session token into its user, rejecting
// expired sessions.
func (r *Repository) GetSessionUser(ctx context.Context, token string) (*core.User, time.Time, error) {
	u := &core.User{}
	var expiresAt time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.email, u.password_hash, u.created_at, s.expires_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token = ?`, token).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("get session: %w", err)
	}
	if time.Now().After(expiresAt) {
		_, _ = r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
		return nil, time.Time{}, ErrNotFound
	}
	return u, expiresAt, nil
}

func (r *Repository) RenewSession(ctx context.Context, token string, expiresAt time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ? WHERE token = ?`, expiresAt.UTC(), token); err != nil {
		return fmt.Errorf("renew session: %w", err)
	}
	return nil
}

func (r *Repository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry and returns
// how many were removed.
func (r *Repository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- expenses ---

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, title, amount_cents, date, category, notes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Title, e.Amount.Cents, e.Date.ISO(), string(e.Category), e.Notes)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense insert id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"title", e.Title,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.ISO(),
		"category", e.Category)

	return id, nil
}

func (r *Repository) GetExpense(ctx context.Context, userID, id int64) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, amount_cents, date, category, notes
		 FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetExpenseByID fetches an expense regardless of owner. Used by the
// mirror worker, which resolves event IDs outside a request scope.
func (r *Repository) GetExpenseByID(ctx context.Context, id int64) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, amount_cents, date, category, notes
		 FROM expenses WHERE id = ?`, id)
	return scanExpense(row)
}

func (r *Repository) DeleteExpense(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExpenses returns all of a user's expenses, newest first.
func (r *Repository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, amount_cents, date, category, notes
		 FROM expenses WHERE user_id = ? ORDER BY date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	return scanExpenses(rows)
}

// ListExpensesInRange returns expenses with from <= date <= to, ordered
// by date. ISO date strings compare lexicographically, so the filter runs
// directly on the stored text column.
func (r *Repository) ListExpensesInRange(ctx context.Context, userID int64, from, to core.Date) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, amount_cents, date, category, notes
		 FROM expenses WHERE user_id = ? AND date >= ? AND date <= ?
		 ORDER BY date, id`, userID, from.ISO(), to.ISO())
	if err != nil {
		return nil, fmt.Errorf("list expenses in range: %w", err)
	}
	defer rows.Close()
	return scanExpenses(rows)
}

// GeneratedExpenseExists implements the generation dedup check over the
// full key (owner, title, date, category, amount).
func (r *Repository) GeneratedExpenseExists(ctx context.Context, userID int64, title string, date core.Date, category core.Category, amountCents int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM expenses
		 WHERE user_id = ? AND title = ? AND date = ? AND category = ? AND amount_cents = ?`,
		userID, title, date.ISO(), string(category), amountCents).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// SumExpensesForMonth totals a user's spending in cents for the month
// containing the given date. CategoryOverall sums across all categories.
func (r *Repository) SumExpensesForMonth(ctx context.Context, userID int64, month core.Date, category core.Category) (int64, error) {
	start := month.MonthStart()
	end := core.Date{Time: start.AddDate(0, 1, 0)}

	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		 WHERE user_id = ? AND date >= ? AND date < ?`
	args := []any{userID, start.ISO(), end.ISO()}
	if category != core.CategoryOverall {
		query += ` AND category = ?`
		args = append(args, string(category))
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum expenses for month: %w", err)
	}
	return total, nil
}

// MonthlyReport aggregates per-month and per-category totals over the
// user's full history.
func (r *Repository) MonthlyReport(ctx context.Context, userID int64) (core.MonthlyReport, error) {
	var report core.MonthlyReport

	rows, err := r.db.QueryContext(ctx,
		`SELECT substr(date, 1, 7), SUM(amount_cents) FROM expenses
		 WHERE user_id = ? GROUP BY substr(date, 1, 7) ORDER BY substr(date, 1, 7)`, userID)
	if err != nil {
		return report, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ym string
		var cents int64
		if err := rows.Scan(&ym, &cents); err != nil {
			return report, fmt.Errorf("scan monthly total: %w", err)
		}
		month, err := core.ParseDate(ym + "-01")
		if err != nil {
			return report, fmt.Errorf("parse month %q: %w", ym, err)
		}
		report.MonthTotals = append(report.MonthTotals, core.MonthTotal{
			Month: month,
			Total: core.Money{Cents: cents},
		})
	}
	if err := rows.Err(); err != nil {
		return report, fmt.Errorf("monthly totals rows: %w", err)
	}

	catRows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents) FROM expenses
		 WHERE user_id = ? GROUP BY category ORDER BY SUM(amount_cents) DESC`, userID)
	if err != nil {
		return report, fmt.Errorf("category totals: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var cat string
		var cents int64
		if err := catRows.Scan(&cat, &cents); err != nil {
			return report, fmt.Errorf("scan category total: %w", err)
		}
		report.CategoryTotals = append(report.CategoryTotals, core.CategoryTotal{
			Category: core.Category(cat),
			Total:    core.Money{Cents: cents},
		})
	}
	if err := catRows.Err(); err != nil {
		return report, fmt.Errorf("category totals rows: %w", err)
	}

	return report, nil
}

// --- budgets ---

func (r *Repository) CreateBudget(ctx context.Context, b core.Budget) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category, amount_cents, month) VALUES (?, ?, ?, ?)`,
		b.UserID, string(b.Category), b.Amount.Cents, b.Month.MonthStart().ISO())
	if err != nil {
		return 0, fmt.Errorf("create budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("budget insert id: %w", err)
	}
	slog.InfoContext(ctx, "Budget saved",
		"id", id,
		"category", b.Category,
		"amount_cents", b.Amount.Cents,
		"month", b.Month.MonthStart().ISO())
	return id, nil
}

func (r *Repository) UpdateBudgetAmount(ctx context.Context, userID, id, amountCents int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET amount_cents = ? WHERE id = ? AND user_id = ?`,
		amountCents, id, userID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteBudget(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBudget returns the budget for (user, category, month), or nil when
// none is set. Absence is not an error: it means no alert is possible
// for that scope.
func (r *Repository) GetBudget(ctx context.Context, userID int64, category core.Category, month core.Date) (*core.Budget, error) {
	b := &core.Budget{}
	var monthStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, category, amount_cents, month FROM budgets
		 WHERE user_id = ? AND category = ? AND month = ?`,
		userID, string(category), month.MonthStart().ISO()).
		Scan(&b.ID, &b.UserID, &b.Category, &b.Amount.Cents, &monthStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	if b.Month, err = core.ParseDate(monthStr); err != nil {
		return nil, fmt.Errorf("parse budget month %q: %w", monthStr, err)
	}
	return b, nil
}

// ListBudgets returns all of a user's budgets, newest month first.
func (r *Repository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, category, amount_cents, month FROM budgets
		 WHERE user_id = ? ORDER BY month DESC, category`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var b core.Budget
		var monthStr string
		if err := rows.Scan(&b.ID, &b.UserID, &b.Category, &b.Amount.Cents, &monthStr); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		if b.Month, err = core.ParseDate(monthStr); err != nil {
			return nil, fmt.Errorf("parse budget month %q: %w", monthStr, err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// --- recurring templates ---

func (r *Repository) CreateRecurring(ctx context.Context, re core.RecurringExpense) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_expenses
		 (user_id, title, amount_cents, category, frequency, start_date, end_date, is_active, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		re.UserID, re.Title, re.Amount.Cents, string(re.Category), string(re.Frequency),
		re.StartDate.ISO(), nullableDate(re.EndDate), re.Active, re.Notes)
	if err != nil {
		return 0, fmt.Errorf("create recurring template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recurring insert id: %w", err)
	}
	slog.InfoContext(ctx, "Recurring template saved",
		"id", id,
		"title", re.Title,
		"frequency", re.Frequency,
		"start_date", re.StartDate.ISO())
	return id, nil
}

func (r *Repository) UpdateRecurring(ctx context.Context, re core.RecurringExpense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_expenses
		 SET title = ?, amount_cents = ?, category = ?, frequency = ?,
		     start_date = ?, end_date = ?, is_active = ?, notes = ?
		 WHERE id = ? AND user_id = ?`,
		re.Title, re.Amount.Cents, string(re.Category), string(re.Frequency),
		re.StartDate.ISO(), nullableDate(re.EndDate), re.Active, re.Notes,
		re.ID, re.UserID)
	if err != nil {
		return fmt.Errorf("update recurring template: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRecurringActive toggles a template. Deactivation suppresses future
// generation while keeping already-generated history.
func (r *Repository) SetRecurringActive(ctx context.Context, userID, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_expenses SET is_active = ? WHERE id = ? AND user_id = ?`,
		active, id, userID)
	if err != nil {
		return fmt.Errorf("set recurring active: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteRecurring(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM recurring_expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring template: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) GetRecurring(ctx context.Context, userID, id int64) (*core.RecurringExpense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, amount_cents, category, frequency,
		        start_date, end_date, is_active, notes, last_generated
		 FROM recurring_expenses WHERE id = ? AND user_id = ?`, id, userID)
	return scanRecurring(row)
}

// ListRecurring returns all of a user's templates, active first.
func (r *Repository) ListRecurring(ctx context.Context, userID int64) ([]core.RecurringExpense, error) {
	return r.listRecurring(ctx,
		`SELECT id, user_id, title, amount_cents, category, frequency,
		        start_date, end_date, is_active, notes, last_generated
		 FROM recurring_expenses WHERE user_id = ?
		 ORDER BY is_active DESC, title`, userID)
}

// ListActiveRecurring implements services.RecurringStore.
func (r *Repository) ListActiveRecurring(ctx context.Context, userID int64) ([]core.RecurringExpense, error) {
	return r.listRecurring(ctx,
		`SELECT id, user_id, title, amount_cents, category, frequency,
		        start_date, end_date, is_active, notes, last_generated
		 FROM recurring_expenses WHERE user_id = ? AND is_active = 1
		 ORDER BY id`, userID)
}

func (r *Repository) listRecurring(ctx context.Context, query string, args ...any) ([]core.RecurringExpense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	defer rows.Close()

	var templates []core.RecurringExpense
	for rows.Next() {
		re, err := scanRecurringRow(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *re)
	}
	return templates, rows.Err()
}

// UpdateRecurringLastGenerated implements services.RecurringStore.
// Advisory cache only; generation dedup never reads it.
func (r *Repository) UpdateRecurringLastGenerated(ctx context.Context, id int64, date core.Date) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE recurring_expenses SET last_generated = ? WHERE id = ?`,
		date.ISO(), id); err != nil {
		return fmt.Errorf("update last-generated marker: %w", err)
	}
	return nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*core.Expense, error) {
	e := &core.Expense{}
	var dateStr, cat string
	err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Amount.Cents, &dateStr, &cat, &e.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan expense: %w", err)
	}
	e.Category = core.Category(cat)
	if e.Date, err = core.ParseDate(dateStr); err != nil {
		return nil, fmt.Errorf("parse expense date %q: %w", dateStr, err)
	}
	return e, nil
}

func scanExpenses(rows *sql.Rows) ([]core.Expense, error) {
	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

func scanRecurring(row *sql.Row) (*core.RecurringExpense, error) {
	re, err := scanRecurringRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return re, err
}

func scanRecurringRow(row rowScanner) (*core.RecurringExpense, error) {
	re := &core.RecurringExpense{}
	var cat, freq, startStr string
	var endStr, lastStr sql.NullString
	err := row.Scan(&re.ID, &re.UserID, &re.Title, &re.Amount.Cents, &cat, &freq,
		&startStr, &endStr, &re.Active, &re.Notes, &lastStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan recurring template: %w", err)
	}
	re.Category = core.Category(cat)
	re.Frequency = core.Frequency(freq)
	if re.StartDate, err = core.ParseDate(startStr); err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", startStr, err)
	}
	if endStr.Valid && endStr.String != "" {
		if re.EndDate, err = core.ParseDate(endStr.String); err != nil {
			return nil, fmt.Errorf("parse end date %q: %w", endStr.String, err)
		}
	}
	if lastStr.Valid && lastStr.String != "" {
		if re.LastGenerated, err = core.ParseDate(lastStr.String); err != nil {
			return nil, fmt.Errorf("parse last-generated date %q: %w", lastStr.String, err)
		}
	}
	return re, nil
}

func nullableDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.ISO()
}
