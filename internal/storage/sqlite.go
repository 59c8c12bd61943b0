package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
)

const timeLayout = time.RFC3339Nano

// SQLiteRepository is the default Store, backed by a single SQLite file.
type SQLiteRepository struct {
	db     *sql.DB
	logger *applog.Logger
	now    func() time.Time
}

var _ Store = (*SQLiteRepository)(nil)

// sqliteDSN enables foreign keys and a busy timeout on every pooled connection.
func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(applog.ComponentStorage),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// isUniqueViolation recognises SQLite unique and primary key failures.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

const expenseColumns = `id, user_id, title, amount_cents, category, payment_method, date, notes, created_at`

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e         core.Expense
		date      string
		createdAt string
	)
	if err := s.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Amount.Cents, &e.Category, &e.PaymentMethod, &date, &e.Notes, &createdAt); err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("stored date %q for expense %d: %w", date, e.ID, err)
	}
	e.Date = d
	e.CreatedAt = parseTimestamp(createdAt)
	return e, nil
}

// parseTimestamp accepts both Go-written and SQLite-default timestamps.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{timeLayout, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, ownerID int64, e core.Expense) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO expenses (user_id, title, amount_cents, category, payment_method, date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+expenseColumns,
		ownerID, e.Title, e.Amount.Cents, e.Category, e.PaymentMethod, e.Date.String(), e.Notes,
		r.now().Format(timeLayout))
	created, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	r.logger.DebugContext(ctx, "Expense saved",
		applog.NewFields().WithOwner(ownerID).WithExpense(created.ID, created.Amount.Cents, created.Category).ToSlice()...)
	return created, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, ownerID int64, f core.ExpenseFilter) ([]core.Expense, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{ownerID}
	)
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.PaymentMethod != "" {
		where = append(where, "payment_method = ?")
		args = append(args, f.PaymentMethod)
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		where = append(where, "(instr(lower(title), ?) > 0 OR instr(lower(notes), ?) > 0)")
		args = append(args, q, q)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE `+strings.Join(where, " AND ")+` ORDER BY date DESC, id DESC`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id, ownerID int64) (core.Expense, error) {
	return getExpense(ctx, r.db, id, ownerID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getExpense(ctx context.Context, q querier, id, ownerID int64) (core.Expense, error) {
	e, err := scanExpense(q.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id, ownerID int64, p core.ExpensePatch) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	current, err := getExpense(ctx, tx, id, ownerID)
	if err != nil {
		return core.Expense{}, err
	}
	next := current.Apply(p)

	updated, err := scanExpense(tx.QueryRowContext(ctx, `
		UPDATE expenses
		SET title = ?, amount_cents = ?, category = ?, payment_method = ?, date = ?, notes = ?
		WHERE id = ? AND user_id = ?
		RETURNING `+expenseColumns,
		next.Title, next.Amount.Cents, next.Category, next.PaymentMethod, next.Date.String(), next.Notes,
		id, ownerID))
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id, ownerID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete expense %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete expense %d: %w", id, err)
	}
	return n > 0, nil
}

const categoryColumns = `id, COALESCE(user_id, 0), name, color, icon, created_at`

func scanCategory(s rowScanner) (core.Category, error) {
	var (
		c         core.Category
		createdAt string
	)
	if err := s.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Color, &c.Icon, &createdAt); err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = parseTimestamp(createdAt)
	return c, nil
}

func (r *SQLiteRepository) queryCategories(ctx context.Context, query string, args ...any) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, ownerID int64) ([]core.Category, error) {
	cats, err := r.queryCategories(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE user_id = ?
		   OR (user_id IS NULL AND NOT EXISTS (SELECT 1 FROM categories WHERE user_id = ?))
		ORDER BY name, id`, ownerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (r *SQLiteRepository) ListTemplates(ctx context.Context) ([]core.Category, error) {
	cats, err := r.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id IS NULL ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list category templates: %w", err)
	}
	return cats, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, ownerID int64, c core.Category) (core.Category, error) {
	c = c.WithDefaults()
	created, err := scanCategory(r.db.QueryRowContext(ctx, `
		INSERT INTO categories (user_id, name, color, icon, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING `+categoryColumns,
		ownerID, c.Name, c.Color, c.Icon, r.now().Format(timeLayout)))
	if isUniqueViolation(err) {
		return core.Category{}, fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicate)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func cloneDefaults(ctx context.Context, db execer, ownerID int64, now string) (int, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO categories (user_id, name, color, icon, created_at)
		SELECT ?, name, color, icon, ? FROM categories WHERE user_id IS NULL`, ownerID, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *SQLiteRepository) CloneDefaultsFor(ctx context.Context, ownerID int64) (int, error) {
	n, err := cloneDefaults(ctx, r.db, ownerID, r.now().Format(timeLayout))
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("clone categories for %d: %w", ownerID, core.ErrDuplicate)
	}
	if err != nil {
		return 0, fmt.Errorf("clone categories for %d: %w", ownerID, err)
	}
	return n, nil
}

const userColumns = `id, name, email, password_hash, monthly_budget_cents, currency, theme, created_at`

func scanUser(s rowScanner) (core.User, error) {
	var (
		u         core.User
		theme     string
		createdAt string
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Settings.MonthlyBudget.Cents, &u.Settings.Currency, &theme, &createdAt); err != nil {
		return core.User{}, err
	}
	u.Settings.Theme = core.Theme(theme)
	u.CreatedAt = parseTimestamp(createdAt)
	return u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.User{}, fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := r.now().Format(timeLayout)
	created, err := scanUser(tx.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, monthly_budget_cents, currency, theme, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		u.Name, core.NormalizeEmail(u.Email), u.PasswordHash,
		u.Settings.MonthlyBudget.Cents, u.Settings.Currency, string(u.Settings.Theme), now))
	if isUniqueViolation(err) {
		return core.User{}, fmt.Errorf("email %s: %w", core.NormalizeEmail(u.Email), core.ErrDuplicate)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	n, err := cloneDefaults(ctx, tx, created.ID, now)
	if err != nil {
		return core.User{}, fmt.Errorf("clone categories for new user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.User{}, fmt.Errorf("commit create user: %w", err)
	}

	r.logger.InfoContext(ctx, "User created",
		applog.FieldOwnerID, created.ID, "categories_cloned", n)
	return created, nil
}

func (r *SQLiteRepository) getUser(ctx context.Context, where string, arg any) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	return r.getUser(ctx, "id = ?", id)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.getUser(ctx, "email = ?", core.NormalizeEmail(email))
}

func (r *SQLiteRepository) GetSettings(ctx context.Context, ownerID int64) (core.Settings, error) {
	u, err := r.GetUser(ctx, ownerID)
	if err != nil {
		return core.Settings{}, err
	}
	return u.Settings, nil
}

func (r *SQLiteRepository) UpdateSettings(ctx context.Context, ownerID int64, s core.Settings) (core.Settings, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET monthly_budget_cents = ?, currency = ?, theme = ? WHERE id = ?`,
		s.MonthlyBudget.Cents, s.Currency, string(s.Theme), ownerID)
	if err != nil {
		return core.Settings{}, fmt.Errorf("update settings: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.Settings{}, fmt.Errorf("update settings: %w", err)
	} else if n == 0 {
		return core.Settings{}, core.ErrNotFound
	}
	return s, nil
}
