// Package postgres implements storage.Store on PostgreSQL through a pgx pool.
// It mirrors the SQLite store: templates are rows with a NULL owner, and
// every expense or category query is scoped by owner.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

type Store struct {
	pool   *pgxpool.Pool
	logger *applog.Logger
}

var _ storage.Store = (*Store)(nil)

// New connects to databaseURL, applies pending migrations and returns the store.
func New(ctx context.Context, databaseURL string, logger *applog.Logger) (*Store, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger = logger.WithComponent(applog.ComponentStorage)
	logger.Info("PostgreSQL store ready", applog.FieldBackend, "postgres")
	return &Store{pool: pool, logger: logger}, nil
}

// RunMigrations applies the embedded schema. golang-migrate's pgx driver
// registers under the pgx5 scheme.
func RunMigrations(databaseURL string) error {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, migrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const expenseColumns = `id, user_id, title, amount_cents, category, payment_method, date, notes, created_at`

func scanExpense(row pgx.Row) (core.Expense, error) {
	var (
		e    core.Expense
		date time.Time
	)
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Amount.Cents, &e.Category, &e.PaymentMethod, &date, &e.Notes, &e.CreatedAt); err != nil {
		return core.Expense{}, err
	}
	e.Date = core.DateOf(date)
	return e, nil
}

func (s *Store) CreateExpense(ctx context.Context, ownerID int64, e core.Expense) (core.Expense, error) {
	created, err := scanExpense(s.pool.QueryRow(ctx, `
		INSERT INTO expenses (user_id, title, amount_cents, category, payment_method, date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+expenseColumns,
		ownerID, e.Title, e.Amount.Cents, e.Category, e.PaymentMethod, e.Date.Time, e.Notes))
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.logger.DebugContext(ctx, "Expense saved",
		applog.NewFields().WithOwner(ownerID).WithExpense(created.ID, created.Amount.Cents, created.Category).ToSlice()...)
	return created, nil
}

// args numbers positional parameters as they are appended.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

func (s *Store) ListExpenses(ctx context.Context, ownerID int64, f core.ExpenseFilter) ([]core.Expense, error) {
	var params args
	where := []string{"user_id = " + params.add(ownerID)}
	if f.Category != "" {
		where = append(where, "category = "+params.add(f.Category))
	}
	if f.PaymentMethod != "" {
		where = append(where, "payment_method = "+params.add(f.PaymentMethod))
	}
	if !f.From.IsZero() {
		where = append(where, "date >= "+params.add(f.From.Time))
	}
	if !f.To.IsZero() {
		where = append(where, "date <= "+params.add(f.To.Time))
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		p := params.add(q)
		where = append(where, "(strpos(lower(title), "+p+") > 0 OR strpos(lower(notes), "+p+") > 0)")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE `+strings.Join(where, " AND ")+` ORDER BY date DESC, id DESC`,
		params...)
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

func getExpense(ctx context.Context, q querier, id, ownerID int64, lock bool) (core.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1 AND user_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	e, err := scanExpense(q.QueryRow(ctx, query, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func (s *Store) GetExpense(ctx context.Context, id, ownerID int64) (core.Expense, error) {
	return getExpense(ctx, s.pool, id, ownerID, false)
}

func (s *Store) UpdateExpense(ctx context.Context, id, ownerID int64, p core.ExpensePatch) (core.Expense, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := getExpense(ctx, tx, id, ownerID, true)
	if err != nil {
		return core.Expense{}, err
	}
	next := current.Apply(p)

	updated, err := scanExpense(tx.QueryRow(ctx, `
		UPDATE expenses
		SET title = $1, amount_cents = $2, category = $3, payment_method = $4, date = $5, notes = $6
		WHERE id = $7 AND user_id = $8
		RETURNING `+expenseColumns,
		next.Title, next.Amount.Cents, next.Category, next.PaymentMethod, next.Date.Time, next.Notes,
		id, ownerID))
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return core.Expense{}, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id, ownerID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete expense %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

const categoryColumns = `id, COALESCE(user_id, 0), name, color, icon, created_at`

func scanCategory(row pgx.Row) (core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Color, &c.Icon, &c.CreatedAt)
	return c, err
}

func (s *Store) queryCategories(ctx context.Context, query string, params ...any) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx, query, params...)
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

func (s *Store) ListCategories(ctx context.Context, ownerID int64) ([]core.Category, error) {
	cats, err := s.queryCategories(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE user_id = $1
		   OR (user_id IS NULL AND NOT EXISTS (SELECT 1 FROM categories WHERE user_id = $1))
		ORDER BY name, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]core.Category, error) {
	cats, err := s.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id IS NULL ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list category templates: %w", err)
	}
	return cats, nil
}

func (s *Store) CreateCategory(ctx context.Context, ownerID int64, c core.Category) (core.Category, error) {
	c = c.WithDefaults()
	created, err := scanCategory(s.pool.QueryRow(ctx, `
		INSERT INTO categories (user_id, name, color, icon)
		VALUES ($1, $2, $3, $4)
		RETURNING `+categoryColumns,
		ownerID, c.Name, c.Color, c.Icon))
	if isUniqueViolation(err) {
		return core.Category{}, fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicate)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

func cloneDefaults(ctx context.Context, q querier, ownerID int64) (int, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO categories (user_id, name, color, icon)
		SELECT $1, name, color, icon FROM categories WHERE user_id IS NULL`, ownerID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) CloneDefaultsFor(ctx context.Context, ownerID int64) (int, error) {
	n, err := cloneDefaults(ctx, s.pool, ownerID)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("clone categories for %d: %w", ownerID, core.ErrDuplicate)
	}
	if err != nil {
		return 0, fmt.Errorf("clone categories for %d: %w", ownerID, err)
	}
	return n, nil
}

const userColumns = `id, name, email, password_hash, monthly_budget_cents, currency, theme, created_at`

func scanUser(row pgx.Row) (core.User, error) {
	var (
		u     core.User
		theme string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Settings.MonthlyBudget.Cents, &u.Settings.Currency, &theme, &u.CreatedAt); err != nil {
		return core.User{}, err
	}
	u.Settings.Theme = core.Theme(theme)
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.User{}, fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	email := core.NormalizeEmail(u.Email)
	created, err := scanUser(tx.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, monthly_budget_cents, currency, theme)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		u.Name, email, u.PasswordHash,
		u.Settings.MonthlyBudget.Cents, u.Settings.Currency, string(u.Settings.Theme)))
	if isUniqueViolation(err) {
		return core.User{}, fmt.Errorf("email %s: %w", email, core.ErrDuplicate)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	n, err := cloneDefaults(ctx, tx, created.ID)
	if err != nil {
		return core.User{}, fmt.Errorf("clone categories for new user: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return core.User{}, fmt.Errorf("commit create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User created",
		applog.FieldOwnerID, created.ID, "categories_cloned", n)
	return created, nil
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (core.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (core.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return s.getUser(ctx, "email = $1", core.NormalizeEmail(email))
}

func (s *Store) GetSettings(ctx context.Context, ownerID int64) (core.Settings, error) {
	var (
		settings core.Settings
		theme    string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT monthly_budget_cents, currency, theme FROM users WHERE id = $1`, ownerID).
		Scan(&settings.MonthlyBudget.Cents, &settings.Currency, &theme)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Settings{}, core.ErrNotFound
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	settings.Theme = core.Theme(theme)
	return settings, nil
}

func (s *Store) UpdateSettings(ctx context.Context, ownerID int64, settings core.Settings) (core.Settings, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET monthly_budget_cents = $1, currency = $2, theme = $3 WHERE id = $4`,
		settings.MonthlyBudget.Cents, settings.Currency, string(settings.Theme), ownerID)
	if err != nil {
		return core.Settings{}, fmt.Errorf("update settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.Settings{}, core.ErrNotFound
	}
	return settings, nil
}
