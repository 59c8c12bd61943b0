// Package storage defines the persistence ports used by the services and the
// SQLite implementation of them. Every expense and category query is scoped
// by owner: a row owned by someone else behaves exactly like a missing row.
package storage

import (
	"context"

	"spendlog/internal/core"
)

type (
	ExpenseStore interface {
		CreateExpense(ctx context.Context, ownerID int64, e core.Expense) (core.Expense, error)
		// ListExpenses returns matches ordered by date then id, newest first.
		ListExpenses(ctx context.Context, ownerID int64, f core.ExpenseFilter) ([]core.Expense, error)
		GetExpense(ctx context.Context, id, ownerID int64) (core.Expense, error)
		// UpdateExpense applies only the fields set in p.
		UpdateExpense(ctx context.Context, id, ownerID int64, p core.ExpensePatch) (core.Expense, error)
		// DeleteExpense reports whether a row was removed.
		DeleteExpense(ctx context.Context, id, ownerID int64) (bool, error)
	}

	CategoryStore interface {
		// ListCategories returns the owner's categories by name. An owner with
		// no rows sees the global templates instead.
		ListCategories(ctx context.Context, ownerID int64) ([]core.Category, error)
		CreateCategory(ctx context.Context, ownerID int64, c core.Category) (core.Category, error)
		// CloneDefaultsFor copies every template row to ownerID and returns
		// how many were copied.
		CloneDefaultsFor(ctx context.Context, ownerID int64) (int, error)
		ListTemplates(ctx context.Context) ([]core.Category, error)
	}

	UserStore interface {
		// CreateUser inserts the user and clones the template categories in
		// one transaction.
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		GetUser(ctx context.Context, id int64) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		GetSettings(ctx context.Context, ownerID int64) (core.Settings, error)
		UpdateSettings(ctx context.Context, ownerID int64, s core.Settings) (core.Settings, error)
	}

	Store interface {
		ExpenseStore
		CategoryStore
		UserStore
		Ping(ctx context.Context) error
		Close() error
	}
)
