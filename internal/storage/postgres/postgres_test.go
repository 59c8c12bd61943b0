package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"spendlog/internal/core"
)

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/db": "pgx5://u:p@localhost:5432/db",
		"postgresql://u@localhost/db?x=1":  "pgx5://u@localhost/db?x=1",
		"pgx5://already@localhost/db":      "pgx5://already@localhost/db",
	}
	for in, want := range cases {
		if got := migrateURL(in); got != want {
			t.Errorf("migrateURL(%q) = %q, want %q", in, got, want)
		}
	}
}

// openTestStore needs a disposable database in SPENDLOG_TEST_DATABASE_URL.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("SPENDLOG_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SPENDLOG_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s, err := New(ctx, url, nil)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	email := uuid.NewString() + "@example.com"
	u, err := s.CreateUser(ctx, core.User{Name: "pg", Email: email, PasswordHash: "h", Settings: core.DefaultSettings()})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := s.CreateUser(ctx, core.User{Name: "pg", Email: email, PasswordHash: "h", Settings: core.DefaultSettings()}); !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("expected duplicate email, got %v", err)
	}

	cats, err := s.ListCategories(ctx, u.ID)
	if err != nil || len(cats) != len(core.DefaultCategories()) || cats[0].OwnerID != u.ID {
		t.Fatalf("cloned categories: %+v %v", cats, err)
	}

	e, err := s.CreateExpense(ctx, u.ID, core.Expense{
		Title: "Lunch", Amount: core.Money{Cents: 25050}, Category: "Food",
		PaymentMethod: "Cash", Date: core.NewDate(2025, 3, 14), Notes: "team",
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if e.Date.String() != "2025-03-14" {
		t.Fatalf("date round trip: %s", e.Date)
	}

	list, err := s.ListExpenses(ctx, u.ID, core.ExpenseFilter{Search: "TEAM"})
	if err != nil || len(list) != 1 {
		t.Fatalf("search: %+v %v", list, err)
	}
	if _, err := s.GetExpense(ctx, e.ID, u.ID+1_000_000); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("cross-owner get: %v", err)
	}

	amount := core.Money{Cents: 100}
	updated, err := s.UpdateExpense(ctx, e.ID, u.ID, core.ExpensePatch{Amount: &amount})
	if err != nil || updated.Amount.Cents != 100 || updated.Title != "Lunch" {
		t.Fatalf("update: %+v %v", updated, err)
	}
	if ok, err := s.DeleteExpense(ctx, e.ID, u.ID); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}

	settings := core.Settings{MonthlyBudget: core.Money{Cents: 5000}, Currency: "$", Theme: core.ThemeDark}
	if _, err := s.UpdateSettings(ctx, u.ID, settings); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	got, err := s.GetSettings(ctx, u.ID)
	if err != nil || got != settings {
		t.Fatalf("settings: %+v %v", got, err)
	}
}
