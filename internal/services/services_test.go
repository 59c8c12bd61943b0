package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"spendlog/internal/amqp"
	"spendlog/internal/auth"
	"spendlog/internal/core"
	"spendlog/internal/storage/memory"
)

type fakePublisher struct {
	mu       sync.Mutex
	expenses []amqp.ExpenseEvent
	alerts   []amqp.BudgetAlertEvent
	err      error
}

func (p *fakePublisher) PublishExpenseEvent(_ context.Context, e amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expenses = append(p.expenses, e)
	return p.err
}

func (p *fakePublisher) PublishBudgetAlert(_ context.Context, a amqp.BudgetAlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, a)
	return p.err
}

type fixture struct {
	store      *memory.Store
	accounts   *AccountService
	categories *CategoryService
	dashboard  *DashboardService
	expenses   *ExpenseService
	export     *ExportService
	publisher  *fakePublisher
	issuer     *auth.Issuer
}

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	issuer, err := auth.NewIssuer("services-test-secret-0123", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	pub := &fakePublisher{}
	categories := NewCategoryService(store, nil)
	dashboard := NewDashboardService(store, store, nil)
	dashboard.now = func() time.Time { return fixedNow }
	return &fixture{
		store:      store,
		accounts:   NewAccountService(store, issuer, nil),
		categories: categories,
		dashboard:  dashboard,
		expenses:   NewExpenseService(store, categories, dashboard, pub, nil),
		export:     NewExportService(store, dashboard, nil),
		publisher:  pub,
		issuer:     issuer,
	}
}

func (f *fixture) register(t *testing.T, email string) core.User {
	t.Helper()
	u, err := f.accounts.Register(context.Background(), "Test User", email, "secret1")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func expense(title string, cents int64, category string, d core.Date) core.Expense {
	return core.Expense{Title: title, Amount: core.Money{Cents: cents}, Category: category, PaymentMethod: "Cash", Date: d}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u := f.register(t, "Alice@Example.com")
	if u.Email != "alice@example.com" || u.Settings != core.DefaultSettings() {
		t.Fatalf("unexpected user: %+v", u)
	}
	cats, _ := f.categories.List(ctx, u.ID)
	if len(cats) != len(core.DefaultCategories()) || cats[0].OwnerID != u.ID {
		t.Fatalf("categories not cloned: %+v", cats)
	}

	if _, err := f.accounts.Register(ctx, "Other", "alice@example.com", "secret1"); !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("duplicate email: %v", err)
	}
	if _, err := f.accounts.Register(ctx, "Short", "s@example.com", "12345"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("short password: %v", err)
	}
	if _, err := f.accounts.Register(ctx, "Long", "l@example.com", strings.Repeat("a", 100)); !errors.Is(err, core.ErrPasswordTooLong) {
		t.Fatalf("long password: %v", err)
	}

	token, got, err := f.accounts.Login(ctx, "ALICE@example.com", "secret1")
	if err != nil || got.ID != u.ID {
		t.Fatalf("login: %v", err)
	}
	if id, err := f.issuer.Verify(token); err != nil || id != u.ID {
		t.Fatalf("token subject %d: %v", id, err)
	}

	for _, creds := range [][2]string{{"alice@example.com", "wrong"}, {"nobody@example.com", "secret1"}} {
		if _, _, err := f.accounts.Login(ctx, creds[0], creds[1]); !errors.Is(err, core.ErrAuthentication) {
			t.Errorf("login %v: expected ErrAuthentication, got %v", creds, err)
		}
	}

	if _, err := f.accounts.Profile(ctx, u.ID+999); !errors.Is(err, core.ErrAuthentication) {
		t.Fatalf("profile for missing user: %v", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "s@example.com")

	budget := core.Money{Cents: 500000}
	theme := core.ThemeDark
	s, err := f.accounts.UpdateSettings(ctx, u.ID, core.SettingsPatch{MonthlyBudget: &budget, Theme: &theme})
	if err != nil || s.MonthlyBudget != budget || s.Theme != core.ThemeDark || s.Currency != core.DefaultCurrency {
		t.Fatalf("update: %+v %v", s, err)
	}

	zero := core.Money{}
	negative := core.Money{Cents: -100}
	badTheme := core.Theme("blue")
	longCurrency := "123456789"
	dollar := "$"
	for name, p := range map[string]core.SettingsPatch{
		"zero budget":     {MonthlyBudget: &zero},
		"negative budget": {MonthlyBudget: &negative},
		"bad theme":       {MonthlyBudget: &budget, Theme: &badTheme},
		"long currency":   {MonthlyBudget: &budget, Currency: &longCurrency},
		"empty":           {},
		"missing budget":  {Currency: &dollar},
		"theme only":      {Theme: &theme},
	} {
		if _, err := f.accounts.UpdateSettings(ctx, u.ID, p); !errors.Is(err, core.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
	if _, err := f.accounts.UpdateSettings(ctx, u.ID, core.SettingsPatch{Currency: &dollar}); !errors.Is(err, core.ErrInvalidBudget) {
		t.Fatalf("missing budget: got %v, want ErrInvalidBudget", err)
	}

	stored, _ := f.accounts.Settings(ctx, u.ID)
	if stored != s {
		t.Fatalf("invalid updates changed settings: %+v", stored)
	}
}

func TestCategoryService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "c@example.com")

	before, _ := f.categories.List(ctx, u.ID)
	if _, err := f.categories.Create(ctx, u.ID, "Pets", "", ""); err != nil {
		t.Fatal(err)
	}
	after, _ := f.categories.List(ctx, u.ID)
	if len(after) != len(before)+1 {
		t.Fatalf("cache not invalidated: %d -> %d", len(before), len(after))
	}

	if _, err := f.categories.Create(ctx, u.ID, "pets ", "#zzzzzz", ""); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("bad color: %v", err)
	}
	if _, err := f.categories.Create(ctx, u.ID, "Pets", "", ""); !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("duplicate: %v", err)
	}

	name, err := f.categories.Resolve(ctx, u.ID, " fOOd ")
	if err != nil || name != "Food" {
		t.Fatalf("resolve: %q %v", name, err)
	}
	if _, err := f.categories.Resolve(ctx, u.ID, "Rent"); !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("unknown: %v", err)
	}
}

func TestCategoryCreateFromTemplateFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const owner = 4242 // no rows of its own yet

	if _, err := f.categories.Create(ctx, owner, "Garden", "#00ff00", "leaf"); err != nil {
		t.Fatal(err)
	}
	cats, _ := f.categories.List(ctx, owner)
	if len(cats) != len(core.DefaultCategories())+1 {
		t.Fatalf("expected templates plus new category, got %d", len(cats))
	}
	for _, c := range cats {
		if c.IsTemplate() {
			t.Fatalf("template row leaked into owner list: %+v", c)
		}
	}
}

func TestExpenseServiceValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "e@example.com")
	d := core.DateOf(fixedNow)

	if _, err := f.expenses.Create(ctx, u.ID, expense("Rent", 100, "Housing", d)); !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("unknown category: %v", err)
	}
	if _, err := f.expenses.Create(ctx, u.ID, expense("Zero", 0, "Food", d)); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("zero amount: %v", err)
	}

	created, err := f.expenses.Create(ctx, u.ID, expense(" Lunch ", 10000, "food", d))
	if err != nil {
		t.Fatal(err)
	}
	if created.Category != "Food" || created.Title != "Lunch" {
		t.Fatalf("not normalized: %+v", created)
	}

	amount := core.Money{Cents: 15000}
	updated, err := f.expenses.Update(ctx, u.ID, created.ID, core.ExpensePatch{Amount: &amount})
	if err != nil || updated.Category != "Food" || updated.Amount != amount {
		t.Fatalf("patch: %+v %v", updated, err)
	}

	empty := ""
	if _, err := f.expenses.Update(ctx, u.ID, created.ID, core.ExpensePatch{Title: &empty}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("empty title patch: %v", err)
	}
	if _, err := f.expenses.Update(ctx, u.ID, created.ID, core.ExpensePatch{}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("empty patch: %v", err)
	}
}

func TestExpenseOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com")
	b := f.register(t, "b@example.com")

	e, err := f.expenses.Create(ctx, a.ID, expense("Book", 2000, "Education", core.DateOf(fixedNow)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.expenses.Get(ctx, b.ID, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: %v", err)
	}
	title := "stolen"
	if _, err := f.expenses.Update(ctx, b.ID, e.ID, core.ExpensePatch{Title: &title}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update: %v", err)
	}
	if err := f.expenses.Delete(ctx, b.ID, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("delete: %v", err)
	}
	if err := f.expenses.Delete(ctx, a.ID, e.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestExpenseEventsAndAlerts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "p@example.com")
	d := core.DateOf(fixedNow)

	// 7000 of the 10000.00 default budget: no alert.
	if _, err := f.expenses.Create(ctx, u.ID, expense("Flight", 700000, "Travel", d)); err != nil {
		t.Fatal(err)
	}
	if len(f.publisher.expenses) != 1 || len(f.publisher.alerts) != 0 {
		t.Fatalf("events=%d alerts=%d", len(f.publisher.expenses), len(f.publisher.alerts))
	}

	// 9500 of 10000: danger.
	if _, err := f.expenses.Create(ctx, u.ID, expense("Hotel", 250000, "Travel", d)); err != nil {
		t.Fatal(err)
	}
	if len(f.publisher.alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(f.publisher.alerts))
	}
	alert := f.publisher.alerts[0]
	if alert.Alert != core.AlertDanger || alert.BudgetPercentage != 95 || alert.OwnerID != u.ID {
		t.Fatalf("alert: %+v", alert)
	}

	f.publisher.err = errors.New("broker down")
	if _, err := f.expenses.Create(ctx, u.ID, expense("Taxi", 100, "Travel", d)); err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
}

func TestDashboardSummaryCurrentMonthOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "d@example.com")

	for _, e := range []core.Expense{
		expense("March", 8000_00, "Food", core.NewDate(2025, 3, 1)),
		expense("Feb", 5000_00, "Food", core.NewDate(2025, 2, 28)),
		expense("April", 5000_00, "Food", core.NewDate(2025, 4, 1)),
	} {
		if _, err := f.store.CreateExpense(ctx, u.ID, e); err != nil {
			t.Fatal(err)
		}
	}

	s, err := f.dashboard.Summary(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalExpenses.Cents != 8000_00 || s.TransactionCount != 1 || s.Alert != core.AlertWarning {
		t.Fatalf("summary: %+v", s)
	}
	if s.Year != 2025 || s.Month != 3 {
		t.Fatalf("period %d-%d", s.Year, s.Month)
	}

	if _, err := f.dashboard.Summary(ctx, u.ID+100); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown owner: %v", err)
	}
}

func TestMonthRange(t *testing.T) {
	from, to := monthRange(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
	if from.String() != "2024-02-01" || to.String() != "2024-02-29" {
		t.Fatalf("range %s..%s", from, to)
	}
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "x@example.com")
	older := expense("Old, with comma", 150, "Food", core.NewDate(2025, 1, 1))
	older.Notes = `said "hi"`
	for _, e := range []core.Expense{older, expense("New", 99999, "Bills", core.NewDate(2025, 3, 2))} {
		if _, err := f.store.CreateExpense(ctx, u.ID, e); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := f.export.WriteCSV(ctx, u.ID, &buf); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"Date", "Title", "Category", "Amount", "Payment Method", "Notes"},
		{"2025-03-02", "New", "Bills", "999.99", "Cash", ""},
		{"2025-01-01", "Old, with comma", "Food", "1.50", "Cash", `said "hi"`},
	}
	if len(records) != len(want) {
		t.Fatalf("records %v", records)
	}
	for i := range want {
		for j := range want[i] {
			if records[i][j] != want[i][j] {
				t.Errorf("record %d col %d = %q, want %q", i, j, records[i][j], want[i][j])
			}
		}
	}
}

func TestExportXLSX(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "xl@example.com")
	if _, err := f.store.CreateExpense(ctx, u.ID, expense("Groceries", 4550, "Food", core.DateOf(fixedNow))); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := f.export.WriteXLSX(ctx, u.ID, &buf); err != nil {
		t.Fatal(err)
	}
	book, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer book.Close()

	if title, _ := book.GetCellValue("Expenses", "B2"); title != "Groceries" {
		t.Fatalf("B2 = %q", title)
	}
	if header, _ := book.GetCellValue("Expenses", "E1"); header != "Payment Method" {
		t.Fatalf("E1 = %q", header)
	}
	if period, _ := book.GetCellValue("Summary", "B1"); period != "2025-03" {
		t.Fatalf("summary period %q", period)
	}
}
