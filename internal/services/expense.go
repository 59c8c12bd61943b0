package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spendlog/internal/amqp"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/storage"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, e amqp.ExpenseEvent) error
	PublishBudgetAlert(ctx context.Context, a amqp.BudgetAlertEvent) error
}

var errEmptyExpensePatch = core.Invalid("expense", "no fields to update")

// ExpenseService validates expense writes against the owner's categories and
// publishes events after each successful write. Publishing never fails a
// request.
type ExpenseService struct {
	store      storage.ExpenseStore
	categories *CategoryService
	dashboard  *DashboardService
	publisher  EventPublisher
	logger     *applog.Logger
}

// NewExpenseService builds the service. publisher may be nil.
func NewExpenseService(store storage.ExpenseStore, categories *CategoryService, dashboard *DashboardService, publisher EventPublisher, logger *applog.Logger) *ExpenseService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ExpenseService{
		store:      store,
		categories: categories,
		dashboard:  dashboard,
		publisher:  publisher,
		logger:     logger.WithComponent(applog.ComponentExpense),
	}
}

func (s *ExpenseService) Create(ctx context.Context, ownerID int64, e core.Expense) (core.Expense, error) {
	e.Title = strings.TrimSpace(e.Title)
	e.PaymentMethod = strings.TrimSpace(e.PaymentMethod)
	e.Notes = strings.TrimSpace(e.Notes)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	category, err := s.categories.Resolve(ctx, ownerID, e.Category)
	if err != nil {
		return core.Expense{}, err
	}
	e.Category = category

	created, err := s.store.CreateExpense(ctx, ownerID, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense created",
		applog.NewFields().WithOwner(ownerID).WithExpense(created.ID, created.Amount.Cents, created.Category).ToSlice()...)
	s.afterWrite(ctx, ownerID, amqp.ActionCreated, created)
	return created, nil
}

func (s *ExpenseService) List(ctx context.Context, ownerID int64, f core.ExpenseFilter) ([]core.Expense, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListExpenses(ctx, ownerID, f)
}

func (s *ExpenseService) Get(ctx context.Context, ownerID, id int64) (core.Expense, error) {
	return s.store.GetExpense(ctx, id, ownerID)
}

// Update applies p after checking the merged expense is still valid.
func (s *ExpenseService) Update(ctx context.Context, ownerID, id int64, p core.ExpensePatch) (core.Expense, error) {
	if p.Empty() {
		return core.Expense{}, errEmptyExpensePatch
	}
	current, err := s.store.GetExpense(ctx, id, ownerID)
	if err != nil {
		return core.Expense{}, err
	}
	if err := current.Apply(p).Validate(); err != nil {
		return core.Expense{}, err
	}
	if p.Category != nil {
		category, err := s.categories.Resolve(ctx, ownerID, *p.Category)
		if err != nil {
			return core.Expense{}, err
		}
		p.Category = &category
	}

	updated, err := s.store.UpdateExpense(ctx, id, ownerID, p)
	if err != nil {
		return core.Expense{}, err
	}
	s.logger.InfoContext(ctx, "Expense updated",
		applog.NewFields().WithOwner(ownerID).WithExpense(updated.ID, updated.Amount.Cents, updated.Category).ToSlice()...)
	s.afterWrite(ctx, ownerID, amqp.ActionUpdated, updated)
	return updated, nil
}

// Delete removes the expense or returns core.ErrNotFound.
func (s *ExpenseService) Delete(ctx context.Context, ownerID, id int64) error {
	removed, err := s.store.DeleteExpense(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if !removed {
		return core.ErrNotFound
	}
	s.logger.InfoContext(ctx, "Expense deleted",
		applog.FieldOwnerID, ownerID, applog.FieldExpenseID, id)
	s.afterWrite(ctx, ownerID, amqp.ActionDeleted, core.Expense{ID: id, OwnerID: ownerID})
	return nil
}

// afterWrite publishes the expense event and, when the month now sits at or
// above the warning threshold, a budget alert.
func (s *ExpenseService) afterWrite(ctx context.Context, ownerID int64, action string, e core.Expense) {
	if s.publisher == nil {
		return
	}
	// Publishing is not tied to the request lifetime.
	ctx = context.WithoutCancel(ctx)

	event := amqp.ExpenseEvent{Action: action, OwnerID: ownerID, Expense: e, Timestamp: time.Now().UTC()}
	if err := s.publisher.PublishExpenseEvent(ctx, event); err != nil {
		applog.LogError(ctx, s.logger, "Failed to publish expense event", err,
			applog.OpPublish, applog.ErrorTypeInternal, applog.NewFields().WithOwner(ownerID))
	}

	if s.dashboard == nil {
		return
	}
	summary, err := s.dashboard.Summary(ctx, ownerID)
	if err != nil {
		applog.LogError(ctx, s.logger, "Failed to compute budget alert", err,
			applog.OpPublish, applog.ErrorTypeDatabase, applog.NewFields().WithOwner(ownerID))
		return
	}
	if summary.Alert == core.AlertNone {
		return
	}
	if err := s.publisher.PublishBudgetAlert(ctx, amqp.NewBudgetAlertEvent(ownerID, summary)); err != nil {
		applog.LogError(ctx, s.logger, "Failed to publish budget alert", err,
			applog.OpPublish, applog.ErrorTypeInternal, applog.NewFields().WithOwner(ownerID))
	}
}
