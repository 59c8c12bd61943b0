// Package worker consumes spendlog events: budget alerts become notification
// log entries and expense writes are mirrored to a spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"spendlog/internal/amqp"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/sheets"
	"spendlog/internal/storage"
)

type Worker struct {
	expenses storage.ExpenseStore
	mirror   sheets.ExpenseMirror
	logger   *applog.Logger

	mirrored atomic.Int64
	alerts   atomic.Int64
}

// New builds a worker. A nil mirror disables spreadsheet mirroring.
func New(expenses storage.ExpenseStore, mirror sheets.ExpenseMirror, logger *applog.Logger) *Worker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Worker{
		expenses: expenses,
		mirror:   mirror,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// Handlers wires the worker into amqp.Client.Consume.
func (w *Worker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		OnExpense:     w.HandleExpenseEvent,
		OnBudgetAlert: w.HandleBudgetAlert,
	}
}

// HandleExpenseEvent mirrors the stored state of a created or updated expense.
// The row is re-read so a late event never writes stale data; an expense
// deleted in the meantime is skipped.
func (w *Worker) HandleExpenseEvent(ctx context.Context, ev amqp.ExpenseEvent) error {
	fields := applog.NewFields().WithOwner(ev.OwnerID).
		WithExpense(ev.Expense.ID, ev.Expense.Amount.Cents, ev.Expense.Category)

	if ev.Action == amqp.ActionDeleted {
		w.logger.InfoContext(ctx, "Expense deleted", fields.ToSlice()...)
		return nil
	}
	if w.mirror == nil {
		w.logger.DebugContext(ctx, "No mirror configured, skipping expense", fields.ToSlice()...)
		return nil
	}

	current, err := w.expenses.GetExpense(ctx, ev.Expense.ID, ev.OwnerID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.InfoContext(ctx, "Expense no longer exists, skipping mirror", fields.ToSlice()...)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load expense %d: %w", ev.Expense.ID, err)
	}

	if err := w.mirror.Mirror(ctx, ev.OwnerID, current); err != nil {
		return fmt.Errorf("mirror expense %d: %w", current.ID, err)
	}
	w.mirrored.Add(1)
	w.logger.InfoContext(ctx, "Expense mirrored", append(fields.ToSlice(), "action", ev.Action)...)
	return nil
}

// HandleBudgetAlert records the alert as a notification.
func (w *Worker) HandleBudgetAlert(ctx context.Context, a amqp.BudgetAlertEvent) error {
	w.alerts.Add(1)
	args := []any{
		applog.FieldOwnerID, a.OwnerID,
		applog.FieldAlert, string(a.Alert),
		applog.FieldPercentage, a.BudgetPercentage,
		"total", a.TotalExpenses.Format(a.Currency),
		"budget", a.MonthlyBudget.Format(a.Currency),
		"period", fmt.Sprintf("%04d-%02d", a.Year, a.Month),
	}
	if a.Alert == core.AlertDanger {
		w.logger.WarnContext(ctx, "Budget nearly exhausted", args...)
	} else {
		w.logger.InfoContext(ctx, "Budget warning", args...)
	}
	return nil
}

// Stats reports how many expenses were mirrored and alerts handled.
func (w *Worker) Stats() (mirrored, alerts int64) {
	return w.mirrored.Load(), w.alerts.Load()
}
