package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/storage"
)

// DashboardService computes the current-month summary on every call; no
// alert state is stored.
type DashboardService struct {
	expenses storage.ExpenseStore
	users    storage.UserStore
	now      func() time.Time
	logger   *applog.Logger
}

func NewDashboardService(expenses storage.ExpenseStore, users storage.UserStore, logger *applog.Logger) *DashboardService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DashboardService{
		expenses: expenses,
		users:    users,
		now:      time.Now,
		logger:   logger.WithComponent(applog.ComponentDashboard),
	}
}

// monthRange returns the first and last calendar day of t's month.
func monthRange(t time.Time) (core.Date, core.Date) {
	first := core.NewDate(t.Year(), int(t.Month()), 1)
	last := core.DateOf(first.AddDate(0, 1, -1))
	return first, last
}

func (s *DashboardService) Summary(ctx context.Context, ownerID int64) (core.DashboardSummary, error) {
	now := s.now()
	from, to := monthRange(now)

	var (
		settings core.Settings
		expenses []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		settings, err = s.users.GetSettings(gctx, ownerID)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		expenses, err = s.expenses.ListExpenses(gctx, ownerID, core.ExpenseFilter{From: from, To: to})
		if err != nil {
			return fmt.Errorf("load expenses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.DashboardSummary{}, err
	}

	summary := core.Summarize(expenses, settings, now)
	s.logger.DebugContext(ctx, "Summary computed",
		applog.FieldOwnerID, ownerID,
		applog.FieldAlert, string(summary.Alert),
		applog.FieldPercentage, summary.BudgetPercentage)
	return summary, nil
}
