package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/storage"
)

var exportHeader = []string{"Date", "Title", "Category", "Amount", "Payment Method", "Notes"}

const (
	expensesSheet = "Expenses"
	summarySheet  = "Summary"
)

// ExportService writes an owner's expenses, newest first, as CSV or XLSX.
type ExportService struct {
	expenses  storage.ExpenseStore
	dashboard *DashboardService
	logger    *applog.Logger
}

func NewExportService(expenses storage.ExpenseStore, dashboard *DashboardService, logger *applog.Logger) *ExportService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ExportService{
		expenses:  expenses,
		dashboard: dashboard,
		logger:    logger.WithComponent(applog.ComponentExport),
	}
}

func exportRow(e core.Expense) []string {
	return []string{e.Date.String(), e.Title, e.Category, e.Amount.String(), e.PaymentMethod, e.Notes}
}

func (s *ExportService) WriteCSV(ctx context.Context, ownerID int64, w io.Writer) error {
	list, err := s.expenses.ListExpenses(ctx, ownerID, core.ExpenseFilter{})
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range list {
		if err := cw.Write(exportRow(e)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	s.logger.InfoContext(ctx, "CSV export written",
		applog.FieldOwnerID, ownerID, applog.FieldOperation, applog.OpExport, "rows", len(list))
	return nil
}

// WriteXLSX writes an "Expenses" sheet with the same rows as the CSV export
// and a "Summary" sheet with the current-month dashboard.
func (s *ExportService) WriteXLSX(ctx context.Context, ownerID int64, w io.Writer) error {
	list, err := s.expenses.ListExpenses(ctx, ownerID, core.ExpenseFilter{})
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	summary, err := s.dashboard.Summary(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load summary: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeExpenseSheet(f, list); err != nil {
		return err
	}
	if err := writeSummarySheet(f, summary); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	s.logger.InfoContext(ctx, "XLSX export written",
		applog.FieldOwnerID, ownerID, applog.FieldOperation, applog.OpExport, "rows", len(list))
	return nil
}

func writeExpenseSheet(f *excelize.File, list []core.Expense) error {
	if err := f.SetSheetName("Sheet1", expensesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(expensesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(expensesSheet, "A1", "F1", bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	// Built-in format 4 is #,##0.00.
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("amount style: %w", err)
	}

	for i, e := range list {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []any{e.Date.String(), e.Title, e.Category, e.Amount.Decimal().InexactFloat64(), e.PaymentMethod, e.Notes}
		if err := f.SetSheetRow(expensesSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		amountCell, _ := excelize.CoordinatesToCellName(4, row)
		if err := f.SetCellStyle(expensesSheet, amountCell, amountCell, money); err != nil {
			return fmt.Errorf("amount style row %d: %w", row, err)
		}
	}

	widths := map[string]float64{"A": 12, "B": 32, "C": 16, "D": 12, "E": 16, "F": 40}
	for col, width := range widths {
		if err := f.SetColWidth(expensesSheet, col, col, width); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, s core.DashboardSummary) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	rows := [][]any{
		{"Period", fmt.Sprintf("%04d-%02d", s.Year, s.Month)},
		{"Currency", s.Currency},
		{"Total Expenses", s.TotalExpenses.Decimal().InexactFloat64()},
		{"Transactions", s.TransactionCount},
		{"Daily Average", s.DailyAverage.Decimal().InexactFloat64()},
		{"Monthly Budget", s.MonthlyBudget.Decimal().InexactFloat64()},
		{"Remaining Budget", s.RemainingBudget.Decimal().InexactFloat64()},
		{"Budget Used (%)", s.BudgetPercentage},
		{"Alert", string(s.Alert)},
		{},
		{"Category", "Total", "Count"},
	}
	for _, c := range s.ByCategory {
		rows = append(rows, []any{c.Name, c.Amount.Decimal().InexactFloat64(), c.Count})
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 20)
}
