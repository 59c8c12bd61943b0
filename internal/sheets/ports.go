// Package sheets defines the spreadsheet mirror the worker writes expenses to.
package sheets

import (
	"context"
	"strconv"

	"spendlog/internal/core"
)

// ExpenseMirror appends an expense as one spreadsheet row.
type ExpenseMirror interface {
	Mirror(ctx context.Context, ownerID int64, e core.Expense) error
}

// Header is the column layout of a mirrored row.
var Header = []string{"Date", "Owner", "Title", "Category", "Amount", "Payment"}

// Row renders e in Header order. Amount is a plain decimal so the sheet can sum it.
func Row(ownerID int64, e core.Expense) []string {
	return []string{
		e.Date.String(),
		strconv.FormatInt(ownerID, 10),
		e.Title,
		e.Category,
		e.Amount.String(),
		e.PaymentMethod,
	}
}
