package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type AlertLevel string

const (
	AlertNone    AlertLevel = "none"
	AlertWarning AlertLevel = "warning"
	AlertDanger  AlertLevel = "danger"
)

var (
	warningThreshold = decimal.NewFromInt(80)
	dangerThreshold  = decimal.NewFromInt(90)
	hundred          = decimal.NewFromInt(100)
)

// AlertFor maps a budget percentage to its alert level. Bounds are inclusive.
func AlertFor(pct decimal.Decimal) AlertLevel {
	switch {
	case pct.GreaterThanOrEqual(dangerThreshold):
		return AlertDanger
	case pct.GreaterThanOrEqual(warningThreshold):
		return AlertWarning
	default:
		return AlertNone
	}
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"category"`
	Amount Money  `json:"total"`
	Count  int    `json:"count"`
}

// DashboardSummary is the derived view for one owner and one calendar month.
type DashboardSummary struct {
	Year             int              `json:"year"`
	Month            int              `json:"month"`
	TotalExpenses    Money            `json:"totalExpenses"`
	TransactionCount int              `json:"transactionCount"`
	DailyAverage     Money            `json:"dailyAverage"`
	MonthlyBudget    Money            `json:"monthlyBudget"`
	Currency         string           `json:"currency"`
	RemainingBudget  Money            `json:"remainingBudget"`
	BudgetPercentage float64          `json:"budgetPercentage"`
	ProgressWidth    float64          `json:"progressWidth"`
	Alert            AlertLevel       `json:"alert"`
	ByCategory       []CategoryAmount `json:"byCategory"`
}

// Summarize computes the dashboard for the calendar month containing now.
// Expenses outside that month are ignored. The percentage is rounded to two
// places before the alert is derived, so the alert always agrees with the
// displayed BudgetPercentage.
func Summarize(expenses []Expense, settings Settings, now time.Time) DashboardSummary {
	s := DashboardSummary{
		Year:          now.Year(),
		Month:         int(now.Month()),
		MonthlyBudget: settings.MonthlyBudget,
		Currency:      settings.Currency,
		ByCategory:    []CategoryAmount{},
	}

	idx := make(map[string]int)
	for _, e := range expenses {
		if !e.Date.SameMonth(now) {
			continue
		}
		s.TotalExpenses = s.TotalExpenses.Add(e.Amount)
		s.TransactionCount++
		i, ok := idx[e.Category]
		if !ok {
			i = len(s.ByCategory)
			idx[e.Category] = i
			s.ByCategory = append(s.ByCategory, CategoryAmount{Name: e.Category})
		}
		s.ByCategory[i].Amount = s.ByCategory[i].Amount.Add(e.Amount)
		s.ByCategory[i].Count++
	}
	sort.SliceStable(s.ByCategory, func(a, b int) bool {
		if s.ByCategory[a].Amount.Cents != s.ByCategory[b].Amount.Cents {
			return s.ByCategory[a].Amount.Cents > s.ByCategory[b].Amount.Cents
		}
		return s.ByCategory[a].Name < s.ByCategory[b].Name
	})

	days := int64(now.Day())
	if days < 1 {
		days = 1
	}
	s.DailyAverage = MoneyFromDecimal(s.TotalExpenses.Decimal().Div(decimal.NewFromInt(days)))
	s.RemainingBudget = settings.MonthlyBudget.Sub(s.TotalExpenses)

	pct := decimal.Zero
	if settings.MonthlyBudget.Cents > 0 {
		pct = decimal.NewFromInt(s.TotalExpenses.Cents).
			Mul(hundred).
			Div(decimal.NewFromInt(settings.MonthlyBudget.Cents))
	}
	rounded := pct.Round(2)
	s.Alert = AlertFor(rounded)
	s.BudgetPercentage = rounded.InexactFloat64()
	s.ProgressWidth = decimal.Min(rounded, hundred).InexactFloat64()
	return s
}
