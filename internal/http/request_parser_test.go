package http

import (
	"errors"
	"net/url"
	"testing"

	"spendlog/internal/core"
)

func TestParseExpenseFilter(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    core.ExpenseFilter
		wantErr bool
	}{
		{name: "empty", query: "", want: core.ExpenseFilter{}},
		{
			name:  "snake case",
			query: "category=Food&payment_method=Cash&search=milk&from=2025-01-01&to=2025-01-31",
			want: core.ExpenseFilter{
				Category: "Food", PaymentMethod: "Cash", Search: "milk",
				From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 1, 31),
			},
		},
		{
			name:  "camel case",
			query: "paymentMethod=Card&startDate=2025-02-01&endDate=2025-02-28",
			want:  core.ExpenseFilter{PaymentMethod: "Card", From: core.NewDate(2025, 2, 1), To: core.NewDate(2025, 2, 28)},
		},
		{name: "bad date", query: "from=yesterday", wantErr: true},
		{name: "inverted range", query: "from=2025-02-01&to=2025-01-01", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParseExpenseFilter(q)
			if tt.wantErr {
				if !errors.Is(err, core.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Category != tt.want.Category || got.PaymentMethod != tt.want.PaymentMethod ||
				got.Search != tt.want.Search || !got.From.Equal(tt.want.From.Time) || !got.To.Equal(tt.want.To.Time) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  lunch\x00\x07 out\t "); got != "lunch out" {
		t.Fatalf("got %q", got)
	}
	if got := sanitizeInput("line1\nline2"); got != "line1\nline2" {
		t.Fatalf("newlines must survive, got %q", got)
	}
}
