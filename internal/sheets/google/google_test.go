package google

import (
	"context"
	"errors"
	"strings"
	"testing"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
)

const testClientJSON = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{}, nil)
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_CredentialErrors(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{"missing client", Options{SpreadsheetID: "id"}, "missing OAuth client"},
		{"invalid client json", Options{SpreadsheetID: "id", ClientJSON: "invalid-json", TokenJSON: `{}`}, "oauth config"},
		{"missing token", Options{SpreadsheetID: "id", ClientJSON: testClientJSON}, "missing OAuth token"},
		{"bad token", Options{SpreadsheetID: "id", ClientJSON: testClientJSON, TokenJSON: "{"}, "parse oauth token"},
		{"unreadable client file", Options{SpreadsheetID: "id", ClientFile: "/nonexistent/client.json"}, "read client file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.opts, nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNew_ValidCredentials(t *testing.T) {
	c, err := New(context.Background(), Options{
		SpreadsheetID: "id",
		ClientJSON:    testClientJSON,
		TokenJSON:     `{"access_token":"test","token_type":"Bearer"}`,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.sheetBase != "Expenses" || c.appendRow == nil {
		t.Fatalf("unexpected client: %+v", c)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Expenses", 2025, "2025 Expenses"},
		{"2024 Expenses", 2025, "2024 Expenses"},
		{"  Budget ", 2026, "2026 Budget"},
		{"", 2025, ""},
		{"12345", 2025, "2025 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestMirrorAppendsRow(t *testing.T) {
	c := newClient(Options{SpreadsheetID: "id", SheetName: "Spending"}, applog.Discard())
	var (
		gotRange string
		gotRow   []any
	)
	c.appendRow = func(_ context.Context, r string, row []any) error {
		gotRange, gotRow = r, row
		return nil
	}

	e := core.Expense{
		ID: 7, Title: "Train", Amount: core.Money{Cents: 1999}, Category: "Travel",
		PaymentMethod: "Debit Card", Date: core.NewDate(2024, 12, 31),
	}
	if err := c.Mirror(context.Background(), 5, e); err != nil {
		t.Fatal(err)
	}
	if gotRange != "2024 Spending!A:F" {
		t.Fatalf("range %q", gotRange)
	}
	if len(gotRow) != 6 || gotRow[0] != "2024-12-31" || gotRow[1] != "5" || gotRow[4] != 19.99 {
		t.Fatalf("row %#v", gotRow)
	}
}

func TestMirrorPropagatesErrors(t *testing.T) {
	c := newClient(Options{SpreadsheetID: "id"}, applog.Discard())
	if err := c.Mirror(context.Background(), 1, core.Expense{}); err == nil {
		t.Fatal("expected error without service")
	}

	boom := errors.New("quota exceeded")
	c.appendRow = func(context.Context, string, []any) error { return boom }
	if err := c.Mirror(context.Background(), 1, core.Expense{Date: core.NewDate(2025, 1, 1)}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
