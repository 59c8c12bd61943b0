package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"+5", 0, false},
		{"١٢", 0, false},
		{"92233720368547758", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{`150`, 15000},
		{`99.99`, 9999},
		{`"12,50"`, 1250},
		{`0.005`, 1},
		{`-3`, -300},
	}
	for _, tc := range cases {
		var m Money
		if err := json.Unmarshal([]byte(tc.in), &m); err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if m.Cents != tc.want {
			t.Fatalf("%s: got %d want %d", tc.in, m.Cents, tc.want)
		}
	}

	for _, in := range []string{
		`"ten"`,
		`"-5"`,
		`"0"`,
		`"1e3"`,
		`184467440737095516.17`,
		`-184467440737095516.17`,
		`1e30`,
		`"184467440737095516.17"`,
	} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); !errors.Is(err, ErrMalformedMoney) {
			t.Fatalf("%s: expected ErrMalformedMoney, got %v (cents=%d)", in, err, m.Cents)
		}
	}

	var wrapped struct {
		Amount Money `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount": 92233720368547758.07}`), &wrapped); err != nil || wrapped.Amount.Cents != math.MaxInt64 {
		t.Fatalf("max cents: %d %v", wrapped.Amount.Cents, err)
	}

	b, err := json.Marshal(Money{Cents: 123456})
	if err != nil || string(b) != "1234.56" {
		t.Fatalf("marshal got %s (%v)", b, err)
	}
}

func TestMoneyHelpers(t *testing.T) {
	m := Money{Cents: 1050}
	if got := m.Format("₹"); got != "₹10.50" {
		t.Fatalf("format got %q", got)
	}
	if got := m.Sub(Money{Cents: 2000}); got.Cents != -950 {
		t.Fatalf("sub got %d", got.Cents)
	}
	if got := MoneyFromDecimal(decimal.RequireFromString("3.335")); got.Cents != 334 {
		t.Fatalf("round got %d", got.Cents)
	}
	if _, err := moneyFromDecimal(decimal.RequireFromString("92233720368547758.08")); err == nil {
		t.Fatalf("expected overflow error one cent above the int64 range")
	}
	if got, err := moneyFromDecimal(decimal.RequireFromString("-92233720368547758.08")); err != nil || got.Cents != math.MinInt64 {
		t.Fatalf("min cents: %d %v", got.Cents, err)
	}
}
