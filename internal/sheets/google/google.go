// Package google mirrors expenses into a Google Sheets spreadsheet using an
// OAuth user token produced by cmd/spendlog-oauth.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/sheets"
)

// Options carries the spreadsheet target and OAuth material. JSON fields win
// over their file counterparts.
type Options struct {
	SpreadsheetID string
	SheetName     string
	ClientJSON    string
	ClientFile    string
	TokenJSON     string
	TokenFile     string
}

// appendFunc writes one row to sheetRange. Tests replace it.
type appendFunc func(ctx context.Context, sheetRange string, row []any) error

type Client struct {
	spreadsheetID string
	sheetBase     string
	appendRow     appendFunc
	logger        *applog.Logger
}

var _ sheets.ExpenseMirror = (*Client)(nil)

func New(ctx context.Context, opts Options, logger *applog.Logger) (*Client, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	c := newClient(opts, logger)
	c.appendRow = func(ctx context.Context, sheetRange string, row []any) error {
		_, err := svc.Spreadsheets.Values.
			Append(c.spreadsheetID, sheetRange, &gsheet.ValueRange{Values: [][]any{row}}).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return err
	}
	return c, nil
}

func newClient(opts Options, logger *applog.Logger) *Client {
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Expenses"
	}
	return &Client{
		spreadsheetID: opts.SpreadsheetID,
		sheetBase:     base,
		logger:        logger.WithComponent(applog.ComponentSheets),
	}
}

// Mirror appends e to the sheet for the expense's year.
func (c *Client) Mirror(ctx context.Context, ownerID int64, e core.Expense) error {
	if c.appendRow == nil {
		return errors.New("sheets service not initialized")
	}
	sheet := yearPrefixedName(c.sheetBase, e.Date.Year())
	cells := sheets.Row(ownerID, e)
	row := make([]any, len(cells))
	for i, v := range cells {
		row[i] = v
	}
	// Amount goes in as a number so sheet formulas can sum the column.
	row[4] = e.Amount.Decimal().InexactFloat64()

	if err := c.appendRow(ctx, sheet+"!A:F", row); err != nil {
		return fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	c.logger.DebugContext(ctx, "Expense mirrored",
		applog.NewFields().WithOwner(ownerID).WithExpense(e.ID, e.Amount.Cents, e.Category).ToSlice()...)
	return nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

func readSecret(inline, path, what string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	case strings.TrimSpace(path) != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s file: %w", what, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("missing OAuth %s", what)
	}
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientJSON, err := readSecret(opts.ClientJSON, opts.ClientFile, "client")
	if err != nil {
		return nil, err
	}
	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tokenJSON, err := readSecret(opts.TokenJSON, opts.TokenFile, "token")
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	// Token refreshes go through the pooled client too.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	httpClient := cfg.Client(ctx, &tok)
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}
