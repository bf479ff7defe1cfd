// Package google mirrors ledger records into a Google Sheets spreadsheet.
// Rows go to year-prefixed sheets, e.g. "2025 Transactions".
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tally/internal/core"
)

const (
	DefaultTransactionsSheet = "Transactions"
	DefaultBalancesSheet     = "Balances"
)

// Config selects the spreadsheet and credentials.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
	TransactionsSheet  string // base name, default "Transactions"
	BalancesSheet      string // base name, default "Balances"
}

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	balancesSheet     string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID)
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	tx := strings.TrimSpace(cfg.TransactionsSheet)
	if tx == "" {
		tx = DefaultTransactionsSheet
	}
	bal := strings.TrimSpace(cfg.BalancesSheet)
	if bal == "" {
		bal = DefaultBalancesSheet
	}
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, transactionsSheet: tx, balancesSheet: bal}
}

// credentials prefers inline JSON, then the file, then GOOGLE_APPLICATION_CREDENTIALS.
func credentials(cfg Config) ([]byte, error) {
	if j := strings.TrimSpace(cfg.ServiceAccountJSON); j != "" {
		return []byte(j), nil
	}
	path := strings.TrimSpace(cfg.ServiceAccountFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// AppendTransaction appends one row and returns the updated range.
func (c *Client) AppendTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	sheet := yearPrefixedName(c.transactionsSheet, tx.Date.Year())
	return c.append(ctx, sheet, transactionRow(tx))
}

// AppendBalance appends one balance snapshot row.
func (c *Client) AppendBalance(ctx context.Context, b core.Balance) (string, error) {
	sheet := yearPrefixedName(c.balancesSheet, b.UpdatedAt.Year())
	return c.append(ctx, sheet, balanceRow(b))
}

func (c *Client) append(ctx context.Context, sheet string, row []any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:A", quoteSheet(sheet))
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return sheet, nil
}

// transactionRow is the column layout of the transactions sheet:
// ID, Date, Type, Category, Method, Amount, Notes.
func transactionRow(tx core.Transaction) []any {
	return []any{
		tx.ID,
		tx.Date.String(),
		string(tx.Type),
		tx.Category,
		tx.Method.Label(),
		tx.Amount.StringFixed(core.CentPlaces),
		tx.Notes,
	}
}

// balanceRow: ID, Label, Kind, Balance, Updated (UTC).
func balanceRow(b core.Balance) []any {
	return []any{
		b.ID,
		b.Label,
		string(b.Kind),
		b.Balance.StringFixed(core.CentPlaces),
		b.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
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
