package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tally/internal/core"
)

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Transactions", 2025, "2025 Transactions"},
		{"2024 Transactions", 2025, "2024 Transactions"},
		{"  Balances ", 2026, "2026 Balances"},
		{"", 2025, ""},
		{"1800 Old", 2025, "2025 1800 Old"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("Bob's 2025"); got != "'Bob''s 2025'" {
		t.Fatalf("quoteSheet = %q", got)
	}
}

func TestTransactionRow(t *testing.T) {
	row := transactionRow(core.Transaction{
		ID:       "42",
		Date:     core.NewDate(2025, 3, 9),
		Type:     core.Expense,
		Category: "Food",
		Method:   core.GCash,
		Amount:   decimal.RequireFromString("12.5"),
		Notes:    "lunch",
	})
	want := []any{"42", "2025-03-09", "expense", "Food", core.GCash.Label(), "12.50", "lunch"}
	if len(row) != len(want) {
		t.Fatalf("row has %d columns, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestBalanceRow(t *testing.T) {
	at := time.Date(2025, 3, 9, 8, 30, 0, 0, time.FixedZone("PHT", 8*3600))
	row := balanceRow(core.Balance{ID: "7", Label: "BPI", Kind: core.KindBank, Balance: decimal.NewFromInt(-20), UpdatedAt: at})
	want := []any{"7", "BPI", "bank", "-20.00", "2025-03-09 00:30:00"}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "sid"}); err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "sid", ServiceAccountFile: t.TempDir() + "/missing.json"}); err == nil {
		t.Fatal("expected error for unreadable credentials file")
	}
}

type appendCall struct {
	path        string
	inputOption string
	values      [][]any
}

func newTestClient(t *testing.T, calls *[]appendCall, status int) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, ":append") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		*calls = append(*calls, appendCall{
			path:        r.URL.Path,
			inputOption: r.URL.Query().Get("valueInputOption"),
			values:      body.Values,
		})
		if status != http.StatusOK {
			http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sid",
			"updates":       map[string]any{"updatedRange": "'2025 Transactions'!A2:G2"},
		})
	}))
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, Config{SpreadsheetID: "sid"})
}

func TestAppendTransaction(t *testing.T) {
	var calls []appendCall
	c := newTestClient(t, &calls, http.StatusOK)

	ref, err := c.AppendTransaction(context.Background(), core.Transaction{
		ID:     "1",
		Date:   core.NewDate(2025, 6, 1),
		Type:   core.Income,
		Method: core.Cash,
		Amount: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "'2025 Transactions'!A2:G2" {
		t.Errorf("ref = %q", ref)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if !strings.Contains(calls[0].path, "'2025 Transactions'!A:A") {
		t.Errorf("unexpected range in path %q", calls[0].path)
	}
	if calls[0].inputOption != "USER_ENTERED" {
		t.Errorf("valueInputOption = %q", calls[0].inputOption)
	}
	if len(calls[0].values) != 1 || calls[0].values[0][5] != "1000.00" {
		t.Errorf("unexpected values %v", calls[0].values)
	}
}

func TestAppendBalanceUsesBalancesSheet(t *testing.T) {
	var calls []appendCall
	c := newTestClient(t, &calls, http.StatusOK)

	_, err := c.AppendBalance(context.Background(), core.Balance{
		ID: "3", Label: "Wallet", Kind: core.KindCash, Balance: decimal.NewFromInt(50),
		UpdatedAt: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(calls) != 1 || !strings.Contains(calls[0].path, "'2026 Balances'!A:A") {
		t.Fatalf("unexpected calls %+v", calls)
	}
}

func TestAppendServerError(t *testing.T) {
	var calls []appendCall
	c := newTestClient(t, &calls, http.StatusInternalServerError)

	_, err := c.AppendBalance(context.Background(), core.Balance{
		ID: "3", Label: "Wallet", Kind: core.KindCash, UpdatedAt: time.Now(),
	})
	if err == nil || !strings.Contains(err.Error(), "append to sheet") {
		t.Fatalf("expected wrapped append error, got %v", err)
	}
}
