package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/query"
	"tally/internal/store"
)

var _ store.Ledger = (*Store)(nil)
var _ store.SyncSource = (*Store)(nil)

func mustInsertTx(t *testing.T, s *Store, owner, date string, typ core.TxType, m core.Method, amount, notes string) core.Transaction {
	t.Helper()
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	tx, err := s.InsertTransaction(context.Background(), core.Transaction{
		OwnerID: owner, Date: d, Type: typ, Method: m,
		Amount: decimal.RequireFromString(amount), Notes: notes,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return tx
}

func TestInsertAndListTransactions(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := mustInsertTx(t, s, "u1", "2025-01-05", core.Income, core.Cash, "10", "first")
	b := mustInsertTx(t, s, "u1", "2025-01-05", core.Expense, core.Bank, "3.333", "second")
	mustInsertTx(t, s, "u1", "2025-01-01", core.Income, core.GCash, "7", "")
	mustInsertTx(t, s, "u2", "2025-01-09", core.Income, core.Cash, "99", "other owner")

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q %q", a.ID, b.ID)
	}
	if !b.Amount.Equal(decimal.RequireFromString("3.33")) {
		t.Fatalf("amount should be rounded to cents, got %s", b.Amount)
	}

	got, err := s.ListTransactions(ctx, "u1", query.Build(core.Filter{}))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 transactions for u1, got %d", len(got))
	}
	if got[0].ID != b.ID || got[1].ID != a.ID {
		t.Fatalf("same-day ties must list newest insert first, got %s,%s", got[0].ID, got[1].ID)
	}

	got, _ = s.ListTransactions(ctx, "u1", query.Build(core.Filter{Query: "SEC"}))
	if len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("unexpected search result %+v", got)
	}
}

func TestInsertRejectsInvalid(t *testing.T) {
	s := New()
	_, err := s.InsertTransaction(context.Background(), core.Transaction{
		Date: core.NewDate(2025, 1, 1), Type: core.Income, Method: "crypto", Amount: decimal.NewFromInt(1),
	})
	if !errors.Is(err, core.ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}
	if _, err := s.InsertBalance(context.Background(), core.Balance{Kind: core.KindCash}); !errors.Is(err, core.ErrEmptyLabel) {
		t.Fatalf("expected ErrEmptyLabel, got %v", err)
	}
}

func TestBalancesNewestFirst(t *testing.T) {
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return now })
	ctx := context.Background()

	first, _ := s.InsertBalance(ctx, core.Balance{OwnerID: "u1", Label: "Wallet", Kind: core.KindCash, Balance: decimal.NewFromInt(5)})
	second, _ := s.InsertBalance(ctx, core.Balance{OwnerID: "u1", Label: "Wallet", Kind: core.KindCash, Balance: decimal.NewFromInt(6)})
	now = now.Add(time.Hour)
	third, _ := s.InsertBalance(ctx, core.Balance{OwnerID: "u1", Label: "BDO", Kind: core.KindBank, Balance: decimal.NewFromInt(-2)})

	got, err := s.ListBalances(ctx, "u1")
	if err != nil {
		t.Fatalf("list balances: %v", err)
	}
	want := []string{third.ID, second.ID, first.ID}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, got[i].ID, id)
		}
	}
	if !got[0].UpdatedAt.Equal(now) {
		t.Fatalf("updated_at should come from the clock, got %v", got[0].UpdatedAt)
	}
	if other, _ := s.ListBalances(ctx, "u2"); len(other) != 0 {
		t.Fatalf("balances must be scoped by owner")
	}
}

func TestPendingSyncAndMarkSynced(t *testing.T) {
	s := New()
	ctx := context.Background()
	tx := mustInsertTx(t, s, "u1", "2025-01-01", core.Income, core.Cash, "1", "")
	b, _ := s.InsertBalance(ctx, core.Balance{OwnerID: "u1", Label: "Wallet", Kind: core.KindCash, Balance: decimal.NewFromInt(1)})

	pending, _ := s.PendingSync(ctx, 10)
	if len(pending) != 2 || pending[0].Kind != store.RecordTransaction || pending[1].Kind != store.RecordBalance {
		t.Fatalf("unexpected pending %+v", pending)
	}
	if err := s.MarkSynced(ctx, store.RecordTransaction, tx.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	pending, _ = s.PendingSync(ctx, 10)
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("expected only the balance pending, got %+v", pending)
	}

	if _, err := s.GetTransaction(ctx, "404"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got, err := s.GetBalance(ctx, b.ID); err != nil || got.Label != "Wallet" {
		t.Fatalf("get balance: %+v %v", got, err)
	}
}
