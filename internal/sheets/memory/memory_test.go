package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

func TestMemoryMirrorAppend(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.AppendTransaction(ctx, core.Transaction{
		ID:     "1",
		Date:   core.NewDate(2025, 1, 2),
		Type:   core.Income,
		Method: core.Cash,
		Amount: decimal.RequireFromString("10.50"),
	})
	if err != nil || ref != "mem:transactions:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	ref, err = s.AppendBalance(ctx, core.Balance{ID: "2", Label: "Wallet", Kind: core.KindCash, Balance: decimal.NewFromInt(-5)})
	if err != nil || ref != "mem:balances:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	if got := len(s.Transactions()); got != 1 {
		t.Fatalf("expected 1 transaction, got %d", got)
	}
	if got := len(s.Balances()); got != 1 {
		t.Fatalf("expected 1 balance, got %d", got)
	}
}

func TestMemoryMirrorRejectsInvalid(t *testing.T) {
	s := New()
	_, err := s.AppendTransaction(context.Background(), core.Transaction{
		Date:   core.NewDate(2025, 1, 2),
		Type:   "transfer",
		Method: core.Cash,
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(s.Transactions()) != 0 {
		t.Fatal("invalid transaction must not be stored")
	}
}
