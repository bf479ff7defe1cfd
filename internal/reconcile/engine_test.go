package reconcile

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func txn(typ core.TxType, m core.Method, amount string) core.Transaction {
	return core.Transaction{Date: core.NewDate(2025, 1, 1), Type: typ, Method: m, Amount: dec(amount)}
}

func bal(label string, kind core.BalanceKind, amount string, at time.Time) core.Balance {
	return core.Balance{Label: label, Kind: kind, Balance: dec(amount), UpdatedAt: at}
}

func assertDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func TestComputeWorkedExample(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		txn(core.Income, core.Cash, "1000"),
		txn(core.Expense, core.Cash, "300"),
		txn(core.Income, core.Bank, "500"),
	}
	bals := []core.Balance{
		bal("Cash Drawer", core.KindCash, "650", now),
		bal("BDO", core.KindBank, "500", now),
	}

	got := Compute(txs, bals)
	assertDec(t, "income", got.Income, "1500")
	assertDec(t, "expense", got.Expense, "300")
	assertDec(t, "net", got.Net, "1200")
	assertDec(t, "currentMoney", got.CurrentMoney, "1150")
	assertDec(t, "gap", got.Gap, "-50")

	cash := got.Method(core.Cash)
	assertDec(t, "cash.income", cash.Income, "1000")
	assertDec(t, "cash.expense", cash.Expense, "300")
	bank := got.Method(core.Bank)
	assertDec(t, "bank.income", bank.Income, "500")
	assertDec(t, "bank.expense", bank.Expense, "0")
	gcash := got.Method(core.GCash)
	assertDec(t, "gcash.income", gcash.Income, "0")
	assertDec(t, "gcash.expense", gcash.Expense, "0")

	if err := got.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestComputeEmpty(t *testing.T) {
	for _, bals := range [][]core.Balance{nil, {bal("Wallet", core.KindCash, "42.10", time.Now())}} {
		got := Compute(nil, bals)
		assertDec(t, "income", got.Income, "0")
		assertDec(t, "expense", got.Expense, "0")
		assertDec(t, "net", got.Net, "0")
		if !got.Gap.Equal(got.CurrentMoney) {
			t.Fatalf("with no transactions gap must equal current money: %s vs %s", got.Gap, got.CurrentMoney)
		}
		if len(got.ByMethod) != 3 {
			t.Fatalf("byMethod must always report all methods, got %d", len(got.ByMethod))
		}
		for i, m := range core.Methods() {
			if got.ByMethod[i].Method != m || !got.ByMethod[i].Income.IsZero() || !got.ByMethod[i].Expense.IsZero() {
				t.Fatalf("expected zero entry for %s, got %+v", m, got.ByMethod[i])
			}
		}
	}
}

func TestComputeExactDecimal(t *testing.T) {
	// 0.1 added 1000 times drifts in binary floating point.
	txs := make([]core.Transaction, 1000)
	for i := range txs {
		txs[i] = txn(core.Income, core.GCash, "0.10")
	}
	got := Compute(txs, nil)
	assertDec(t, "income", got.Income, "100")
	assertDec(t, "gcash.income", got.Method(core.GCash).Income, "100.00")
}

func TestComputeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	types := []core.TxType{core.Income, core.Expense}
	for round := 0; round < 50; round++ {
		n := rng.Intn(40)
		txs := make([]core.Transaction, n)
		for i := range txs {
			amount := fmt.Sprintf("%d.%02d", rng.Intn(100000), rng.Intn(100))
			txs[i] = txn(types[rng.Intn(2)], core.Methods()[rng.Intn(3)], amount)
		}
		got := Compute(txs, nil)
		if !got.Net.Equal(got.Income.Sub(got.Expense)) {
			t.Fatalf("round %d: net != income - expense", round)
		}
		if err := got.Check(); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		again := Compute(txs, nil)
		if !again.Net.Equal(got.Net) || !again.Gap.Equal(got.Gap) {
			t.Fatalf("round %d: compute is not deterministic", round)
		}
	}
}

// Balance snapshots are not upserted by label: inserting a new snapshot for
// an existing label adds to CurrentMoney instead of replacing the old value.
// LatestMoney shows what a per-label upsert would report.
func TestDuplicateLabelSnapshotsAreSummed(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	bals := []core.Balance{
		bal("Cash Drawer", core.KindCash, "700", t0.Add(2*time.Hour)),
		bal("BDO", core.KindBank, "500", t0.Add(time.Hour)),
		bal("Cash Drawer", core.KindCash, "650", t0),
	}
	got := Compute(nil, bals)
	assertDec(t, "currentMoney (all snapshots)", got.CurrentMoney, "1850")
	assertDec(t, "latestMoney (latest per label)", got.LatestMoney, "1200")
}

func TestLatestPerLabel(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	bals := []core.Balance{
		bal("A", core.KindCash, "1", t0),
		bal("B", core.KindBank, "2", t0),
		bal("A", core.KindCash, "3", t0.Add(time.Minute)),
		bal("A", core.KindCash, "4", t0.Add(time.Minute)),
	}
	got := LatestPerLabel(bals)
	if len(got) != 2 {
		t.Fatalf("expected one snapshot per label, got %d", len(got))
	}
	if got[0].Label != "B" || got[1].Label != "A" || !got[1].Balance.Equal(dec("3")) {
		t.Fatalf("unexpected survivors %+v", got)
	}
	if LatestPerLabel(nil) == nil || len(LatestPerLabel(nil)) != 0 {
		t.Fatalf("nil input should give an empty slice")
	}
}

func TestCheckDetectsInconsistency(t *testing.T) {
	got := Compute([]core.Transaction{txn(core.Income, core.Cash, "10")}, nil)
	got.ByMethod[0].Income = dec("9")
	if err := got.Check(); err == nil {
		t.Fatalf("expected per-method mismatch to be reported")
	}
}
