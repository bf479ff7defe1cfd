// Package reconcile computes the dashboard metrics from a transaction set and
// a balance snapshot set.
//
// Compute is pure: it only reads its inputs, so it is safe to call repeatedly
// or concurrently. All arithmetic is exact decimal arithmetic.
package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// MethodTotals holds the income and expense sums for one payment method.
type MethodTotals struct {
	Method  core.Method
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Net returns income minus expense for the method.
func (m MethodTotals) Net() decimal.Decimal {
	return m.Income.Sub(m.Expense)
}

// Totals is the reconciliation result.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal

	// CurrentMoney is the sum of every balance snapshot. It does not depend on
	// the transaction filter.
	CurrentMoney decimal.Decimal

	// Gap is CurrentMoney - Net. A non-zero gap means cash moved without a
	// ledger entry or balances are out of date.
	Gap decimal.Decimal

	// ByMethod always has one entry per core.Methods(), in that order.
	ByMethod []MethodTotals

	// LatestMoney sums only the most recent snapshot of each label. It is
	// informational; CurrentMoney keeps summing every snapshot.
	LatestMoney decimal.Decimal
}

// Compute derives the totals. Nil or empty inputs produce zero totals.
func Compute(transactions []core.Transaction, balances []core.Balance) Totals {
	methods := core.Methods()
	t := Totals{
		Income:       decimal.Zero,
		Expense:      decimal.Zero,
		CurrentMoney: decimal.Zero,
		ByMethod:     make([]MethodTotals, len(methods)),
	}
	index := make(map[core.Method]int, len(methods))
	for i, m := range methods {
		t.ByMethod[i] = MethodTotals{Method: m, Income: decimal.Zero, Expense: decimal.Zero}
		index[m] = i
	}

	for _, tx := range transactions {
		i, known := index[tx.Method]
		switch tx.Type {
		case core.Income:
			t.Income = t.Income.Add(tx.Amount)
			if known {
				t.ByMethod[i].Income = t.ByMethod[i].Income.Add(tx.Amount)
			}
		case core.Expense:
			t.Expense = t.Expense.Add(tx.Amount)
			if known {
				t.ByMethod[i].Expense = t.ByMethod[i].Expense.Add(tx.Amount)
			}
		}
	}

	for _, b := range balances {
		t.CurrentMoney = t.CurrentMoney.Add(b.Balance)
	}

	t.Net = t.Income.Sub(t.Expense)
	t.Gap = t.CurrentMoney.Sub(t.Net)
	t.LatestMoney = SumBalances(LatestPerLabel(balances))
	return t
}

// Method returns the totals for one method, zero when the method is unknown.
func (t Totals) Method(m core.Method) MethodTotals {
	for _, mt := range t.ByMethod {
		if mt.Method == m {
			return mt
		}
	}
	return MethodTotals{Method: m, Income: decimal.Zero, Expense: decimal.Zero}
}

// Check verifies the internal consistency of the totals: net and gap are
// derived correctly and the per-method sums add up to the overall sums.
// A mismatch means a transaction carried a method outside core.Methods().
func (t Totals) Check() error {
	if !t.Net.Equal(t.Income.Sub(t.Expense)) {
		return fmt.Errorf("net %s != income %s - expense %s", t.Net, t.Income, t.Expense)
	}
	if !t.Gap.Equal(t.CurrentMoney.Sub(t.Net)) {
		return fmt.Errorf("gap %s != current money %s - net %s", t.Gap, t.CurrentMoney, t.Net)
	}
	income, expense := decimal.Zero, decimal.Zero
	for _, m := range t.ByMethod {
		income = income.Add(m.Income)
		expense = expense.Add(m.Expense)
	}
	if !income.Equal(t.Income) {
		return fmt.Errorf("per-method income %s != income %s", income, t.Income)
	}
	if !expense.Equal(t.Expense) {
		return fmt.Errorf("per-method expense %s != expense %s", expense, t.Expense)
	}
	return nil
}

// LatestPerLabel keeps the most recent snapshot of each label. Labels compare
// exactly. Ties on UpdatedAt keep the snapshot listed first. The result keeps
// the input order of the surviving snapshots.
func LatestPerLabel(balances []core.Balance) []core.Balance {
	latest := make(map[string]int, len(balances))
	for i, b := range balances {
		j, seen := latest[b.Label]
		if !seen || b.UpdatedAt.After(balances[j].UpdatedAt) {
			latest[b.Label] = i
		}
	}
	out := make([]core.Balance, 0, len(latest))
	for i, b := range balances {
		if latest[b.Label] == i {
			out = append(out, b)
		}
	}
	return out
}

// SumBalances adds up the snapshot values.
func SumBalances(balances []core.Balance) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range balances {
		sum = sum.Add(b.Balance)
	}
	return sum
}
