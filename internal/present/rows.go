package present

import (
	"time"

	"tally/internal/core"
	"tally/internal/reconcile"
)

// TimeLayout is how balance update times are shown.
const TimeLayout = "Jan 2, 2006 3:04 PM"

type (
	TransactionRow struct {
		ID       string
		Date     string
		Type     string
		Income   bool
		Category string
		Method   string
		Amount   string
		Notes    string
	}

	BalanceRow struct {
		ID        string
		Label     string
		Kind      string
		Balance   string
		Negative  bool
		UpdatedAt string
	}

	// KPI is one dashboard card.
	KPI struct {
		Title    string
		Value    string
		Negative bool
	}

	MethodRow struct {
		Method  string
		Income  string
		Expense string
		Net     string
	}
)

func (f Formatter) TransactionRows(txs []core.Transaction) []TransactionRow {
	rows := make([]TransactionRow, len(txs))
	for i, tx := range txs {
		rows[i] = TransactionRow{
			ID:       tx.ID,
			Date:     tx.Date.String(),
			Type:     string(tx.Type),
			Income:   tx.Type == core.Income,
			Category: tx.Category,
			Method:   tx.Method.Label(),
			Amount:   f.Money(tx.Amount),
			Notes:    tx.Notes,
		}
	}
	return rows
}

// BalanceRows formats snapshots, rendering times in loc (UTC when nil).
func (f Formatter) BalanceRows(balances []core.Balance, loc *time.Location) []BalanceRow {
	if loc == nil {
		loc = time.UTC
	}
	rows := make([]BalanceRow, len(balances))
	for i, b := range balances {
		rows[i] = BalanceRow{
			ID:        b.ID,
			Label:     b.Label,
			Kind:      string(b.Kind),
			Balance:   f.Money(b.Balance),
			Negative:  b.Balance.IsNegative(),
			UpdatedAt: b.UpdatedAt.In(loc).Format(TimeLayout),
		}
	}
	return rows
}

// KPIs returns the dashboard cards in display order.
func (f Formatter) KPIs(t reconcile.Totals) []KPI {
	card := func(title string, v interface{ IsNegative() bool }, s string) KPI {
		return KPI{Title: title, Value: s, Negative: v.IsNegative()}
	}
	return []KPI{
		card("Total Income", t.Income, f.Money(t.Income)),
		card("Total Expenses", t.Expense, f.Money(t.Expense)),
		card("Net Profit", t.Net, f.Money(t.Net)),
		card("Money on Hand + Bank", t.CurrentMoney, f.Money(t.CurrentMoney)),
		card("Gap (Net vs Money)", t.Gap, f.Money(t.Gap)),
	}
}

func (f Formatter) MethodRows(t reconcile.Totals) []MethodRow {
	rows := make([]MethodRow, len(t.ByMethod))
	for i, m := range t.ByMethod {
		rows[i] = MethodRow{
			Method:  m.Method.Label(),
			Income:  f.Money(m.Income),
			Expense: f.Money(m.Expense),
			Net:     f.Money(m.Net()),
		}
	}
	return rows
}
