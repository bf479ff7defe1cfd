package present

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"tally/internal/core"
	"tally/internal/reconcile"
)

// Sheet names of the exported workbook.
const (
	SheetTransactions = "Transactions"
	SheetBalances     = "Balances"
	SheetSummary      = "Summary"
)

// WriteWorkbook writes an XLSX workbook with the listed transactions, every
// balance snapshot and the computed totals. Amounts are written as numbers so
// the spreadsheet can sum them.
func WriteWorkbook(w io.Writer, txs []core.Transaction, balances []core.Balance, totals reconcile.Totals) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTransactions); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetBalances, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("create money style: %w", err)
	}
	headStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeTransactions(f, txs); err != nil {
		return err
	}
	if err := writeBalances(f, balances); err != nil {
		return err
	}
	if err := writeSummary(f, totals); err != nil {
		return err
	}

	styles := []struct {
		sheet, moneyFrom, moneyTo string
		rows                      int
	}{
		{SheetTransactions, "F", "F", len(txs) + 1},
		{SheetBalances, "C", "C", len(balances) + 1},
		{SheetSummary, "B", "D", 20},
	}
	for _, s := range styles {
		if err := f.SetCellStyle(s.sheet, "A1", "G1", headStyle); err != nil {
			return fmt.Errorf("style %s header: %w", s.sheet, err)
		}
		if s.rows > 1 {
			if err := f.SetCellStyle(s.sheet, s.moneyFrom+"2", fmt.Sprintf("%s%d", s.moneyTo, s.rows), moneyStyle); err != nil {
				return fmt.Errorf("style %s amounts: %w", s.sheet, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTransactions(f *excelize.File, txs []core.Transaction) error {
	header := []any{"Date", "Type", "Category", "Method", "ID", "Amount", "Notes"}
	if err := f.SetSheetRow(SheetTransactions, "A1", &header); err != nil {
		return fmt.Errorf("write transactions header: %w", err)
	}
	for i, tx := range txs {
		amount, _ := tx.Amount.Float64()
		row := []any{tx.Date.String(), string(tx.Type), tx.Category, tx.Method.Label(), tx.ID, amount, tx.Notes}
		if err := f.SetSheetRow(SheetTransactions, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("write transaction %s: %w", tx.ID, err)
		}
	}
	return f.SetColWidth(SheetTransactions, "A", "G", 16)
}

func writeBalances(f *excelize.File, balances []core.Balance) error {
	header := []any{"Label", "Kind", "Balance", "Updated"}
	if err := f.SetSheetRow(SheetBalances, "A1", &header); err != nil {
		return fmt.Errorf("write balances header: %w", err)
	}
	for i, b := range balances {
		amount, _ := b.Balance.Float64()
		row := []any{b.Label, string(b.Kind), amount, b.UpdatedAt.UTC().Format("2006-01-02 15:04:05")}
		if err := f.SetSheetRow(SheetBalances, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("write balance %s: %w", b.ID, err)
		}
	}
	return f.SetColWidth(SheetBalances, "A", "D", 20)
}

func writeSummary(f *excelize.File, t reconcile.Totals) error {
	num := func(v interface{ Float64() (float64, bool) }) float64 {
		x, _ := v.Float64()
		return x
	}
	rows := [][]any{
		{"Metric", "Amount"},
		{"Total Income", num(t.Income)},
		{"Total Expenses", num(t.Expense)},
		{"Net Profit", num(t.Net)},
		{"Money on Hand + Bank", num(t.CurrentMoney)},
		{"Gap (Net vs Money)", num(t.Gap)},
		{},
		{"Method", "Income", "Expense", "Net"},
	}
	for _, m := range t.ByMethod {
		rows = append(rows, []any{m.Method.Label(), num(m.Income), num(m.Expense), num(m.Net())})
	}
	for i := range rows {
		if err := f.SetSheetRow(SheetSummary, fmt.Sprintf("A%d", i+1), &rows[i]); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	return f.SetColWidth(SheetSummary, "A", "D", 22)
}
