// Package present maps ledger data to what the dashboard displays: formatted
// amounts, table rows, KPI cards and the spreadsheet export.
package present

import (
	"strings"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// DefaultSymbol is the Philippine peso sign.
const DefaultSymbol = "₱"

// Formatter renders money with a fixed currency symbol.
type Formatter struct {
	Symbol string
}

// NewFormatter returns a formatter for symbol, or the default symbol when empty.
func NewFormatter(symbol string) Formatter {
	if strings.TrimSpace(symbol) == "" {
		symbol = DefaultSymbol
	}
	return Formatter{Symbol: symbol}
}

var defaultFormatter = NewFormatter(DefaultSymbol)

// FormatMoney formats d with the default symbol, e.g. -₱1,234.50.
func FormatMoney(d decimal.Decimal) string {
	return defaultFormatter.Money(d)
}

// Money renders exactly two fractional digits, comma grouping and a leading
// minus sign for negative values.
func (f Formatter) Money(d decimal.Decimal) string {
	d = core.RoundCents(d)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(core.CentPlaces)
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + f.Symbol + group(whole) + "." + frac
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
