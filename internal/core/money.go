// Package core provides money parsing and handling utilities.
//
// Amounts are decimal.Decimal values kept at cent precision. Input uses a
// dot as the decimal separator and at most two fractional digits. Commas are
// rejected rather than read as either grouping or decimal marks.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// CentPlaces is the currency scale used by every stored amount.
const CentPlaces = 2

// ParseAmount parses a non-negative transaction amount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("1,000")  -> 0, ErrInvalidAmount
//	ParseAmount("12.345") -> 0, ErrInvalidAmount
//	ParseAmount("-1")     -> 0, ErrNegativeAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d, nil
}

// ParseSignedAmount parses a balance value, which may carry either sign.
func ParseSignedAmount(s string) (decimal.Decimal, error) {
	return parseDecimal(s)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 || body == "" || strings.Count(body, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	if _, frac, ok := strings.Cut(body, "."); ok && len(frac) > CentPlaces {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range body {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if strings.Trim(body, ".") == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return RoundCents(d), nil
}

// RoundCents rounds half away from zero to two decimal places.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(CentPlaces)
}

// Cents converts an amount to integer cents for storage.
func Cents(d decimal.Decimal) int64 {
	return RoundCents(d).Shift(CentPlaces).IntPart()
}

// FromCents converts stored integer cents back to an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -CentPlaces)
}
