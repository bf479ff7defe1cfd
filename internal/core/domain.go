package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO calendar date format used for storage and comparison.
const DateLayout = "2006-01-02"

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const (
	Cash  Method = "cash"
	GCash Method = "gcash"
	Bank  Method = "bank"
)

const (
	KindCash BalanceKind = "cash"
	KindBank BalanceKind = "bank"
)

type (
	// TxType is the effect of a transaction on the ledger.
	TxType string

	// Method is the payment channel of a transaction.
	Method string

	// BalanceKind is the kind of money position a balance snapshot records.
	BalanceKind string

	// Date is a calendar date without time component, always UTC midnight.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID       string
		OwnerID  string
		Date     Date
		Type     TxType
		Category string // optional, "" when absent
		Method   Method
		Amount   decimal.Decimal
		Notes    string // optional, "" when absent
	}

	// Balance is a point-in-time snapshot of a cash or bank position.
	// Each insert is a new snapshot, labels are not unique.
	Balance struct {
		ID        string
		OwnerID   string
		Label     string
		Kind      BalanceKind
		Balance   decimal.Decimal
		UpdatedAt time.Time
	}
)

var (
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidType    = errors.New("invalid transaction type")
	ErrInvalidMethod  = errors.New("invalid payment method")
	ErrInvalidKind    = errors.New("invalid balance kind")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("amount cannot be negative")
	ErrEmptyLabel     = errors.New("empty balance label")
	ErrTooLong        = errors.New("text too long (max 200 characters)")
)

// Methods lists every payment method in display order.
func Methods() []Method {
	return []Method{Cash, GCash, Bank}
}

// Valid reports whether t is income or expense.
func (t TxType) Valid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

func (t TxType) String() string { return string(t) }

// ParseTxType parses a transaction type, case-insensitively.
func ParseTxType(s string) (TxType, error) {
	t := TxType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// Valid reports whether m is one of cash, gcash or bank.
func (m Method) Valid() bool {
	switch m {
	case Cash, GCash, Bank:
		return true
	default:
		return false
	}
}

func (m Method) String() string { return string(m) }

// Label returns the human readable name of the method.
func (m Method) Label() string {
	switch m {
	case Cash:
		return "Cash"
	case GCash:
		return "GCash"
	case Bank:
		return "Bank"
	default:
		return string(m)
	}
}

// ParseMethod parses a payment method, case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", ErrInvalidMethod
	}
	return m, nil
}

// Valid reports whether k is cash or bank.
func (k BalanceKind) Valid() bool {
	switch k {
	case KindCash, KindBank:
		return true
	default:
		return false
	}
}

func (k BalanceKind) String() string { return string(k) }

// ParseBalanceKind parses a balance kind, case-insensitively.
func ParseBalanceKind(s string) (BalanceKind, error) {
	k := BalanceKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO yyyy-mm-dd date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String renders the date as yyyy-mm-dd, "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Validate rejects the zero date.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Validate checks a transaction before it is stored.
func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Method.Valid() {
		return ErrInvalidMethod
	}
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if len(t.Category) > 200 || len(t.Notes) > 200 {
		return ErrTooLong
	}
	return nil
}

// Validate checks the label and kind.
func (b Balance) Validate() error {
	if strings.TrimSpace(b.Label) == "" {
		return ErrEmptyLabel
	}
	if len(b.Label) > 200 {
		return ErrTooLong
	}
	if !b.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}
