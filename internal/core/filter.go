package core

import "strings"

// All is the catch-all value for the type and method selectors of a Filter.
const All = "all"

type (
	// TypeFilter selects transactions by type; the zero value and "all" select everything.
	TypeFilter string

	// MethodFilter selects transactions by method; the zero value and "all" select everything.
	MethodFilter string

	// Filter is the transient dashboard filter state.
	Filter struct {
		Type   TypeFilter
		Method MethodFilter
		Query  string // matched case-insensitively against notes
		From   Date   // inclusive, zero when unset
		To     Date   // inclusive, zero when unset
	}
)

// TxType returns the selected type and whether a restriction applies.
func (t TypeFilter) TxType() (TxType, bool) {
	if t == "" || t == All {
		return "", false
	}
	return TxType(t), true
}

// Method returns the selected method and whether a restriction applies.
func (m MethodFilter) Method() (Method, bool) {
	if m == "" || m == All {
		return "", false
	}
	return Method(m), true
}

// ParseFilter builds a Filter from raw selector values. Unknown selectors and
// unparsable dates are treated as unset, the way an untouched form control is.
// The search text is kept as typed, surrounding spaces included.
func ParseFilter(typ, method, q, from, to string) Filter {
	f := Filter{Type: All, Method: All, Query: q}
	if t, err := ParseTxType(typ); err == nil {
		f.Type = TypeFilter(t)
	}
	if m, err := ParseMethod(method); err == nil {
		f.Method = MethodFilter(m)
	}
	if d, err := ParseDate(from); err == nil {
		f.From = d
	}
	if d, err := ParseDate(to); err == nil {
		f.To = d
	}
	return f
}

// Key returns a stable cache key for the filter.
func (f Filter) Key() string {
	typ, method := string(f.Type), string(f.Method)
	if typ == "" {
		typ = All
	}
	if method == "" {
		method = All
	}
	return strings.Join([]string{typ, method, strings.ToLower(f.Query), f.From.String(), f.To.String()}, "|")
}
