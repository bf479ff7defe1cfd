// Package query turns a dashboard Filter into a store predicate.
//
// A Query is a plain list of conditions plus an ordering. Stores either render
// it to SQL for their dialect or evaluate it in memory with Match; both paths
// share the same semantics.
package query

import (
	"sort"
	"strconv"
	"strings"

	"tally/internal/core"
)

// SQLiteFold names the SQL function the SQLite store registers for
// case-insensitive search. SQLite's own lower() only folds ASCII.
const SQLiteFold = "tally_fold"

// Fold is the case folding shared by Match and the SQLite fold function.
func Fold(s string) string {
	return strings.ToLower(s)
}

// Field is a filterable transaction column.
type Field string

const (
	FieldType   Field = "type"
	FieldMethod Field = "method"
	FieldNotes  Field = "notes"
	FieldDate   Field = "date"
)

// Op is a comparison operator.
type Op int

const (
	OpEq       Op = iota // exact match
	OpContains           // case-insensitive substring, NULL never matches
	OpGte                // greater or equal
	OpLte                // less or equal
)

// Cond is a single restriction. Value is a string, or a core.Date for FieldDate.
type Cond struct {
	Field Field
	Op    Op
	Value any
}

// Query is the predicate and ordering for a transaction listing.
type Query struct {
	Conds []Cond
}

// Dialect selects the SQL flavour produced by Query.SQL.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// OrderTransactions is the ordering applied to every transaction listing:
// newest date first, ties broken by newest insert first.
const OrderTransactions = "date DESC, id DESC"

// OrderBalances is the ordering applied to every balance listing.
const OrderBalances = "updated_at DESC, id DESC"

// Build translates the filter into a query. It is a pure function of f.
func Build(f core.Filter) Query {
	var q Query
	if t, ok := f.Type.TxType(); ok {
		q.Conds = append(q.Conds, Cond{Field: FieldType, Op: OpEq, Value: string(t)})
	}
	if m, ok := f.Method.Method(); ok {
		q.Conds = append(q.Conds, Cond{Field: FieldMethod, Op: OpEq, Value: string(m)})
	}
	if f.Query != "" {
		q.Conds = append(q.Conds, Cond{Field: FieldNotes, Op: OpContains, Value: f.Query})
	}
	if !f.From.IsZero() {
		q.Conds = append(q.Conds, Cond{Field: FieldDate, Op: OpGte, Value: f.From})
	}
	if !f.To.IsZero() {
		q.Conds = append(q.Conds, Cond{Field: FieldDate, Op: OpLte, Value: f.To})
	}
	return q
}

// SQL renders the conditions as a WHERE fragment joined with AND, without the
// WHERE keyword. Placeholders are numbered from firstArg for Postgres. An empty
// query renders "TRUE" so callers can always AND it onto an owner restriction.
func (q Query) SQL(d Dialect, firstArg int) (string, []any) {
	if len(q.Conds) == 0 {
		return "TRUE", nil
	}
	parts := make([]string, 0, len(q.Conds))
	args := make([]any, 0, len(q.Conds))
	n := firstArg
	placeholder := func() string {
		if d == Postgres {
			p := "$" + strconv.Itoa(n)
			n++
			return p
		}
		return "?"
	}

	for _, c := range q.Conds {
		switch c.Op {
		case OpEq:
			parts = append(parts, string(c.Field)+" = "+placeholder())
			args = append(args, c.Value)
		case OpContains:
			pattern := "%" + escapeLike(toString(c.Value)) + "%"
			if d == Postgres {
				parts = append(parts, string(c.Field)+" ILIKE "+placeholder()+` ESCAPE '\'`)
			} else {
				parts = append(parts, SQLiteFold+"("+string(c.Field)+") LIKE "+SQLiteFold+"("+placeholder()+`) ESCAPE '\'`)
			}
			args = append(args, pattern)
		case OpGte, OpLte:
			op := " >= "
			if c.Op == OpLte {
				op = " <= "
			}
			parts = append(parts, string(c.Field)+op+placeholder())
			args = append(args, dateArg(d, c.Value))
		}
	}
	return strings.Join(parts, " AND "), args
}

// Match evaluates the query against a transaction in memory.
func (q Query) Match(tx core.Transaction) bool {
	for _, c := range q.Conds {
		if !c.match(tx) {
			return false
		}
	}
	return true
}

func (c Cond) match(tx core.Transaction) bool {
	switch c.Field {
	case FieldType:
		return string(tx.Type) == toString(c.Value)
	case FieldMethod:
		return string(tx.Method) == toString(c.Value)
	case FieldNotes:
		if tx.Notes == "" {
			return false
		}
		return strings.Contains(Fold(tx.Notes), Fold(toString(c.Value)))
	case FieldDate:
		// ISO dates compare lexicographically in chronological order.
		got, bound := tx.Date.String(), toString(c.Value)
		if c.Op == OpGte {
			return got >= bound
		}
		return got <= bound
	default:
		return false
	}
}

// Apply filters and orders transactions in memory, the way a SQL store would.
// The input slice is not modified. Seq gives the insertion order of each
// transaction, used to break date ties newest first.
func (q Query) Apply(txs []core.Transaction, seq func(core.Transaction) int64) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if q.Match(tx) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Date.String(), out[j].Date.String()
		if di != dj {
			return di > dj
		}
		return seq(out[i]) > seq(out[j])
	})
	return out
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case core.Date:
		return val.String()
	case core.TxType:
		return string(val)
	case core.Method:
		return string(val)
	default:
		return ""
	}
}

func dateArg(d Dialect, v any) any {
	date, ok := v.(core.Date)
	if !ok {
		return toString(v)
	}
	if d == Postgres {
		return date.Time
	}
	return date.String()
}

// escapeLike escapes LIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
