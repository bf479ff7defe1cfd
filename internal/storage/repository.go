// Package storage is the SQLite ledger store. Amounts are persisted as integer
// cents; dates as ISO text so they compare chronologically.
package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tally/internal/core"
	"tally/internal/query"
	"tally/internal/store"

	"modernc.org/sqlite"
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(query.SQLiteFold, 1, foldValue)
}

// foldValue backs query.SQLiteFold. NULL stays NULL so it never matches.
func foldValue(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return query.Fold(v), nil
	case []byte:
		return query.Fold(string(v)), nil
	default:
		return v, nil
	}
}

// timeLayout is fixed width so text ordering matches chronological ordering.
const timeLayout = "2006-01-02 15:04:05.000000"

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertTransaction implements store.TransactionWriter
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.Amount = core.RoundCents(tx.Amount)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (owner_id, date, type, category, method, amount_cents, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.OwnerID, tx.Date.String(), string(tx.Type), nullString(tx.Category),
		string(tx.Method), core.Cents(tx.Amount), nullString(tx.Notes),
		r.now().UTC().Format(timeLayout))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("read transaction id: %w", err)
	}
	tx.ID = strconv.FormatInt(id, 10)

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"type", tx.Type,
		"method", tx.Method,
		"amount", tx.Amount.StringFixed(core.CentPlaces))

	return tx, nil
}

// InsertBalance implements store.BalanceWriter
func (r *SQLiteRepository) InsertBalance(ctx context.Context, b core.Balance) (core.Balance, error) {
	if err := b.Validate(); err != nil {
		return core.Balance{}, err
	}
	b.Balance = core.RoundCents(b.Balance)
	b.UpdatedAt = r.now().UTC().Truncate(time.Microsecond)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO balances (owner_id, label, kind, balance_cents, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		b.OwnerID, b.Label, string(b.Kind), core.Cents(b.Balance), b.UpdatedAt.Format(timeLayout))
	if err != nil {
		return core.Balance{}, fmt.Errorf("insert balance: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Balance{}, fmt.Errorf("read balance id: %w", err)
	}
	b.ID = strconv.FormatInt(id, 10)

	slog.InfoContext(ctx, "Balance snapshot saved to SQLite", "id", b.ID, "label", b.Label, "kind", b.Kind)
	return b, nil
}

const transactionColumns = "id, owner_id, date, type, category, method, amount_cents, notes"

// ListTransactions implements store.TransactionLister
func (r *SQLiteRepository) ListTransactions(ctx context.Context, owner string, q query.Query) ([]core.Transaction, error) {
	where, args := q.SQL(query.SQLite, 1)
	stmt := "SELECT " + transactionColumns + " FROM transactions WHERE owner_id = ? AND " + where +
		" ORDER BY " + query.OrderTransactions

	rows, err := r.db.QueryContext(ctx, stmt, append([]any{owner}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

const balanceColumns = "id, owner_id, label, kind, balance_cents, updated_at"

// ListBalances implements store.BalanceLister
func (r *SQLiteRepository) ListBalances(ctx context.Context, owner string) ([]core.Balance, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+balanceColumns+" FROM balances WHERE owner_id = ? ORDER BY "+query.OrderBalances, owner)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	out := []core.Balance{}
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return out, nil
}

// PendingSync returns records that have not been mirrored yet, oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]store.PendingRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, id, created_at FROM (
			SELECT 'transaction' AS kind, id, created_at FROM transactions WHERE synced_at IS NULL
			UNION ALL
			SELECT 'balance' AS kind, id, updated_at AS created_at FROM balances WHERE synced_at IS NULL
		) ORDER BY created_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending sync: %w", err)
	}
	defer rows.Close()

	var out []store.PendingRecord
	for rows.Next() {
		var (
			kind, created string
			id            int64
		)
		if err := rows.Scan(&kind, &id, &created); err != nil {
			return nil, fmt.Errorf("scan pending record: %w", err)
		}
		at, _ := time.Parse(timeLayout, created)
		out = append(out, store.PendingRecord{Kind: store.RecordKind(kind), ID: strconv.FormatInt(id, 10), CreatedAt: at})
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return tx, err
}

func (r *SQLiteRepository) GetBalance(ctx context.Context, id string) (core.Balance, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+balanceColumns+" FROM balances WHERE id = ?", id)
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Balance{}, fmt.Errorf("balance %s: %w", id, store.ErrNotFound)
	}
	return b, err
}

// MarkSynced marks a record as successfully mirrored
func (r *SQLiteRepository) MarkSynced(ctx context.Context, kind store.RecordKind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, "UPDATE "+table+" SET synced_at = ? WHERE id = ?",
		r.now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("mark %s synced: %w", kind, err)
	}

	slog.InfoContext(ctx, "Record marked as synced", "kind", kind, "id", id)
	return nil
}

func tableFor(kind store.RecordKind) (string, error) {
	switch kind {
	case store.RecordTransaction:
		return "transactions", nil
	case store.RecordBalance:
		return "balances", nil
	default:
		return "", fmt.Errorf("unknown record kind %q", kind)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx                core.Transaction
		id, cents         int64
		date, typ, method string
		category, notes   sql.NullString
	)
	if err := s.Scan(&id, &tx.OwnerID, &date, &typ, &category, &method, &cents, &notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tx, err
		}
		return tx, fmt.Errorf("scan transaction: %w", err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return tx, fmt.Errorf("transaction %d has bad date %q: %w", id, date, err)
	}
	tx.ID = strconv.FormatInt(id, 10)
	tx.Date = d
	tx.Type = core.TxType(typ)
	tx.Method = core.Method(method)
	tx.Amount = core.FromCents(cents)
	tx.Category = category.String
	tx.Notes = notes.String
	return tx, nil
}

func scanBalance(s scanner) (core.Balance, error) {
	var (
		b          core.Balance
		id, cents  int64
		kind, when string
	)
	if err := s.Scan(&id, &b.OwnerID, &b.Label, &kind, &cents, &when); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, err
		}
		return b, fmt.Errorf("scan balance: %w", err)
	}
	at, err := time.Parse(timeLayout, when)
	if err != nil {
		return b, fmt.Errorf("balance %d has bad updated_at %q: %w", id, when, err)
	}
	b.ID = strconv.FormatInt(id, 10)
	b.Kind = core.BalanceKind(kind)
	b.Balance = core.FromCents(cents)
	b.UpdatedAt = at
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
