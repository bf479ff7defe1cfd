// Package postgres is the hosted ledger store. Its schema matches the one the
// dashboard used on Supabase: NUMERIC amounts, DATE columns and rows scoped by
// owner id.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/query"
	"tally/internal/storage"
	"tally/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Repository struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and applies pending migrations.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := runMigrations(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repository{pool: pool}, nil
}

func runMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("create pgx migrate driver: %w", err)
	}
	version, err := storage.MigrateUp(migrationsFS, "pgx5", driver)
	if err != nil {
		return err
	}
	slog.Debug("Postgres schema ready", "version", version)
	return nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.Amount = core.RoundCents(tx.Amount)

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO transactions (owner_id, date, type, category, method, amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		RETURNING id`,
		tx.OwnerID, tx.Date.Time, string(tx.Type), nullable(tx.Category), string(tx.Method),
		tx.Amount.StringFixed(core.CentPlaces), nullable(tx.Notes),
	).Scan(&id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	tx.ID = strconv.FormatInt(id, 10)

	slog.InfoContext(ctx, "Transaction saved to Postgres", "id", tx.ID, "type", tx.Type, "method", tx.Method)
	return tx, nil
}

func (r *Repository) InsertBalance(ctx context.Context, b core.Balance) (core.Balance, error) {
	if err := b.Validate(); err != nil {
		return core.Balance{}, err
	}
	b.Balance = core.RoundCents(b.Balance)

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO balances (owner_id, label, kind, balance)
		VALUES ($1, $2, $3, $4::numeric)
		RETURNING id, updated_at`,
		b.OwnerID, b.Label, string(b.Kind), b.Balance.StringFixed(core.CentPlaces),
	).Scan(&id, &b.UpdatedAt)
	if err != nil {
		return core.Balance{}, fmt.Errorf("insert balance: %w", err)
	}
	b.ID = strconv.FormatInt(id, 10)
	b.UpdatedAt = b.UpdatedAt.UTC()

	slog.InfoContext(ctx, "Balance snapshot saved to Postgres", "id", b.ID, "label", b.Label)
	return b, nil
}

const transactionColumns = "id, owner_id, date, type, coalesce(category, ''), method, amount::text, coalesce(notes, '')"

func (r *Repository) ListTransactions(ctx context.Context, owner string, q query.Query) ([]core.Transaction, error) {
	where, args := q.SQL(query.Postgres, 2)
	stmt := "SELECT " + transactionColumns + " FROM transactions WHERE owner_id = $1 AND " + where +
		" ORDER BY " + query.OrderTransactions

	rows, err := r.pool.Query(ctx, stmt, append([]any{owner}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Transaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect transactions: %w", err)
	}
	return out, nil
}

const balanceColumns = "id, owner_id, label, kind, balance::text, updated_at"

func (r *Repository) ListBalances(ctx context.Context, owner string) ([]core.Balance, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+balanceColumns+" FROM balances WHERE owner_id = $1 ORDER BY "+query.OrderBalances, owner)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Balance, error) {
		return scanBalance(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect balances: %w", err)
	}
	return out, nil
}

func (r *Repository) PendingSync(ctx context.Context, limit int) ([]store.PendingRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT kind, id, created_at FROM (
			SELECT 'transaction' AS kind, id, created_at FROM transactions WHERE synced_at IS NULL
			UNION ALL
			SELECT 'balance' AS kind, id, updated_at AS created_at FROM balances WHERE synced_at IS NULL
		) pending ORDER BY created_at, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending sync: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.PendingRecord, error) {
		var (
			rec  store.PendingRecord
			kind string
			id   int64
		)
		if err := row.Scan(&kind, &id, &rec.CreatedAt); err != nil {
			return rec, err
		}
		rec.Kind = store.RecordKind(kind)
		rec.ID = strconv.FormatInt(id, 10)
		return rec, nil
	})
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	n, err := parseID(id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, err)
	}
	tx, err := scanTransaction(r.pool.QueryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = $1", n))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return tx, err
}

func (r *Repository) GetBalance(ctx context.Context, id string) (core.Balance, error) {
	n, err := parseID(id)
	if err != nil {
		return core.Balance{}, fmt.Errorf("balance %s: %w", id, err)
	}
	b, err := scanBalance(r.pool.QueryRow(ctx, "SELECT "+balanceColumns+" FROM balances WHERE id = $1", n))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Balance{}, fmt.Errorf("balance %s: %w", id, store.ErrNotFound)
	}
	return b, err
}

func (r *Repository) MarkSynced(ctx context.Context, kind store.RecordKind, id string) error {
	var stmt string
	switch kind {
	case store.RecordTransaction:
		stmt = "UPDATE transactions SET synced_at = now() WHERE id = $1"
	case store.RecordBalance:
		stmt = "UPDATE balances SET synced_at = now() WHERE id = $1"
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}
	n, err := parseID(id)
	if err != nil {
		return fmt.Errorf("mark %s %s synced: %w", kind, id, err)
	}
	if _, err := r.pool.Exec(ctx, stmt, n); err != nil {
		return fmt.Errorf("mark %s synced: %w", kind, err)
	}
	return nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx                  core.Transaction
		id                  int64
		date                time.Time
		typ, method, amount string
	)
	if err := row.Scan(&id, &tx.OwnerID, &date, &typ, &tx.Category, &method, &amount, &tx.Notes); err != nil {
		return tx, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return tx, fmt.Errorf("transaction %d has bad amount %q: %w", id, amount, err)
	}
	tx.ID = strconv.FormatInt(id, 10)
	tx.Date = core.NewDate(date.Year(), int(date.Month()), date.Day())
	tx.Type = core.TxType(typ)
	tx.Method = core.Method(method)
	tx.Amount = d
	return tx, nil
}

func scanBalance(row pgx.Row) (core.Balance, error) {
	var (
		b            core.Balance
		id           int64
		kind, amount string
	)
	if err := row.Scan(&id, &b.OwnerID, &b.Label, &kind, &amount, &b.UpdatedAt); err != nil {
		return b, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return b, fmt.Errorf("balance %d has bad amount %q: %w", id, amount, err)
	}
	b.ID = strconv.FormatInt(id, 10)
	b.Kind = core.BalanceKind(kind)
	b.Balance = d
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

// parseID maps a malformed id to ErrNotFound; ids are always bigint identities.
func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, store.ErrNotFound
	}
	return n, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
