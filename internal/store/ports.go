// Package store declares the persistence ports used by the ledger.
//
// Every read and write is scoped to an owner id. Implementations live in
// store/memory, storage (SQLite) and storage/postgres.
package store

import (
	"context"
	"errors"
	"time"

	"tally/internal/core"
	"tally/internal/query"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// RecordKind identifies the table a sync message refers to.
type RecordKind string

const (
	RecordTransaction RecordKind = "transaction"
	RecordBalance     RecordKind = "balance"
)

func (k RecordKind) Valid() bool {
	return k == RecordTransaction || k == RecordBalance
}

// PendingRecord is the minimal data needed to queue a record for sync.
type PendingRecord struct {
	Kind      RecordKind
	ID        string
	CreatedAt time.Time
}

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		// InsertTransaction stores tx and returns it with its assigned ID.
		InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	}

	BalanceWriter interface {
		// InsertBalance stores a new snapshot and returns it with ID and UpdatedAt set.
		InsertBalance(ctx context.Context, b core.Balance) (core.Balance, error)
	}

	TransactionLister interface {
		// ListTransactions returns the owner's transactions matching q, ordered
		// by date descending then id descending.
		ListTransactions(ctx context.Context, owner string, q query.Query) ([]core.Transaction, error)
	}

	BalanceLister interface {
		// ListBalances returns every snapshot of the owner, newest first.
		ListBalances(ctx context.Context, owner string) ([]core.Balance, error)
	}

	// Ledger is the full read/write surface used by the dashboard.
	Ledger interface {
		TransactionWriter
		BalanceWriter
		TransactionLister
		BalanceLister
		Ping(ctx context.Context) error
	}

	// SyncSource is implemented by stores that can feed the Sheets mirror.
	SyncSource interface {
		PendingSync(ctx context.Context, limit int) ([]PendingRecord, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		GetBalance(ctx context.Context, id string) (core.Balance, error)
		MarkSynced(ctx context.Context, kind RecordKind, id string) error
	}
)
