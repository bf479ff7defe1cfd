// Package memory is an in-process ledger store used for local development and
// tests. Data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"tally/internal/core"
	"tally/internal/query"
	"tally/internal/store"
)

type Store struct {
	mu       sync.Mutex
	seq      int64
	txs      []core.Transaction
	balances []core.Balance
	synced   map[string]bool
	now      func() time.Time
}

func New() *Store {
	return &Store{synced: map[string]bool{}, now: time.Now}
}

// WithClock replaces the clock used to stamp balance snapshots.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) nextID() string {
	s.seq++
	return strconv.FormatInt(s.seq, 10)
}

func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = s.nextID()
	tx.Amount = core.RoundCents(tx.Amount)
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *Store) InsertBalance(_ context.Context, b core.Balance) (core.Balance, error) {
	if err := b.Validate(); err != nil {
		return core.Balance{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.nextID()
	b.Balance = core.RoundCents(b.Balance)
	b.UpdatedAt = s.now().UTC()
	s.balances = append(s.balances, b)
	return b, nil
}

func (s *Store) ListTransactions(_ context.Context, owner string, q query.Query) ([]core.Transaction, error) {
	s.mu.Lock()
	owned := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if tx.OwnerID == owner {
			owned = append(owned, tx)
		}
	}
	s.mu.Unlock()
	return q.Apply(owned, idSeq), nil
}

func (s *Store) ListBalances(_ context.Context, owner string) ([]core.Balance, error) {
	s.mu.Lock()
	out := make([]core.Balance, 0, len(s.balances))
	for _, b := range s.balances {
		if b.OwnerID == owner {
			out = append(out, b)
		}
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return parseID(out[i].ID) > parseID(out[j].ID)
	})
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// PendingSync returns records not yet marked as synced, oldest first.
func (s *Store) PendingSync(_ context.Context, limit int) ([]store.PendingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.PendingRecord
	for _, tx := range s.txs {
		if !s.synced[syncKey(store.RecordTransaction, tx.ID)] {
			out = append(out, store.PendingRecord{Kind: store.RecordTransaction, ID: tx.ID})
		}
	}
	for _, b := range s.balances {
		if !s.synced[syncKey(store.RecordBalance, b.ID)] {
			out = append(out, store.PendingRecord{Kind: store.RecordBalance, ID: b.ID, CreatedAt: b.UpdatedAt})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return parseID(out[i].ID) < parseID(out[j].ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
}

func (s *Store) GetBalance(_ context.Context, id string) (core.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.balances {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Balance{}, fmt.Errorf("balance %s: %w", id, store.ErrNotFound)
}

func (s *Store) MarkSynced(_ context.Context, kind store.RecordKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced[syncKey(kind, id)] = true
	return nil
}

func syncKey(kind store.RecordKind, id string) string {
	return string(kind) + ":" + id
}

func idSeq(tx core.Transaction) int64 { return parseID(tx.ID) }

func parseID(id string) int64 {
	n, _ := strconv.ParseInt(id, 10, 64)
	return n
}
