package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/query"
	"tally/internal/reconcile"
	"tally/internal/store"
)

// Dashboard is one fetch-then-compute result.
type Dashboard struct {
	Filter       core.Filter
	Transactions []core.Transaction
	Balances     []core.Balance
	Totals       reconcile.Totals
	LoadedAt     time.Time
}

// DashboardLoader runs one fetch-then-compute cycle.
type DashboardLoader interface {
	Load(ctx context.Context, owner string, f core.Filter) (Dashboard, error)
}

// Loader fetches transactions and balances and recomputes totals.
type Loader struct {
	store store.Ledger
	cache cache.Cache[Dashboard]

	// generations counts invalidations per owner. A load only fills the
	// cache when no invalidation happened while it was reading.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewLoader returns a loader. c may be nil to disable caching.
func NewLoader(st store.Ledger, c cache.Cache[Dashboard]) *Loader {
	return &Loader{store: st, cache: c, generations: make(map[string]uint64)}
}

func (l *Loader) generation(owner string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generations[owner]
}

func cacheKey(owner string, f core.Filter) string {
	return owner + "|" + f.Key()
}

// Load runs one refresh for owner. Transactions and balances are fetched
// concurrently. On failure the returned Dashboard still carries empty lists
// and zero totals so callers can render it alongside the error.
func (l *Loader) Load(ctx context.Context, owner string, f core.Filter) (Dashboard, error) {
	key := cacheKey(owner, f)
	if l.cache != nil {
		if d, ok := l.cache.Get(key); ok {
			return d, nil
		}
	}
	gen := l.generation(owner)

	var (
		txs      []core.Transaction
		balances []core.Balance
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = l.store.ListTransactions(gctx, owner, query.Build(f))
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		balances, err = l.store.ListBalances(gctx, owner)
		if err != nil {
			return fmt.Errorf("list balances: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{
			Filter:       f,
			Transactions: []core.Transaction{},
			Balances:     []core.Balance{},
			Totals:       reconcile.Compute(nil, nil),
			LoadedAt:     time.Now(),
		}, err
	}

	d := Dashboard{
		Filter:       f,
		Transactions: txs,
		Balances:     balances,
		Totals:       reconcile.Compute(txs, balances),
		LoadedAt:     time.Now(),
	}
	if l.cache != nil {
		l.mu.Lock()
		if l.generations[owner] == gen {
			l.cache.Set(key, d)
		}
		l.mu.Unlock()
	}
	return d, nil
}

// Invalidate drops every cached dashboard of owner and keeps loads that
// are already in flight from caching what they read.
func (l *Loader) Invalidate(owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generations[owner]++
	if l.cache != nil {
		l.cache.DeletePrefix(owner + "|")
	}
}
