// Package memory is a Mirror that keeps appended rows in process. It is used
// when no spreadsheet is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/core"
)

type Store struct {
	mu           sync.Mutex
	transactions []core.Transaction
	balances     []core.Balance
}

func New() *Store {
	return &Store{}
}

// AppendTransaction stores the transaction and returns a synthetic row reference.
func (s *Store) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, tx)
	return fmt.Sprintf("mem:transactions:%d", len(s.transactions)), nil
}

func (s *Store) AppendBalance(_ context.Context, b core.Balance) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = append(s.balances, b)
	return fmt.Sprintf("mem:balances:%d", len(s.balances)), nil
}

// Transactions returns a copy of the mirrored transactions in append order.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.transactions...)
}

func (s *Store) Balances() []core.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Balance(nil), s.balances...)
}
