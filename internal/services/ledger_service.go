package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tally/internal/core"
	"tally/internal/store"
)

// Publisher announces stored records to the sync pipeline.
type Publisher interface {
	PublishRecordSync(ctx context.Context, kind store.RecordKind, id string) error
	Close() error
}

// Invalidator drops cached dashboard data of an owner.
type Invalidator interface {
	Invalidate(owner string)
}

// ValidationError reports rejected user input. It wraps one of the core
// validation sentinels.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err was caused by invalid input.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type (
	// TransactionInput is the raw add-transaction form.
	TransactionInput struct {
		Date     string
		Type     string
		Category string
		Method   string
		Amount   string
		Notes    string
	}

	// BalanceInput is the raw add-balance form.
	BalanceInput struct {
		Label   string
		Kind    string
		Balance string
	}
)

// LedgerService validates and stores records, then publishes sync events.
type LedgerService struct {
	store       store.Ledger
	publisher   Publisher
	invalidator Invalidator
}

// NewLedgerService wires the service. publisher and invalidator may be nil.
func NewLedgerService(st store.Ledger, publisher Publisher, invalidator Invalidator) *LedgerService {
	return &LedgerService{store: st, publisher: publisher, invalidator: invalidator}
}

// ParseTransaction validates the form without touching the store.
func ParseTransaction(owner string, in TransactionInput) (core.Transaction, error) {
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Transaction{}, &ValidationError{Field: "date", Err: err}
	}
	typ, err := core.ParseTxType(in.Type)
	if err != nil {
		return core.Transaction{}, &ValidationError{Field: "type", Err: err}
	}
	method, err := core.ParseMethod(in.Method)
	if err != nil {
		return core.Transaction{}, &ValidationError{Field: "method", Err: err}
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, &ValidationError{Field: "amount", Err: err}
	}
	tx := core.Transaction{
		OwnerID:  owner,
		Date:     date,
		Type:     typ,
		Category: strings.TrimSpace(in.Category),
		Method:   method,
		Amount:   amount,
		Notes:    strings.TrimSpace(in.Notes),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, &ValidationError{Field: "transaction", Err: err}
	}
	return tx, nil
}

// ParseBalance validates the balance form without touching the store.
func ParseBalance(owner string, in BalanceInput) (core.Balance, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return core.Balance{}, &ValidationError{Field: "label", Err: core.ErrEmptyLabel}
	}
	kind, err := core.ParseBalanceKind(in.Kind)
	if err != nil {
		return core.Balance{}, &ValidationError{Field: "kind", Err: err}
	}
	amount, err := core.ParseSignedAmount(in.Balance)
	if err != nil {
		return core.Balance{}, &ValidationError{Field: "balance", Err: err}
	}
	b := core.Balance{OwnerID: owner, Label: label, Kind: kind, Balance: amount}
	if err := b.Validate(); err != nil {
		return core.Balance{}, &ValidationError{Field: "balance", Err: err}
	}
	return b, nil
}

// AddTransaction validates and stores a transaction. The write is not retried.
func (s *LedgerService) AddTransaction(ctx context.Context, owner string, in TransactionInput) (core.Transaction, error) {
	tx, err := ParseTransaction(owner, in)
	if err != nil {
		return core.Transaction{}, err
	}
	saved, err := s.store.InsertTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.afterInsert(ctx, owner, store.RecordTransaction, saved.ID)
	return saved, nil
}

// AddBalance validates and stores a new balance snapshot.
func (s *LedgerService) AddBalance(ctx context.Context, owner string, in BalanceInput) (core.Balance, error) {
	b, err := ParseBalance(owner, in)
	if err != nil {
		return core.Balance{}, err
	}
	saved, err := s.store.InsertBalance(ctx, b)
	if err != nil {
		return core.Balance{}, fmt.Errorf("save balance: %w", err)
	}
	s.afterInsert(ctx, owner, store.RecordBalance, saved.ID)
	return saved, nil
}

func (s *LedgerService) afterInsert(ctx context.Context, owner string, kind store.RecordKind, id string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(owner)
	}
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping sync message", "kind", kind, "id", id)
		return
	}
	// The record is already stored; a failed publish is picked up by the
	// worker's pending sweep.
	if err := s.publisher.PublishRecordSync(ctx, kind, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "kind", kind, "id", id, "error", err)
	}
}

// Close releases the publisher.
func (s *LedgerService) Close() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
