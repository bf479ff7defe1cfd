package http

import (
	"fmt"
	"net/http"
	"sync/atomic"

	tlog "tally/internal/log"
	"tally/internal/services"
	"tally/internal/store"
)

// Form element ids targeted by form:reset.
const (
	transactionFormID = "transaction-form"
	balanceFormID     = "balance-form"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.logger.WarnContext(r.Context(), "Parse body error", "error", err, "url", r.URL.Path)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	id := owner(r)
	tx, err := s.ledger.AddTransaction(r.Context(), id.ID, parser.TransactionInput())
	if err != nil {
		s.saveFailed(w, r, store.RecordTransaction, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.transactionsCreated, 1)
	s.structured.LogRecordCreated(r.Context(), id.ID, string(store.RecordTransaction), tx.ID, tx.Amount.StringFixed(2))

	msg := fmt.Sprintf("Saved %s of %s (%s)", tx.Type, s.formatter.Money(tx.Amount), tx.Method.Label())
	Saved(transactionFormID, string(store.RecordTransaction), msg).Write(w)
}

func (s *Server) handleCreateBalance(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.logger.WarnContext(r.Context(), "Parse body error", "error", err, "url", r.URL.Path)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	id := owner(r)
	b, err := s.ledger.AddBalance(r.Context(), id.ID, parser.BalanceInput())
	if err != nil {
		s.saveFailed(w, r, store.RecordBalance, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.balancesCreated, 1)
	s.structured.LogRecordCreated(r.Context(), id.ID, string(store.RecordBalance), b.ID, b.Balance.StringFixed(2))

	msg := fmt.Sprintf("Saved %s balance %s: %s", b.Kind, b.Label, s.formatter.Money(b.Balance))
	Saved(balanceFormID, string(store.RecordBalance), msg).Write(w)
}

// saveFailed answers a rejected insert. The form is left as typed.
func (s *Server) saveFailed(w http.ResponseWriter, r *http.Request, kind store.RecordKind, err error) {
	atomic.AddInt64(&s.appMetrics.saveFailures, 1)
	validation := services.IsValidation(err)
	if validation {
		s.logger.WarnContext(r.Context(), "Rejected invalid input", "kind", kind, "error", err)
	} else {
		s.structured.LogError(r.Context(), "Failed to save record", err, tlog.ComponentLedger, tlog.OpCreate,
			tlog.NewFields().WithRequestID(requestID(r)))
	}
	SaveFailed(validation, err.Error()).Write(w)
}
