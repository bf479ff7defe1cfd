package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/amqp"
	"tally/internal/core"
	sheetsmem "tally/internal/sheets/memory"
	"tally/internal/store"
	"tally/internal/store/memory"
)

func seed(t *testing.T, st *memory.Store) (core.Transaction, core.Balance) {
	t.Helper()
	ctx := context.Background()
	tx, err := st.InsertTransaction(ctx, core.Transaction{
		OwnerID: "u1",
		Date:    core.NewDate(2025, 2, 1),
		Type:    core.Income,
		Method:  core.Bank,
		Amount:  decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
	b, err := st.InsertBalance(ctx, core.Balance{OwnerID: "u1", Label: "Wallet", Kind: core.KindCash, Balance: decimal.NewFromInt(40)})
	if err != nil {
		t.Fatalf("insert balance: %v", err)
	}
	return tx, b
}

func TestHandleSyncMessage(t *testing.T) {
	st := memory.New()
	mirror := sheetsmem.New()
	tx, b := seed(t, st)
	w := NewSyncWorker(st, mirror, 10)
	ctx := context.Background()

	if err := w.HandleSyncMessage(ctx, amqp.NewRecordSyncMessage(store.RecordTransaction, tx.ID)); err != nil {
		t.Fatalf("handle transaction: %v", err)
	}
	if err := w.HandleSyncMessage(ctx, amqp.NewRecordSyncMessage(store.RecordBalance, b.ID)); err != nil {
		t.Fatalf("handle balance: %v", err)
	}
	if len(mirror.Transactions()) != 1 || len(mirror.Balances()) != 1 {
		t.Fatalf("expected one mirrored row each, got %d/%d", len(mirror.Transactions()), len(mirror.Balances()))
	}

	pending, err := st.PendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %v", pending)
	}
}

func TestHandleSyncMessageIsIdempotent(t *testing.T) {
	st := memory.New()
	mirror := sheetsmem.New()
	tx, _ := seed(t, st)
	w := NewSyncWorker(st, mirror, 10)
	msg := amqp.NewRecordSyncMessage(store.RecordTransaction, tx.ID)

	for i := 0; i < 3; i++ {
		if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if got := len(mirror.Transactions()); got != 1 {
		t.Fatalf("expected a single mirrored row, got %d", got)
	}
}

func TestHandleSyncMessageMissingRecordIsDropped(t *testing.T) {
	w := NewSyncWorker(memory.New(), sheetsmem.New(), 10)
	if err := w.HandleSyncMessage(context.Background(), amqp.NewRecordSyncMessage(store.RecordBalance, "404")); err != nil {
		t.Fatalf("missing record should be acked, got %v", err)
	}
}

type failingMirror struct{ calls int }

func (f *failingMirror) AppendTransaction(context.Context, core.Transaction) (string, error) {
	f.calls++
	return "", errors.New("quota exceeded")
}

func (f *failingMirror) AppendBalance(context.Context, core.Balance) (string, error) {
	f.calls++
	return "", errors.New("quota exceeded")
}

func TestHandleSyncMessageMirrorFailureRequeues(t *testing.T) {
	st := memory.New()
	tx, _ := seed(t, st)
	w := NewSyncWorker(st, &failingMirror{}, 10)

	err := w.HandleSyncMessage(context.Background(), amqp.NewRecordSyncMessage(store.RecordTransaction, tx.ID))
	if err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	pending, _ := st.PendingSync(context.Background(), 10)
	if len(pending) != 2 {
		t.Fatalf("record must stay pending, got %d pending", len(pending))
	}
}

func TestProcessPending(t *testing.T) {
	st := memory.New()
	mirror := sheetsmem.New()
	seed(t, st)
	seed(t, st)
	w := NewSyncWorker(st, mirror, 3).WithMinAge(0)

	synced, err := w.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if synced != 3 {
		t.Fatalf("expected one batch of 3, got %d", synced)
	}
	synced, _ = w.ProcessPending(context.Background())
	if synced != 1 {
		t.Fatalf("expected the remaining record, got %d", synced)
	}
	if total := len(mirror.Transactions()) + len(mirror.Balances()); total != 4 {
		t.Fatalf("expected 4 mirrored rows, got %d", total)
	}
}

func TestProcessPendingSkipsFreshRecords(t *testing.T) {
	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	st := memory.New().WithClock(func() time.Time { return now })
	mirror := sheetsmem.New()
	ctx := context.Background()
	if _, err := st.InsertBalance(ctx, core.Balance{OwnerID: "u1", Label: "BPI", Kind: core.KindBank}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	w := NewSyncWorker(st, mirror, 10)
	w.now = func() time.Time { return now.Add(time.Minute) }
	if synced, _ := w.ProcessPending(ctx); synced != 0 {
		t.Fatalf("fresh record should wait for its message, synced %d", synced)
	}

	w.now = func() time.Time { return now.Add(DefaultMinAge + time.Second) }
	if synced, _ := w.ProcessPending(ctx); synced != 1 {
		t.Fatalf("old record should be swept, synced %d", synced)
	}
}

func TestStartupSyncCheckIgnoresAge(t *testing.T) {
	st := memory.New()
	mirror := sheetsmem.New()
	seed(t, st)
	w := NewSyncWorker(st, mirror, 10)
	w.now = func() time.Time { return time.Unix(0, 0) }

	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("startup: %v", err)
	}
	if len(mirror.Balances()) != 1 || len(mirror.Transactions()) != 1 {
		t.Fatal("startup check should sync every pending record")
	}
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	w := NewSyncWorker(memory.New(), sheetsmem.New(), 10)
	if _, err := NewScheduler(w, "not a schedule", nil); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	s, err := NewScheduler(w, "", time.UTC)
	if err != nil {
		t.Fatalf("default schedule: %v", err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
