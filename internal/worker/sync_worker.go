package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/sheets"
	"tally/internal/store"
)

// DefaultMinAge keeps the pending sweep away from records whose sync message
// is most likely still in flight.
const DefaultMinAge = 2 * time.Minute

// SyncWorker mirrors stored records to the spreadsheet and marks them synced.
type SyncWorker struct {
	source    store.SyncSource
	mirror    sheets.Mirror
	batchSize int
	minAge    time.Duration
	now       func() time.Time

	// mu serializes syncs; recent remembers records mirrored by this process
	// so the consumer and the sweep never append the same record twice.
	mu     sync.Mutex
	recent *cache.LRUCache[bool]
}

func NewSyncWorker(source store.SyncSource, mirror sheets.Mirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		source:    source,
		mirror:    mirror,
		batchSize: batchSize,
		minAge:    DefaultMinAge,
		now:       time.Now,
		recent:    cache.NewLRUCache[bool](1024, time.Hour),
	}
}

// WithMinAge sets how old a pending record must be before the sweep picks it up.
func (w *SyncWorker) WithMinAge(d time.Duration) *SyncWorker {
	w.minAge = d
	return w
}

// HandleSyncMessage processes a single record sync message from AMQP.
// A record that no longer exists is acked and skipped.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "kind", msg.Kind, "id", msg.ID)

	err := w.syncRecord(ctx, msg.Kind, msg.ID)
	if errors.Is(err, store.ErrNotFound) {
		slog.WarnContext(ctx, "Record not found, dropping sync message", "kind", msg.Kind, "id", msg.ID)
		return nil
	}
	return err
}

// ProcessPending syncs up to one batch of records that were never mirrored.
// It is the backup path for lost AMQP messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize, w.minAge)
}

// StartupSyncCheck runs a larger sweep without the age guard, at worker start.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5, 0)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int, minAge time.Duration) (int, error) {
	pending, err := w.source.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	cutoff := w.now().Add(-minAge)
	synced, failed := 0, 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if minAge > 0 && p.CreatedAt.After(cutoff) {
			continue
		}
		if err := w.syncRecord(ctx, p.Kind, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync pending record", "kind", p.Kind, "id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Processed pending records",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return synced, nil
}

func (w *SyncWorker) syncRecord(ctx context.Context, kind store.RecordKind, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := string(kind) + ":" + id
	if _, ok := w.recent.Get(key); ok {
		slog.DebugContext(ctx, "Record already synced", "kind", kind, "id", id)
		return nil
	}

	var (
		ref string
		err error
	)
	switch kind {
	case store.RecordTransaction:
		tx, gerr := w.source.GetTransaction(ctx, id)
		if gerr != nil {
			return fmt.Errorf("get transaction %s: %w", id, gerr)
		}
		ref, err = w.mirror.AppendTransaction(ctx, tx)
	case store.RecordBalance:
		b, gerr := w.source.GetBalance(ctx, id)
		if gerr != nil {
			return fmt.Errorf("get balance %s: %w", id, gerr)
		}
		ref, err = w.mirror.AppendBalance(ctx, b)
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}
	if err != nil {
		return fmt.Errorf("append %s to sheets: %w", kind, err)
	}

	// The row is already written; a failed mark only means a later sweep
	// may mirror it again.
	w.recent.Set(key, true)
	if err := w.source.MarkSynced(ctx, kind, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "kind", kind, "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced record", "kind", kind, "id", id, "sheets_ref", ref)
	return nil
}
