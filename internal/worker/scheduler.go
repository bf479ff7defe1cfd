package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the pending sweep every five minutes.
const DefaultSchedule = "@every 5m"

const sweepTimeout = 2 * time.Minute

// Scheduler runs ProcessPending on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers the sweep. The schedule accepts standard 5-field
// cron expressions and descriptors such as "@every 1m".
func NewScheduler(w *SyncWorker, schedule string, loc *time.Location) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := w.ProcessPending(ctx); err != nil {
			slog.ErrorContext(ctx, "Pending sync sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule pending sync sweep %q: %w", schedule, err)
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Pending sync scheduler started", "entries", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
