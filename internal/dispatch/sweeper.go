package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwangaza7/message-scheduler-backend/internal/queue"
	"github.com/mwangaza7/message-scheduler-backend/internal/repository"
)

// Sweeper is the recovery pass that re-discovers sends the poller and
// worker left behind: orphaned sends (due, still pending, no dispatch
// handle) and stuck sends (enqueued long ago but never picked up). It
// re-enqueues both through the normal worker entry point. Duplicate
// delivery is accepted; the worker tolerates re-running a send.
type Sweeper struct {
	scheduleRepo   repository.ScheduleRepository
	queueClient    queue.Client
	staleThreshold time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// NewSweeper creates a new recovery sweeper. staleThreshold is how far
// past its scheduled time a handle-bearing pending send must be before
// it counts as stuck.
func NewSweeper(
	scheduleRepo repository.ScheduleRepository,
	queueClient queue.Client,
	staleThreshold time.Duration,
	logger *slog.Logger,
) *Sweeper {
	if staleThreshold <= 0 {
		staleThreshold = 5 * time.Minute
	}
	return &Sweeper{
		scheduleRepo:   scheduleRepo,
		queueClient:    queueClient,
		staleThreshold: staleThreshold,
		logger:         logger,
		now:            time.Now,
	}
}

// Sweep runs one recovery pass
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.now().UTC()

	orphaned, err := s.scheduleRepo.FindDue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to query orphaned sends: %w", err)
	}

	stuck, err := s.scheduleRepo.FindStuck(ctx, now.Add(-s.staleThreshold))
	if err != nil {
		return fmt.Errorf("failed to query stuck sends: %w", err)
	}

	if len(orphaned) == 0 && len(stuck) == 0 {
		return nil
	}

	recovered := 0
	for _, schedule := range orphaned {
		overdue := now.Sub(schedule.ScheduledTime)
		s.logger.Warn("recovering orphaned send",
			slog.Int64("schedule_id", schedule.ID),
			slog.Duration("overdue", overdue),
		)
		if s.reenqueue(ctx, schedule.ID) {
			recovered++
		}
	}

	for _, schedule := range stuck {
		s.logger.Warn("recovering stuck send",
			slog.Int64("schedule_id", schedule.ID),
			slog.String("stale_handle", derefHandle(schedule.DispatchHandle)),
		)
		if s.reenqueue(ctx, schedule.ID) {
			recovered++
		}
	}

	s.logger.Info("recovery sweep completed",
		slog.Int("orphaned", len(orphaned)),
		slog.Int("stuck", len(stuck)),
		slog.Int("recovered", recovered),
	)

	return nil
}

func (s *Sweeper) reenqueue(ctx context.Context, scheduleID int64) bool {
	handle, err := s.queueClient.Enqueue(ctx, scheduleID)
	if err != nil {
		s.logger.Error("failed to re-enqueue send",
			slog.Int64("schedule_id", scheduleID),
			slog.String("error", err.Error()),
		)
		return false
	}

	if err := s.scheduleRepo.SetDispatchHandle(ctx, scheduleID, handle); err != nil {
		s.logger.Error("failed to persist recovered handle",
			slog.Int64("schedule_id", scheduleID),
			slog.String("error", err.Error()),
		)
		return false
	}

	return true
}

func derefHandle(h *string) string {
	if h == nil {
		return ""
	}
	return *h
}
