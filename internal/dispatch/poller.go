package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwangaza7/message-scheduler-backend/internal/queue"
	"github.com/mwangaza7/message-scheduler-backend/internal/repository"
)

// Poller discovers due scheduled sends and enqueues delivery jobs for
// them. It runs on a fixed cadence driven by an outer scheduler; a
// tick failure is returned to that scheduler, which simply fires the
// next tick.
type Poller struct {
	scheduleRepo repository.ScheduleRepository
	queueClient  queue.Client
	logger       *slog.Logger
	now          func() time.Time
}

// NewPoller creates a new dispatch poller
func NewPoller(scheduleRepo repository.ScheduleRepository, queueClient queue.Client, logger *slog.Logger) *Poller {
	return &Poller{
		scheduleRepo: scheduleRepo,
		queueClient:  queueClient,
		logger:       logger,
		now:          time.Now,
	}
}

// Tick runs one poll pass: every pending send whose scheduled time has
// passed and that has no dispatch handle yet gets a delivery job, and
// the returned handle is persisted immediately so a half-enqueued
// state is observable. Each send's enqueue is independent; one failure
// never aborts the rest of the batch.
func (p *Poller) Tick(ctx context.Context) error {
	now := p.now().UTC()

	due, err := p.scheduleRepo.FindDue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to query due sends: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	p.logger.Info("found due sends", slog.Int("count", len(due)))

	enqueued := 0
	for _, schedule := range due {
		if err := p.enqueueOne(ctx, schedule.ID); err != nil {
			p.logger.Error("failed to enqueue due send",
				slog.Int64("schedule_id", schedule.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		enqueued++
	}

	p.logger.Info("poll tick completed",
		slog.Int("due", len(due)),
		slog.Int("enqueued", enqueued),
	)

	return nil
}

func (p *Poller) enqueueOne(ctx context.Context, scheduleID int64) error {
	handle, err := p.queueClient.Enqueue(ctx, scheduleID)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}

	if err := p.scheduleRepo.SetDispatchHandle(ctx, scheduleID, handle); err != nil {
		// The job is already on the queue; the worker's own lookup
		// handles a record that went missing meanwhile.
		return fmt.Errorf("failed to persist dispatch handle: %w", err)
	}

	return nil
}
