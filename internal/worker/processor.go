package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mwangaza7/message-scheduler-backend/internal/gateway"
	"github.com/mwangaza7/message-scheduler-backend/internal/models"
	"github.com/mwangaza7/message-scheduler-backend/internal/repository"
)

// Processor executes one dispatch job: it resolves the group's current
// recipients, fans the message out through the delivery gateway and
// commits the aggregate outcome. It is safe to invoke more than once
// for the same send; a duplicate delivery simply re-runs dispatch and
// overwrites the outcome.
type Processor struct {
	scheduleRepo repository.ScheduleRepository
	messageRepo  repository.MessageRepository
	groupRepo    repository.GroupRepository
	sender       gateway.Sender
	sendTimeout  time.Duration
	logger       *slog.Logger
}

// NewProcessor creates a new dispatch processor
func NewProcessor(
	scheduleRepo repository.ScheduleRepository,
	messageRepo repository.MessageRepository,
	groupRepo repository.GroupRepository,
	sender gateway.Sender,
	sendTimeout time.Duration,
	logger *slog.Logger,
) *Processor {
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &Processor{
		scheduleRepo: scheduleRepo,
		messageRepo:  messageRepo,
		groupRepo:    groupRepo,
		sender:       sender,
		sendTimeout:  sendTimeout,
		logger:       logger,
	}
}

// Process handles a single dispatch job
func (p *Processor) Process(ctx context.Context, job *models.DispatchJob) error {
	schedule, err := p.scheduleRepo.GetByID(ctx, job.ScheduleID)
	if errors.Is(err, models.ErrNotFound) {
		// Deleted or cancelled concurrently; nothing to do
		p.logger.Info("scheduled send no longer exists, skipping",
			slog.Int64("schedule_id", job.ScheduleID),
		)
		return nil
	}
	if err != nil {
		p.logger.Error("failed to fetch scheduled send",
			slog.Int64("schedule_id", job.ScheduleID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to fetch scheduled send: %w", err)
	}

	if !schedule.Dispatchable() {
		p.logger.Info("scheduled send not dispatchable, skipping",
			slog.Int64("schedule_id", schedule.ID),
			slog.String("status", string(schedule.Status)),
		)
		return nil
	}

	// Commit the dispatching transition before any slow network call
	// so progress is externally visible.
	if err := p.scheduleRepo.MarkDispatching(ctx, schedule.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to mark dispatching: %w", err)
	}

	p.logger.Info("dispatch started",
		slog.Int64("schedule_id", schedule.ID),
		slog.Int64("group_id", schedule.GroupID),
		slog.String("handle", job.Handle),
	)

	status, errorMessage, err := p.deliver(ctx, schedule)
	if err != nil {
		// The record must never stay in dispatching: force failed with
		// a system-error marker, then surface the error to the queue
		// framework.
		p.logger.Error("dispatch failed with system error",
			slog.Int64("schedule_id", schedule.ID),
			slog.String("error", err.Error()),
		)

		sysMsg := "System error: " + err.Error()
		if commitErr := p.commitOutcome(ctx, schedule.ID, models.StatusFailed, &sysMsg); commitErr != nil {
			p.logger.Error("failed to commit system failure",
				slog.Int64("schedule_id", schedule.ID),
				slog.String("error", commitErr.Error()),
			)
		}
		return err
	}

	if err := p.commitOutcome(ctx, schedule.ID, status, errorMessage); err != nil {
		return fmt.Errorf("failed to commit dispatch outcome: %w", err)
	}

	p.logger.Info("dispatch completed",
		slog.Int64("schedule_id", schedule.ID),
		slog.String("status", string(status)),
	)

	return nil
}

// deliver performs the recipient fan-out and computes the aggregate
// outcome. Panics are recovered and returned as errors so the caller
// can apply the job-boundary failure commit.
func (p *Processor) deliver(ctx context.Context, schedule *models.ScheduledSend) (status models.Status, errorMessage *string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during dispatch: %v", r)
		}
	}()

	message, err := p.messageRepo.GetByID(ctx, schedule.MessageID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load message: %w", err)
	}

	// Membership is resolved now, not at scheduling time, so group
	// edits made since creation take effect.
	recipients, err := p.groupRepo.GetRecipients(ctx, schedule.GroupID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}

	if len(recipients) == 0 {
		// Vacuous success is explicitly rejected
		msg := "no recipients found in group"
		return models.StatusFailed, &msg, nil
	}

	successCount := 0
	failCount := 0
	var failures []string

	for _, recipient := range recipients {
		sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
		receiptID, sendErr := p.sender.Send(sendCtx, recipient.PhoneNumber, message.Content)
		cancel()

		if sendErr != nil {
			failCount++
			if len(failures) < models.MaxStoredErrors {
				failures = append(failures, fmt.Sprintf(
					"failed to send to %s (%s): %v",
					recipient.Name, recipient.PhoneNumber, sendErr,
				))
			}
			p.logger.Warn("recipient send failed",
				slog.Int64("schedule_id", schedule.ID),
				slog.Int64("recipient_id", recipient.ID),
				slog.String("error", sendErr.Error()),
			)
			continue
		}

		successCount++
		p.logger.Debug("recipient send succeeded",
			slog.Int64("schedule_id", schedule.ID),
			slog.Int64("recipient_id", recipient.ID),
			slog.String("receipt_id", receiptID),
		)
	}

	switch {
	case failCount == 0:
		status = models.StatusSent
	case successCount == 0:
		status = models.StatusFailed
	default:
		status = models.StatusPartiallySent
	}

	if len(failures) > 0 {
		joined := strings.Join(failures, "; ")
		errorMessage = &joined
	}

	p.logger.Info("fan-out finished",
		slog.Int64("schedule_id", schedule.ID),
		slog.Int("success", successCount),
		slog.Int("failed", failCount),
	)

	return status, errorMessage, nil
}

// commitOutcome writes the final state in one update. The commit runs
// on a detached context so an expired job deadline cannot leave the
// record in dispatching.
func (p *Processor) commitOutcome(ctx context.Context, id int64, status models.Status, errorMessage *string) error {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	return p.scheduleRepo.FinishDispatch(commitCtx, id, status, errorMessage, time.Now().UTC())
}
