package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwangaza7/message-scheduler-backend/internal/models"
	"github.com/mwangaza7/message-scheduler-backend/internal/queue"
	"github.com/mwangaza7/message-scheduler-backend/internal/repository"
)

// ScheduleService handles the user-facing lifecycle of scheduled
// sends. Every transition is guarded by the current persisted status;
// an in-flight dispatch is never interrupted, it is simply no longer
// cancellable.
type ScheduleService interface {
	Create(ctx context.Context, req *CreateScheduleRequest) (*models.ScheduledSend, error)
	GetByID(ctx context.Context, id int64) (*models.ScheduledSend, error)
	List(ctx context.Context, filter models.ScheduleFilter) (*models.ListResult[*models.ScheduledSend], error)
	Cancel(ctx context.Context, id int64) error
	SendNow(ctx context.Context, id int64) (*SendNowResult, error)
	Archive(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

type scheduleService struct {
	scheduleRepo repository.ScheduleRepository
	messageRepo  repository.MessageRepository
	groupRepo    repository.GroupRepository
	queueClient  queue.Client
	// createGrace is how far past a scheduled time may already be at
	// creation and still be accepted as immediately due.
	createGrace time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewScheduleService creates a new schedule service
func NewScheduleService(
	scheduleRepo repository.ScheduleRepository,
	messageRepo repository.MessageRepository,
	groupRepo repository.GroupRepository,
	queueClient queue.Client,
	createGrace time.Duration,
	logger *slog.Logger,
) ScheduleService {
	return &scheduleService{
		scheduleRepo: scheduleRepo,
		messageRepo:  messageRepo,
		groupRepo:    groupRepo,
		queueClient:  queueClient,
		createGrace:  createGrace,
		logger:       logger,
		now:          time.Now,
	}
}

// Create validates and persists a new scheduled send. A send whose
// time already passed within the grace window is accepted and
// dispatched immediately; older times are rejected.
func (s *scheduleService) Create(ctx context.Context, req *CreateScheduleRequest) (*models.ScheduledSend, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if !req.ScheduledTime.After(now.Add(-s.createGrace)) {
		return nil, models.ErrInvalidInput("scheduled time must be in the future")
	}

	if _, err := s.messageRepo.GetByID(ctx, req.MessageID); err != nil {
		return nil, err
	}
	if _, err := s.groupRepo.GetByID(ctx, req.GroupID); err != nil {
		return nil, err
	}

	schedule := &models.ScheduledSend{
		MessageID:     req.MessageID,
		GroupID:       req.GroupID,
		ScheduledTime: req.ScheduledTime,
		Status:        models.StatusPending,
	}

	if err := s.scheduleRepo.Create(ctx, schedule); err != nil {
		s.logger.Error("failed to create scheduled send",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to create scheduled send: %w", err)
	}

	s.logger.Info("scheduled send created",
		slog.Int64("schedule_id", schedule.ID),
		slog.Time("scheduled_time", schedule.ScheduledTime),
	)

	// Already due: dispatch without waiting for the next poll tick.
	// An enqueue failure here is not fatal to creation; the recovery
	// sweep picks the send up.
	if !schedule.ScheduledTime.After(now) {
		if handle, err := s.enqueue(ctx, schedule.ID); err != nil {
			s.logger.Error("failed to dispatch overdue send immediately",
				slog.Int64("schedule_id", schedule.ID),
				slog.String("error", err.Error()),
			)
		} else {
			schedule.DispatchHandle = &handle
		}
	}

	return schedule, nil
}

// GetByID retrieves one scheduled send
func (s *scheduleService) GetByID(ctx context.Context, id int64) (*models.ScheduledSend, error) {
	return s.scheduleRepo.GetByID(ctx, id)
}

// List retrieves scheduled sends ordered by scheduled time
func (s *scheduleService) List(ctx context.Context, filter models.ScheduleFilter) (*models.ListResult[*models.ScheduledSend], error) {
	if filter.Status != "" && !models.IsValidStatus(filter.Status) {
		return nil, models.ErrInvalidInput(fmt.Sprintf("invalid status: %s", filter.Status))
	}

	schedules, totalCount, err := s.scheduleRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled sends: %w", err)
	}

	models.ClampListWindow(&filter.Skip, &filter.Limit)

	return &models.ListResult[*models.ScheduledSend]{
		Data:  schedules,
		Skip:  filter.Skip,
		Limit: filter.Limit,
		Total: totalCount,
	}, nil
}

// Cancel marks a pending send as cancelled
func (s *scheduleService) Cancel(ctx context.Context, id int64) error {
	schedule, err := s.scheduleRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !schedule.CanCancel() {
		return models.ErrConflictWithMsg("can only cancel pending messages")
	}

	if err := s.scheduleRepo.UpdateStatus(ctx, id, models.StatusCancelled); err != nil {
		return err
	}

	s.logger.Info("scheduled send cancelled", slog.Int64("schedule_id", id))
	return nil
}

// SendNow re-queues a pending or failed send for immediate dispatch
// with a fresh handle.
func (s *scheduleService) SendNow(ctx context.Context, id int64) (*SendNowResult, error) {
	schedule, err := s.scheduleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !schedule.CanSendNow() {
		return nil, models.ErrConflictWithMsg("can only send pending or failed messages")
	}

	handle, err := s.queueClient.Enqueue(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue dispatch: %w", err)
	}

	if err := s.scheduleRepo.ResetForDispatch(ctx, id, handle); err != nil {
		return nil, err
	}

	s.logger.Info("scheduled send queued for immediate dispatch",
		slog.Int64("schedule_id", id),
		slog.String("handle", handle),
	)

	return &SendNowResult{
		ScheduleID: id,
		Handle:     handle,
		Status:     string(models.StatusPending),
	}, nil
}

// Archive moves any non-archived send to archived
func (s *scheduleService) Archive(ctx context.Context, id int64) error {
	schedule, err := s.scheduleRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !schedule.CanArchive() {
		return models.ErrConflictWithMsg("message is already archived")
	}

	if err := s.scheduleRepo.UpdateStatus(ctx, id, models.StatusArchived); err != nil {
		return err
	}

	s.logger.Info("scheduled send archived", slog.Int64("schedule_id", id))
	return nil
}

// Delete removes a send that is not in flight or delivered
func (s *scheduleService) Delete(ctx context.Context, id int64) error {
	schedule, err := s.scheduleRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !schedule.CanDelete() {
		return models.ErrConflictWithMsg("cannot delete sent or dispatching messages")
	}

	if err := s.scheduleRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("scheduled send deleted", slog.Int64("schedule_id", id))
	return nil
}

func (s *scheduleService) enqueue(ctx context.Context, scheduleID int64) (string, error) {
	handle, err := s.queueClient.Enqueue(ctx, scheduleID)
	if err != nil {
		return "", err
	}

	if err := s.scheduleRepo.SetDispatchHandle(ctx, scheduleID, handle); err != nil {
		return "", err
	}

	return handle, nil
}
