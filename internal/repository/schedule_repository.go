package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mwangaza7/message-scheduler-backend/internal/models"
)

// ScheduleRepository defines the interface for scheduled send data
// access. It is the authoritative store for the send lifecycle; every
// status transition is a single-row update against it.
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *models.ScheduledSend) error
	GetByID(ctx context.Context, id int64) (*models.ScheduledSend, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]*models.ScheduledSend, int64, error)
	Delete(ctx context.Context, id int64) error
	UpdateStatus(ctx context.Context, id int64, status models.Status) error

	// SetDispatchHandle records the handle returned by the queue at
	// enqueue time, making a half-enqueued state observable.
	SetDispatchHandle(ctx context.Context, id int64, handle string) error

	// ResetForDispatch puts a send back to pending with a fresh handle
	// (the send-now path).
	ResetForDispatch(ctx context.Context, id int64, handle string) error

	// MarkDispatching flips the record to dispatching; committed by
	// the worker before any gateway call starts.
	MarkDispatching(ctx context.Context, id int64) error

	// FinishDispatch writes the final dispatch outcome in one atomic
	// update of status, error_message and sent_at.
	FinishDispatch(ctx context.Context, id int64, status models.Status, errorMessage *string, sentAt time.Time) error

	// FindDue returns pending sends whose scheduled time has passed
	// and that have no dispatch handle yet.
	FindDue(ctx context.Context, now time.Time) ([]*models.ScheduledSend, error)

	// FindStuck returns pending sends with a dispatch handle whose
	// scheduled time is older than the stale cutoff, meaning the
	// enqueued job never reached a terminal status.
	FindStuck(ctx context.Context, cutoff time.Time) ([]*models.ScheduledSend, error)

	// ListCompletedSince returns sends that finished dispatch (fully
	// or partially) after the given time, for timing analysis.
	ListCompletedSince(ctx context.Context, since time.Time) ([]*models.ScheduledSend, error)
}

// scheduleRepository implements ScheduleRepository using PostgreSQL
type scheduleRepository struct {
	db *sql.DB
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *sql.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

const scheduleColumns = `id, message_id, group_id, scheduled_time, status, dispatch_handle, error_message, sent_at, created_at`

func scanSchedule(row interface{ Scan(...any) error }) (*models.ScheduledSend, error) {
	s := &models.ScheduledSend{}
	err := row.Scan(
		&s.ID,
		&s.MessageID,
		&s.GroupID,
		&s.ScheduledTime,
		&s.Status,
		&s.DispatchHandle,
		&s.ErrorMessage,
		&s.SentAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new scheduled send
func (r *scheduleRepository) Create(ctx context.Context, schedule *models.ScheduledSend) error {
	query := `
		INSERT INTO scheduled_sends (message_id, group_id, scheduled_time, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		schedule.MessageID,
		schedule.GroupID,
		schedule.ScheduledTime,
		schedule.Status,
	).Scan(&schedule.ID, &schedule.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create scheduled send: %w", err)
	}

	return nil
}

// GetByID retrieves a scheduled send by ID
func (r *scheduleRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledSend, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_sends WHERE id = $1`

	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("scheduled send with ID %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled send: %w", err)
	}

	return schedule, nil
}

// List retrieves scheduled sends ordered by scheduled time ascending,
// with an optional status filter and a skip/limit window.
func (r *scheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]*models.ScheduledSend, int64, error) {
	models.ClampListWindow(&filter.Skip, &filter.Limit)

	query := `SELECT ` + scheduleColumns + ` FROM scheduled_sends WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM scheduled_sends WHERE 1=1`
	args := []any{}
	argPos := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		countQuery += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	var totalCount int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count scheduled sends: %w", err)
	}

	query += fmt.Sprintf(" ORDER BY scheduled_time ASC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, filter.Skip)

	schedules, err := r.queryMany(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list scheduled sends: %w", err)
	}

	return schedules, totalCount, nil
}

// Delete removes a scheduled send
func (r *scheduleRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_sends WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scheduled send: %w", err)
	}

	return r.checkAffected(result, id)
}

// UpdateStatus updates only the status of a scheduled send
func (r *scheduleRepository) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_sends SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update scheduled send status: %w", err)
	}

	return r.checkAffected(result, id)
}

// SetDispatchHandle records the queue handle for an enqueued dispatch
func (r *scheduleRepository) SetDispatchHandle(ctx context.Context, id int64, handle string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_sends SET dispatch_handle = $1 WHERE id = $2`, handle, id)
	if err != nil {
		return fmt.Errorf("failed to set dispatch handle: %w", err)
	}

	return r.checkAffected(result, id)
}

// ResetForDispatch resets a send to pending with a fresh handle
func (r *scheduleRepository) ResetForDispatch(ctx context.Context, id int64, handle string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_sends SET status = $1, dispatch_handle = $2, error_message = NULL, sent_at = NULL WHERE id = $3`,
		models.StatusPending, handle, id)
	if err != nil {
		return fmt.Errorf("failed to reset scheduled send for dispatch: %w", err)
	}

	return r.checkAffected(result, id)
}

// MarkDispatching flips the record to dispatching
func (r *scheduleRepository) MarkDispatching(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_sends SET status = $1 WHERE id = $2`, models.StatusDispatching, id)
	if err != nil {
		return fmt.Errorf("failed to mark scheduled send dispatching: %w", err)
	}

	return r.checkAffected(result, id)
}

// FinishDispatch writes the final dispatch outcome atomically
func (r *scheduleRepository) FinishDispatch(ctx context.Context, id int64, status models.Status, errorMessage *string, sentAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_sends SET status = $1, error_message = $2, sent_at = $3 WHERE id = $4`,
		status, errorMessage, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to finish dispatch: %w", err)
	}

	return r.checkAffected(result, id)
}

// FindDue returns pending sends that are due and not yet enqueued
func (r *scheduleRepository) FindDue(ctx context.Context, now time.Time) ([]*models.ScheduledSend, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM scheduled_sends
		WHERE status = $1 AND scheduled_time <= $2 AND dispatch_handle IS NULL
		ORDER BY scheduled_time ASC`

	schedules, err := r.queryMany(ctx, query, models.StatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find due sends: %w", err)
	}
	return schedules, nil
}

// FindStuck returns enqueued sends that never left pending
func (r *scheduleRepository) FindStuck(ctx context.Context, cutoff time.Time) ([]*models.ScheduledSend, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM scheduled_sends
		WHERE status = $1 AND scheduled_time <= $2 AND dispatch_handle IS NOT NULL
		ORDER BY scheduled_time ASC`

	schedules, err := r.queryMany(ctx, query, models.StatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find stuck sends: %w", err)
	}
	return schedules, nil
}

// ListCompletedSince returns sends delivered (fully or partially)
// after the given time
func (r *scheduleRepository) ListCompletedSince(ctx context.Context, since time.Time) ([]*models.ScheduledSend, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM scheduled_sends
		WHERE status IN ($1, $2) AND sent_at >= $3
		ORDER BY sent_at ASC`

	schedules, err := r.queryMany(ctx, query, models.StatusSent, models.StatusPartiallySent, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed sends: %w", err)
	}
	return schedules, nil
}

func (r *scheduleRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.ScheduledSend, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := []*models.ScheduledSend{}
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled send: %w", err)
		}
		schedules = append(schedules, schedule)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled sends: %w", err)
	}

	return schedules, nil
}

func (r *scheduleRepository) checkAffected(result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("scheduled send with ID %d not found", id))
	}

	return nil
}
