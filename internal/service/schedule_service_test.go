package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mwangaza7/message-scheduler-backend/internal/models"
	"github.com/mwangaza7/message-scheduler-backend/internal/queue"
)

type fakeScheduleRepo struct {
	nextID    int64
	schedules map[int64]*models.ScheduledSend

	statusUpdates map[int64]models.Status
	handles       map[int64]string
	resets        map[int64]string
	deleted       []int64
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{
		nextID:        1,
		schedules:     map[int64]*models.ScheduledSend{},
		statusUpdates: map[int64]models.Status{},
		handles:       map[int64]string{},
		resets:        map[int64]string{},
	}
}

func (f *fakeScheduleRepo) add(schedule *models.ScheduledSend) *models.ScheduledSend {
	schedule.ID = f.nextID
	f.nextID++
	f.schedules[schedule.ID] = schedule
	return schedule
}

func (f *fakeScheduleRepo) Create(ctx context.Context, schedule *models.ScheduledSend) error {
	schedule.CreatedAt = time.Now().UTC()
	f.add(schedule)
	return nil
}

func (f *fakeScheduleRepo) GetByID(ctx context.Context, id int64) (*models.ScheduledSend, error) {
	schedule, ok := f.schedules[id]
	if !ok {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("scheduled send with ID %d not found", id))
	}
	copied := *schedule
	return &copied, nil
}

func (f *fakeScheduleRepo) List(ctx context.Context, filter models.ScheduleFilter) ([]*models.ScheduledSend, int64, error) {
	out := []*models.ScheduledSend{}
	for _, s := range f.schedules {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

func (f *fakeScheduleRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.schedules[id]; !ok {
		return models.ErrNotFoundWithMsg("not found")
	}
	delete(f.schedules, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeScheduleRepo) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	schedule, ok := f.schedules[id]
	if !ok {
		return models.ErrNotFoundWithMsg("not found")
	}
	schedule.Status = status
	f.statusUpdates[id] = status
	return nil
}

func (f *fakeScheduleRepo) SetDispatchHandle(ctx context.Context, id int64, handle string) error {
	schedule, ok := f.schedules[id]
	if !ok {
		return models.ErrNotFoundWithMsg("not found")
	}
	schedule.DispatchHandle = &handle
	f.handles[id] = handle
	return nil
}

func (f *fakeScheduleRepo) ResetForDispatch(ctx context.Context, id int64, handle string) error {
	schedule, ok := f.schedules[id]
	if !ok {
		return models.ErrNotFoundWithMsg("not found")
	}
	schedule.Status = models.StatusPending
	schedule.DispatchHandle = &handle
	schedule.ErrorMessage = nil
	schedule.SentAt = nil
	f.resets[id] = handle
	return nil
}

func (f *fakeScheduleRepo) MarkDispatching(ctx context.Context, id int64) error { return nil }

func (f *fakeScheduleRepo) FinishDispatch(ctx context.Context, id int64, status models.Status, errorMessage *string, sentAt time.Time) error {
	return nil
}

func (f *fakeScheduleRepo) FindDue(ctx context.Context, now time.Time) ([]*models.ScheduledSend, error) {
	return nil, nil
}

func (f *fakeScheduleRepo) FindStuck(ctx context.Context, cutoff time.Time) ([]*models.ScheduledSend, error) {
	return nil, nil
}

func (f *fakeScheduleRepo) ListCompletedSince(ctx context.Context, since time.Time) ([]*models.ScheduledSend, error) {
	return nil, nil
}

type fakeMessageRepo struct {
	exists bool
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	if !f.exists {
		return nil, models.ErrNotFoundWithMsg("message not found")
	}
	return &models.Message{ID: id, Title: "Promo", Content: "Hello"}, nil
}

func (f *fakeMessageRepo) Create(ctx context.Context, message *models.Message) error { return nil }

func (f *fakeMessageRepo) List(ctx context.Context, skip, limit int) ([]*models.Message, int64, error) {
	return nil, 0, nil
}

func (f *fakeMessageRepo) Update(ctx context.Context, message *models.Message) error { return nil }

func (f *fakeMessageRepo) Delete(ctx context.Context, id int64) error { return nil }

type fakeGroupRepo struct {
	exists bool
}

func (f *fakeGroupRepo) GetByID(ctx context.Context, id int64) (*models.RecipientGroup, error) {
	if !f.exists {
		return nil, models.ErrNotFoundWithMsg("group not found")
	}
	return &models.RecipientGroup{ID: id, Name: "Customers"}, nil
}

func (f *fakeGroupRepo) Create(ctx context.Context, group *models.RecipientGroup, recipientIDs []int64) error {
	return nil
}

func (f *fakeGroupRepo) GetWithRecipients(ctx context.Context, id int64) (*models.GroupWithRecipients, error) {
	return nil, nil
}

func (f *fakeGroupRepo) GetRecipients(ctx context.Context, id int64) ([]*models.Recipient, error) {
	return nil, nil
}

func (f *fakeGroupRepo) List(ctx context.Context, skip, limit int) ([]*models.GroupWithRecipients, int64, error) {
	return nil, 0, nil
}

func (f *fakeGroupRepo) ReplaceMembers(ctx context.Context, id int64, recipientIDs []int64) error {
	return nil
}

func (f *fakeGroupRepo) Delete(ctx context.Context, id int64) error { return nil }

type fakeQueue struct {
	enqueued   []int64
	enqueueErr error
	nextHandle string
}

func (f *fakeQueue) Enqueue(ctx context.Context, scheduleID int64) (string, error) {
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	f.enqueued = append(f.enqueued, scheduleID)
	if f.nextHandle != "" {
		return f.nextHandle, nil
	}
	return fmt.Sprintf("handle-%d", scheduleID), nil
}

func (f *fakeQueue) Consume(ctx context.Context, handler queue.JobHandler, concurrency int) error {
	return nil
}

func (f *fakeQueue) Close() error { return nil }

func (f *fakeQueue) Health(ctx context.Context) error { return nil }

func newServiceFixture() (ScheduleService, *fakeScheduleRepo, *fakeQueue) {
	repo := newFakeScheduleRepo()
	q := &fakeQueue{}
	svc := NewScheduleService(
		repo,
		&fakeMessageRepo{exists: true},
		&fakeGroupRepo{exists: true},
		q,
		5*time.Minute,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return svc, repo, q
}

func isConflict(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == "CONFLICT"
}

func isInvalidInput(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == "INVALID_INPUT"
}

func TestCreateFutureSchedule(t *testing.T) {
	svc, _, q := newServiceFixture()

	schedule, err := svc.Create(context.Background(), &CreateScheduleRequest{
		MessageID:     1,
		GroupID:       1,
		ScheduledTime: time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if schedule.Status != models.StatusPending {
		t.Errorf("status = %q, want %q", schedule.Status, models.StatusPending)
	}
	if len(q.enqueued) != 0 {
		t.Errorf("future send enqueued immediately, want the poller to pick it up")
	}
}

func TestCreateOverdueWithinGraceEnqueuesImmediately(t *testing.T) {
	svc, repo, q := newServiceFixture()

	schedule, err := svc.Create(context.Background(), &CreateScheduleRequest{
		MessageID:     1,
		GroupID:       1,
		ScheduledTime: time.Now().UTC().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(q.enqueued) != 1 || q.enqueued[0] != schedule.ID {
		t.Fatalf("enqueued = %v, want the new send dispatched immediately", q.enqueued)
	}
	if repo.handles[schedule.ID] == "" {
		t.Error("dispatch handle not persisted for immediate dispatch")
	}
	if schedule.DispatchHandle == nil {
		t.Error("returned schedule missing its dispatch handle")
	}
}

func TestCreateRejectsTimeBeyondGrace(t *testing.T) {
	svc, _, _ := newServiceFixture()

	_, err := svc.Create(context.Background(), &CreateScheduleRequest{
		MessageID:     1,
		GroupID:       1,
		ScheduledTime: time.Now().UTC().Add(-time.Hour),
	})
	if !isInvalidInput(err) {
		t.Fatalf("Create() error = %v, want INVALID_INPUT", err)
	}
}

func TestCreateValidatesReferences(t *testing.T) {
	repo := newFakeScheduleRepo()
	svc := NewScheduleService(
		repo,
		&fakeMessageRepo{exists: false},
		&fakeGroupRepo{exists: true},
		&fakeQueue{},
		5*time.Minute,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, err := svc.Create(context.Background(), &CreateScheduleRequest{
		MessageID:     404,
		GroupID:       1,
		ScheduledTime: time.Now().UTC().Add(time.Hour),
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Create() error = %v, want not found for missing message", err)
	}
	if len(repo.schedules) != 0 {
		t.Error("schedule persisted despite missing message")
	}
}

func TestCreateMissingFields(t *testing.T) {
	svc, _, _ := newServiceFixture()

	tests := []struct {
		name string
		req  CreateScheduleRequest
	}{
		{"missing message", CreateScheduleRequest{GroupID: 1, ScheduledTime: time.Now().Add(time.Hour)}},
		{"missing group", CreateScheduleRequest{MessageID: 1, ScheduledTime: time.Now().Add(time.Hour)}},
		{"missing time", CreateScheduleRequest{MessageID: 1, GroupID: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), &tt.req); !isInvalidInput(err) {
				t.Errorf("Create() error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestCancelOnlyPending(t *testing.T) {
	svc, repo, _ := newServiceFixture()

	pending := repo.add(&models.ScheduledSend{Status: models.StatusPending})
	if err := svc.Cancel(context.Background(), pending.ID); err != nil {
		t.Fatalf("Cancel(pending) error = %v", err)
	}
	if repo.statusUpdates[pending.ID] != models.StatusCancelled {
		t.Errorf("status = %q, want %q", repo.statusUpdates[pending.ID], models.StatusCancelled)
	}

	for _, status := range []models.Status{
		models.StatusDispatching, models.StatusSent, models.StatusPartiallySent,
		models.StatusFailed, models.StatusCancelled, models.StatusArchived,
	} {
		s := repo.add(&models.ScheduledSend{Status: status})
		if err := svc.Cancel(context.Background(), s.ID); !isConflict(err) {
			t.Errorf("Cancel(%s) error = %v, want CONFLICT", status, err)
		}
	}
}

func TestSendNowResetsWithFreshHandle(t *testing.T) {
	svc, repo, q := newServiceFixture()

	failed := repo.add(&models.ScheduledSend{
		Status:       models.StatusFailed,
		ErrorMessage: ptr("previous failure"),
	})

	result, err := svc.SendNow(context.Background(), failed.ID)
	if err != nil {
		t.Fatalf("SendNow() error = %v", err)
	}

	if result.Handle == "" {
		t.Error("SendNow() returned empty handle")
	}
	if repo.resets[failed.ID] != result.Handle {
		t.Errorf("reset handle = %q, want %q", repo.resets[failed.ID], result.Handle)
	}
	if len(q.enqueued) != 1 {
		t.Errorf("enqueued %d jobs, want 1", len(q.enqueued))
	}
	if repo.schedules[failed.ID].ErrorMessage != nil {
		t.Error("previous error message not cleared on re-dispatch")
	}
}

func TestSendNowGuards(t *testing.T) {
	svc, repo, _ := newServiceFixture()

	for _, status := range []models.Status{
		models.StatusDispatching, models.StatusSent,
		models.StatusPartiallySent, models.StatusCancelled, models.StatusArchived,
	} {
		s := repo.add(&models.ScheduledSend{Status: status})
		if _, err := svc.SendNow(context.Background(), s.ID); !isConflict(err) {
			t.Errorf("SendNow(%s) error = %v, want CONFLICT", status, err)
		}
	}
}

func TestArchiveAnyNonArchived(t *testing.T) {
	svc, repo, _ := newServiceFixture()

	for _, status := range []models.Status{
		models.StatusPending, models.StatusDispatching, models.StatusSent,
		models.StatusPartiallySent, models.StatusFailed, models.StatusCancelled,
	} {
		s := repo.add(&models.ScheduledSend{Status: status})
		if err := svc.Archive(context.Background(), s.ID); err != nil {
			t.Errorf("Archive(%s) error = %v", status, err)
		}
	}

	archived := repo.add(&models.ScheduledSend{Status: models.StatusArchived})
	if err := svc.Archive(context.Background(), archived.ID); !isConflict(err) {
		t.Errorf("Archive(archived) error = %v, want CONFLICT", err)
	}
}

func TestDeleteGuards(t *testing.T) {
	svc, repo, _ := newServiceFixture()

	deletable := []models.Status{
		models.StatusPending, models.StatusCancelled,
		models.StatusFailed, models.StatusArchived,
	}
	for _, status := range deletable {
		s := repo.add(&models.ScheduledSend{Status: status})
		if err := svc.Delete(context.Background(), s.ID); err != nil {
			t.Errorf("Delete(%s) error = %v", status, err)
		}
	}

	kept := []models.Status{
		models.StatusDispatching, models.StatusSent, models.StatusPartiallySent,
	}
	for _, status := range kept {
		s := repo.add(&models.ScheduledSend{Status: status})
		if err := svc.Delete(context.Background(), s.ID); !isConflict(err) {
			t.Errorf("Delete(%s) error = %v, want CONFLICT", status, err)
		}
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newServiceFixture()

	_, err := svc.List(context.Background(), models.ScheduleFilter{Status: "done"})
	if !isInvalidInput(err) {
		t.Fatalf("List() error = %v, want INVALID_INPUT", err)
	}
}

func ptr(s string) *string { return &s }
