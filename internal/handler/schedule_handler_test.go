package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mwangaza7/message-scheduler-backend/internal/models"
	"github.com/mwangaza7/message-scheduler-backend/internal/service"
)

// mockScheduleService is a hand-rolled ScheduleService for handler tests
type mockScheduleService struct {
	createFn  func(ctx context.Context, req *service.CreateScheduleRequest) (*models.ScheduledSend, error)
	getFn     func(ctx context.Context, id int64) (*models.ScheduledSend, error)
	listFn    func(ctx context.Context, filter models.ScheduleFilter) (*models.ListResult[*models.ScheduledSend], error)
	cancelFn  func(ctx context.Context, id int64) error
	sendNowFn func(ctx context.Context, id int64) (*service.SendNowResult, error)
	archiveFn func(ctx context.Context, id int64) error
	deleteFn  func(ctx context.Context, id int64) error
}

func (m *mockScheduleService) Create(ctx context.Context, req *service.CreateScheduleRequest) (*models.ScheduledSend, error) {
	return m.createFn(ctx, req)
}

func (m *mockScheduleService) GetByID(ctx context.Context, id int64) (*models.ScheduledSend, error) {
	return m.getFn(ctx, id)
}

func (m *mockScheduleService) List(ctx context.Context, filter models.ScheduleFilter) (*models.ListResult[*models.ScheduledSend], error) {
	return m.listFn(ctx, filter)
}

func (m *mockScheduleService) Cancel(ctx context.Context, id int64) error { return m.cancelFn(ctx, id) }

func (m *mockScheduleService) SendNow(ctx context.Context, id int64) (*service.SendNowResult, error) {
	return m.sendNowFn(ctx, id)
}

func (m *mockScheduleService) Archive(ctx context.Context, id int64) error {
	return m.archiveFn(ctx, id)
}

func (m *mockScheduleService) Delete(ctx context.Context, id int64) error { return m.deleteFn(ctx, id) }

func newScheduleRouter(svc service.ScheduleService) http.Handler {
	h := NewScheduleHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Route("/schedules", h.Routes)
	return r
}

func TestCreateScheduleHandler(t *testing.T) {
	svc := &mockScheduleService{
		createFn: func(ctx context.Context, req *service.CreateScheduleRequest) (*models.ScheduledSend, error) {
			return &models.ScheduledSend{
				ID:            1,
				MessageID:     req.MessageID,
				GroupID:       req.GroupID,
				ScheduledTime: req.ScheduledTime,
				Status:        models.StatusPending,
			}, nil
		},
	}

	body, _ := json.Marshal(map[string]any{
		"message_id":     1,
		"group_id":       2,
		"scheduled_time": time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})

	req := httptest.NewRequest(http.MethodPost, "/schedules", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newScheduleRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var got models.ScheduledSend
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Status != models.StatusPending {
		t.Errorf("status = %q, want %q", got.Status, models.StatusPending)
	}
}

func TestCreateScheduleHandlerInvalidJSON(t *testing.T) {
	svc := &mockScheduleService{}

	req := httptest.NewRequest(http.MethodPost, "/schedules", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	newScheduleRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateScheduleHandlerPastTime(t *testing.T) {
	svc := &mockScheduleService{
		createFn: func(ctx context.Context, req *service.CreateScheduleRequest) (*models.ScheduledSend, error) {
			return nil, models.ErrInvalidInput("scheduled time must be in the future")
		},
	}

	body, _ := json.Marshal(map[string]any{
		"message_id":     1,
		"group_id":       2,
		"scheduled_time": time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
	})

	req := httptest.NewRequest(http.MethodPost, "/schedules", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newScheduleRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Code != "INVALID_INPUT" {
		t.Errorf("error code = %q, want INVALID_INPUT", resp.Error.Code)
	}
}

func TestCancelScheduleHandlerConflict(t *testing.T) {
	svc := &mockScheduleService{
		cancelFn: func(ctx context.Context, id int64) error {
			return models.ErrConflictWithMsg("can only cancel pending messages")
		},
	}

	req := httptest.NewRequest(http.MethodPut, "/schedules/5/cancel", nil)
	rec := httptest.NewRecorder()
	newScheduleRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Message != "can only cancel pending messages" {
		t.Errorf("error message = %q", resp.Error.Message)
	}
}

func TestGetScheduleHandlerNotFound(t *testing.T) {
	svc := &mockScheduleService{
		getFn: func(ctx context.Context, id int64) (*models.ScheduledSend, error) {
			return nil, models.ErrNotFoundWithMsg("scheduled send with ID 99 not found")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/schedules/99", nil)
	rec := httptest.NewRecorder()
	newScheduleRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetScheduleHandlerInvalidID(t *testing.T) {
	svc := &mockScheduleService{}

	req := httptest.NewRequest(http.MethodGet, "/schedules/abc", nil)
	rec := httptest.NewRecorder()
	newScheduleRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSendNowHandler(t *testing.T) {
	svc := &mockScheduleService{
		sendNowFn: func(ctx context.Context, id int64) (*service.SendNowResult, error) {
			return &service.SendNowResult{ScheduleID: id, Handle: "h-123", Status: "pending"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/schedules/7/send-now", nil)
	rec := httptest.NewRecorder()
	newScheduleRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var result service.SendNowResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Handle != "h-123" {
		t.Errorf("handle = %q, want h-123", result.Handle)
	}
}

func TestListSchedulesHandlerPassesFilter(t *testing.T) {
	var gotFilter models.ScheduleFilter
	svc := &mockScheduleService{
		listFn: func(ctx context.Context, filter models.ScheduleFilter) (*models.ListResult[*models.ScheduledSend], error) {
			gotFilter = filter
			return &models.ListResult[*models.ScheduledSend]{
				Data:  []*models.ScheduledSend{},
				Skip:  filter.Skip,
				Limit: filter.Limit,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/schedules?status=failed&skip=10&limit=20", nil)
	rec := httptest.NewRecorder()
	newScheduleRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotFilter.Status != models.StatusFailed || gotFilter.Skip != 10 || gotFilter.Limit != 20 {
		t.Errorf("filter = %+v, want status=failed skip=10 limit=20", gotFilter)
	}
}
