package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mwangaza7/message-scheduler-backend/internal/models"
	"github.com/mwangaza7/message-scheduler-backend/internal/service"
)

// ScheduleHandler handles scheduled send HTTP requests
type ScheduleHandler struct {
	scheduleService service.ScheduleService
	logger          *slog.Logger
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(scheduleService service.ScheduleService, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService: scheduleService,
		logger:          logger,
	}
}

// Routes mounts the schedule endpoints on a chi router
func (h *ScheduleHandler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/cancel", h.Cancel)
	r.Post("/{id}/send-now", h.SendNow)
	r.Put("/{id}/archive", h.Archive)
	r.Delete("/{id}", h.Delete)
}

// Create handles POST /schedules
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	schedule, err := h.scheduleService.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondCreated(w, schedule)
}

// List handles GET /schedules?status=&skip=&limit=
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	skip, _ := strconv.Atoi(query.Get("skip"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	filter := models.ScheduleFilter{
		Status: models.Status(query.Get("status")),
		Skip:   skip,
		Limit:  limit,
	}

	result, err := h.scheduleService.List(r.Context(), filter)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// Get handles GET /schedules/{id}
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	schedule, err := h.scheduleService.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, schedule)
}

// Cancel handles PUT /schedules/{id}/cancel
func (h *ScheduleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	if err := h.scheduleService.Cancel(r.Context(), id); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, MessageResponse{Message: "Scheduled message cancelled successfully"})
}

// SendNow handles POST /schedules/{id}/send-now
func (h *ScheduleHandler) SendNow(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	result, err := h.scheduleService.SendNow(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// Archive handles PUT /schedules/{id}/archive
func (h *ScheduleHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	if err := h.scheduleService.Archive(r.Context(), id); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, MessageResponse{Message: "Scheduled message archived successfully"})
}

// Delete handles DELETE /schedules/{id}
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	if err := h.scheduleService.Delete(r.Context(), id); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, MessageResponse{Message: "Scheduled message deleted successfully"})
}

func (h *ScheduleHandler) scheduleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid schedule ID")
		return 0, false
	}
	return id, true
}
