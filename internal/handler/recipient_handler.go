package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mwangaza7/message-scheduler-backend/internal/service"
)

// RecipientHandler handles recipient and group HTTP requests
type RecipientHandler struct {
	recipientService service.RecipientService
	logger           *slog.Logger
}

// NewRecipientHandler creates a new recipient handler
func NewRecipientHandler(recipientService service.RecipientService, logger *slog.Logger) *RecipientHandler {
	return &RecipientHandler{
		recipientService: recipientService,
		logger:           logger,
	}
}

// Routes mounts the recipient and group endpoints on a chi router.
// Group routes come first so /groups is never parsed as a recipient id.
func (h *RecipientHandler) Routes(r chi.Router) {
	r.Route("/groups", func(r chi.Router) {
		r.Post("/", h.CreateGroup)
		r.Get("/", h.ListGroups)
		r.Get("/{id}", h.GetGroup)
		r.Put("/{id}/recipients", h.ReplaceGroupMembers)
		r.Delete("/{id}", h.DeleteGroup)
	})

	r.Post("/", h.CreateRecipient)
	r.Get("/", h.ListRecipients)
	r.Get("/{id}", h.GetRecipient)
	r.Delete("/{id}", h.DeleteRecipient)
}

// CreateRecipient handles POST /recipients
func (h *RecipientHandler) CreateRecipient(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRecipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	recipient, err := h.recipientService.CreateRecipient(r.Context(), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondCreated(w, recipient)
}

// ListRecipients handles GET /recipients
func (h *RecipientHandler) ListRecipients(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.recipientService.ListRecipients(r.Context(), skip, limit)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// GetRecipient handles GET /recipients/{id}
func (h *RecipientHandler) GetRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	recipient, err := h.recipientService.GetRecipient(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, recipient)
}

// DeleteRecipient handles DELETE /recipients/{id}
func (h *RecipientHandler) DeleteRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.recipientService.DeleteRecipient(r.Context(), id); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, MessageResponse{Message: "Recipient deleted successfully"})
}

// CreateGroup handles POST /recipients/groups
func (h *RecipientHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req service.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	group, err := h.recipientService.CreateGroup(r.Context(), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondCreated(w, group)
}

// ListGroups handles GET /recipients/groups
func (h *RecipientHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.recipientService.ListGroups(r.Context(), skip, limit)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// GetGroup handles GET /recipients/groups/{id}
func (h *RecipientHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	group, err := h.recipientService.GetGroup(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, group)
}

// ReplaceGroupMembers handles PUT /recipients/groups/{id}/recipients
func (h *RecipientHandler) ReplaceGroupMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var recipientIDs []int64
	if err := json.NewDecoder(r.Body).Decode(&recipientIDs); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	group, err := h.recipientService.ReplaceGroupMembers(r.Context(), id, recipientIDs)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, group)
}

// DeleteGroup handles DELETE /recipients/groups/{id}
func (h *RecipientHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.recipientService.DeleteGroup(r.Context(), id); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, MessageResponse{Message: "Group deleted successfully"})
}
