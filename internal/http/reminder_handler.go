package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/activity-scheduler/internal/application"
)

type reminderService interface {
	Register(ctx context.Context, params application.RegisterReminderParams) (application.Reminder, error)
	Cancel(ctx context.Context, principal application.Principal, id string) error
}

// ReminderHandler serves reminder registration endpoints.
type ReminderHandler struct {
	service   reminderService
	responder responder
	logger    *slog.Logger
}

// NewReminderHandler constructs a ReminderHandler.
func NewReminderHandler(service reminderService, logger *slog.Logger) *ReminderHandler {
	base := defaultLogger(logger)
	return &ReminderHandler{service: service, responder: newResponder(base), logger: base}
}

type reminderRequest struct {
	OccurrenceID  string `json:"occurrence_id"`
	OffsetMinutes int    `json:"offset_minutes"`
	Enabled       *bool  `json:"enabled,omitempty"`
}

type reminderResponse struct {
	ID            string    `json:"id"`
	OccurrenceID  string    `json:"occurrence_id"`
	OffsetMinutes int       `json:"offset_minutes"`
	FireAt        time.Time `json:"fire_at"`
	Enabled       bool      `json:"enabled"`
}

// Upsert registers (or re-registers) a reminder. The reminder id is derived
// from the occurrence and offset, so repeating the request replaces the
// previous registration.
func (h *ReminderHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	reminder, err := h.service.Register(r.Context(), application.RegisterReminderParams{
		Principal:     principal,
		OccurrenceID:  strings.TrimSpace(req.OccurrenceID),
		OffsetMinutes: req.OffsetMinutes,
		Enabled:       enabled,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "ReminderHandler", "Upsert").InfoContext(r.Context(), "reminder registered",
		"reminder_id", reminder.ID, "occurrence_id", reminder.OccurrenceID)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reminderResponse{
		ID:            reminder.ID,
		OccurrenceID:  reminder.OccurrenceID,
		OffsetMinutes: reminder.OffsetMinutes,
		FireAt:        reminder.FireAt,
		Enabled:       reminder.Enabled,
	})
}

// Delete cancels a reminder registration.
func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reminderID, ok := ReminderIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reminderID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReminderID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.Cancel(r.Context(), principal, reminderID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
