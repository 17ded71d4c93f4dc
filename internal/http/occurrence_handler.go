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

type occurrenceService interface {
	GetOccurrence(ctx context.Context, principal application.Principal, id string) (application.OccurrenceView, error)
	ListOccurrences(ctx context.Context, params application.ListOccurrencesParams) ([]application.OccurrenceView, error)
	EditOccurrence(ctx context.Context, params application.EditOccurrenceParams) (application.SeriesEditResult, error)
	CancelOccurrence(ctx context.Context, params application.CancelOccurrenceParams) error
}

// OccurrenceHandler serves occurrence listing and mutation endpoints.
type OccurrenceHandler struct {
	service   occurrenceService
	responder responder
	logger    *slog.Logger
}

// NewOccurrenceHandler constructs an OccurrenceHandler.
func NewOccurrenceHandler(service occurrenceService, logger *slog.Logger) *OccurrenceHandler {
	base := defaultLogger(logger)
	return &OccurrenceHandler{service: service, responder: newResponder(base), logger: base}
}

type occurrenceEditRequest struct {
	Title         string    `json:"title"`
	Modality      string    `json:"modality"`
	Location      string    `json:"location,omitempty"`
	JoinInfo      string    `json:"join_info,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	ApplyToFuture bool      `json:"apply_to_future,omitempty"`
}

type occurrenceEditResponse struct {
	Kind           string               `json:"kind"`
	Occurrence     *occurrenceResponse  `json:"occurrence,omitempty"`
	SplitAt        *time.Time           `json:"split_at,omitempty"`
	NewSeriesID    string               `json:"new_series_id,omitempty"`
	NewOccurrences []occurrenceResponse `json:"new_occurrences,omitempty"`
}

// List enumerates occurrences filtered by the query string. Supported
// parameters: period (day, week, month), reference, from, to, status and
// include_cancelled.
func (h *OccurrenceHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	params := application.ListOccurrencesParams{
		Principal:        principal,
		IncludeCancelled: query.Get("include_cancelled") == "true",
	}

	switch period := query.Get("period"); period {
	case "":
	case "day", "week", "month":
		params.Period = application.ListPeriod(period)
		params.PeriodReference = time.Now()
		if reference := query.Get("reference"); reference != "" {
			parsed, err := time.Parse(time.RFC3339, reference)
			if err != nil {
				h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Message: "reference must be an RFC 3339 timestamp"})
				return
			}
			params.PeriodReference = parsed
		}
	default:
		h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Message: "period must be day, week or month"})
		return
	}

	if from := query.Get("from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Message: "from must be an RFC 3339 timestamp"})
			return
		}
		params.From = &parsed
	}
	if to := query.Get("to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Message: "to must be an RFC 3339 timestamp"})
			return
		}
		params.To = &parsed
	}
	if status := query.Get("status"); status != "" {
		parsed, ok := application.ParseStatus(status)
		if !ok {
			h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Message: "status must be upcoming, ongoing or completed"})
			return
		}
		params.Status = &parsed
	}

	views, err := h.service.ListOccurrences(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]occurrenceResponse, 0, len(views))
	for _, view := range views {
		payload = append(payload, toOccurrenceResponse(view.Occurrence, string(view.Status)))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

// Get returns one occurrence with its current status.
func (h *OccurrenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	occurrenceID, ok := OccurrenceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(occurrenceID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidOccurrenceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	view, err := h.service.GetOccurrence(r.Context(), principal, occurrenceID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toOccurrenceResponse(view.Occurrence, string(view.Status)))
}

// Update edits one occurrence, or this and all future occurrences when
// apply_to_future is set.
func (h *OccurrenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	occurrenceID, ok := OccurrenceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(occurrenceID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidOccurrenceID)
		return
	}

	var req occurrenceEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	result, err := h.service.EditOccurrence(r.Context(), application.EditOccurrenceParams{
		Principal:     principal,
		OccurrenceID:  occurrenceID,
		ApplyToFuture: req.ApplyToFuture,
		Input: application.OccurrenceInput{
			Title:    req.Title,
			Modality: application.Modality(strings.TrimSpace(req.Modality)),
			Location: req.Location,
			JoinInfo: req.JoinInfo,
			Start:    req.Start,
			End:      req.End,
		},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := occurrenceEditResponse{Kind: string(result.Kind)}
	if result.Occurrence != nil {
		occurrence := toOccurrenceResponse(*result.Occurrence, "")
		payload.Occurrence = &occurrence
	}
	if result.Kind == application.SeriesEditSplit {
		splitAt := result.SplitAt
		payload.SplitAt = &splitAt
		payload.NewSeriesID = result.NewSeriesID
		payload.NewOccurrences = make([]occurrenceResponse, 0, len(result.NewOccurrences))
		for _, occurrence := range result.NewOccurrences {
			payload.NewOccurrences = append(payload.NewOccurrences, toOccurrenceResponse(occurrence, ""))
		}
	}

	handlerLogger(r.Context(), h.logger, "OccurrenceHandler", "Update").InfoContext(r.Context(), "occurrence updated",
		"occurrence_id", occurrenceID, "kind", string(result.Kind))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

// Delete cancels one occurrence, or ends the series from it when the future
// query parameter is set.
func (h *OccurrenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	occurrenceID, ok := OccurrenceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(occurrenceID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidOccurrenceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	err := h.service.CancelOccurrence(r.Context(), application.CancelOccurrenceParams{
		Principal:    principal,
		OccurrenceID: occurrenceID,
		Future:       r.URL.Query().Get("future") == "true",
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
