package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/activity-scheduler/internal/application"
	"github.com/example/activity-scheduler/internal/recurrence"
)

type seriesService interface {
	CreateSeries(ctx context.Context, params application.CreateSeriesParams) (application.CreateSeriesResult, error)
	GetSeries(ctx context.Context, principal application.Principal, id string) (application.Series, error)
}

type previewService interface {
	Preview(ctx context.Context, input application.SeriesInput, limit int) ([]application.Occurrence, error)
}

// SeriesHandler serves series creation, retrieval and preview endpoints.
type SeriesHandler struct {
	service   seriesService
	previews  previewService
	responder responder
	logger    *slog.Logger
}

// NewSeriesHandler constructs a SeriesHandler.
func NewSeriesHandler(service seriesService, previews previewService, logger *slog.Logger) *SeriesHandler {
	base := defaultLogger(logger)
	return &SeriesHandler{service: service, previews: previews, responder: newResponder(base), logger: base}
}

type ruleDTO struct {
	Kind string `json:"kind"`
	// Weekdays are Monday-first indices: 0 is Monday through 6 is Sunday.
	Weekdays []int  `json:"weekdays,omitempty"`
	EndsOn   string `json:"ends_on,omitempty"`
	Count    int    `json:"count,omitempty"`
}

type seriesRequest struct {
	Title        string    `json:"title"`
	ActivityType string    `json:"activity_type"`
	Modality     string    `json:"modality"`
	Location     string    `json:"location,omitempty"`
	JoinInfo     string    `json:"join_info,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Rule         ruleDTO   `json:"rule"`
}

type previewRequest struct {
	seriesRequest
	Limit int `json:"limit,omitempty"`
}

type seriesResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ActivityType string    `json:"activity_type"`
	Modality     string    `json:"modality"`
	Location     string    `json:"location,omitempty"`
	JoinInfo     string    `json:"join_info,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Rule         ruleDTO   `json:"rule"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type occurrenceResponse struct {
	ID           string    `json:"id,omitempty"`
	SeriesID     *string   `json:"series_id,omitempty"`
	Title        string    `json:"title"`
	ActivityType string    `json:"activity_type"`
	Modality     string    `json:"modality"`
	Location     string    `json:"location,omitempty"`
	JoinInfo     string    `json:"join_info,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Status       string    `json:"status,omitempty"`
	Cancelled    bool      `json:"cancelled,omitempty"`
}

type createSeriesResponse struct {
	Series      *seriesResponse      `json:"series,omitempty"`
	Occurrences []occurrenceResponse `json:"occurrences"`
}

// toInput converts the request to a service input. A non-nil ValidationError
// carries field level issues with the recurrence rule.
func (req seriesRequest) toInput() (application.SeriesInput, *application.ValidationError) {
	kind, err := recurrence.ParseKind(strings.TrimSpace(req.Rule.Kind))
	if err != nil {
		return application.SeriesInput{}, &application.ValidationError{FieldErrors: map[string]string{
			"rule.kind": "rule kind must be none, daily, weekly or monthly",
		}}
	}

	weekdays, err := recurrence.WeekdaysFromIndices(req.Rule.Weekdays)
	if err != nil {
		return application.SeriesInput{}, &application.ValidationError{FieldErrors: map[string]string{
			"rule.weekdays": "weekday indices must be between 0 (Monday) and 6 (Sunday)",
		}}
	}

	rule := recurrence.Rule{
		Kind:     kind,
		Weekdays: weekdays,
		Count:    req.Rule.Count,
	}
	if endsOn := strings.TrimSpace(req.Rule.EndsOn); endsOn != "" {
		loc := req.Start.Location()
		if loc == nil {
			loc = time.UTC
		}
		parsed, err := time.ParseInLocation("2006-01-02", endsOn, loc)
		if err != nil {
			return application.SeriesInput{}, &application.ValidationError{FieldErrors: map[string]string{
				"rule.ends_on": "ends_on must be a calendar date in YYYY-MM-DD form",
			}}
		}
		rule.EndsOn = &parsed
	}

	return application.SeriesInput{
		Title:        req.Title,
		ActivityType: application.ActivityType(strings.TrimSpace(req.ActivityType)),
		Modality:     application.Modality(strings.TrimSpace(req.Modality)),
		Location:     req.Location,
		JoinInfo:     req.JoinInfo,
		Start:        req.Start,
		End:          req.End,
		Rule:         rule,
	}, nil
}

func toSeriesResponse(series application.Series) seriesResponse {
	rule := ruleDTO{
		Kind:     series.Rule.Kind.String(),
		Weekdays: recurrence.IndicesFromWeekdays(series.Rule.Weekdays),
		Count:    series.Rule.Count,
	}
	if series.Rule.EndsOn != nil {
		rule.EndsOn = series.Rule.EndsOn.Format("2006-01-02")
	}
	return seriesResponse{
		ID:           series.ID,
		Title:        series.Title,
		ActivityType: string(series.ActivityType),
		Modality:     string(series.Modality),
		Location:     series.Location,
		JoinInfo:     series.JoinInfo,
		Start:        series.Start,
		End:          series.End,
		Rule:         rule,
		CreatedAt:    series.CreatedAt,
		UpdatedAt:    series.UpdatedAt,
	}
}

func toOccurrenceResponse(occurrence application.Occurrence, status string) occurrenceResponse {
	return occurrenceResponse{
		ID:           occurrence.ID,
		SeriesID:     occurrence.SeriesID,
		Title:        occurrence.Title,
		ActivityType: string(occurrence.ActivityType),
		Modality:     string(occurrence.Modality),
		Location:     occurrence.Location,
		JoinInfo:     occurrence.JoinInfo,
		Start:        occurrence.Start,
		End:          occurrence.End,
		Status:       status,
		Cancelled:    occurrence.Cancelled,
	}
}

// Create publishes a new series (or a standalone occurrence for one-off rules).
func (h *SeriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req seriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, verr := req.toInput()
	if verr != nil {
		h.responder.handleServiceError(r.Context(), w, verr)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	result, err := h.service.CreateSeries(r.Context(), application.CreateSeriesParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := createSeriesResponse{
		Occurrences: make([]occurrenceResponse, 0, len(result.Occurrences)),
	}
	if result.Series.ID != "" {
		series := toSeriesResponse(result.Series)
		payload.Series = &series
	}
	for _, occurrence := range result.Occurrences {
		payload.Occurrences = append(payload.Occurrences, toOccurrenceResponse(occurrence, ""))
	}

	handlerLogger(r.Context(), h.logger, "SeriesHandler", "Create").InfoContext(r.Context(), "series created",
		"series_id", result.Series.ID, "occurrences", len(result.Occurrences))
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, payload)
}

// Get returns a series definition.
func (h *SeriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	seriesID, ok := SeriesIDFromContext(r.Context())
	if !ok || strings.TrimSpace(seriesID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSeriesID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	series, err := h.service.GetSeries(r.Context(), principal, seriesID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSeriesResponse(series))
}

// Preview projects the first occurrences a series input would produce
// without persisting anything. Incomplete input yields an empty list.
func (h *SeriesHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.previews == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	occurrences := []application.Occurrence{}
	if input, verr := req.toInput(); verr == nil {
		var err error
		occurrences, err = h.previews.Preview(r.Context(), input, req.Limit)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
	}

	payload := make([]occurrenceResponse, 0, len(occurrences))
	for _, occurrence := range occurrences {
		payload = append(payload, toOccurrenceResponse(occurrence, ""))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}
