package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/activity-scheduler/internal/application"
)

func editRequestBody() string {
	return `{
		"title": "Evening Prayer",
		"modality": "online",
		"join_info": "https://meet.example.com/prayer",
		"start": "2025-01-13T18:00:00Z",
		"end": "2025-01-13T19:00:00Z"
	}`
}

func TestOccurrenceHandler_ListParsesQuery(t *testing.T) {
	t.Parallel()

	service := &occurrenceServiceStub{}
	handler := NewOccurrenceHandler(service, nil)

	target := "/occurrences?period=week&reference=2025-01-08T12:00:00Z&status=upcoming&include_cancelled=true"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(ContextWithPrincipal(req.Context(), application.Principal{MemberID: "member-1"}))
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	params := service.lastList
	if params.Period != application.ListPeriodWeek {
		t.Fatalf("expected week period, got %q", params.Period)
	}
	if want := time.Date(2025, time.January, 8, 12, 0, 0, 0, time.UTC); !params.PeriodReference.Equal(want) {
		t.Fatalf("expected reference %v, got %v", want, params.PeriodReference)
	}
	if params.Status == nil || *params.Status != application.StatusUpcoming {
		t.Fatalf("expected upcoming status filter, got %v", params.Status)
	}
	if !params.IncludeCancelled {
		t.Fatal("expected include_cancelled to be set")
	}
	if params.Principal.MemberID != "member-1" {
		t.Fatalf("expected member-1 principal, got %+v", params.Principal)
	}
}

func TestOccurrenceHandler_ListParsesExplicitBounds(t *testing.T) {
	t.Parallel()

	service := &occurrenceServiceStub{}
	handler := NewOccurrenceHandler(service, nil)

	target := "/occurrences?from=2025-01-06T00:00:00Z&to=2025-01-13T00:00:00Z"
	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, target, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	params := service.lastList
	if params.From == nil || !params.From.Equal(time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from %v", params.From)
	}
	if params.To == nil || !params.To.Equal(time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected to %v", params.To)
	}
	if params.Period != application.ListPeriodNone {
		t.Fatalf("expected no period preset, got %q", params.Period)
	}
}

func TestOccurrenceHandler_ListRejectsBadQuery(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		target string
	}{
		{"unknown period", "/occurrences?period=fortnight"},
		{"bad reference", "/occurrences?period=day&reference=tomorrow"},
		{"bad from", "/occurrences?from=2025-01-06"},
		{"bad to", "/occurrences?to=soon"},
		{"unknown status", "/occurrences?status=postponed"},
	}
	for _, tc := range cases {
		service := &occurrenceServiceStub{}
		handler := NewOccurrenceHandler(service, nil)
		rec := httptest.NewRecorder()
		handler.List(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rec.Code)
		}
		if service.lastList.Principal.MemberID != "" || service.lastList.Status != nil {
			t.Fatalf("%s: service must not be called", tc.name)
		}
	}
}

func TestOccurrenceHandler_ListRendersStatuses(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC)
	service := &occurrenceServiceStub{
		views: []application.OccurrenceView{
			{
				Occurrence: application.Occurrence{ID: "a", Title: "Past", Start: start, End: start.Add(time.Hour)},
				Status:     application.StatusCompleted,
			},
			{
				Occurrence: application.Occurrence{ID: "b", Title: "Now", Start: start.AddDate(0, 0, 1), End: start.AddDate(0, 0, 1).Add(time.Hour)},
				Status:     application.StatusOngoing,
			},
		},
	}
	handler := NewOccurrenceHandler(service, nil)

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/occurrences", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload []occurrenceResponse
	decodeBody(t, rec, &payload)
	if len(payload) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(payload))
	}
	if payload[0].Status != "completed" || payload[1].Status != "ongoing" {
		t.Fatalf("unexpected statuses %q, %q", payload[0].Status, payload[1].Status)
	}
}

func TestOccurrenceHandler_UpdateSingle(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.January, 13, 18, 0, 0, 0, time.UTC)
	service := &occurrenceServiceStub{
		editResult: application.SeriesEditResult{
			Kind: application.SeriesEditSingle,
			Occurrence: &application.Occurrence{
				ID:    "occurrence-3",
				Title: "Evening Prayer",
				Start: start,
				End:   start.Add(time.Hour),
			},
		},
	}
	handler := NewOccurrenceHandler(service, nil)

	req := httptest.NewRequest(http.MethodPut, "/occurrences/occurrence-3", strings.NewReader(editRequestBody()))
	req = req.WithContext(ContextWithOccurrenceID(req.Context(), "occurrence-3"))
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if service.lastEdit.ApplyToFuture {
		t.Fatal("apply_to_future must default to false")
	}
	if service.lastEdit.Input.Modality != application.ModalityOnline {
		t.Fatalf("unexpected modality %q", service.lastEdit.Input.Modality)
	}

	var payload occurrenceEditResponse
	decodeBody(t, rec, &payload)
	if payload.Kind != string(application.SeriesEditSingle) {
		t.Fatalf("expected single edit kind, got %q", payload.Kind)
	}
	if payload.Occurrence == nil || payload.Occurrence.ID != "occurrence-3" {
		t.Fatalf("expected edited occurrence, got %+v", payload.Occurrence)
	}
	if payload.SplitAt != nil || payload.NewSeriesID != "" || len(payload.NewOccurrences) != 0 {
		t.Fatalf("single edit must not carry split fields: %+v", payload)
	}
}

func TestOccurrenceHandler_UpdateSplitsSeries(t *testing.T) {
	t.Parallel()

	pivot := time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC)
	start := pivot.Add(18 * time.Hour)
	service := &occurrenceServiceStub{
		editResult: application.SeriesEditResult{
			Kind:        application.SeriesEditSplit,
			SplitAt:     pivot,
			NewSeriesID: "series-2",
			NewOccurrences: []application.Occurrence{
				{ID: "occurrence-10", SeriesID: stringPtr("series-2"), Title: "Evening Prayer", Start: start, End: start.Add(time.Hour)},
				{ID: "occurrence-11", SeriesID: stringPtr("series-2"), Title: "Evening Prayer", Start: start.AddDate(0, 0, 2), End: start.AddDate(0, 0, 2).Add(time.Hour)},
			},
		},
	}
	handler := NewOccurrenceHandler(service, nil)

	body := strings.TrimSuffix(strings.TrimSpace(editRequestBody()), "}") + `, "apply_to_future": true}`
	req := httptest.NewRequest(http.MethodPut, "/occurrences/occurrence-3", strings.NewReader(body))
	req = req.WithContext(ContextWithOccurrenceID(req.Context(), "occurrence-3"))
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !service.lastEdit.ApplyToFuture {
		t.Fatal("expected apply_to_future to be forwarded")
	}

	var payload occurrenceEditResponse
	decodeBody(t, rec, &payload)
	if payload.Kind != string(application.SeriesEditSplit) {
		t.Fatalf("expected split kind, got %q", payload.Kind)
	}
	if payload.SplitAt == nil || !payload.SplitAt.Equal(pivot) {
		t.Fatalf("expected split at %v, got %v", pivot, payload.SplitAt)
	}
	if payload.NewSeriesID != "series-2" || len(payload.NewOccurrences) != 2 {
		t.Fatalf("unexpected continuation %+v", payload)
	}
}

func TestOccurrenceHandler_UpdateMapsServiceErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       error
		status    int
		errorCode string
	}{
		{"already started", application.ErrAlreadyStarted, http.StatusConflict, "ALREADY_STARTED"},
		{"not found", application.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", application.ErrUnauthorized, http.StatusForbidden, "AUTH_FORBIDDEN"},
		{"split failure", &application.SplitIntegrityError{SeriesID: "series-1"}, http.StatusInternalServerError, "SPLIT_INTEGRITY"},
	}
	for _, tc := range cases {
		handler := NewOccurrenceHandler(&occurrenceServiceStub{editErr: tc.err}, nil)
		req := httptest.NewRequest(http.MethodPut, "/occurrences/occurrence-3", strings.NewReader(editRequestBody()))
		req = req.WithContext(ContextWithOccurrenceID(req.Context(), "occurrence-3"))
		rec := httptest.NewRecorder()
		handler.Update(rec, req)

		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
		var payload errorResponse
		decodeBody(t, rec, &payload)
		if payload.ErrorCode != tc.errorCode {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.errorCode, payload.ErrorCode)
		}
	}
}

func TestOccurrenceHandler_UpdateRequiresOccurrenceID(t *testing.T) {
	t.Parallel()

	handler := NewOccurrenceHandler(&occurrenceServiceStub{}, nil)

	rec := httptest.NewRecorder()
	handler.Update(rec, httptest.NewRequest(http.MethodPut, "/occurrences/", strings.NewReader(editRequestBody())))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOccurrenceHandler_DeleteCancelsSingle(t *testing.T) {
	t.Parallel()

	service := &occurrenceServiceStub{}
	handler := NewOccurrenceHandler(service, nil)

	req := httptest.NewRequest(http.MethodDelete, "/occurrences/occurrence-3", nil)
	req = req.WithContext(ContextWithOccurrenceID(req.Context(), "occurrence-3"))
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("204 response must not carry a body, got %s", rec.Body.String())
	}
	if service.lastCancel.OccurrenceID != "occurrence-3" || service.lastCancel.Future {
		t.Fatalf("unexpected cancel params %+v", service.lastCancel)
	}
}

func TestOccurrenceHandler_DeleteForwardsFutureFlag(t *testing.T) {
	t.Parallel()

	service := &occurrenceServiceStub{}
	handler := NewOccurrenceHandler(service, nil)

	req := httptest.NewRequest(http.MethodDelete, "/occurrences/occurrence-3?future=true", nil)
	req = req.WithContext(ContextWithOccurrenceID(req.Context(), "occurrence-3"))
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if !service.lastCancel.Future {
		t.Fatal("expected future flag to be forwarded")
	}
}

func TestOccurrenceHandler_DeleteStartedOccurrenceConflicts(t *testing.T) {
	t.Parallel()

	handler := NewOccurrenceHandler(&occurrenceServiceStub{cancelErr: application.ErrAlreadyStarted}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/occurrences/occurrence-3", nil)
	req = req.WithContext(ContextWithOccurrenceID(req.Context(), "occurrence-3"))
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}
