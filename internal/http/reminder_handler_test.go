package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/activity-scheduler/internal/application"
)

func TestReminderHandler_UpsertRegistersReminder(t *testing.T) {
	t.Parallel()

	fireAt := time.Date(2025, time.January, 6, 8, 45, 0, 0, time.UTC)
	service := &reminderServiceStub{
		reminder: application.Reminder{
			ID:            "reminder-1",
			OccurrenceID:  "occurrence-1",
			OffsetMinutes: 15,
			FireAt:        fireAt,
			Enabled:       true,
		},
	}
	handler := NewReminderHandler(service, nil)

	body := `{"occurrence_id": " occurrence-1 ", "offset_minutes": 15}`
	req := httptest.NewRequest(http.MethodPut, "/reminders", strings.NewReader(body))
	req = req.WithContext(ContextWithPrincipal(req.Context(), application.Principal{MemberID: "member-1"}))
	rec := httptest.NewRecorder()
	handler.Upsert(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if service.lastRegister.OccurrenceID != "occurrence-1" {
		t.Fatalf("expected trimmed occurrence id, got %q", service.lastRegister.OccurrenceID)
	}
	if !service.lastRegister.Enabled {
		t.Fatal("enabled must default to true")
	}

	var payload reminderResponse
	decodeBody(t, rec, &payload)
	if payload.ID != "reminder-1" || !payload.FireAt.Equal(fireAt) {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestReminderHandler_UpsertForwardsDisabledFlag(t *testing.T) {
	t.Parallel()

	service := &reminderServiceStub{reminder: application.Reminder{ID: "reminder-1"}}
	handler := NewReminderHandler(service, nil)

	body := `{"occurrence_id": "occurrence-1", "offset_minutes": 15, "enabled": false}`
	rec := httptest.NewRecorder()
	handler.Upsert(rec, httptest.NewRequest(http.MethodPut, "/reminders", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if service.lastRegister.Enabled {
		t.Fatal("expected enabled false to be forwarded")
	}
}

func TestReminderHandler_UpsertMapsValidationErrors(t *testing.T) {
	t.Parallel()

	registerErr := &application.ValidationError{FieldErrors: map[string]string{"offset_minutes": "offset must be 5 or 15 minutes"}}
	handler := NewReminderHandler(&reminderServiceStub{registerErr: registerErr}, nil)

	body := `{"occurrence_id": "occurrence-1", "offset_minutes": 10}`
	rec := httptest.NewRecorder()
	handler.Upsert(rec, httptest.NewRequest(http.MethodPut, "/reminders", strings.NewReader(body)))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var payload errorResponse
	decodeBody(t, rec, &payload)
	if _, ok := payload.Errors["offset_minutes"]; !ok {
		t.Fatalf("expected offset_minutes field error, got %v", payload.Errors)
	}
}

func TestReminderHandler_DeleteCancelsReminder(t *testing.T) {
	t.Parallel()

	service := &reminderServiceStub{}
	handler := NewReminderHandler(service, nil)

	req := httptest.NewRequest(http.MethodDelete, "/reminders/reminder-1", nil)
	req = req.WithContext(ContextWithReminderID(req.Context(), "reminder-1"))
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if service.cancelledID != "reminder-1" {
		t.Fatalf("expected reminder-1 cancelled, got %q", service.cancelledID)
	}
}

func TestReminderHandler_DeleteRequiresReminderID(t *testing.T) {
	t.Parallel()

	service := &reminderServiceStub{}
	handler := NewReminderHandler(service, nil)

	rec := httptest.NewRecorder()
	handler.Delete(rec, httptest.NewRequest(http.MethodDelete, "/reminders/", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if service.cancelledID != "" {
		t.Fatalf("service must not be called, cancelled %q", service.cancelledID)
	}
}
