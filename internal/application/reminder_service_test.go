package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

type reminderRepoStub struct {
	rows      map[string]Reminder
	upsertErr error
}

func newReminderRepoStub() *reminderRepoStub {
	return &reminderRepoStub{rows: make(map[string]Reminder)}
}

func (s *reminderRepoStub) UpsertReminder(ctx context.Context, reminder Reminder) (Reminder, error) {
	if s.upsertErr != nil {
		return Reminder{}, s.upsertErr
	}
	s.rows[reminder.ID] = reminder
	return reminder, nil
}

func (s *reminderRepoStub) GetReminder(ctx context.Context, id string) (Reminder, error) {
	reminder, ok := s.rows[id]
	if !ok {
		return Reminder{}, ErrNotFound
	}
	return reminder, nil
}

func (s *reminderRepoStub) DeleteReminder(ctx context.Context, id string) error {
	if _, ok := s.rows[id]; !ok {
		return ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *reminderRepoStub) ListRemindersForOccurrence(ctx context.Context, occurrenceID string) ([]Reminder, error) {
	out := make([]Reminder, 0)
	for _, reminder := range s.rows {
		if reminder.OccurrenceID == occurrenceID {
			out = append(out, reminder)
		}
	}
	return out, nil
}

func (s *reminderRepoStub) ListEnabledReminders(ctx context.Context) ([]Reminder, error) {
	out := make([]Reminder, 0)
	for _, reminder := range s.rows {
		if reminder.Enabled {
			out = append(out, reminder)
		}
	}
	return out, nil
}

func (s *reminderRepoStub) DeleteRemindersForOccurrence(ctx context.Context, occurrenceID string) error {
	for id, reminder := range s.rows {
		if reminder.OccurrenceID == occurrenceID {
			delete(s.rows, id)
		}
	}
	return nil
}

type alarmSchedulerStub struct {
	scheduled map[string]time.Time
	cancelled []string
}

func newAlarmSchedulerStub() *alarmSchedulerStub {
	return &alarmSchedulerStub{scheduled: make(map[string]time.Time)}
}

func (s *alarmSchedulerStub) Schedule(id string, fireAt time.Time) {
	s.scheduled[id] = fireAt
}

func (s *alarmSchedulerStub) Cancel(id string) {
	delete(s.scheduled, id)
	s.cancelled = append(s.cancelled, id)
}

func seedFutureOccurrence(occurrences *occurrenceRepoStub, id string, start time.Time) Occurrence {
	occurrence := Occurrence{
		ID:           id,
		Title:        "Standalone",
		ActivityType: ActivityEvent,
		Modality:     ModalityOffline,
		Location:     "Annex",
		Start:        start,
		End:          start.Add(time.Hour),
	}
	occurrences.rows[id] = occurrence
	return occurrence
}

func TestReminderID_IsDeterministic(t *testing.T) {
	t.Parallel()

	first := ReminderID("occurrence-1", 15, ActivityPrayer)
	second := ReminderID("occurrence-1", 15, ActivityPrayer)
	if first != second {
		t.Fatalf("expected stable id, got %s and %s", first, second)
	}

	if first == ReminderID("occurrence-1", 5, ActivityPrayer) {
		t.Fatal("expected different offsets to yield different ids")
	}
	if first == ReminderID("occurrence-1", 15, ActivityEvent) {
		t.Fatal("expected different activity types to yield different ids")
	}
}

func TestReminderService_Register_SchedulesAlarm(t *testing.T) {
	t.Parallel()

	now := mondayMorning(t)
	occurrences := newOccurrenceRepoStub()
	occurrence := seedFutureOccurrence(occurrences, "occurrence-1", now.Add(2*time.Hour))
	repo := newReminderRepoStub()
	alarms := newAlarmSchedulerStub()
	svc := NewReminderService(repo, occurrences, alarms, func() time.Time { return now })

	reminder, err := svc.Register(context.Background(), RegisterReminderParams{
		Principal:     Principal{MemberID: "member-1"},
		OccurrenceID:  occurrence.ID,
		OffsetMinutes: 15,
		Enabled:       true,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	wantFire := occurrence.Start.Add(-15 * time.Minute)
	if !reminder.FireAt.Equal(wantFire) {
		t.Fatalf("expected fire at %v, got %v", wantFire, reminder.FireAt)
	}
	if !reminder.Enabled {
		t.Fatal("expected reminder enabled")
	}
	if fireAt, ok := alarms.scheduled[reminder.ID]; !ok || !fireAt.Equal(wantFire) {
		t.Fatalf("expected alarm scheduled at %v, got %v", wantFire, alarms.scheduled)
	}
}

func TestReminderService_Register_ReplacesInsteadOfStacking(t *testing.T) {
	t.Parallel()

	now := mondayMorning(t)
	occurrences := newOccurrenceRepoStub()
	occurrence := seedFutureOccurrence(occurrences, "occurrence-1", now.Add(2*time.Hour))
	repo := newReminderRepoStub()
	svc := NewReminderService(repo, occurrences, newAlarmSchedulerStub(), func() time.Time { return now })

	params := RegisterReminderParams{
		Principal:     Principal{MemberID: "member-1"},
		OccurrenceID:  occurrence.ID,
		OffsetMinutes: 15,
		Enabled:       true,
	}
	first, err := svc.Register(context.Background(), params)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	second, err := svc.Register(context.Background(), params)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected re-registration to reuse id %s, got %s", first.ID, second.ID)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected a single stored reminder, got %d", len(repo.rows))
	}
}

func TestReminderService_Register_ValidatesOffset(t *testing.T) {
	t.Parallel()

	now := mondayMorning(t)
	occurrences := newOccurrenceRepoStub()
	occurrence := seedFutureOccurrence(occurrences, "occurrence-1", now.Add(2*time.Hour))
	svc := NewReminderService(newReminderRepoStub(), occurrences, nil, func() time.Time { return now })

	_, err := svc.Register(context.Background(), RegisterReminderParams{
		Principal:     Principal{MemberID: "member-1"},
		OccurrenceID:  occurrence.ID,
		OffsetMinutes: 10,
		Enabled:       true,
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["offset_minutes"]; !ok {
		t.Fatalf("expected offset_minutes validation error, got %v", vErr.FieldErrors)
	}
}

func TestReminderService_Register_StoresPastFireTimeDisabled(t *testing.T) {
	t.Parallel()

	now := mondayMorning(t)
	occurrences := newOccurrenceRepoStub()
	// Starts in ten minutes, so the 15 minute lead already passed.
	occurrence := seedFutureOccurrence(occurrences, "occurrence-1", now.Add(10*time.Minute))
	alarms := newAlarmSchedulerStub()
	svc := NewReminderService(newReminderRepoStub(), occurrences, alarms, func() time.Time { return now })

	reminder, err := svc.Register(context.Background(), RegisterReminderParams{
		Principal:     Principal{MemberID: "member-1"},
		OccurrenceID:  occurrence.ID,
		OffsetMinutes: 15,
		Enabled:       true,
	})
	if err != nil {
		t.Fatalf("expected stale lead to be tolerated, got %v", err)
	}
	if reminder.Enabled {
		t.Fatal("expected reminder stored disabled")
	}
	if len(alarms.scheduled) != 0 {
		t.Fatalf("expected no alarm scheduled, got %v", alarms.scheduled)
	}
}

func TestReminderService_Cancel_IsIdempotent(t *testing.T) {
	t.Parallel()

	now := mondayMorning(t)
	alarms := newAlarmSchedulerStub()
	svc := NewReminderService(newReminderRepoStub(), newOccurrenceRepoStub(), alarms, func() time.Time { return now })

	if err := svc.Cancel(context.Background(), Principal{MemberID: "member-1"}, "missing"); err != nil {
		t.Fatalf("expected cancelling an unknown reminder to be a no-op, got %v", err)
	}
	if len(alarms.cancelled) != 1 {
		t.Fatalf("expected alarm cancel forwarded, got %v", alarms.cancelled)
	}
}

func TestReminderService_RescheduleForOccurrence_DisablesStaleLeads(t *testing.T) {
	t.Parallel()

	now := mondayMorning(t)
	occurrences := newOccurrenceRepoStub()
	occurrence := seedFutureOccurrence(occurrences, "occurrence-1", now.Add(2*time.Hour))
	repo := newReminderRepoStub()
	alarms := newAlarmSchedulerStub()
	svc := NewReminderService(repo, occurrences, alarms, func() time.Time { return now })

	registered, err := svc.Register(context.Background(), RegisterReminderParams{
		Principal:     Principal{MemberID: "member-1"},
		OccurrenceID:  occurrence.ID,
		OffsetMinutes: 15,
		Enabled:       true,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	// The occurrence moved to ten minutes from now; the lead has passed.
	occurrence.Start = now.Add(10 * time.Minute)
	occurrence.End = occurrence.Start.Add(time.Hour)
	if err := svc.RescheduleForOccurrence(context.Background(), occurrence); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	stored := repo.rows[registered.ID]
	if stored.Enabled {
		t.Fatal("expected stale reminder disabled")
	}
	if _, ok := alarms.scheduled[registered.ID]; ok {
		t.Fatal("expected alarm removed for stale reminder")
	}
}

func TestReminderService_CancelForOccurrence_DropsAllRegistrations(t *testing.T) {
	t.Parallel()

	now := mondayMorning(t)
	occurrences := newOccurrenceRepoStub()
	occurrence := seedFutureOccurrence(occurrences, "occurrence-1", now.Add(2*time.Hour))
	repo := newReminderRepoStub()
	alarms := newAlarmSchedulerStub()
	svc := NewReminderService(repo, occurrences, alarms, func() time.Time { return now })

	for _, offset := range []int{5, 15} {
		if _, err := svc.Register(context.Background(), RegisterReminderParams{
			Principal:     Principal{MemberID: "member-1"},
			OccurrenceID:  occurrence.ID,
			OffsetMinutes: offset,
			Enabled:       true,
		}); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	}

	if err := svc.CancelForOccurrence(context.Background(), occurrence.ID); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(repo.rows) != 0 {
		t.Fatalf("expected all reminders dropped, got %d", len(repo.rows))
	}
	if len(alarms.scheduled) != 0 {
		t.Fatalf("expected all alarms cancelled, got %v", alarms.scheduled)
	}
}

func TestReminderService_ResyncAlarms_ReschedulesEnabledOnly(t *testing.T) {
	t.Parallel()

	now := mondayMorning(t)
	repo := newReminderRepoStub()
	repo.rows["enabled"] = Reminder{ID: "enabled", OccurrenceID: "occurrence-1", OffsetMinutes: 15, FireAt: now.Add(time.Hour), Enabled: true}
	repo.rows["disabled"] = Reminder{ID: "disabled", OccurrenceID: "occurrence-2", OffsetMinutes: 5, FireAt: now.Add(-time.Hour), Enabled: false}

	alarms := newAlarmSchedulerStub()
	svc := NewReminderService(repo, newOccurrenceRepoStub(), alarms, func() time.Time { return now })

	if err := svc.ResyncAlarms(context.Background()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if _, ok := alarms.scheduled["enabled"]; !ok {
		t.Fatal("expected enabled reminder rescheduled")
	}
	if _, ok := alarms.scheduled["disabled"]; ok {
		t.Fatal("expected disabled reminder skipped")
	}
}
