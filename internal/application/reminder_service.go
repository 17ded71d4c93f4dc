package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/activity-scheduler/internal/persistence"
)

// reminderNamespace seeds deterministic reminder ids. Registering the same
// occurrence, offset and activity type always yields the same id, so
// re-registration replaces the previous reminder instead of stacking a
// duplicate next to it.
var reminderNamespace = uuid.MustParse("b1a4a7f6-3d0e-4cb8-9a71-56f20d0be0aa")

// allowedReminderOffsets lists the notification leads callers may register.
var allowedReminderOffsets = map[int]struct{}{5: {}, 15: {}}

// ReminderID derives the deterministic id for a reminder registration.
func ReminderID(occurrenceID string, offsetMinutes int, activityType ActivityType) string {
	seed := fmt.Sprintf("%s:%d:%s", occurrenceID, offsetMinutes, activityType)
	return uuid.NewSHA1(reminderNamespace, []byte(seed)).String()
}

// ReminderRepository captures the reminder persistence interactions.
type ReminderRepository interface {
	UpsertReminder(ctx context.Context, reminder Reminder) (Reminder, error)
	GetReminder(ctx context.Context, id string) (Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
	ListRemindersForOccurrence(ctx context.Context, occurrenceID string) ([]Reminder, error)
	ListEnabledReminders(ctx context.Context) ([]Reminder, error)
	DeleteRemindersForOccurrence(ctx context.Context, occurrenceID string) error
}

// AlarmScheduler is the delivery side of reminders. Implementations track a
// fire time per reminder id and must tolerate Schedule and Cancel being
// called in any order and any number of times.
type AlarmScheduler interface {
	Schedule(id string, fireAt time.Time)
	Cancel(id string)
}

// ReminderService manages reminder registrations and keeps the alarm
// scheduler in step with them. Registration never blocks on delivery.
type ReminderService struct {
	reminders   ReminderRepository
	occurrences OccurrenceRepository
	alarms      AlarmScheduler
	now         func() time.Time
	logger      *slog.Logger
}

// NewReminderService wires dependencies for reminder operations.
func NewReminderService(reminders ReminderRepository, occurrences OccurrenceRepository, alarms AlarmScheduler, now func() time.Time) *ReminderService {
	return NewReminderServiceWithLogger(reminders, occurrences, alarms, now, nil)
}

// NewReminderServiceWithLogger constructs a ReminderService with a specified logger.
func NewReminderServiceWithLogger(reminders ReminderRepository, occurrences OccurrenceRepository, alarms AlarmScheduler, now func() time.Time, logger *slog.Logger) *ReminderService {
	if now == nil {
		now = time.Now
	}
	return &ReminderService{
		reminders:   reminders,
		occurrences: occurrences,
		alarms:      alarms,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ReminderService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReminderService", operation, attrs...)
}

// Register stores a reminder for an occurrence and schedules its alarm. A
// reminder whose fire time already passed is stored disabled and never
// scheduled; registration is not an error path for stale input.
func (s *ReminderService) Register(ctx context.Context, params RegisterReminderParams) (Reminder, error) {
	if s == nil || s.reminders == nil {
		return Reminder{}, fmt.Errorf("reminder repository not configured")
	}
	if params.Principal.MemberID == "" {
		return Reminder{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	if _, ok := allowedReminderOffsets[params.OffsetMinutes]; !ok {
		vErr.add("offset_minutes", "offset must be 5 or 15 minutes")
	}
	if vErr.HasErrors() {
		return Reminder{}, vErr
	}

	occurrence, err := s.occurrences.GetOccurrence(ctx, params.OccurrenceID)
	if err != nil {
		return Reminder{}, mapRepoError(err)
	}

	logger := s.loggerWith(ctx, "Register", "occurrence_id", occurrence.ID, "offset_minutes", params.OffsetMinutes)

	now := s.now()
	fireAt := occurrence.Start.Add(-time.Duration(params.OffsetMinutes) * time.Minute)
	enabled := params.Enabled && fireAt.After(now) && !occurrence.Cancelled

	reminder := Reminder{
		ID:            ReminderID(occurrence.ID, params.OffsetMinutes, occurrence.ActivityType),
		OccurrenceID:  occurrence.ID,
		OffsetMinutes: params.OffsetMinutes,
		FireAt:        fireAt,
		Enabled:       enabled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	saved, err := s.reminders.UpsertReminder(ctx, reminder)
	if err != nil {
		return Reminder{}, mapRepoError(err)
	}

	if s.alarms != nil {
		if saved.Enabled {
			s.alarms.Schedule(saved.ID, saved.FireAt)
		} else {
			s.alarms.Cancel(saved.ID)
		}
	}
	if !enabled && params.Enabled {
		logger.DebugContext(ctx, "reminder stored disabled", "fire_at", fireAt)
	} else {
		logger.InfoContext(ctx, "reminder registered", "reminder_id", saved.ID, "fire_at", saved.FireAt, "enabled", saved.Enabled)
	}
	return saved, nil
}

// Cancel removes a reminder registration and its alarm. Cancelling a
// reminder that does not exist is a no-op.
func (s *ReminderService) Cancel(ctx context.Context, principal Principal, id string) error {
	if s == nil || s.reminders == nil {
		return fmt.Errorf("reminder repository not configured")
	}
	if principal.MemberID == "" {
		return ErrUnauthorized
	}

	err := s.reminders.DeleteReminder(ctx, id)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) && !errors.Is(err, ErrNotFound) {
		return mapRepoError(err)
	}
	if s.alarms != nil {
		s.alarms.Cancel(id)
	}
	s.loggerWith(ctx, "Cancel", "reminder_id", id).InfoContext(ctx, "reminder cancelled")
	return nil
}

// RescheduleForOccurrence recomputes fire times for every reminder of an
// occurrence after its start moved. Fire times now in the past disable the
// reminder instead of firing it late.
func (s *ReminderService) RescheduleForOccurrence(ctx context.Context, occurrence Occurrence) error {
	if s == nil || s.reminders == nil {
		return fmt.Errorf("reminder repository not configured")
	}

	existing, err := s.reminders.ListRemindersForOccurrence(ctx, occurrence.ID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil
		}
		return err
	}

	now := s.now()
	for _, reminder := range existing {
		reminder.FireAt = occurrence.Start.Add(-time.Duration(reminder.OffsetMinutes) * time.Minute)
		reminder.Enabled = reminder.Enabled && reminder.FireAt.After(now) && !occurrence.Cancelled
		reminder.UpdatedAt = now

		saved, err := s.reminders.UpsertReminder(ctx, reminder)
		if err != nil {
			return mapRepoError(err)
		}
		if s.alarms != nil {
			if saved.Enabled {
				s.alarms.Schedule(saved.ID, saved.FireAt)
			} else {
				s.alarms.Cancel(saved.ID)
			}
		}
	}
	return nil
}

// CancelForOccurrence drops every reminder of an occurrence that went away
// or was cancelled.
func (s *ReminderService) CancelForOccurrence(ctx context.Context, occurrenceID string) error {
	if s == nil || s.reminders == nil {
		return fmt.Errorf("reminder repository not configured")
	}

	existing, err := s.reminders.ListRemindersForOccurrence(ctx, occurrenceID)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return err
	}
	for _, reminder := range existing {
		if s.alarms != nil {
			s.alarms.Cancel(reminder.ID)
		}
	}
	if err := s.reminders.DeleteRemindersForOccurrence(ctx, occurrenceID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return mapRepoError(err)
	}
	return nil
}

// ResyncAlarms re-registers every enabled reminder with the alarm scheduler.
// Called once at startup so persisted registrations survive a restart; the
// scheduler decides what to do with fire times that passed while the
// process was down.
func (s *ReminderService) ResyncAlarms(ctx context.Context) error {
	if s == nil || s.reminders == nil {
		return fmt.Errorf("reminder repository not configured")
	}
	if s.alarms == nil {
		return nil
	}

	reminders, err := s.reminders.ListEnabledReminders(ctx)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil
		}
		return err
	}
	for _, reminder := range reminders {
		s.alarms.Schedule(reminder.ID, reminder.FireAt)
	}
	s.loggerWith(ctx, "ResyncAlarms").InfoContext(ctx, "alarms resynced", "reminders", len(reminders))
	return nil
}
