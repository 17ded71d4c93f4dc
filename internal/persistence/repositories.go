package persistence

import (
	"context"
	"time"
)

// MemberRepository exposes CRUD operations for member accounts.
type MemberRepository interface {
	CreateMember(ctx context.Context, member Member) error
	UpdateMember(ctx context.Context, member Member) error
	GetMember(ctx context.Context, id string) (Member, error)
	GetMemberByEmail(ctx context.Context, email string) (Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// SeriesRepository stores series templates and executes split mutations.
type SeriesRepository interface {
	// CreateSeries persists a series together with its first materialized
	// occurrence batch in one transaction.
	CreateSeries(ctx context.Context, series Series, occurrences []Occurrence) error
	GetSeries(ctx context.Context, id string) (Series, error)
	ListSeries(ctx context.Context) ([]Series, error)
	// ApplySplit executes a "this and future" mutation atomically: capping
	// the original series, removing or cancelling its superseded
	// occurrences, and inserting the continuation series with its batch.
	ApplySplit(ctx context.Context, split SeriesSplit) error
}

// OccurrenceFilter narrows occurrence queries.
type OccurrenceFilter struct {
	SeriesID         *string
	StartsAfter      *time.Time
	EndsBefore       *time.Time
	IncludeCancelled bool
}

// OccurrenceRepository stores concrete occurrences.
type OccurrenceRepository interface {
	CreateOccurrences(ctx context.Context, occurrences []Occurrence) error
	GetOccurrence(ctx context.Context, id string) (Occurrence, error)
	UpdateOccurrence(ctx context.Context, occurrence Occurrence) error
	// CancelOccurrence marks an occurrence cancelled. Cancelling an already
	// cancelled occurrence is a no-op, not an error.
	CancelOccurrence(ctx context.Context, id string, cancelledAt time.Time) error
	ListOccurrences(ctx context.Context, filter OccurrenceFilter) ([]Occurrence, error)
}

// ReminderRepository stores reminder registrations keyed by their
// deterministic id.
type ReminderRepository interface {
	// UpsertReminder inserts or replaces the reminder with the same id, so
	// re-registration never stacks duplicates.
	UpsertReminder(ctx context.Context, reminder Reminder) error
	GetReminder(ctx context.Context, id string) (Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
	ListRemindersForOccurrence(ctx context.Context, occurrenceID string) ([]Reminder, error)
	ListEnabledReminders(ctx context.Context) ([]Reminder, error)
	DeleteRemindersForOccurrence(ctx context.Context, occurrenceID string) error
}
