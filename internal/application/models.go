package application

import (
	"time"

	"github.com/example/activity-scheduler/internal/recurrence"
)

// Principal represents the authenticated member invoking a service method.
type Principal struct {
	MemberID string
	IsAdmin  bool
}

// ActivityType distinguishes the two kinds of published activities.
type ActivityType string

const (
	ActivityPrayer ActivityType = "prayer"
	ActivityEvent  ActivityType = "event"
)

// Modality governs which of location and join info is required.
type Modality string

const (
	ModalityOnline  Modality = "online"
	ModalityOffline Modality = "offline"
)

// SeriesInput captures caller provided series fields. Start and End carry
// the anchor date together with the time-of-day template; the duration they
// imply applies to every generated occurrence.
type SeriesInput struct {
	Title        string
	ActivityType ActivityType
	Modality     Modality
	Location     string
	JoinInfo     string
	Start        time.Time
	End          time.Time
	Rule         recurrence.Rule
}

// Series represents a persisted recurrence template.
type Series struct {
	ID           string
	Title        string
	ActivityType ActivityType
	Modality     Modality
	Location     string
	JoinInfo     string
	Start        time.Time
	End          time.Time
	Rule         recurrence.Rule
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Occurrence represents one concrete, time-boxed instance of a series, or a
// standalone one-off item when SeriesID is nil.
type Occurrence struct {
	ID           string
	SeriesID     *string
	Title        string
	ActivityType ActivityType
	Modality     Modality
	Location     string
	JoinInfo     string
	Start        time.Time
	End          time.Time
	Cancelled    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OccurrenceView pairs an occurrence with its status computed at read time.
type OccurrenceView struct {
	Occurrence
	Status OccurrenceStatus
}

// OccurrenceInput captures caller provided override fields for a single
// occurrence or the new template of a "this and future" edit.
type OccurrenceInput struct {
	Title    string
	Modality Modality
	Location string
	JoinInfo string
	Start    time.Time
	End      time.Time
}

// CreateSeriesParams wraps the data required to create a series.
type CreateSeriesParams struct {
	Principal Principal
	Input     SeriesInput
}

// CreateSeriesResult carries the created series and its first materialized
// occurrence batch.
type CreateSeriesResult struct {
	Series      Series
	Occurrences []Occurrence
}

// EditOccurrenceParams wraps the data required to edit an occurrence, either
// alone or together with all future occurrences of its series.
type EditOccurrenceParams struct {
	Principal     Principal
	OccurrenceID  string
	ApplyToFuture bool
	Input         OccurrenceInput
}

// CancelOccurrenceParams wraps the data required to cancel an occurrence,
// optionally ending the series from that occurrence on.
type CancelOccurrenceParams struct {
	Principal    Principal
	OccurrenceID string
	Future       bool
}

// SeriesEditKind tags the outcome variant of a mutation.
type SeriesEditKind string

const (
	// SeriesEditSingle means only the pivot occurrence row changed.
	SeriesEditSingle SeriesEditKind = "single_occurrence_updated"
	// SeriesEditSplit means the series was capped and a continuation
	// series was created at the pivot date.
	SeriesEditSplit SeriesEditKind = "series_split"
)

// SeriesEditResult communicates a mutation outcome to callers.
type SeriesEditResult struct {
	Kind           SeriesEditKind
	Occurrence     *Occurrence
	SplitAt        time.Time
	NewSeriesID    string
	NewOccurrences []Occurrence
}

// ListPeriod identifies the range preset requested for occurrence listings.
type ListPeriod string

const (
	// ListPeriodNone indicates no preset; caller supplied explicit bounds.
	ListPeriodNone ListPeriod = ""
	// ListPeriodDay constrains results to a single day.
	ListPeriodDay ListPeriod = "day"
	// ListPeriodWeek constrains results to the Monday-start week containing the reference time.
	ListPeriodWeek ListPeriod = "week"
	// ListPeriodMonth constrains results to the month containing the reference time.
	ListPeriodMonth ListPeriod = "month"
)

// ListOccurrencesParams wraps the data required to list occurrences.
type ListOccurrencesParams struct {
	Principal        Principal
	From             *time.Time
	To               *time.Time
	Status           *OccurrenceStatus
	IncludeCancelled bool
	Period           ListPeriod
	PeriodReference  time.Time
}

// Reminder represents a registered notification lead for an occurrence. Its
// id is derived deterministically from the occurrence, offset and activity
// type, so re-registration replaces rather than duplicates.
type Reminder struct {
	ID            string
	OccurrenceID  string
	OffsetMinutes int
	FireAt        time.Time
	Enabled       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RegisterReminderParams wraps the data required to register a reminder.
type RegisterReminderParams struct {
	Principal     Principal
	OccurrenceID  string
	OffsetMinutes int
	Enabled       bool
}

// MemberInput captures caller provided member attributes.
type MemberInput struct {
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// Member represents an organization member account exposed by the services.
type Member struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateMemberParams wraps the data required to create a member.
type CreateMemberParams struct {
	Principal Principal
	Input     MemberInput
}

// MemberCredentials models the authentication attributes persisted for a member.
type MemberCredentials struct {
	Member       Member
	PasswordHash string
	Disabled     bool
}

// Session represents an authenticated session issued to a member.
type Session struct {
	ID        string
	MemberID  string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate a member.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	Member  Member
	Session Session
}
