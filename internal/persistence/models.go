package persistence

import "time"

// Member represents an organization member account.
type Member struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an authentication session persisted for a member.
type Session struct {
	ID        string
	MemberID  string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// Series represents a recurrence template stored in persistence. Start and
// End carry both the anchor date and the time-of-day template for generated
// occurrences.
type Series struct {
	ID           string
	Title        string
	ActivityType string
	Modality     string
	Location     *string
	JoinInfo     *string
	Start        time.Time
	End          time.Time
	RuleKind     string
	RuleWeekdays []time.Weekday
	RuleEndsOn   *time.Time
	RuleCount    int
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
	ActivityType string
	Modality     string
	Location     *string
	JoinInfo     *string
	Start        time.Time
	End          time.Time
	Cancelled    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reminder represents a registered notification lead for an occurrence.
type Reminder struct {
	ID            string
	OccurrenceID  string
	OffsetMinutes int
	FireAt        time.Time
	Enabled       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SeriesSplit bundles the row changes of one "this and future" mutation.
// All of it commits atomically or none of it does.
type SeriesSplit struct {
	// CappedSeries is the original series with its end condition tightened
	// so it stops producing occurrences before the pivot date.
	CappedSeries Series
	// DeleteOccurrencesFrom removes the original series' not-yet-started
	// occurrences at or after this instant (edit-future: they are replaced
	// by the continuation series' rows).
	DeleteOccurrencesFrom *time.Time
	// CancelOccurrencesFrom marks the original series' occurrences at or
	// after this instant cancelled (delete-future: rows stay for history).
	CancelOccurrencesFrom *time.Time
	// NewSeries is the continuation series carrying the edited template.
	// Nil for delete-future.
	NewSeries *Series
	// NewOccurrences are the continuation series' materialized occurrences.
	NewOccurrences []Occurrence
	// CancelledAt timestamps cancellation and update columns.
	CancelledAt time.Time
}
