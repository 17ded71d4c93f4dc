package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/activity-scheduler/internal/application"
	"github.com/example/activity-scheduler/internal/recurrence"
)

var (
	memberCounter     uint64
	seriesCounter     uint64
	occurrenceCounter uint64
)

var referenceTime = time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures:
// a Monday morning before the first occurrence of the canonical series.
func ReferenceTime() time.Time {
	return referenceTime
}

// MemberFixture represents a deterministic member record.
type MemberFixture struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
}

// MemberOption configures the generated member fixture.
type MemberOption func(*MemberFixture)

// AsAdmin marks the fixture member as an administrator.
func AsAdmin() MemberOption {
	return func(f *MemberFixture) { f.IsAdmin = true }
}

// NewMemberFixture returns a deterministic member fixture with optional overrides.
func NewMemberFixture(opts ...MemberOption) MemberFixture {
	idx := atomic.AddUint64(&memberCounter, 1)
	id := fmt.Sprintf("member-%03d", idx)
	fixture := MemberFixture{
		ID:          id,
		Email:       fmt.Sprintf("%s@example.com", id),
		DisplayName: fmt.Sprintf("Member %03d", idx),
		CreatedAt:   referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// Principal converts the fixture into an application principal.
func (f MemberFixture) Principal() application.Principal {
	return application.Principal{MemberID: f.ID, IsAdmin: f.IsAdmin}
}

// SeriesInputOption configures the generated series input.
type SeriesInputOption func(*application.SeriesInput)

// WithRule overrides the recurrence rule of the input.
func WithRule(rule recurrence.Rule) SeriesInputOption {
	return func(input *application.SeriesInput) { input.Rule = rule }
}

// WithTimes overrides the anchor start and end of the input.
func WithTimes(start, end time.Time) SeriesInputOption {
	return func(input *application.SeriesInput) {
		input.Start = start
		input.End = end
	}
}

// Online switches the input to an online activity with join info.
func Online(joinInfo string) SeriesInputOption {
	return func(input *application.SeriesInput) {
		input.Modality = application.ModalityOnline
		input.JoinInfo = joinInfo
		input.Location = ""
	}
}

// NewSeriesInput returns the canonical series input: a weekly offline prayer
// on Monday and Wednesday mornings, anchored Monday 2025-01-06 09:00-10:00
// UTC, ending after four occurrences.
func NewSeriesInput(opts ...SeriesInputOption) application.SeriesInput {
	idx := atomic.AddUint64(&seriesCounter, 1)
	input := application.SeriesInput{
		Title:        fmt.Sprintf("Morning Prayer %03d", idx),
		ActivityType: application.ActivityPrayer,
		Modality:     application.ModalityOffline,
		Location:     "Main Hall",
		Start:        time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC),
		End:          time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC),
		Rule: recurrence.Rule{
			Kind:     recurrence.KindWeekly,
			Weekdays: []time.Weekday{time.Monday, time.Wednesday},
			Count:    4,
		},
	}
	for _, opt := range opts {
		opt(&input)
	}
	return input
}

// NewOccurrence returns a deterministic standalone occurrence starting at
// the given instant with a one hour duration.
func NewOccurrence(start time.Time) application.Occurrence {
	idx := atomic.AddUint64(&occurrenceCounter, 1)
	return application.Occurrence{
		ID:           fmt.Sprintf("occurrence-%03d", idx),
		Title:        fmt.Sprintf("Standalone Event %03d", idx),
		ActivityType: application.ActivityEvent,
		Modality:     application.ModalityOffline,
		Location:     "Annex",
		Start:        start,
		End:          start.Add(time.Hour),
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
}
