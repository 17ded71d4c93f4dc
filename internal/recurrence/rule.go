package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies how a series repeats.
type Kind int

const (
	// KindNone produces a single occurrence at the anchor date.
	KindNone Kind = iota
	// KindDaily produces one occurrence per calendar day.
	KindDaily
	// KindWeekly produces occurrences on the selected weekdays.
	KindWeekly
	// KindMonthly produces occurrences on the anchor's day of month.
	KindMonthly
)

// String returns the wire representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindDaily:
		return "daily"
	case KindWeekly:
		return "weekly"
	case KindMonthly:
		return "monthly"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts the wire representation back into a Kind.
func ParseKind(value string) (Kind, error) {
	switch value {
	case "none", "":
		return KindNone, nil
	case "daily":
		return KindDaily, nil
	case "weekly":
		return KindWeekly, nil
	case "monthly":
		return KindMonthly, nil
	default:
		return KindNone, fmt.Errorf("recurrence: unknown kind %q", value)
	}
}

// Rule describes how a series repeats. The end condition is either EndsOn
// (inclusive date bound) or Count (stop after N occurrences), never both.
type Rule struct {
	ID       string
	SeriesID string
	Kind     Kind
	Weekdays []time.Weekday
	EndsOn   *time.Time
	Count    int
}

var (
	errWeeklyNeedsWeekdays = errors.New("recurrence: weekly rule requires at least one weekday")
	errNoneWithEnd         = errors.New("recurrence: one-off rule cannot carry an end condition")
	errConflictingEnd      = errors.New("recurrence: end date and count are mutually exclusive")
	errNonPositiveCount    = errors.New("recurrence: count must be positive")
)

// Validate reports structural problems with the rule.
func (r Rule) Validate() error {
	switch r.Kind {
	case KindNone:
		if r.EndsOn != nil || r.Count != 0 {
			return errNoneWithEnd
		}
	case KindWeekly:
		if len(r.Weekdays) == 0 {
			return errWeeklyNeedsWeekdays
		}
	case KindDaily, KindMonthly:
	default:
		return ErrInvalidKind
	}

	if r.EndsOn != nil && r.Count != 0 {
		return errConflictingEnd
	}
	if r.Count < 0 {
		return errNonPositiveCount
	}
	return nil
}

// IsRecurring reports whether the rule produces more than a single anchor
// occurrence.
func (r Rule) IsRecurring() bool {
	return r.Kind != KindNone
}

// wireWeekdays maps the API's 0=Monday..6=Sunday indices onto time.Weekday.
var wireWeekdays = [7]time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

// WeekdaysFromIndices converts wire weekday indices (0=Mon..6=Sun) into
// time.Weekday values, rejecting out-of-range or duplicate entries.
func WeekdaysFromIndices(indices []int) ([]time.Weekday, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	seen := make(map[int]struct{}, len(indices))
	days := make([]time.Weekday, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx > 6 {
			return nil, fmt.Errorf("recurrence: weekday index %d out of range", idx)
		}
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		days = append(days, wireWeekdays[idx])
	}
	return days, nil
}

// IndicesFromWeekdays converts time.Weekday values into wire weekday indices
// (0=Mon..6=Sun), sorted ascending.
func IndicesFromWeekdays(days []time.Weekday) []int {
	if len(days) == 0 {
		return nil
	}
	present := [7]bool{}
	for _, day := range days {
		// Shift Go's Sunday-first numbering to Monday-first.
		present[(int(day)+6)%7] = true
	}
	indices := make([]int, 0, len(days))
	for idx, ok := range present {
		if ok {
			indices = append(indices, idx)
		}
	}
	return indices
}
