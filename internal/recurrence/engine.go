package recurrence

import (
	"errors"
	"time"
)

// MonthlyPolicy decides what a monthly rule does when the target month is
// shorter than the anchor's day of month.
type MonthlyPolicy int

const (
	// MonthlyClampToLastDay moves the candidate to the month's last day.
	MonthlyClampToLastDay MonthlyPolicy = iota
	// MonthlySkipShortMonths emits no candidate for the short month.
	MonthlySkipShortMonths
)

// expansionCap bounds a single expansion to protect against pathological
// windows (a daily rule bounded only by a far-future end date).
const expansionCap = 5000

// GenerateOptions defines optional bounds for occurrence generation.
type GenerateOptions struct {
	RangeStart *time.Time
	RangeEnd   *time.Time
	// MaxCount caps the number of returned occurrences. Zero means no cap.
	MaxCount int
}

// Occurrence represents a generated instance of a recurrence rule.
type Occurrence struct {
	SeriesID string
	RuleID   string
	Start    time.Time
	End      time.Time
}

// Engine expands recurrence rules into occurrences. Expansion is
// deterministic and side-effect-free: identical inputs always yield
// identical output.
type Engine struct {
	location      *time.Location
	monthlyPolicy MonthlyPolicy
}

// NewEngine constructs an Engine that normalizes results to the provided
// location. If loc is nil, the process-local zone is used. Short months are
// clamped to their last day.
func NewEngine(loc *time.Location) *Engine {
	return NewEngineWithPolicy(loc, MonthlyClampToLastDay)
}

// NewEngineWithPolicy constructs an Engine with an explicit short-month policy.
func NewEngineWithPolicy(loc *time.Location, policy MonthlyPolicy) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{location: loc, monthlyPolicy: policy}
}

// Location reports the location expansion results are normalized to.
// Callers deriving calendar dates from stored instants must convert into
// this location first, or the date can land on the wrong local day.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.Local
	}
	return e.location
}

// ErrInvalidKind indicates the recurrence kind is not supported.
var ErrInvalidKind = errors.New("recurrence: invalid kind")

// ErrInvalidWindow indicates the generation window is unbounded.
var ErrInvalidWindow = errors.New("recurrence: generation window requires an end bound")

// ErrInvalidDuration indicates the base template duration is invalid.
var ErrInvalidDuration = errors.New("recurrence: template end must be after start")

// GenerateOccurrences produces occurrences for the rule within the configured
// window.
//
// baseStart and baseEnd carry both the anchor date (baseStart's calendar
// date) and the time-of-day template applied to every candidate date. The
// engine enforces the following semantics:
//   - All timestamps are normalized to the engine's location.
//   - Every candidate the cadence produces counts against rule.Count, even
//     when RangeStart excludes it from the returned slice; a window that
//     starts mid-series therefore never shifts the series' dates.
//   - Generation stops at the earliest of rule.EndsOn, rule.Count emitted
//     candidates, RangeEnd, or MaxCount returned occurrences.
func (e *Engine) GenerateOccurrences(rule Rule, baseStart, baseEnd time.Time, opts GenerateOptions) ([]Occurrence, error) {
	loc := e.location
	if loc == nil {
		loc = time.Local
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}

	baseStart = baseStart.In(loc)
	baseEnd = baseEnd.In(loc)
	if !baseEnd.After(baseStart) {
		return nil, ErrInvalidDuration
	}

	var rangeStart time.Time
	if opts.RangeStart != nil {
		rangeStart = opts.RangeStart.In(loc)
	}
	var rangeEnd time.Time
	if opts.RangeEnd != nil {
		rangeEnd = opts.RangeEnd.In(loc)
	}

	var endsOn time.Time
	if rule.EndsOn != nil {
		endsOn = dateOnly(rule.EndsOn.In(loc))
	}

	if rule.Kind != KindNone && endsOn.IsZero() && rule.Count == 0 && rangeEnd.IsZero() && opts.MaxCount == 0 {
		return nil, ErrInvalidWindow
	}

	out := make([]Occurrence, 0)
	emit := func(date time.Time) (done bool) {
		start := combineDateTime(date, baseStart, loc)
		end := combineDateTime(date, baseEnd, loc)
		if !rangeEnd.IsZero() && start.After(rangeEnd) {
			return true
		}
		if rangeStart.IsZero() || !start.Before(rangeStart) {
			out = append(out, Occurrence{
				SeriesID: rule.SeriesID,
				RuleID:   rule.ID,
				Start:    start,
				End:      end,
			})
		}
		return opts.MaxCount > 0 && len(out) >= opts.MaxCount
	}

	anchor := dateOnly(baseStart)

	switch rule.Kind {
	case KindNone:
		emit(anchor)
		return out, nil

	case KindDaily, KindWeekly:
		weekdaySet := make(map[time.Weekday]struct{}, len(rule.Weekdays))
		for _, day := range rule.Weekdays {
			weekdaySet[day] = struct{}{}
		}

		emitted := 0
		for date, steps := anchor, 0; steps < expansionCap; date, steps = date.AddDate(0, 0, 1), steps+1 {
			if !endsOn.IsZero() && date.After(endsOn) {
				break
			}
			if rule.Kind == KindWeekly {
				if _, ok := weekdaySet[date.Weekday()]; !ok {
					continue
				}
			}
			emitted++
			if emit(date) {
				break
			}
			if rule.Count > 0 && emitted >= rule.Count {
				break
			}
		}
		return out, nil

	case KindMonthly:
		targetDay := baseStart.Day()
		emitted := 0
		for months := 0; months < expansionCap; months++ {
			first := time.Date(anchor.Year(), anchor.Month()+time.Month(months), 1, 0, 0, 0, 0, loc)
			last := daysIn(first)
			day := targetDay
			if day > last {
				if e.monthlyPolicy == MonthlySkipShortMonths {
					continue
				}
				day = last
			}
			date := time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, loc)
			if !endsOn.IsZero() && date.After(endsOn) {
				break
			}
			emitted++
			if emit(date) {
				break
			}
			if rule.Count > 0 && emitted >= rule.Count {
				break
			}
		}
		return out, nil

	default:
		return nil, ErrInvalidKind
	}
}

// combineDateTime applies the template's time-of-day to the candidate date.
// Recombining per date rather than adding 24h multiples keeps the
// time-of-day stable across DST transitions.
func combineDateTime(dateSource, template time.Time, loc *time.Location) time.Time {
	y, m, d := dateSource.In(loc).Date()
	t := template.In(loc)
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func daysIn(firstOfMonth time.Time) int {
	return time.Date(firstOfMonth.Year(), firstOfMonth.Month()+1, 0, 0, 0, 0, 0, firstOfMonth.Location()).Day()
}
