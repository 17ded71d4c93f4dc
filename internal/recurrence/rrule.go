package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"
)

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// RRuleString renders the rule as an RFC 5545 RRULE value anchored at
// dtstart, for consumers that sync the series into external calendars.
// One-off rules have no RRULE representation and yield an empty string.
//
// Monthly rules render as plain FREQ=MONTHLY, which follows the skip-short-
// months reading; feeds reconcile clamped occurrences through explicit
// VEVENT overrides rather than through the rule line.
func (r Rule) RRuleString(dtstart time.Time) (string, error) {
	if r.Kind == KindNone {
		return "", nil
	}
	if err := r.Validate(); err != nil {
		return "", err
	}

	opt := rrule.ROption{Dtstart: dtstart}
	switch r.Kind {
	case KindDaily:
		opt.Freq = rrule.DAILY
	case KindWeekly:
		opt.Freq = rrule.WEEKLY
		for _, day := range r.Weekdays {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[day])
		}
	case KindMonthly:
		opt.Freq = rrule.MONTHLY
	default:
		return "", ErrInvalidKind
	}

	if r.EndsOn != nil {
		// Inclusive date bound: extend to the end of that day.
		y, m, d := r.EndsOn.Date()
		opt.Until = time.Date(y, m, d, 23, 59, 59, 0, r.EndsOn.Location())
	}
	if r.Count > 0 {
		opt.Count = r.Count
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return "", err
	}
	return rule.String(), nil
}
