package http

import (
	"context"
	"log/slog"
	"net/http"

	ics "github.com/arran4/golang-ical"

	"github.com/example/activity-scheduler/internal/application"
	"github.com/example/activity-scheduler/internal/recurrence"
)

type calendarFeedService interface {
	ListSeries(ctx context.Context, principal application.Principal) ([]application.Series, error)
	ListOccurrences(ctx context.Context, params application.ListOccurrencesParams) ([]application.OccurrenceView, error)
}

type recurrenceExporter func(series application.Series) (string, error)

// CalendarHandler serves the iCalendar feed of published activities.
type CalendarHandler struct {
	service   calendarFeedService
	export    recurrenceExporter
	responder responder
	logger    *slog.Logger
}

// NewCalendarHandler constructs a CalendarHandler. export maps a series to
// its RRULE string; series it cannot express are emitted without one.
func NewCalendarHandler(service calendarFeedService, export recurrenceExporter, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	return &CalendarHandler{service: service, export: export, responder: newResponder(base), logger: base}
}

// Feed renders every series as a recurring VEVENT (cancelled occurrences
// become EXDATEs) and every standalone occurrence as a plain VEVENT.
// Monthly occurrences clamped to a shorter month get their own VEVENT,
// since the plain FREQ=MONTHLY line skips those months entirely.
// Occurrences edited away from their series template are covered by the
// listing API, not the feed.
func (h *CalendarHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)

	series, err := h.service.ListSeries(ctx, principal)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	occurrences, err := h.service.ListOccurrences(ctx, application.ListOccurrencesParams{
		Principal:        principal,
		IncludeCancelled: true,
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	cancelledBySeries := make(map[string][]application.Occurrence)
	for _, view := range occurrences {
		if view.Cancelled && view.SeriesID != nil {
			cancelledBySeries[*view.SeriesID] = append(cancelledBySeries[*view.SeriesID], view.Occurrence)
		}
	}

	seriesByID := make(map[string]application.Series, len(series))
	for _, item := range series {
		seriesByID[item.ID] = item
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Activity Scheduler//Calendar Feed//EN")

	logger := handlerLogger(ctx, h.logger, "CalendarHandler", "Feed")

	for _, item := range series {
		event := cal.AddEvent(item.ID + "@activity-scheduler")
		event.SetSummary(item.Title)
		event.SetStartAt(item.Start)
		event.SetEndAt(item.End)
		if item.Location != "" {
			event.SetLocation(item.Location)
		}
		if item.JoinInfo != "" {
			event.SetDescription(item.JoinInfo)
		}

		if h.export != nil {
			rule, err := h.export(item)
			if err != nil {
				logger.WarnContext(ctx, "recurrence rule not exportable", "series_id", item.ID, "error", err)
			} else if rule != "" {
				event.AddRrule(rule)
			}
		}
		for _, cancelled := range cancelledBySeries[item.ID] {
			event.AddExdate(cancelled.Start.UTC().Format("20060102T150405Z"))
		}
	}

	for _, view := range occurrences {
		if view.Cancelled {
			continue
		}
		if view.SeriesID != nil {
			parent, ok := seriesByID[*view.SeriesID]
			if !ok || !clampedMonthly(parent, view.Occurrence) {
				continue
			}
		}
		event := cal.AddEvent(view.ID + "@activity-scheduler")
		event.SetSummary(view.Title)
		event.SetStartAt(view.Start)
		event.SetEndAt(view.End)
		if view.Location != "" {
			event.SetLocation(view.Location)
		}
		if view.JoinInfo != "" {
			event.SetDescription(view.JoinInfo)
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="activities.ics"`)
	if _, err := w.Write([]byte(cal.Serialize())); err != nil {
		logger.ErrorContext(ctx, "failed to write calendar feed", "error", err)
	}
}

// clampedMonthly reports whether the occurrence landed on a different day of
// the month than its series anchor, which happens when a monthly rule is
// clamped at the end of a shorter month. Such instances are invisible to the
// exported FREQ=MONTHLY line and need their own VEVENT.
func clampedMonthly(parent application.Series, occurrence application.Occurrence) bool {
	if parent.Rule.Kind != recurrence.KindMonthly {
		return false
	}
	return occurrence.Start.In(parent.Start.Location()).Day() != parent.Start.Day()
}
