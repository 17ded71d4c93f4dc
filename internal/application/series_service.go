package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/activity-scheduler/internal/persistence"
	"github.com/example/activity-scheduler/internal/recurrence"
)

// SeriesRepository captures the persistence interactions needed by the service.
type SeriesRepository interface {
	CreateSeries(ctx context.Context, series Series, occurrences []Occurrence) (Series, []Occurrence, error)
	GetSeries(ctx context.Context, id string) (Series, error)
	ListSeries(ctx context.Context) ([]Series, error)
	ApplySplit(ctx context.Context, split SeriesSplit) error
}

// SeriesSplit bundles the row changes of one "this and future" mutation.
// Repositories must commit all of it atomically or none of it.
type SeriesSplit struct {
	CappedSeries          Series
	DeleteOccurrencesFrom *time.Time
	CancelOccurrencesFrom *time.Time
	NewSeries             *Series
	NewOccurrences        []Occurrence
	CancelledAt           time.Time
}

// OccurrenceRepositoryFilter narrows queries issued to the occurrence repository.
type OccurrenceRepositoryFilter struct {
	SeriesID         *string
	StartsAfter      *time.Time
	EndsBefore       *time.Time
	IncludeCancelled bool
}

// OccurrenceRepository captures the occurrence persistence interactions.
type OccurrenceRepository interface {
	CreateOccurrences(ctx context.Context, occurrences []Occurrence) error
	GetOccurrence(ctx context.Context, id string) (Occurrence, error)
	UpdateOccurrence(ctx context.Context, occurrence Occurrence) (Occurrence, error)
	CancelOccurrence(ctx context.Context, id string, cancelledAt time.Time) error
	ListOccurrences(ctx context.Context, filter OccurrenceRepositoryFilter) ([]Occurrence, error)
}

// ReminderRescheduler lets the series service keep reminder registrations in
// step with occurrence mutations. Implementations must not block.
type ReminderRescheduler interface {
	RescheduleForOccurrence(ctx context.Context, occurrence Occurrence) error
	CancelForOccurrence(ctx context.Context, occurrenceID string) error
}

// defaultMaterializationHorizon bounds how far ahead open-ended rules are
// materialized into concrete occurrence rows.
const defaultMaterializationHorizon = 180 * 24 * time.Hour

// SeriesService orchestrates validation, expansion and persistence for
// series and occurrence mutations.
type SeriesService struct {
	series      SeriesRepository
	occurrences OccurrenceRepository
	reminders   ReminderRescheduler
	engine      *recurrence.Engine
	horizon     time.Duration
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSeriesService wires dependencies for series operations.
func NewSeriesService(series SeriesRepository, occurrences OccurrenceRepository, reminders ReminderRescheduler, engine *recurrence.Engine, horizon time.Duration, idGenerator func() string, now func() time.Time) *SeriesService {
	return NewSeriesServiceWithLogger(series, occurrences, reminders, engine, horizon, idGenerator, now, nil)
}

// NewSeriesServiceWithLogger constructs a SeriesService with a specified logger.
func NewSeriesServiceWithLogger(series SeriesRepository, occurrences OccurrenceRepository, reminders ReminderRescheduler, engine *recurrence.Engine, horizon time.Duration, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SeriesService {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if horizon <= 0 {
		horizon = defaultMaterializationHorizon
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SeriesService{
		series:      series,
		occurrences: occurrences,
		reminders:   reminders,
		engine:      engine,
		horizon:     horizon,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *SeriesService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SeriesService", operation, attrs...)
}

// CreateSeries validates the template, materializes the first occurrence
// batch through the expansion engine and persists both atomically. One-off
// templates (rule kind none) produce a standalone occurrence with no series
// row.
func (s *SeriesService) CreateSeries(ctx context.Context, params CreateSeriesParams) (CreateSeriesResult, error) {
	if s == nil {
		return CreateSeriesResult{}, fmt.Errorf("SeriesService is nil")
	}
	if !params.Principal.IsAdmin {
		return CreateSeriesResult{}, ErrUnauthorized
	}

	input := params.Input
	vErr := &ValidationError{}
	validateSeriesCore(input, vErr)
	if vErr.HasErrors() {
		return CreateSeriesResult{}, vErr
	}

	logger := s.loggerWith(ctx, "CreateSeries", "title", input.Title, "rule_kind", input.Rule.Kind.String())
	createdAt := s.now()

	if !input.Rule.IsRecurring() {
		occurrence := Occurrence{
			ID:           s.idGenerator(),
			Title:        strings.TrimSpace(input.Title),
			ActivityType: input.ActivityType,
			Modality:     input.Modality,
			Location:     input.Location,
			JoinInfo:     input.JoinInfo,
			Start:        input.Start,
			End:          input.End,
			CreatedAt:    createdAt,
			UpdatedAt:    createdAt,
		}
		if err := s.occurrences.CreateOccurrences(ctx, []Occurrence{occurrence}); err != nil {
			return CreateSeriesResult{}, mapRepoError(err)
		}
		logger.InfoContext(ctx, "standalone occurrence created", "occurrence_id", occurrence.ID)
		return CreateSeriesResult{Occurrences: []Occurrence{occurrence}}, nil
	}

	series := Series{
		ID:           s.idGenerator(),
		Title:        strings.TrimSpace(input.Title),
		ActivityType: input.ActivityType,
		Modality:     input.Modality,
		Location:     input.Location,
		JoinInfo:     input.JoinInfo,
		Start:        input.Start,
		End:          input.End,
		Rule:         input.Rule,
		CreatedBy:    params.Principal.MemberID,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	series.Rule.ID = s.idGenerator()
	series.Rule.SeriesID = series.ID

	occurrences, err := s.materialize(series, nil)
	if err != nil {
		vErr.add("rule", err.Error())
		return CreateSeriesResult{}, vErr
	}

	persisted, batch, err := s.series.CreateSeries(ctx, series, occurrences)
	if err != nil {
		return CreateSeriesResult{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "series created", "series_id", persisted.ID, "occurrences", len(batch))
	return CreateSeriesResult{Series: persisted, Occurrences: batch}, nil
}

// GetSeries returns a series definition.
func (s *SeriesService) GetSeries(ctx context.Context, principal Principal, id string) (Series, error) {
	if s == nil || s.series == nil {
		return Series{}, fmt.Errorf("series repository not configured")
	}
	if principal.MemberID == "" {
		return Series{}, ErrUnauthorized
	}
	series, err := s.series.GetSeries(ctx, id)
	if err != nil {
		return Series{}, mapRepoError(err)
	}
	return series, nil
}

// ListSeries returns every series definition.
func (s *SeriesService) ListSeries(ctx context.Context, principal Principal) ([]Series, error) {
	if s == nil || s.series == nil {
		return nil, fmt.Errorf("series repository not configured")
	}
	if principal.MemberID == "" {
		return nil, ErrUnauthorized
	}
	all, err := s.series.ListSeries(ctx)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return all, nil
}

// EditOccurrence applies an edit to one occurrence. When ApplyToFuture is
// set it instead splits the series at that occurrence: the original series
// is capped the day before the pivot and a continuation series with the
// edited template takes over from the pivot date, preserving the original
// cadence. Past occurrences are never touched.
func (s *SeriesService) EditOccurrence(ctx context.Context, params EditOccurrenceParams) (SeriesEditResult, error) {
	if s == nil || s.occurrences == nil {
		return SeriesEditResult{}, fmt.Errorf("occurrence repository not configured")
	}
	if !params.Principal.IsAdmin {
		return SeriesEditResult{}, ErrUnauthorized
	}

	occurrence, err := s.occurrences.GetOccurrence(ctx, params.OccurrenceID)
	if err != nil {
		return SeriesEditResult{}, mapRepoError(err)
	}
	if err := s.rejectStarted(occurrence.Start); err != nil {
		return SeriesEditResult{}, err
	}

	input := params.Input
	vErr := &ValidationError{}
	validateOccurrenceCore(input, vErr)
	if params.ApplyToFuture && occurrence.SeriesID == nil {
		vErr.add("apply_to_future", "occurrence is not part of a series")
	}
	if vErr.HasErrors() {
		return SeriesEditResult{}, vErr
	}

	logger := s.loggerWith(ctx, "EditOccurrence", "occurrence_id", params.OccurrenceID, "apply_to_future", params.ApplyToFuture)

	if !params.ApplyToFuture {
		updated := occurrence
		updated.Title = strings.TrimSpace(input.Title)
		updated.Modality = input.Modality
		updated.Location = input.Location
		updated.JoinInfo = input.JoinInfo
		updated.Start = input.Start
		updated.End = input.End
		updated.UpdatedAt = s.now()

		persisted, err := s.occurrences.UpdateOccurrence(ctx, updated)
		if err != nil {
			return SeriesEditResult{}, mapRepoError(err)
		}
		s.rescheduleReminders(ctx, logger, persisted)

		logger.InfoContext(ctx, "occurrence updated")
		return SeriesEditResult{Kind: SeriesEditSingle, Occurrence: &persisted}, nil
	}

	series, err := s.series.GetSeries(ctx, *occurrence.SeriesID)
	if err != nil {
		return SeriesEditResult{}, mapRepoError(err)
	}

	replaced, err := s.futureOccurrences(ctx, series.ID, occurrence.Start)
	if err != nil {
		return SeriesEditResult{}, err
	}

	continuation, batch, err := s.buildContinuation(series, occurrence, input)
	if err != nil {
		return SeriesEditResult{}, err
	}

	split := SeriesSplit{
		CappedSeries:          s.capSeries(series, occurrence.Start),
		DeleteOccurrencesFrom: &occurrence.Start,
		NewSeries:             &continuation,
		NewOccurrences:        batch,
		CancelledAt:           s.now(),
	}
	if err := s.series.ApplySplit(ctx, split); err != nil {
		err = &SplitIntegrityError{SeriesID: series.ID, Err: err}
		logger.ErrorContext(ctx, "series split failed", "error", err, "error_kind", ErrorKind(err))
		return SeriesEditResult{}, err
	}

	for _, old := range replaced {
		s.cancelReminders(ctx, logger, old.ID)
	}

	logger.InfoContext(ctx, "series split applied",
		"series_id", series.ID,
		"new_series_id", continuation.ID,
		"pivot", occurrence.Start,
		"occurrences", len(batch),
	)
	return SeriesEditResult{
		Kind:           SeriesEditSplit,
		SplitAt:        occurrence.Start,
		NewSeriesID:    continuation.ID,
		NewOccurrences: batch,
	}, nil
}

// CancelOccurrence cancels one occurrence. When Future is set it caps the
// series before the pivot and cancels the pivot plus every materialized
// occurrence after it. Rows are kept for historical audit; cancelling twice
// is a no-op.
func (s *SeriesService) CancelOccurrence(ctx context.Context, params CancelOccurrenceParams) error {
	if s == nil || s.occurrences == nil {
		return fmt.Errorf("occurrence repository not configured")
	}
	if !params.Principal.IsAdmin {
		return ErrUnauthorized
	}

	occurrence, err := s.occurrences.GetOccurrence(ctx, params.OccurrenceID)
	if err != nil {
		return mapRepoError(err)
	}
	if err := s.rejectStarted(occurrence.Start); err != nil {
		return err
	}

	logger := s.loggerWith(ctx, "CancelOccurrence", "occurrence_id", params.OccurrenceID, "future", params.Future)

	if !params.Future || occurrence.SeriesID == nil {
		if occurrence.Cancelled {
			return nil
		}
		if err := s.occurrences.CancelOccurrence(ctx, occurrence.ID, s.now()); err != nil {
			return mapRepoError(err)
		}
		s.cancelReminders(ctx, logger, occurrence.ID)
		logger.InfoContext(ctx, "occurrence cancelled")
		return nil
	}

	series, err := s.series.GetSeries(ctx, *occurrence.SeriesID)
	if err != nil {
		return mapRepoError(err)
	}

	affected, err := s.futureOccurrences(ctx, series.ID, occurrence.Start)
	if err != nil {
		return err
	}

	split := SeriesSplit{
		CappedSeries:          s.capSeries(series, occurrence.Start),
		CancelOccurrencesFrom: &occurrence.Start,
		CancelledAt:           s.now(),
	}
	if err := s.series.ApplySplit(ctx, split); err != nil {
		err = &SplitIntegrityError{SeriesID: series.ID, Err: err}
		logger.ErrorContext(ctx, "series cap failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	for _, old := range affected {
		s.cancelReminders(ctx, logger, old.ID)
	}

	logger.InfoContext(ctx, "series ended", "series_id", series.ID, "pivot", occurrence.Start, "cancelled", len(affected))
	return nil
}

// GetOccurrence returns one occurrence with its status computed at read time.
func (s *SeriesService) GetOccurrence(ctx context.Context, principal Principal, id string) (OccurrenceView, error) {
	if s == nil || s.occurrences == nil {
		return OccurrenceView{}, fmt.Errorf("occurrence repository not configured")
	}
	if principal.MemberID == "" {
		return OccurrenceView{}, ErrUnauthorized
	}
	occurrence, err := s.occurrences.GetOccurrence(ctx, id)
	if err != nil {
		return OccurrenceView{}, mapRepoError(err)
	}
	return OccurrenceView{Occurrence: occurrence, Status: StatusAt(occurrence.Start, occurrence.End, s.now())}, nil
}

// ListOccurrences enumerates occurrences for listing UIs. Status is computed
// per read from the current time; no locking is involved. Cancelled rows are
// excluded unless explicitly requested.
func (s *SeriesService) ListOccurrences(ctx context.Context, params ListOccurrencesParams) ([]OccurrenceView, error) {
	if s == nil || s.occurrences == nil {
		return nil, fmt.Errorf("occurrence repository not configured")
	}
	if params.Principal.MemberID == "" {
		return nil, ErrUnauthorized
	}

	filter := OccurrenceRepositoryFilter{
		StartsAfter:      params.From,
		EndsBefore:       params.To,
		IncludeCancelled: params.IncludeCancelled,
	}
	if params.Period != ListPeriodNone {
		start, end := s.periodRange(params.Period, params.PeriodReference)
		if filter.StartsAfter == nil {
			filter.StartsAfter = &start
		}
		if filter.EndsBefore == nil {
			filter.EndsBefore = &end
		}
	}

	occurrences, err := s.occurrences.ListOccurrences(ctx, filter)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	now := s.now()
	views := make([]OccurrenceView, 0, len(occurrences))
	for _, occurrence := range occurrences {
		status := StatusAt(occurrence.Start, occurrence.End, now)
		if params.Status != nil && status != *params.Status {
			continue
		}
		views = append(views, OccurrenceView{Occurrence: occurrence, Status: status})
	}

	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Start.Equal(views[j].Start) {
			return views[i].ID < views[j].ID
		}
		return views[i].Start.Before(views[j].Start)
	})
	return views, nil
}

// ExtendMaterialization tops up the occurrence store for every series whose
// rule still produces candidates beyond the last materialized row, up to the
// rolling horizon. Invoked periodically; the expansion path is the same one
// CreateSeries uses.
func (s *SeriesService) ExtendMaterialization(ctx context.Context) error {
	if s == nil || s.series == nil || s.occurrences == nil {
		return fmt.Errorf("repositories not configured")
	}

	logger := s.loggerWith(ctx, "ExtendMaterialization")

	all, err := s.series.ListSeries(ctx)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil
		}
		return err
	}

	extended := 0
	for _, series := range all {
		existing, err := s.occurrences.ListOccurrences(ctx, OccurrenceRepositoryFilter{
			SeriesID:         &series.ID,
			IncludeCancelled: true,
		})
		if err != nil {
			return err
		}

		var last time.Time
		for _, occurrence := range existing {
			if occurrence.Start.After(last) {
				last = occurrence.Start
			}
		}

		var after *time.Time
		if !last.IsZero() {
			next := last.Add(time.Nanosecond)
			after = &next
		}

		batch, err := s.materialize(series, after)
		if err != nil {
			logger.ErrorContext(ctx, "expansion failed", "series_id", series.ID, "error", err)
			continue
		}
		if len(batch) == 0 {
			continue
		}
		if err := s.occurrences.CreateOccurrences(ctx, batch); err != nil {
			return mapRepoError(err)
		}
		extended += len(batch)
	}

	if extended > 0 {
		logger.InfoContext(ctx, "materialization extended", "occurrences", extended)
	}
	return nil
}

// materialize expands a series into occurrence rows up to the rolling
// horizon. rangeStart, when set, skips candidates already materialized
// without shifting the cadence.
func (s *SeriesService) materialize(series Series, rangeStart *time.Time) ([]Occurrence, error) {
	rangeEnd := s.now().Add(s.horizon)
	if series.Start.After(rangeEnd) {
		rangeEnd = series.Start.Add(s.horizon)
	}

	generated, err := s.engine.GenerateOccurrences(series.Rule, series.Start, series.End, recurrence.GenerateOptions{
		RangeStart: rangeStart,
		RangeEnd:   &rangeEnd,
	})
	if err != nil {
		return nil, err
	}

	createdAt := s.now()
	batch := make([]Occurrence, 0, len(generated))
	for _, span := range generated {
		seriesID := series.ID
		batch = append(batch, Occurrence{
			ID:           s.idGenerator(),
			SeriesID:     &seriesID,
			Title:        series.Title,
			ActivityType: series.ActivityType,
			Modality:     series.Modality,
			Location:     series.Location,
			JoinInfo:     series.JoinInfo,
			Start:        span.Start,
			End:          span.End,
			CreatedAt:    createdAt,
			UpdatedAt:    createdAt,
		})
	}
	return batch, nil
}

// buildContinuation derives the replacement series of a "this and future"
// edit: anchored at the edited pivot, cadence unchanged, end condition
// carried over (count-based rules keep only their unemitted remainder).
func (s *SeriesService) buildContinuation(original Series, pivot Occurrence, input OccurrenceInput) (Series, []Occurrence, error) {
	rule := recurrence.Rule{
		Kind:     original.Rule.Kind,
		Weekdays: append([]time.Weekday(nil), original.Rule.Weekdays...),
		EndsOn:   original.Rule.EndsOn,
	}
	if original.Rule.Count > 0 {
		emitted, err := s.countEmittedBefore(original, pivot.Start)
		if err != nil {
			return Series{}, nil, err
		}
		remaining := original.Rule.Count - emitted
		if remaining < 1 {
			remaining = 1
		}
		rule.Count = remaining
	}

	createdAt := s.now()
	continuation := Series{
		ID:           s.idGenerator(),
		Title:        strings.TrimSpace(input.Title),
		ActivityType: original.ActivityType,
		Modality:     input.Modality,
		Location:     input.Location,
		JoinInfo:     input.JoinInfo,
		Start:        input.Start,
		End:          input.End,
		Rule:         rule,
		CreatedBy:    original.CreatedBy,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	continuation.Rule.ID = s.idGenerator()
	continuation.Rule.SeriesID = continuation.ID

	batch, err := s.materialize(continuation, nil)
	if err != nil {
		return Series{}, nil, err
	}
	return continuation, batch, nil
}

// countEmittedBefore counts how many candidates the original rule produces
// strictly before the pivot instant.
func (s *SeriesService) countEmittedBefore(series Series, pivot time.Time) (int, error) {
	boundary := pivot.Add(-time.Nanosecond)
	generated, err := s.engine.GenerateOccurrences(series.Rule, series.Start, series.End, recurrence.GenerateOptions{
		RangeEnd: &boundary,
	})
	if err != nil {
		return 0, err
	}
	return len(generated), nil
}

// capSeries tightens the series' end condition so it stops producing
// occurrences the day before the pivot. The pivot comes back from the
// repository in UTC, so its calendar date is taken in the engine's
// location; otherwise a zone ahead of UTC caps one local day too early.
func (s *SeriesService) capSeries(series Series, pivot time.Time) Series {
	capDate := dayBefore(pivot.In(s.engine.Location()))
	capped := series
	capped.Rule.Count = 0
	if capped.Rule.EndsOn == nil || capped.Rule.EndsOn.After(capDate) {
		capped.Rule.EndsOn = &capDate
	}
	capped.UpdatedAt = s.now()
	return capped
}

func (s *SeriesService) futureOccurrences(ctx context.Context, seriesID string, from time.Time) ([]Occurrence, error) {
	all, err := s.occurrences.ListOccurrences(ctx, OccurrenceRepositoryFilter{
		SeriesID:         &seriesID,
		IncludeCancelled: true,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	future := make([]Occurrence, 0, len(all))
	for _, occurrence := range all {
		if !occurrence.Start.Before(from) {
			future = append(future, occurrence)
		}
	}
	return future, nil
}

// rejectStarted applies the shared mutation guard: once the minute of the
// occurrence's start has been reached, the occurrence is immutable.
func (s *SeriesService) rejectStarted(start time.Time) error {
	if !s.now().Truncate(time.Minute).Before(start.Truncate(time.Minute)) {
		return ErrAlreadyStarted
	}
	return nil
}

func (s *SeriesService) rescheduleReminders(ctx context.Context, logger *slog.Logger, occurrence Occurrence) {
	if s.reminders == nil {
		return
	}
	if err := s.reminders.RescheduleForOccurrence(ctx, occurrence); err != nil {
		logger.WarnContext(ctx, "reminder reschedule failed", "occurrence_id", occurrence.ID, "error", err)
	}
}

func (s *SeriesService) cancelReminders(ctx context.Context, logger *slog.Logger, occurrenceID string) {
	if s.reminders == nil {
		return
	}
	if err := s.reminders.CancelForOccurrence(ctx, occurrenceID); err != nil {
		logger.WarnContext(ctx, "reminder cancel failed", "occurrence_id", occurrenceID, "error", err)
	}
}

func (s *SeriesService) periodRange(period ListPeriod, reference time.Time) (time.Time, time.Time) {
	loc := s.location()
	switch period {
	case ListPeriodDay:
		start := startOfDay(reference, loc)
		return start, start.AddDate(0, 0, 1)
	case ListPeriodWeek:
		start := startOfWeek(reference, loc)
		return start, start.AddDate(0, 0, 7)
	case ListPeriodMonth:
		start := startOfMonth(reference, loc)
		return start, start.AddDate(0, 1, 0)
	default:
		return time.Time{}, time.Time{}
	}
}

func (s *SeriesService) location() *time.Location {
	if loc := s.now().Location(); loc != nil {
		return loc
	}
	return time.Local
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func startOfWeek(t time.Time, loc *time.Location) time.Time {
	start := startOfDay(t, loc)
	// Monday-start week; in Go, Monday == 1 and Sunday == 0.
	offset := (int(start.Weekday()) + 6) % 7
	return start.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time, loc *time.Location) time.Time {
	start := startOfDay(t, loc)
	return time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, loc)
}

func dayBefore(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, -1)
}

func validateSeriesCore(input SeriesInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if input.ActivityType != ActivityPrayer && input.ActivityType != ActivityEvent {
		vErr.add("activity_type", "activity type must be prayer or event")
	}

	validateModalityFields(input.Modality, input.Location, input.JoinInfo, vErr)
	validateTimeBox(input.Start, input.End, vErr)

	if err := input.Rule.Validate(); err != nil {
		vErr.add("rule", err.Error())
	}
	if input.Rule.EndsOn != nil && !input.Start.IsZero() {
		anchor := startOfDay(input.Start, input.Start.Location())
		if input.Rule.EndsOn.Before(anchor) {
			vErr.add("rule.ends_on", "end date must not be before the first occurrence")
		}
	}
}

func validateOccurrenceCore(input OccurrenceInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	validateModalityFields(input.Modality, input.Location, input.JoinInfo, vErr)
	validateTimeBox(input.Start, input.End, vErr)
}

func validateModalityFields(modality Modality, location, joinInfo string, vErr *ValidationError) {
	switch modality {
	case ModalityOffline:
		if strings.TrimSpace(location) == "" {
			vErr.add("location", "location is required for offline activities")
		}
		if strings.TrimSpace(joinInfo) != "" {
			vErr.add("join_info", "join info must be empty for offline activities")
		}
	case ModalityOnline:
		if strings.TrimSpace(joinInfo) == "" {
			vErr.add("join_info", "join info is required for online activities")
		}
		if strings.TrimSpace(location) != "" {
			vErr.add("location", "location must be empty for online activities")
		}
	default:
		vErr.add("modality", "modality must be online or offline")
	}
}

func validateTimeBox(start, end time.Time, vErr *ValidationError) {
	if start.IsZero() {
		vErr.add("start", "start is required")
	}
	if end.IsZero() {
		vErr.add("end", "end is required")
	}
	if start.IsZero() || end.IsZero() {
		return
	}
	if !start.Before(end) {
		vErr.add("time", "start must be before end")
		return
	}
	sy, sm, sd := start.Date()
	ey, em, ed := end.In(start.Location()).Date()
	if sy != ey || sm != em || sd != ed {
		vErr.add("time", "start and end must fall on the same day")
	}
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("time", "start must be before end")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("reference", "related records are missing")
		return vErr
	}
	return err
}
