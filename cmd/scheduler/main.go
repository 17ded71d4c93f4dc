package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/activity-scheduler/internal/application"
	"github.com/example/activity-scheduler/internal/config"
	httptransport "github.com/example/activity-scheduler/internal/http"
	"github.com/example/activity-scheduler/internal/logging"
	"github.com/example/activity-scheduler/internal/persistence"
	"github.com/example/activity-scheduler/internal/persistence/sqlite"
	"github.com/example/activity-scheduler/internal/recurrence"
	"github.com/example/activity-scheduler/internal/watchdog"
)

func main() {
	logger := logging.New(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	location, err := cfg.Location()
	if err != nil {
		logger.Error("failed to resolve timezone", "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := func() string { return randomHex(16) }
	tokenGenerator := func() string { return randomHex(32) }
	now := func() time.Time { return time.Now().In(location) }

	monthlyPolicy := recurrence.MonthlyClampToLastDay
	if cfg.MonthlyPolicy == "skip" {
		monthlyPolicy = recurrence.MonthlySkipShortMonths
	}
	engine := recurrence.NewEngineWithPolicy(location, monthlyPolicy)

	memberRepo := newMemberRepositoryAdapter(storage)
	credentialStore := newCredentialStoreAdapter(storage)
	sessionRepo := newSessionRepositoryAdapter(storage)
	seriesRepo := newSeriesRepositoryAdapter(storage)
	occurrenceRepo := newOccurrenceRepositoryAdapter(storage)
	reminderRepo := newReminderRepositoryAdapter(storage)

	notifier := newLogNotifier(logger)
	var dog *watchdog.Watchdog
	alarms := watchdog.NewTimerAlarms(func(ctx context.Context, id string) {
		dog.HandleAlarm(ctx, id)
	})
	dog = watchdog.New(alarms, notifier,
		watchdog.WithInterval(cfg.WatchdogInterval),
		watchdog.WithLookback(cfg.ReminderLookback),
		watchdog.WithClock(now),
		watchdog.WithLogger(logger),
	)
	defer alarms.Close()

	reminderService := application.NewReminderServiceWithLogger(reminderRepo, occurrenceRepo, dog, now, logger)
	seriesService := application.NewSeriesServiceWithLogger(seriesRepo, occurrenceRepo, reminderService, engine, cfg.MaterializationHorizon, idGenerator, now, logger)
	previewService := application.NewPreviewServiceWithLogger(engine, now, logger)
	memberService := application.NewMemberService(memberRepo, nil, idGenerator, now)
	authService := application.NewAuthServiceWithLogger(credentialStore, sessionRepo, nil, tokenGenerator, now, cfg.SessionTTL, logger)

	if err := reminderService.ResyncAlarms(ctx); err != nil {
		logger.Error("failed to resync reminder alarms", "error", err)
		os.Exit(1)
	}
	if err := dog.Start(ctx); err != nil {
		logger.Error("failed to start reminder watchdog", "error", err)
		os.Exit(1)
	}
	defer dog.Stop()

	jobs := cron.New(cron.WithLocation(location))
	if _, err := jobs.AddFunc("15 2 * * *", func() {
		if err := seriesService.ExtendMaterialization(ctx); err != nil {
			logger.Error("materialization top-up failed", "error", err)
		}
	}); err != nil {
		logger.Error("failed to schedule materialization job", "error", err)
		os.Exit(1)
	}
	if _, err := jobs.AddFunc("45 * * * *", func() {
		if err := authService.SweepExpiredSessions(ctx); err != nil {
			logger.Error("session sweep failed", "error", err)
		}
	}); err != nil {
		logger.Error("failed to schedule session sweep", "error", err)
		os.Exit(1)
	}
	jobs.Start()
	defer jobs.Stop()

	authHandler := httptransport.NewAuthHandler(authService, logger)
	memberHandler := httptransport.NewMemberHandler(memberService, logger)
	seriesHandler := httptransport.NewSeriesHandler(seriesService, previewService, logger)
	occurrenceHandler := httptransport.NewOccurrenceHandler(seriesService, logger)
	reminderHandler := httptransport.NewReminderHandler(reminderService, logger)
	calendarHandler := httptransport.NewCalendarHandler(seriesService, func(series application.Series) (string, error) {
		return series.Rule.RRuleString(series.Start)
	}, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:        authHandler,
		Members:     memberHandler,
		Series:      seriesHandler,
		Occurrences: occurrenceHandler,
		Reminders:   reminderHandler,
		Calendar:    calendarHandler,
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Session issuance is the only unauthenticated operation.
		if strings.EqualFold(r.URL.Path, "/sessions") && r.Method == http.MethodPost {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("activity scheduler API listening", "addr", server.Addr, "timezone", cfg.Timezone)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// logNotifier delivers reminders to the process log. A deployment with a
// push channel would substitute its own Notifier.
type logNotifier struct {
	logger *slog.Logger
}

func newLogNotifier(logger *slog.Logger) *logNotifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(ctx context.Context, reminderID string, fireAt time.Time) {
	n.logger.InfoContext(ctx, "reminder delivered", "reminder_id", reminderID, "fire_at", fireAt)
}

type memberRepositoryAdapter struct {
	repo persistence.MemberRepository
}

func newMemberRepositoryAdapter(repo persistence.MemberRepository) *memberRepositoryAdapter {
	return &memberRepositoryAdapter{repo: repo}
}

func (a *memberRepositoryAdapter) CreateMember(ctx context.Context, credentials application.MemberCredentials) (application.Member, error) {
	if err := a.repo.CreateMember(ctx, toPersistenceMember(credentials)); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return application.Member{}, application.ErrAlreadyExists
		}
		return application.Member{}, err
	}
	stored, err := a.repo.GetMember(ctx, credentials.Member.ID)
	if err != nil {
		return application.Member{}, err
	}
	return toApplicationMember(stored), nil
}

func (a *memberRepositoryAdapter) GetMember(ctx context.Context, id string) (application.Member, error) {
	stored, err := a.repo.GetMember(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.Member{}, application.ErrNotFound
		}
		return application.Member{}, err
	}
	return toApplicationMember(stored), nil
}

func (a *memberRepositoryAdapter) ListMembers(ctx context.Context) ([]application.Member, error) {
	models, err := a.repo.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	members := make([]application.Member, 0, len(models))
	for _, model := range models {
		members = append(members, toApplicationMember(model))
	}
	return members, nil
}

type credentialStoreAdapter struct {
	repo persistence.MemberRepository
}

func newCredentialStoreAdapter(repo persistence.MemberRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetMemberCredentialsByEmail(ctx context.Context, email string) (application.MemberCredentials, error) {
	stored, err := a.repo.GetMemberByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.MemberCredentials{}, application.ErrNotFound
		}
		return application.MemberCredentials{}, err
	}
	return application.MemberCredentials{
		Member:       toApplicationMember(stored),
		PasswordHash: stored.PasswordHash,
		Disabled:     stored.Disabled,
	}, nil
}

func (a *credentialStoreAdapter) GetMember(ctx context.Context, id string) (application.Member, error) {
	stored, err := a.repo.GetMember(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.Member{}, application.ErrNotFound
		}
		return application.Member{}, err
	}
	return toApplicationMember(stored), nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.Session{}, application.ErrNotFound
		}
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.Session{}, application.ErrNotFound
		}
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

type seriesRepositoryAdapter struct {
	repo persistence.SeriesRepository
}

func newSeriesRepositoryAdapter(repo persistence.SeriesRepository) *seriesRepositoryAdapter {
	return &seriesRepositoryAdapter{repo: repo}
}

func (a *seriesRepositoryAdapter) CreateSeries(ctx context.Context, series application.Series, occurrences []application.Occurrence) (application.Series, []application.Occurrence, error) {
	models := make([]persistence.Occurrence, 0, len(occurrences))
	for _, occurrence := range occurrences {
		models = append(models, toPersistenceOccurrence(occurrence))
	}
	if err := a.repo.CreateSeries(ctx, toPersistenceSeries(series), models); err != nil {
		return application.Series{}, nil, err
	}
	return series, occurrences, nil
}

func (a *seriesRepositoryAdapter) GetSeries(ctx context.Context, id string) (application.Series, error) {
	stored, err := a.repo.GetSeries(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.Series{}, application.ErrNotFound
		}
		return application.Series{}, err
	}
	return toApplicationSeries(stored), nil
}

func (a *seriesRepositoryAdapter) ListSeries(ctx context.Context) ([]application.Series, error) {
	models, err := a.repo.ListSeries(ctx)
	if err != nil {
		return nil, err
	}
	all := make([]application.Series, 0, len(models))
	for _, model := range models {
		all = append(all, toApplicationSeries(model))
	}
	return all, nil
}

func (a *seriesRepositoryAdapter) ApplySplit(ctx context.Context, split application.SeriesSplit) error {
	persisted := persistence.SeriesSplit{
		CappedSeries:          toPersistenceSeries(split.CappedSeries),
		DeleteOccurrencesFrom: split.DeleteOccurrencesFrom,
		CancelOccurrencesFrom: split.CancelOccurrencesFrom,
		CancelledAt:           split.CancelledAt,
	}
	if split.NewSeries != nil {
		model := toPersistenceSeries(*split.NewSeries)
		persisted.NewSeries = &model
		persisted.NewOccurrences = make([]persistence.Occurrence, 0, len(split.NewOccurrences))
		for _, occurrence := range split.NewOccurrences {
			persisted.NewOccurrences = append(persisted.NewOccurrences, toPersistenceOccurrence(occurrence))
		}
	}
	return a.repo.ApplySplit(ctx, persisted)
}

type occurrenceRepositoryAdapter struct {
	repo persistence.OccurrenceRepository
}

func newOccurrenceRepositoryAdapter(repo persistence.OccurrenceRepository) *occurrenceRepositoryAdapter {
	return &occurrenceRepositoryAdapter{repo: repo}
}

func (a *occurrenceRepositoryAdapter) CreateOccurrences(ctx context.Context, occurrences []application.Occurrence) error {
	models := make([]persistence.Occurrence, 0, len(occurrences))
	for _, occurrence := range occurrences {
		models = append(models, toPersistenceOccurrence(occurrence))
	}
	return a.repo.CreateOccurrences(ctx, models)
}

func (a *occurrenceRepositoryAdapter) GetOccurrence(ctx context.Context, id string) (application.Occurrence, error) {
	stored, err := a.repo.GetOccurrence(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.Occurrence{}, application.ErrNotFound
		}
		return application.Occurrence{}, err
	}
	return toApplicationOccurrence(stored), nil
}

func (a *occurrenceRepositoryAdapter) UpdateOccurrence(ctx context.Context, occurrence application.Occurrence) (application.Occurrence, error) {
	if err := a.repo.UpdateOccurrence(ctx, toPersistenceOccurrence(occurrence)); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.Occurrence{}, application.ErrNotFound
		}
		return application.Occurrence{}, err
	}
	return a.GetOccurrence(ctx, occurrence.ID)
}

func (a *occurrenceRepositoryAdapter) CancelOccurrence(ctx context.Context, id string, cancelledAt time.Time) error {
	err := a.repo.CancelOccurrence(ctx, id, cancelledAt)
	if errors.Is(err, persistence.ErrNotFound) {
		return application.ErrNotFound
	}
	return err
}

func (a *occurrenceRepositoryAdapter) ListOccurrences(ctx context.Context, filter application.OccurrenceRepositoryFilter) ([]application.Occurrence, error) {
	models, err := a.repo.ListOccurrences(ctx, persistence.OccurrenceFilter{
		SeriesID:         filter.SeriesID,
		StartsAfter:      filter.StartsAfter,
		EndsBefore:       filter.EndsBefore,
		IncludeCancelled: filter.IncludeCancelled,
	})
	if err != nil {
		return nil, err
	}
	occurrences := make([]application.Occurrence, 0, len(models))
	for _, model := range models {
		occurrences = append(occurrences, toApplicationOccurrence(model))
	}
	return occurrences, nil
}

type reminderRepositoryAdapter struct {
	repo persistence.ReminderRepository
}

func newReminderRepositoryAdapter(repo persistence.ReminderRepository) *reminderRepositoryAdapter {
	return &reminderRepositoryAdapter{repo: repo}
}

func (a *reminderRepositoryAdapter) UpsertReminder(ctx context.Context, reminder application.Reminder) (application.Reminder, error) {
	if err := a.repo.UpsertReminder(ctx, persistence.Reminder(reminder)); err != nil {
		return application.Reminder{}, err
	}
	stored, err := a.repo.GetReminder(ctx, reminder.ID)
	if err != nil {
		return application.Reminder{}, err
	}
	return application.Reminder(stored), nil
}

func (a *reminderRepositoryAdapter) GetReminder(ctx context.Context, id string) (application.Reminder, error) {
	stored, err := a.repo.GetReminder(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.Reminder{}, application.ErrNotFound
		}
		return application.Reminder{}, err
	}
	return application.Reminder(stored), nil
}

func (a *reminderRepositoryAdapter) DeleteReminder(ctx context.Context, id string) error {
	err := a.repo.DeleteReminder(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) {
		return application.ErrNotFound
	}
	return err
}

func (a *reminderRepositoryAdapter) ListRemindersForOccurrence(ctx context.Context, occurrenceID string) ([]application.Reminder, error) {
	models, err := a.repo.ListRemindersForOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	reminders := make([]application.Reminder, 0, len(models))
	for _, model := range models {
		reminders = append(reminders, application.Reminder(model))
	}
	return reminders, nil
}

func (a *reminderRepositoryAdapter) ListEnabledReminders(ctx context.Context) ([]application.Reminder, error) {
	models, err := a.repo.ListEnabledReminders(ctx)
	if err != nil {
		return nil, err
	}
	reminders := make([]application.Reminder, 0, len(models))
	for _, model := range models {
		reminders = append(reminders, application.Reminder(model))
	}
	return reminders, nil
}

func (a *reminderRepositoryAdapter) DeleteRemindersForOccurrence(ctx context.Context, occurrenceID string) error {
	return a.repo.DeleteRemindersForOccurrence(ctx, occurrenceID)
}

// --- model converters ---

func toPersistenceMember(credentials application.MemberCredentials) persistence.Member {
	member := credentials.Member
	return persistence.Member{
		ID:           member.ID,
		Email:        member.Email,
		DisplayName:  member.DisplayName,
		PasswordHash: credentials.PasswordHash,
		IsAdmin:      member.IsAdmin,
		Disabled:     credentials.Disabled,
		CreatedAt:    member.CreatedAt,
		UpdatedAt:    member.UpdatedAt,
	}
}

func toApplicationMember(member persistence.Member) application.Member {
	return application.Member{
		ID:          member.ID,
		Email:       member.Email,
		DisplayName: member.DisplayName,
		IsAdmin:     member.IsAdmin,
		CreatedAt:   member.CreatedAt,
		UpdatedAt:   member.UpdatedAt,
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session(session)
}

func toApplicationSession(session persistence.Session) application.Session {
	return application.Session(session)
}

func toPersistenceSeries(series application.Series) persistence.Series {
	return persistence.Series{
		ID:           series.ID,
		Title:        series.Title,
		ActivityType: string(series.ActivityType),
		Modality:     string(series.Modality),
		Location:     optionalString(series.Location),
		JoinInfo:     optionalString(series.JoinInfo),
		Start:        series.Start,
		End:          series.End,
		RuleKind:     series.Rule.Kind.String(),
		RuleWeekdays: append([]time.Weekday(nil), series.Rule.Weekdays...),
		RuleEndsOn:   series.Rule.EndsOn,
		RuleCount:    series.Rule.Count,
		CreatedBy:    series.CreatedBy,
		CreatedAt:    series.CreatedAt,
		UpdatedAt:    series.UpdatedAt,
	}
}

func toApplicationSeries(series persistence.Series) application.Series {
	kind, err := recurrence.ParseKind(series.RuleKind)
	if err != nil {
		kind = recurrence.KindNone
	}
	return application.Series{
		ID:           series.ID,
		Title:        series.Title,
		ActivityType: application.ActivityType(series.ActivityType),
		Modality:     application.Modality(series.Modality),
		Location:     stringValue(series.Location),
		JoinInfo:     stringValue(series.JoinInfo),
		Start:        series.Start,
		End:          series.End,
		Rule: recurrence.Rule{
			SeriesID: series.ID,
			Kind:     kind,
			Weekdays: append([]time.Weekday(nil), series.RuleWeekdays...),
			EndsOn:   series.RuleEndsOn,
			Count:    series.RuleCount,
		},
		CreatedBy: series.CreatedBy,
		CreatedAt: series.CreatedAt,
		UpdatedAt: series.UpdatedAt,
	}
}

func toPersistenceOccurrence(occurrence application.Occurrence) persistence.Occurrence {
	return persistence.Occurrence{
		ID:           occurrence.ID,
		SeriesID:     occurrence.SeriesID,
		Title:        occurrence.Title,
		ActivityType: string(occurrence.ActivityType),
		Modality:     string(occurrence.Modality),
		Location:     optionalString(occurrence.Location),
		JoinInfo:     optionalString(occurrence.JoinInfo),
		Start:        occurrence.Start,
		End:          occurrence.End,
		Cancelled:    occurrence.Cancelled,
		CreatedAt:    occurrence.CreatedAt,
		UpdatedAt:    occurrence.UpdatedAt,
	}
}

func toApplicationOccurrence(occurrence persistence.Occurrence) application.Occurrence {
	return application.Occurrence{
		ID:           occurrence.ID,
		SeriesID:     occurrence.SeriesID,
		Title:        occurrence.Title,
		ActivityType: application.ActivityType(occurrence.ActivityType),
		Modality:     application.Modality(occurrence.Modality),
		Location:     stringValue(occurrence.Location),
		JoinInfo:     stringValue(occurrence.JoinInfo),
		Start:        occurrence.Start,
		End:          occurrence.End,
		Cancelled:    occurrence.Cancelled,
		CreatedAt:    occurrence.CreatedAt,
		UpdatedAt:    occurrence.UpdatedAt,
	}
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
