package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/activity-scheduler/internal/persistence"
	"github.com/example/activity-scheduler/internal/testfixtures"
)

var baseTime = time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC)

func seedMember(t *testing.T, harness *testfixtures.SQLiteHarness, id, email string) persistence.Member {
	t.Helper()
	member := persistence.Member{
		ID:           id,
		Email:        email,
		DisplayName:  "Member " + id,
		PasswordHash: "hashed-password",
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
	if err := harness.Members.CreateMember(context.Background(), member); err != nil {
		t.Fatalf("failed to seed member %s: %v", id, err)
	}
	return member
}

func seedSeries(t *testing.T, harness *testfixtures.SQLiteHarness, id string, occurrences []persistence.Occurrence) persistence.Series {
	t.Helper()
	endsOn := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	series := persistence.Series{
		ID:           id,
		Title:        "Morning Prayer",
		ActivityType: "prayer",
		Modality:     "offline",
		Location:     stringPtr("Main Hall"),
		Start:        baseTime,
		End:          baseTime.Add(time.Hour),
		RuleKind:     "weekly",
		RuleWeekdays: []time.Weekday{time.Monday, time.Wednesday},
		RuleEndsOn:   &endsOn,
		CreatedBy:    "member-1",
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
	if err := harness.Series.CreateSeries(context.Background(), series, occurrences); err != nil {
		t.Fatalf("failed to seed series %s: %v", id, err)
	}
	return series
}

func seriesOccurrence(seriesID, id string, start time.Time) persistence.Occurrence {
	return persistence.Occurrence{
		ID:           id,
		SeriesID:     &seriesID,
		Title:        "Morning Prayer",
		ActivityType: "prayer",
		Modality:     "offline",
		Location:     stringPtr("Main Hall"),
		Start:        start,
		End:          start.Add(time.Hour),
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
}

func stringPtr(s string) *string {
	return &s
}

func TestMemberRepository_CreateAndGet(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	seeded := seedMember(t, harness, "member-1", "member@example.com")

	retrieved, err := harness.Members.GetMember(ctx, "member-1")
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if retrieved.Email != seeded.Email {
		t.Errorf("expected email %s, got %s", seeded.Email, retrieved.Email)
	}
	if !retrieved.CreatedAt.Equal(seeded.CreatedAt) {
		t.Errorf("expected created at %v, got %v", seeded.CreatedAt, retrieved.CreatedAt)
	}
}

func TestMemberRepository_DuplicateEmail(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	seedMember(t, harness, "member-1", "member@example.com")

	err := harness.Members.CreateMember(ctx, persistence.Member{
		ID:           "member-2",
		Email:        "member@example.com",
		DisplayName:  "Duplicate",
		PasswordHash: "hashed-password",
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestMemberRepository_GetMemberByEmail_NormalizesCase(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	seedMember(t, harness, "member-1", "member@example.com")

	retrieved, err := harness.Members.GetMemberByEmail(ctx, " Member@Example.com ")
	if err != nil {
		t.Fatalf("GetMemberByEmail failed: %v", err)
	}
	if retrieved.ID != "member-1" {
		t.Errorf("expected member-1, got %s", retrieved.ID)
	}
}

func TestMemberRepository_UpdateMissing(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)

	err := harness.Members.UpdateMember(context.Background(), persistence.Member{
		ID:           "missing",
		Email:        "missing@example.com",
		DisplayName:  "Missing",
		PasswordHash: "hashed-password",
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	})
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_RevokeAndExpire(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	seedMember(t, harness, "member-1", "member@example.com")

	session := persistence.Session{
		ID:        "session-1",
		MemberID:  "member-1",
		Token:     "token-1",
		ExpiresAt: baseTime.Add(time.Hour),
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	if _, err := harness.Sessions.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	revoked, err := harness.Sessions.RevokeSession(ctx, "token-1", baseTime.Add(time.Minute))
	if err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if revoked.RevokedAt == nil {
		t.Fatal("expected revoked at to be set")
	}

	if _, err := harness.Sessions.RevokeSession(ctx, "token-1", baseTime.Add(2*time.Minute)); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected revoking twice to report ErrNotFound, got %v", err)
	}

	expired := persistence.Session{
		ID:        "session-2",
		MemberID:  "member-1",
		Token:     "token-2",
		ExpiresAt: baseTime.Add(-time.Hour),
		CreatedAt: baseTime.Add(-2 * time.Hour),
		UpdatedAt: baseTime.Add(-2 * time.Hour),
	}
	if _, err := harness.Sessions.CreateSession(ctx, expired); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := harness.Sessions.DeleteExpiredSessions(ctx, baseTime); err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if _, err := harness.Sessions.GetSession(ctx, "token-2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected expired session removed, got %v", err)
	}
	if _, err := harness.Sessions.GetSession(ctx, "token-1"); err != nil {
		t.Fatalf("expected unexpired session kept, got %v", err)
	}
}

func TestSeriesRepository_CreateRoundTrip(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	batch := []persistence.Occurrence{
		seriesOccurrence("series-1", "occurrence-1", baseTime),
		seriesOccurrence("series-1", "occurrence-2", baseTime.AddDate(0, 0, 2)),
	}
	seeded := seedSeries(t, harness, "series-1", batch)

	retrieved, err := harness.Series.GetSeries(ctx, "series-1")
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	if retrieved.Title != seeded.Title {
		t.Errorf("expected title %s, got %s", seeded.Title, retrieved.Title)
	}
	if len(retrieved.RuleWeekdays) != 2 || retrieved.RuleWeekdays[0] != time.Monday || retrieved.RuleWeekdays[1] != time.Wednesday {
		t.Errorf("expected weekdays Monday and Wednesday, got %v", retrieved.RuleWeekdays)
	}
	if retrieved.RuleEndsOn == nil || !retrieved.RuleEndsOn.Equal(*seeded.RuleEndsOn) {
		t.Errorf("expected ends on %v, got %v", seeded.RuleEndsOn, retrieved.RuleEndsOn)
	}
	if retrieved.Location == nil || *retrieved.Location != "Main Hall" {
		t.Errorf("expected location Main Hall, got %v", retrieved.Location)
	}

	occurrences, err := harness.Occurrences.ListOccurrences(ctx, persistence.OccurrenceFilter{})
	if err != nil {
		t.Fatalf("ListOccurrences failed: %v", err)
	}
	if len(occurrences) != 2 {
		t.Fatalf("expected 2 occurrences from the batch, got %d", len(occurrences))
	}
}

func TestSeriesRepository_ApplySplit_ReplacesFutureRows(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	pivot := baseTime.AddDate(0, 0, 7)
	batch := []persistence.Occurrence{
		seriesOccurrence("series-1", "occurrence-1", baseTime),
		seriesOccurrence("series-1", "occurrence-2", pivot),
		seriesOccurrence("series-1", "occurrence-3", pivot.AddDate(0, 0, 2)),
	}
	seeded := seedSeries(t, harness, "series-1", batch)

	capDate := pivot.AddDate(0, 0, -1)
	capped := seeded
	capped.RuleEndsOn = &capDate
	capped.RuleCount = 0
	capped.UpdatedAt = baseTime.Add(time.Minute)

	continuation := seeded
	continuation.ID = "series-2"
	continuation.Title = "Evening Prayer"
	continuation.Start = pivot.Add(9 * time.Hour)
	continuation.End = continuation.Start.Add(time.Hour)

	err := harness.Series.ApplySplit(ctx, persistence.SeriesSplit{
		CappedSeries:          capped,
		DeleteOccurrencesFrom: &pivot,
		NewSeries:             &continuation,
		NewOccurrences: []persistence.Occurrence{
			seriesOccurrence("series-2", "occurrence-4", continuation.Start),
		},
		CancelledAt: baseTime.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("ApplySplit failed: %v", err)
	}

	if _, err := harness.Occurrences.GetOccurrence(ctx, "occurrence-2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected superseded row deleted, got %v", err)
	}
	if _, err := harness.Occurrences.GetOccurrence(ctx, "occurrence-3"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected superseded row deleted, got %v", err)
	}
	if _, err := harness.Occurrences.GetOccurrence(ctx, "occurrence-1"); err != nil {
		t.Fatalf("expected past row kept, got %v", err)
	}
	if _, err := harness.Occurrences.GetOccurrence(ctx, "occurrence-4"); err != nil {
		t.Fatalf("expected continuation row inserted, got %v", err)
	}

	updated, err := harness.Series.GetSeries(ctx, "series-1")
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	if updated.RuleEndsOn == nil || !updated.RuleEndsOn.Equal(capDate) {
		t.Fatalf("expected capped rule at %v, got %v", capDate, updated.RuleEndsOn)
	}
}

func TestSeriesRepository_ApplySplit_CancelKeepsRows(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	pivot := baseTime.AddDate(0, 0, 7)
	batch := []persistence.Occurrence{
		seriesOccurrence("series-1", "occurrence-1", baseTime),
		seriesOccurrence("series-1", "occurrence-2", pivot),
	}
	seeded := seedSeries(t, harness, "series-1", batch)

	capDate := pivot.AddDate(0, 0, -1)
	capped := seeded
	capped.RuleEndsOn = &capDate
	capped.UpdatedAt = baseTime.Add(time.Minute)

	err := harness.Series.ApplySplit(ctx, persistence.SeriesSplit{
		CappedSeries:          capped,
		CancelOccurrencesFrom: &pivot,
		CancelledAt:           baseTime.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("ApplySplit failed: %v", err)
	}

	cancelled, err := harness.Occurrences.GetOccurrence(ctx, "occurrence-2")
	if err != nil {
		t.Fatalf("expected cancelled row kept, got %v", err)
	}
	if !cancelled.Cancelled {
		t.Fatal("expected occurrence cancelled")
	}

	kept, err := harness.Occurrences.GetOccurrence(ctx, "occurrence-1")
	if err != nil {
		t.Fatalf("GetOccurrence failed: %v", err)
	}
	if kept.Cancelled {
		t.Fatal("expected past occurrence untouched")
	}
}

func TestSeriesRepository_ApplySplit_RollsBackOnUnknownSeries(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	pivot := baseTime.AddDate(0, 0, 7)
	continuation := persistence.Series{
		ID:           "series-2",
		Title:        "Evening Prayer",
		ActivityType: "prayer",
		Modality:     "offline",
		Location:     stringPtr("Chapel"),
		Start:        pivot,
		End:          pivot.Add(time.Hour),
		RuleKind:     "weekly",
		RuleWeekdays: []time.Weekday{time.Monday},
		RuleCount:    2,
		CreatedBy:    "member-1",
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}

	err := harness.Series.ApplySplit(ctx, persistence.SeriesSplit{
		CappedSeries: persistence.Series{
			ID:        "missing",
			RuleKind:  "weekly",
			UpdatedAt: baseTime,
		},
		DeleteOccurrencesFrom: &pivot,
		NewSeries:             &continuation,
		NewOccurrences: []persistence.Occurrence{
			seriesOccurrence("series-2", "occurrence-1", pivot),
		},
		CancelledAt: baseTime,
	})
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// The transaction rolled back; the continuation must not exist.
	if _, err := harness.Series.GetSeries(ctx, "series-2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected continuation rolled back, got %v", err)
	}
	if _, err := harness.Occurrences.GetOccurrence(ctx, "occurrence-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected continuation occurrences rolled back, got %v", err)
	}
}

func TestOccurrenceRepository_ListFilters(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	batch := []persistence.Occurrence{
		seriesOccurrence("series-1", "early", baseTime),
		seriesOccurrence("series-1", "middle", baseTime.AddDate(0, 0, 2)),
		seriesOccurrence("series-1", "late", baseTime.AddDate(0, 0, 9)),
	}
	seedSeries(t, harness, "series-1", batch)
	if err := harness.Occurrences.CancelOccurrence(ctx, "middle", baseTime.Add(time.Minute)); err != nil {
		t.Fatalf("CancelOccurrence failed: %v", err)
	}

	from := baseTime.AddDate(0, 0, 1)
	to := baseTime.AddDate(0, 0, 8)
	visible, err := harness.Occurrences.ListOccurrences(ctx, persistence.OccurrenceFilter{
		StartsAfter: &from,
		EndsBefore:  &to,
	})
	if err != nil {
		t.Fatalf("ListOccurrences failed: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("expected cancelled row hidden, got %d rows", len(visible))
	}

	all, err := harness.Occurrences.ListOccurrences(ctx, persistence.OccurrenceFilter{
		StartsAfter:      &from,
		EndsBefore:       &to,
		IncludeCancelled: true,
	})
	if err != nil {
		t.Fatalf("ListOccurrences failed: %v", err)
	}
	if len(all) != 1 || all[0].ID != "middle" {
		t.Fatalf("expected only the middle row, got %+v", all)
	}
}

func TestOccurrenceRepository_CancelIsIdempotent(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	seedSeries(t, harness, "series-1", []persistence.Occurrence{
		seriesOccurrence("series-1", "occurrence-1", baseTime),
	})

	if err := harness.Occurrences.CancelOccurrence(ctx, "occurrence-1", baseTime.Add(time.Minute)); err != nil {
		t.Fatalf("CancelOccurrence failed: %v", err)
	}
	if err := harness.Occurrences.CancelOccurrence(ctx, "occurrence-1", baseTime.Add(2*time.Minute)); err != nil {
		t.Fatalf("expected second cancel to be a no-op, got %v", err)
	}
	if err := harness.Occurrences.CancelOccurrence(ctx, "missing", baseTime); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestReminderRepository_UpsertReplaces(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	seedSeries(t, harness, "series-1", []persistence.Occurrence{
		seriesOccurrence("series-1", "occurrence-1", baseTime),
	})

	reminder := persistence.Reminder{
		ID:            "reminder-1",
		OccurrenceID:  "occurrence-1",
		OffsetMinutes: 15,
		FireAt:        baseTime.Add(-15 * time.Minute),
		Enabled:       true,
		CreatedAt:     baseTime,
		UpdatedAt:     baseTime,
	}
	if err := harness.Reminders.UpsertReminder(ctx, reminder); err != nil {
		t.Fatalf("UpsertReminder failed: %v", err)
	}

	reminder.FireAt = baseTime.Add(-5 * time.Minute)
	reminder.Enabled = false
	if err := harness.Reminders.UpsertReminder(ctx, reminder); err != nil {
		t.Fatalf("UpsertReminder replace failed: %v", err)
	}

	stored, err := harness.Reminders.GetReminder(ctx, "reminder-1")
	if err != nil {
		t.Fatalf("GetReminder failed: %v", err)
	}
	if stored.Enabled {
		t.Fatal("expected replacement to disable the reminder")
	}
	if !stored.FireAt.Equal(reminder.FireAt) {
		t.Fatalf("expected fire at %v, got %v", reminder.FireAt, stored.FireAt)
	}

	reminders, err := harness.Reminders.ListRemindersForOccurrence(ctx, "occurrence-1")
	if err != nil {
		t.Fatalf("ListRemindersForOccurrence failed: %v", err)
	}
	if len(reminders) != 1 {
		t.Fatalf("expected a single reminder after upsert, got %d", len(reminders))
	}
}

func TestReminderRepository_RequiresOccurrence(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)

	err := harness.Reminders.UpsertReminder(context.Background(), persistence.Reminder{
		ID:            "reminder-1",
		OccurrenceID:  "missing",
		OffsetMinutes: 15,
		FireAt:        baseTime,
		Enabled:       true,
		CreatedAt:     baseTime,
		UpdatedAt:     baseTime,
	})
	if !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}
}

func TestReminderRepository_ListEnabledReminders(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	seedSeries(t, harness, "series-1", []persistence.Occurrence{
		seriesOccurrence("series-1", "occurrence-1", baseTime),
	})

	for _, reminder := range []persistence.Reminder{
		{ID: "enabled", OccurrenceID: "occurrence-1", OffsetMinutes: 15, FireAt: baseTime.Add(-15 * time.Minute), Enabled: true, CreatedAt: baseTime, UpdatedAt: baseTime},
		{ID: "disabled", OccurrenceID: "occurrence-1", OffsetMinutes: 5, FireAt: baseTime.Add(-5 * time.Minute), Enabled: false, CreatedAt: baseTime, UpdatedAt: baseTime},
	} {
		if err := harness.Reminders.UpsertReminder(ctx, reminder); err != nil {
			t.Fatalf("UpsertReminder failed: %v", err)
		}
	}

	enabled, err := harness.Reminders.ListEnabledReminders(ctx)
	if err != nil {
		t.Fatalf("ListEnabledReminders failed: %v", err)
	}
	if len(enabled) != 1 || enabled[0].ID != "enabled" {
		t.Fatalf("expected only the enabled reminder, got %+v", enabled)
	}
}

func TestReminderRepository_CascadeOnOccurrenceDelete(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	pivot := baseTime.AddDate(0, 0, 7)
	seeded := seedSeries(t, harness, "series-1", []persistence.Occurrence{
		seriesOccurrence("series-1", "occurrence-1", pivot),
	})

	if err := harness.Reminders.UpsertReminder(ctx, persistence.Reminder{
		ID:            "reminder-1",
		OccurrenceID:  "occurrence-1",
		OffsetMinutes: 15,
		FireAt:        pivot.Add(-15 * time.Minute),
		Enabled:       true,
		CreatedAt:     baseTime,
		UpdatedAt:     baseTime,
	}); err != nil {
		t.Fatalf("UpsertReminder failed: %v", err)
	}

	capped := seeded
	capDate := pivot.AddDate(0, 0, -1)
	capped.RuleEndsOn = &capDate
	capped.UpdatedAt = baseTime.Add(time.Minute)
	if err := harness.Series.ApplySplit(ctx, persistence.SeriesSplit{
		CappedSeries:          capped,
		DeleteOccurrencesFrom: &pivot,
		CancelledAt:           baseTime.Add(time.Minute),
	}); err != nil {
		t.Fatalf("ApplySplit failed: %v", err)
	}

	if _, err := harness.Reminders.GetReminder(ctx, "reminder-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected reminder removed with its occurrence, got %v", err)
	}
}
