package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/activity-scheduler/internal/persistence"
)

// ReminderRepository implements persistence.ReminderRepository using SQLite.
type ReminderRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewReminderRepository creates a new SQLite reminder repository.
func NewReminderRepository(pool *ConnectionPool) *ReminderRepository {
	return &ReminderRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const reminderColumns = "id, occurrence_id, offset_minutes, fire_at, enabled, created_at, updated_at"

// UpsertReminder inserts or replaces the reminder with the same id, so
// re-registration never stacks duplicates.
func (r *ReminderRepository) UpsertReminder(ctx context.Context, reminder persistence.Reminder) error {
	if reminder.ID == "" || reminder.OccurrenceID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO reminders (` + reminderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			offset_minutes = excluded.offset_minutes,
			fire_at = excluded.fire_at,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`
	_, err := r.helper.Exec(ctx, query,
		reminder.ID,
		reminder.OccurrenceID,
		reminder.OffsetMinutes,
		encodeTime(reminder.FireAt),
		reminder.Enabled,
		encodeTime(reminder.CreatedAt),
		encodeTime(reminder.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetReminder retrieves a reminder by id.
func (r *ReminderRepository) GetReminder(ctx context.Context, id string) (persistence.Reminder, error) {
	if id == "" {
		return persistence.Reminder{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, "SELECT "+reminderColumns+" FROM reminders WHERE id = ?", id)
	return scanReminder(row, r.mapper)
}

// DeleteReminder removes a reminder by id.
func (r *ReminderRepository) DeleteReminder(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, "DELETE FROM reminders WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListRemindersForOccurrence returns all reminders of an occurrence.
func (r *ReminderRepository) ListRemindersForOccurrence(ctx context.Context, occurrenceID string) ([]persistence.Reminder, error) {
	rows, err := r.helper.Query(ctx,
		"SELECT "+reminderColumns+" FROM reminders WHERE occurrence_id = ? ORDER BY fire_at, id",
		occurrenceID,
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()
	return collectReminders(rows, r.mapper)
}

// ListEnabledReminders returns every enabled reminder ordered by fire time.
func (r *ReminderRepository) ListEnabledReminders(ctx context.Context) ([]persistence.Reminder, error) {
	rows, err := r.helper.Query(ctx,
		"SELECT "+reminderColumns+" FROM reminders WHERE enabled = 1 ORDER BY fire_at, id",
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()
	return collectReminders(rows, r.mapper)
}

// DeleteRemindersForOccurrence removes every reminder of an occurrence.
func (r *ReminderRepository) DeleteRemindersForOccurrence(ctx context.Context, occurrenceID string) error {
	_, err := r.helper.Exec(ctx, "DELETE FROM reminders WHERE occurrence_id = ?", occurrenceID)
	return r.mapper.MapError(err)
}

func collectReminders(rows *sql.Rows, mapper *ErrorMapper) ([]persistence.Reminder, error) {
	var reminders []persistence.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows, mapper)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}

func scanReminder(row rowScanner, mapper *ErrorMapper) (persistence.Reminder, error) {
	var reminder persistence.Reminder
	var fireAt, createdAt, updatedAt string
	err := row.Scan(
		&reminder.ID,
		&reminder.OccurrenceID,
		&reminder.OffsetMinutes,
		&fireAt,
		&reminder.Enabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Reminder{}, mapper.MapError(err)
	}
	if reminder.FireAt, err = decodeTime(fireAt); err != nil {
		return persistence.Reminder{}, err
	}
	if reminder.CreatedAt, err = decodeTime(createdAt); err != nil {
		return persistence.Reminder{}, err
	}
	if reminder.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return persistence.Reminder{}, err
	}
	return reminder, nil
}
