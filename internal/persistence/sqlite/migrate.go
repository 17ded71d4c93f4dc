package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations is the ordered schema history. The position in the slice plus
// one is the schema version recorded in PRAGMA user_version; append only.
var migrations = []string{
	`
	CREATE TABLE members (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		display_name  TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		is_admin      INTEGER NOT NULL DEFAULT 0,
		disabled      INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);

	CREATE TABLE sessions (
		id         TEXT PRIMARY KEY,
		member_id  TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		token      TEXT NOT NULL UNIQUE,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		revoked_at TEXT
	);

	CREATE TABLE series (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		activity_type TEXT NOT NULL CHECK (activity_type IN ('prayer', 'event')),
		modality      TEXT NOT NULL CHECK (modality IN ('online', 'offline')),
		location      TEXT,
		join_info     TEXT,
		start_at      TEXT NOT NULL,
		end_at        TEXT NOT NULL,
		rule_kind     TEXT NOT NULL,
		rule_weekdays TEXT NOT NULL DEFAULT '',
		rule_ends_on  TEXT,
		rule_count    INTEGER NOT NULL DEFAULT 0,
		created_by    TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		CHECK (start_at < end_at)
	);

	CREATE TABLE occurrences (
		id            TEXT PRIMARY KEY,
		series_id     TEXT REFERENCES series(id) ON DELETE CASCADE,
		title         TEXT NOT NULL,
		activity_type TEXT NOT NULL CHECK (activity_type IN ('prayer', 'event')),
		modality      TEXT NOT NULL CHECK (modality IN ('online', 'offline')),
		location      TEXT,
		join_info     TEXT,
		start_at      TEXT NOT NULL,
		end_at        TEXT NOT NULL,
		cancelled     INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		CHECK (start_at < end_at)
	);

	CREATE INDEX idx_occurrences_series ON occurrences(series_id);
	CREATE INDEX idx_occurrences_start ON occurrences(start_at);

	CREATE TABLE reminders (
		id             TEXT PRIMARY KEY,
		occurrence_id  TEXT NOT NULL REFERENCES occurrences(id) ON DELETE CASCADE,
		offset_minutes INTEGER NOT NULL,
		fire_at        TEXT NOT NULL,
		enabled        INTEGER NOT NULL DEFAULT 1,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	);

	CREATE INDEX idx_reminders_occurrence ON reminders(occurrence_id);
	CREATE INDEX idx_reminders_fire ON reminders(enabled, fire_at);
	`,
}

// Migrate brings the schema up to the current version.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	var version int
	if err := cp.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this binary supports", version)
	}

	for next := version; next < len(migrations); next++ {
		step := migrations[next]
		target := next + 1
		err := cp.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, step); err != nil {
				return fmt.Errorf("migration %d failed: %w", target, err)
			}
			// PRAGMA does not accept bind parameters.
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", target)); err != nil {
				return fmt.Errorf("failed to record schema version %d: %w", target, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
