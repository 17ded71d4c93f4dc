// Package sqlite implements the persistence repositories on SQLite via the
// modernc driver. Timestamps are stored as RFC 3339 UTC strings so that
// lexicographic comparison in SQL matches chronological order.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Storage bundles the SQLite repositories behind one handle.
type Storage struct {
	*MemberRepository
	*SessionRepository
	*SeriesRepository
	*OccurrenceRepository
	*ReminderRepository

	pool *ConnectionPool
}

// Open opens (or creates) the database at dsn and returns a Storage exposing
// every repository. Callers must run Migrate before first use.
func Open(dsn string) (*Storage, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}
	return &Storage{
		MemberRepository:     NewMemberRepository(pool),
		SessionRepository:    NewSessionRepository(pool),
		SeriesRepository:     NewSeriesRepository(pool),
		OccurrenceRepository: NewOccurrenceRepository(pool),
		ReminderRepository:   NewReminderRepository(pool),
		pool:                 pool,
	}, nil
}

// Migrate brings the schema up to date.
func (s *Storage) Migrate(ctx context.Context) error {
	return s.pool.Migrate(ctx)
}

// Pool exposes the underlying connection pool.
func (s *Storage) Pool() *ConnectionPool {
	return s.pool
}

// Close releases the database handle.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// --- column codecs ---

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func encodeNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeNullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func decodeNullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	value := s.String
	return &value
}

// encodeWeekdays serializes a weekday set as a comma separated list of Go
// weekday values.
func encodeWeekdays(days []time.Weekday) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, 0, len(days))
	for _, day := range days {
		parts = append(parts, strconv.Itoa(int(day)))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	days := make([]time.Weekday, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || value < 0 || value > 6 {
			return nil, fmt.Errorf("invalid weekday value %q", part)
		}
		days = append(days, time.Weekday(value))
	}
	return days, nil
}
