package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/activity-scheduler/internal/persistence"
)

// OccurrenceRepository implements persistence.OccurrenceRepository using SQLite.
type OccurrenceRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewOccurrenceRepository creates a new SQLite occurrence repository.
func NewOccurrenceRepository(pool *ConnectionPool) *OccurrenceRepository {
	return &OccurrenceRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const occurrenceColumns = "id, series_id, title, activity_type, modality, location, join_info, start_at, end_at, cancelled, created_at, updated_at"

const insertOccurrenceQuery = `
	INSERT INTO occurrences (` + occurrenceColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateOccurrences inserts a batch of occurrences in one transaction.
func (r *OccurrenceRepository) CreateOccurrences(ctx context.Context, occurrences []persistence.Occurrence) error {
	if len(occurrences) == 0 {
		return nil
	}
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, occurrence := range occurrences {
			if occurrence.ID == "" {
				return persistence.ErrConstraintViolation
			}
			if _, err := tx.ExecContext(ctx, insertOccurrenceQuery, occurrenceArgs(occurrence)...); err != nil {
				return err
			}
		}
		return nil
	})
	return r.mapper.MapError(err)
}

// GetOccurrence retrieves an occurrence by id.
func (r *OccurrenceRepository) GetOccurrence(ctx context.Context, id string) (persistence.Occurrence, error) {
	if id == "" {
		return persistence.Occurrence{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, "SELECT "+occurrenceColumns+" FROM occurrences WHERE id = ?", id)
	return scanOccurrence(row, r.mapper)
}

// UpdateOccurrence rewrites an occurrence's mutable columns.
func (r *OccurrenceRepository) UpdateOccurrence(ctx context.Context, occurrence persistence.Occurrence) error {
	query := `
		UPDATE occurrences
		SET title = ?, modality = ?, location = ?, join_info = ?, start_at = ?, end_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		occurrence.Title,
		occurrence.Modality,
		encodeNullableString(occurrence.Location),
		encodeNullableString(occurrence.JoinInfo),
		encodeTime(occurrence.Start),
		encodeTime(occurrence.End),
		encodeTime(occurrence.UpdatedAt),
		occurrence.ID,
	)
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

// CancelOccurrence marks an occurrence cancelled. Cancelling an already
// cancelled occurrence is a no-op, not an error.
func (r *OccurrenceRepository) CancelOccurrence(ctx context.Context, id string, cancelledAt time.Time) error {
	if _, err := r.GetOccurrence(ctx, id); err != nil {
		return err
	}
	_, err := r.helper.Exec(ctx,
		"UPDATE occurrences SET cancelled = 1, updated_at = ? WHERE id = ? AND cancelled = 0",
		encodeTime(cancelledAt), id,
	)
	return r.mapper.MapError(err)
}

// ListOccurrences returns occurrences matching the filter ordered by start time.
func (r *OccurrenceRepository) ListOccurrences(ctx context.Context, filter persistence.OccurrenceFilter) ([]persistence.Occurrence, error) {
	var conditions []string
	var args []any

	if filter.SeriesID != nil {
		conditions = append(conditions, "series_id = ?")
		args = append(args, *filter.SeriesID)
	}
	if filter.StartsAfter != nil {
		conditions = append(conditions, "start_at >= ?")
		args = append(args, encodeTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "end_at <= ?")
		args = append(args, encodeTime(*filter.EndsBefore))
	}
	if !filter.IncludeCancelled {
		conditions = append(conditions, "cancelled = 0")
	}

	query := "SELECT " + occurrenceColumns + " FROM occurrences"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_at, id"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var occurrences []persistence.Occurrence
	for rows.Next() {
		occurrence, err := scanOccurrence(rows, r.mapper)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, occurrence)
	}
	return occurrences, rows.Err()
}

func occurrenceArgs(occurrence persistence.Occurrence) []any {
	var seriesID any
	if occurrence.SeriesID != nil {
		seriesID = *occurrence.SeriesID
	}
	return []any{
		occurrence.ID,
		seriesID,
		occurrence.Title,
		occurrence.ActivityType,
		occurrence.Modality,
		encodeNullableString(occurrence.Location),
		encodeNullableString(occurrence.JoinInfo),
		encodeTime(occurrence.Start),
		encodeTime(occurrence.End),
		occurrence.Cancelled,
		encodeTime(occurrence.CreatedAt),
		encodeTime(occurrence.UpdatedAt),
	}
}

func scanOccurrence(row rowScanner, mapper *ErrorMapper) (persistence.Occurrence, error) {
	var occurrence persistence.Occurrence
	var seriesID, location, joinInfo sql.NullString
	var startAt, endAt, createdAt, updatedAt string
	err := row.Scan(
		&occurrence.ID,
		&seriesID,
		&occurrence.Title,
		&occurrence.ActivityType,
		&occurrence.Modality,
		&location,
		&joinInfo,
		&startAt,
		&endAt,
		&occurrence.Cancelled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Occurrence{}, mapper.MapError(err)
	}
	occurrence.SeriesID = decodeNullableString(seriesID)
	occurrence.Location = decodeNullableString(location)
	occurrence.JoinInfo = decodeNullableString(joinInfo)
	if occurrence.Start, err = decodeTime(startAt); err != nil {
		return persistence.Occurrence{}, err
	}
	if occurrence.End, err = decodeTime(endAt); err != nil {
		return persistence.Occurrence{}, err
	}
	if occurrence.CreatedAt, err = decodeTime(createdAt); err != nil {
		return persistence.Occurrence{}, err
	}
	if occurrence.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return persistence.Occurrence{}, err
	}
	return occurrence, nil
}
