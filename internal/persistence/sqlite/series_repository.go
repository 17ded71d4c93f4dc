package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/activity-scheduler/internal/persistence"
)

// SeriesRepository implements persistence.SeriesRepository using SQLite.
type SeriesRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSeriesRepository creates a new SQLite series repository.
func NewSeriesRepository(pool *ConnectionPool) *SeriesRepository {
	return &SeriesRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const seriesColumns = "id, title, activity_type, modality, location, join_info, start_at, end_at, rule_kind, rule_weekdays, rule_ends_on, rule_count, created_by, created_at, updated_at"

const insertSeriesQuery = `
	INSERT INTO series (` + seriesColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateSeriesRuleQuery = `
	UPDATE series
	SET rule_kind = ?, rule_weekdays = ?, rule_ends_on = ?, rule_count = ?, updated_at = ?
	WHERE id = ?
`

// CreateSeries persists a series together with its first materialized
// occurrence batch in one transaction.
func (r *SeriesRepository) CreateSeries(ctx context.Context, series persistence.Series, occurrences []persistence.Occurrence) error {
	if series.ID == "" {
		return persistence.ErrConstraintViolation
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertSeriesQuery, seriesArgs(series)...); err != nil {
			return err
		}
		for _, occurrence := range occurrences {
			if _, err := tx.ExecContext(ctx, insertOccurrenceQuery, occurrenceArgs(occurrence)...); err != nil {
				return err
			}
		}
		return nil
	})
	return r.mapper.MapError(err)
}

// GetSeries retrieves a series by id.
func (r *SeriesRepository) GetSeries(ctx context.Context, id string) (persistence.Series, error) {
	if id == "" {
		return persistence.Series{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, "SELECT "+seriesColumns+" FROM series WHERE id = ?", id)
	return scanSeries(row, r.mapper)
}

// ListSeries returns every series ordered by anchor time.
func (r *SeriesRepository) ListSeries(ctx context.Context) ([]persistence.Series, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+seriesColumns+" FROM series ORDER BY start_at, id")
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var all []persistence.Series
	for rows.Next() {
		series, err := scanSeries(rows, r.mapper)
		if err != nil {
			return nil, err
		}
		all = append(all, series)
	}
	return all, rows.Err()
}

// ApplySplit executes a "this and future" mutation atomically: capping the
// original series' rule, deleting or cancelling its superseded occurrences,
// and inserting the continuation series with its batch.
func (r *SeriesRepository) ApplySplit(ctx context.Context, split persistence.SeriesSplit) error {
	capped := split.CappedSeries
	if capped.ID == "" {
		return persistence.ErrConstraintViolation
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, updateSeriesRuleQuery,
			capped.RuleKind,
			encodeWeekdays(capped.RuleWeekdays),
			encodeNullableTime(capped.RuleEndsOn),
			capped.RuleCount,
			encodeTime(capped.UpdatedAt),
			capped.ID,
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}

		if split.DeleteOccurrencesFrom != nil {
			_, err := tx.ExecContext(ctx,
				"DELETE FROM occurrences WHERE series_id = ? AND start_at >= ?",
				capped.ID, encodeTime(*split.DeleteOccurrencesFrom),
			)
			if err != nil {
				return err
			}
		}
		if split.CancelOccurrencesFrom != nil {
			_, err := tx.ExecContext(ctx,
				"UPDATE occurrences SET cancelled = 1, updated_at = ? WHERE series_id = ? AND start_at >= ? AND cancelled = 0",
				encodeTime(split.CancelledAt), capped.ID, encodeTime(*split.CancelOccurrencesFrom),
			)
			if err != nil {
				return err
			}
		}

		if split.NewSeries != nil {
			if _, err := tx.ExecContext(ctx, insertSeriesQuery, seriesArgs(*split.NewSeries)...); err != nil {
				return err
			}
			for _, occurrence := range split.NewOccurrences {
				if _, err := tx.ExecContext(ctx, insertOccurrenceQuery, occurrenceArgs(occurrence)...); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return r.mapper.MapError(err)
}

func seriesArgs(series persistence.Series) []any {
	return []any{
		series.ID,
		series.Title,
		series.ActivityType,
		series.Modality,
		encodeNullableString(series.Location),
		encodeNullableString(series.JoinInfo),
		encodeTime(series.Start),
		encodeTime(series.End),
		series.RuleKind,
		encodeWeekdays(series.RuleWeekdays),
		encodeNullableTime(series.RuleEndsOn),
		series.RuleCount,
		series.CreatedBy,
		encodeTime(series.CreatedAt),
		encodeTime(series.UpdatedAt),
	}
}

func scanSeries(row rowScanner, mapper *ErrorMapper) (persistence.Series, error) {
	var series persistence.Series
	var location, joinInfo, ruleEndsOn sql.NullString
	var startAt, endAt, weekdays, createdAt, updatedAt string
	err := row.Scan(
		&series.ID,
		&series.Title,
		&series.ActivityType,
		&series.Modality,
		&location,
		&joinInfo,
		&startAt,
		&endAt,
		&series.RuleKind,
		&weekdays,
		&ruleEndsOn,
		&series.RuleCount,
		&series.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Series{}, mapper.MapError(err)
	}
	series.Location = decodeNullableString(location)
	series.JoinInfo = decodeNullableString(joinInfo)
	if series.Start, err = decodeTime(startAt); err != nil {
		return persistence.Series{}, err
	}
	if series.End, err = decodeTime(endAt); err != nil {
		return persistence.Series{}, err
	}
	if series.RuleWeekdays, err = decodeWeekdays(weekdays); err != nil {
		return persistence.Series{}, err
	}
	if series.RuleEndsOn, err = decodeNullableTime(ruleEndsOn); err != nil {
		return persistence.Series{}, err
	}
	if series.CreatedAt, err = decodeTime(createdAt); err != nil {
		return persistence.Series{}, err
	}
	if series.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return persistence.Series{}, err
	}
	return series, nil
}
