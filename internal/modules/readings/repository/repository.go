package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"log/slog"
	"strconv"

	"climalog/internal/modules/readings/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-recent-readings.sql
var getRecentReadingsSQL string

//go:embed sql/get-readings-count.sql
var getReadingsCountSQL string

// ReadingsRepository is the append-only record store.
//
// QueryRecent orders by time descending; readings with equal time come
// back in reverse insertion order (highest id first).
type ReadingsRepository interface {
	Append(ctx context.Context, r types.Reading) (int64, error)
	QueryRecent(ctx context.Context, limit int) ([]types.Reading, error)
	Count(ctx context.Context) (int, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) ReadingsRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Append(ctx context.Context, rec types.Reading) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertReadingSQL, rec.Time, nullable(rec.Temp), nullable(rec.RH))
	if err != nil {
		return 0, &types.StorageError{Op: "insert reading", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &types.StorageError{Op: "insert reading id", Err: err}
	}
	return id, nil
}

func (r *repositoryImpl) QueryRecent(ctx context.Context, limit int) ([]types.Reading, error) {
	if limit <= 0 {
		return nil, &types.QueryParamError{Param: "limit", Value: strconv.Itoa(limit), Reason: "must be > 0"}
	}
	rows, err := r.db.QueryContext(ctx, getRecentReadingsSQL, limit)
	if err != nil {
		return nil, &types.StorageError{Op: "query recent readings", Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close recent readings rows", "error", err)
		}
	}()

	out, err := scanReadings(rows, limit)
	if err != nil {
		return nil, &types.StorageError{Op: "scan recent readings", Err: err}
	}
	return out, nil
}

func (r *repositoryImpl) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, getReadingsCountSQL).Scan(&n); err != nil {
		return 0, &types.StorageError{Op: "count readings", Err: err}
	}
	return n, nil
}

func scanReadings(rows *sql.Rows, capacity int) ([]types.Reading, error) {
	out := make([]types.Reading, 0, min(capacity, 256))
	for rows.Next() {
		var (
			rec      types.Reading
			temp, rh sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.Time, &temp, &rh); err != nil {
			return nil, err
		}
		if temp.Valid {
			rec.Temp = &temp.Float64
		}
		if rh.Valid {
			rec.RH = &rh.Float64
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
