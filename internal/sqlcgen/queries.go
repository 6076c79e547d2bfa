package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const insertQueryRun = `-- name: InsertQueryRun :one
INSERT INTO query_runs (
  id,
  kind,
  project_id,
  dataset,
  granularities,
  time_range_hours,
  success,
  error,
  latency_ms,
  total_rows,
  bytes_processed
)
VALUES ($1::uuid, $2, $3, $4, COALESCE($5, '{}'::text[]), $6, $7, $8, $9, $10, $11)
RETURNING id::text, kind, project_id, dataset, granularities, time_range_hours, success, error,
          latency_ms, total_rows, bytes_processed, created_at
`

type InsertQueryRunParams struct {
	ID             string
	Kind           string
	ProjectID      *string
	Dataset        *string
	Granularities  []string
	TimeRangeHours *int32
	Success        bool
	Error          *string
	LatencyMs      int64
	TotalRows      int64
	BytesProcessed int64
}

func (q *Queries) InsertQueryRun(ctx context.Context, arg InsertQueryRunParams) (QueryRun, error) {
	row := q.db.QueryRow(
		ctx,
		insertQueryRun,
		arg.ID,
		arg.Kind,
		arg.ProjectID,
		arg.Dataset,
		arg.Granularities,
		arg.TimeRangeHours,
		arg.Success,
		arg.Error,
		arg.LatencyMs,
		arg.TotalRows,
		arg.BytesProcessed,
	)
	var i QueryRun
	err := row.Scan(
		&i.ID,
		&i.Kind,
		&i.ProjectID,
		&i.Dataset,
		&i.Granularities,
		&i.TimeRangeHours,
		&i.Success,
		&i.Error,
		&i.LatencyMs,
		&i.TotalRows,
		&i.BytesProcessed,
		&i.CreatedAt,
	)
	return i, err
}

const listQueryRuns = `-- name: ListQueryRuns :many
SELECT id::text, kind, project_id, dataset, granularities, time_range_hours, success, error,
       latency_ms, total_rows, bytes_processed, created_at
FROM query_runs
ORDER BY created_at DESC, id DESC
LIMIT $1
`

func (q *Queries) ListQueryRuns(ctx context.Context, limit int32) ([]QueryRun, error) {
	rows, err := q.db.Query(ctx, listQueryRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []QueryRun
	for rows.Next() {
		var i QueryRun
		if err := rows.Scan(
			&i.ID,
			&i.Kind,
			&i.ProjectID,
			&i.Dataset,
			&i.Granularities,
			&i.TimeRangeHours,
			&i.Success,
			&i.Error,
			&i.LatencyMs,
			&i.TotalRows,
			&i.BytesProcessed,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteQueryRunsBefore = `-- name: DeleteQueryRunsBefore :execrows
DELETE FROM query_runs
WHERE created_at < $1
`

func (q *Queries) DeleteQueryRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteQueryRunsBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
