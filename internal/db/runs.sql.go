package db

import (
	"context"
	"time"
)

const createPipelineRun = `-- name: CreatePipelineRun :exec
INSERT INTO pipeline_runs (run_id, triggered_by, status, started_at)
VALUES (?, ?, ?, ?)
`

type CreatePipelineRunParams struct {
	RunID       string
	TriggeredBy string
	Status      string
	StartedAt   time.Time
}

func (q *Queries) CreatePipelineRun(ctx context.Context, arg CreatePipelineRunParams) error {
	_, err := q.db.ExecContext(ctx, createPipelineRun,
		arg.RunID,
		arg.TriggeredBy,
		arg.Status,
		arg.StartedAt,
	)
	return err
}

const finishPipelineRun = `-- name: FinishPipelineRun :exec
UPDATE pipeline_runs SET
    status = ?,
    finished_at = ?,
    matches_loaded = ?,
    stats_loaded = ?,
    events_loaded = ?,
    forecasts_saved = ?,
    error = ?
WHERE run_id = ?
`

type FinishPipelineRunParams struct {
	Status         string
	FinishedAt     time.Time
	MatchesLoaded  int64
	StatsLoaded    int64
	EventsLoaded   int64
	ForecastsSaved int64
	Error          string
	RunID          string
}

func (q *Queries) FinishPipelineRun(ctx context.Context, arg FinishPipelineRunParams) error {
	_, err := q.db.ExecContext(ctx, finishPipelineRun,
		arg.Status,
		arg.FinishedAt,
		arg.MatchesLoaded,
		arg.StatsLoaded,
		arg.EventsLoaded,
		arg.ForecastsSaved,
		arg.Error,
		arg.RunID,
	)
	return err
}

const listPipelineRuns = `-- name: ListPipelineRuns :many
SELECT run_id, triggered_by, status, started_at, finished_at, matches_loaded,
       stats_loaded, events_loaded, forecasts_saved, error
FROM pipeline_runs
ORDER BY started_at DESC
LIMIT ?
`

func (q *Queries) ListPipelineRuns(ctx context.Context, limit int64) ([]PipelineRun, error) {
	rows, err := q.db.QueryContext(ctx, listPipelineRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PipelineRun
	for rows.Next() {
		var i PipelineRun
		if err := rows.Scan(
			&i.RunID,
			&i.TriggeredBy,
			&i.Status,
			&i.StartedAt,
			&i.FinishedAt,
			&i.MatchesLoaded,
			&i.StatsLoaded,
			&i.EventsLoaded,
			&i.ForecastsSaved,
			&i.Error,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
