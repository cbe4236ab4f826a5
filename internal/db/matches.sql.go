package db

import (
	"context"
	"time"
)

const matchExists = `-- name: MatchExists :one
SELECT EXISTS(SELECT 1 FROM matches WHERE match_id = ?)
`

func (q *Queries) MatchExists(ctx context.Context, matchID string) (bool, error) {
	row := q.db.QueryRowContext(ctx, matchExists, matchID)
	var exists int64
	err := row.Scan(&exists)
	return exists == 1, err
}

const upsertMatch = `-- name: UpsertMatch :exec
INSERT INTO matches (
    match_id, game_id, match_date, duration_minutes, match_type,
    platform, source, additional_data, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(match_id) DO UPDATE SET
    game_id = excluded.game_id,
    match_date = excluded.match_date,
    duration_minutes = excluded.duration_minutes,
    match_type = excluded.match_type,
    platform = excluded.platform,
    source = excluded.source,
    additional_data = excluded.additional_data,
    updated_at = excluded.updated_at
`

type UpsertMatchParams struct {
	MatchID         string
	GameID          string
	MatchDate       time.Time
	DurationMinutes int64
	MatchType       string
	Platform        string
	Source          string
	AdditionalData  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (q *Queries) UpsertMatch(ctx context.Context, arg UpsertMatchParams) error {
	_, err := q.db.ExecContext(ctx, upsertMatch,
		arg.MatchID,
		arg.GameID,
		arg.MatchDate,
		arg.DurationMinutes,
		arg.MatchType,
		arg.Platform,
		arg.Source,
		arg.AdditionalData,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getMatch = `-- name: GetMatch :one
SELECT match_id, game_id, match_date, duration_minutes, match_type,
       platform, source, additional_data, created_at, updated_at
FROM matches
WHERE match_id = ?
`

func (q *Queries) GetMatch(ctx context.Context, matchID string) (Match, error) {
	row := q.db.QueryRowContext(ctx, getMatch, matchID)
	var i Match
	err := row.Scan(
		&i.MatchID,
		&i.GameID,
		&i.MatchDate,
		&i.DurationMinutes,
		&i.MatchType,
		&i.Platform,
		&i.Source,
		&i.AdditionalData,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const countMatchesByGame = `-- name: CountMatchesByGame :one
SELECT COUNT(*) FROM matches WHERE game_id = ?
`

func (q *Queries) CountMatchesByGame(ctx context.Context, gameID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countMatchesByGame, gameID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const dailyMatchCounts = `-- name: DailyMatchCounts :many
SELECT DATE(match_date) AS day, COUNT(*) AS match_count
FROM matches
WHERE game_id = ? AND DATE(match_date) >= ?
GROUP BY day
ORDER BY day
`

type DailyMatchCountsRow struct {
	Day        string
	MatchCount int64
}

// since is a YYYY-MM-DD day, compared against the UTC day of match_date.
func (q *Queries) DailyMatchCounts(ctx context.Context, gameID string, since string) ([]DailyMatchCountsRow, error) {
	rows, err := q.db.QueryContext(ctx, dailyMatchCounts, gameID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailyMatchCountsRow
	for rows.Next() {
		var i DailyMatchCountsRow
		if err := rows.Scan(&i.Day, &i.MatchCount); err != nil {
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
