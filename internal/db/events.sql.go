package db

import (
	"context"
	"time"
)

const insertGameEvent = `-- name: InsertGameEvent :execrows
INSERT INTO game_events (event_id, match_id, game_id, event_type, event_timestamp, event_data)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(event_id) DO NOTHING
`

type InsertGameEventParams struct {
	EventID        string
	MatchID        string
	GameID         string
	EventType      string
	EventTimestamp time.Time
	EventData      string
}

func (q *Queries) InsertGameEvent(ctx context.Context, arg InsertGameEventParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertGameEvent,
		arg.EventID,
		arg.MatchID,
		arg.GameID,
		arg.EventType,
		arg.EventTimestamp,
		arg.EventData,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countGameEventsByMatch = `-- name: CountGameEventsByMatch :one
SELECT COUNT(*) FROM game_events WHERE match_id = ?
`

func (q *Queries) CountGameEventsByMatch(ctx context.Context, matchID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countGameEventsByMatch, matchID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
