package db

import (
	"context"
	"database/sql"
	"time"
)

const upsertPlayer = `-- name: UpsertPlayer :exec
INSERT INTO players (player_id, username, game_id, platform_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(player_id) DO UPDATE SET
    username = CASE WHEN excluded.username != '' THEN excluded.username ELSE players.username END,
    game_id = excluded.game_id,
    platform_id = CASE WHEN excluded.platform_id != '' THEN excluded.platform_id ELSE players.platform_id END,
    updated_at = excluded.updated_at
`

type UpsertPlayerParams struct {
	PlayerID   string
	Username   string
	GameID     string
	PlatformID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (q *Queries) UpsertPlayer(ctx context.Context, arg UpsertPlayerParams) error {
	_, err := q.db.ExecContext(ctx, upsertPlayer,
		arg.PlayerID,
		arg.Username,
		arg.GameID,
		arg.PlatformID,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const playerStatExists = `-- name: PlayerStatExists :one
SELECT EXISTS(SELECT 1 FROM player_stats WHERE stat_id = ?)
`

func (q *Queries) PlayerStatExists(ctx context.Context, statID string) (bool, error) {
	row := q.db.QueryRowContext(ctx, playerStatExists, statID)
	var exists int64
	err := row.Scan(&exists)
	return exists == 1, err
}

const upsertPlayerStat = `-- name: UpsertPlayerStat :exec
INSERT INTO player_stats (
    stat_id, player_id, match_id, kills, deaths, assists, score, rank,
    additional_stats, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(stat_id) DO UPDATE SET
    player_id = excluded.player_id,
    match_id = excluded.match_id,
    kills = excluded.kills,
    deaths = excluded.deaths,
    assists = excluded.assists,
    score = excluded.score,
    rank = excluded.rank,
    additional_stats = excluded.additional_stats,
    updated_at = excluded.updated_at
`

type UpsertPlayerStatParams struct {
	StatID          string
	PlayerID        string
	MatchID         string
	Kills           int64
	Deaths          int64
	Assists         int64
	Score           int64
	Rank            sql.NullInt64
	AdditionalStats string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (q *Queries) UpsertPlayerStat(ctx context.Context, arg UpsertPlayerStatParams) error {
	_, err := q.db.ExecContext(ctx, upsertPlayerStat,
		arg.StatID,
		arg.PlayerID,
		arg.MatchID,
		arg.Kills,
		arg.Deaths,
		arg.Assists,
		arg.Score,
		arg.Rank,
		arg.AdditionalStats,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const countPlayerStatsByMatch = `-- name: CountPlayerStatsByMatch :one
SELECT COUNT(*) FROM player_stats WHERE match_id = ?
`

func (q *Queries) CountPlayerStatsByMatch(ctx context.Context, matchID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countPlayerStatsByMatch, matchID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
