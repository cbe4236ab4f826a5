package db

import (
	"context"
)

const listGames = `-- name: ListGames :many
SELECT game_id, game_name, platform, genre, created_at
FROM games
ORDER BY game_id
`

func (q *Queries) ListGames(ctx context.Context) ([]Game, error) {
	rows, err := q.db.QueryContext(ctx, listGames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Game
	for rows.Next() {
		var i Game
		if err := rows.Scan(
			&i.GameID,
			&i.GameName,
			&i.Platform,
			&i.Genre,
			&i.CreatedAt,
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

const getGame = `-- name: GetGame :one
SELECT game_id, game_name, platform, genre, created_at
FROM games
WHERE game_id = ?
`

func (q *Queries) GetGame(ctx context.Context, gameID string) (Game, error) {
	row := q.db.QueryRowContext(ctx, getGame, gameID)
	var i Game
	err := row.Scan(
		&i.GameID,
		&i.GameName,
		&i.Platform,
		&i.Genre,
		&i.CreatedAt,
	)
	return i, err
}
