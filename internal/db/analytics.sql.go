package db

import (
	"context"
)

// All analytics queries take ?1 = game id or 'all' and a YYYY-MM-DD lower
// bound on the match day.

const gameStatistics = `-- name: GameStatistics :one
SELECT
    (SELECT COUNT(*) FROM matches m
        WHERE (?1 = 'all' OR m.game_id = ?1) AND DATE(m.match_date) >= ?2) AS total_matches,
    (SELECT COALESCE(AVG(m.duration_minutes), 0) FROM matches m
        WHERE (?1 = 'all' OR m.game_id = ?1) AND DATE(m.match_date) >= ?2) AS avg_duration,
    COUNT(DISTINCT ps.player_id) AS unique_players,
    COALESCE(AVG(ps.kills), 0) AS avg_kills,
    COALESCE(AVG(ps.deaths), 0) AS avg_deaths,
    COALESCE(AVG(ps.assists), 0) AS avg_assists,
    COALESCE(AVG(ps.score), 0) AS avg_score
FROM player_stats ps
JOIN matches m ON m.match_id = ps.match_id
WHERE (?1 = 'all' OR m.game_id = ?1) AND DATE(m.match_date) >= ?2
`

type GameStatisticsRow struct {
	TotalMatches  int64
	AvgDuration   float64
	UniquePlayers int64
	AvgKills      float64
	AvgDeaths     float64
	AvgAssists    float64
	AvgScore      float64
}

func (q *Queries) GameStatistics(ctx context.Context, gameID string, since string) (GameStatisticsRow, error) {
	row := q.db.QueryRowContext(ctx, gameStatistics, gameID, since)
	var i GameStatisticsRow
	err := row.Scan(
		&i.TotalMatches,
		&i.AvgDuration,
		&i.UniquePlayers,
		&i.AvgKills,
		&i.AvgDeaths,
		&i.AvgAssists,
		&i.AvgScore,
	)
	return i, err
}

const dailyTrends = `-- name: DailyTrends :many
SELECT d.day, d.matches, d.avg_duration, COALESCE(p.players, 0) AS unique_players
FROM (
    SELECT DATE(match_date) AS day, COUNT(*) AS matches, AVG(duration_minutes) AS avg_duration
    FROM matches
    WHERE (?1 = 'all' OR game_id = ?1) AND DATE(match_date) >= ?2
    GROUP BY day
) d
LEFT JOIN (
    SELECT DATE(m.match_date) AS day, COUNT(DISTINCT ps.player_id) AS players
    FROM player_stats ps
    JOIN matches m ON m.match_id = ps.match_id
    WHERE (?1 = 'all' OR m.game_id = ?1) AND DATE(m.match_date) >= ?2
    GROUP BY day
) p ON p.day = d.day
ORDER BY d.day
`

type DailyTrendsRow struct {
	Day           string
	Matches       int64
	AvgDuration   float64
	UniquePlayers int64
}

func (q *Queries) DailyTrends(ctx context.Context, gameID string, since string) ([]DailyTrendsRow, error) {
	rows, err := q.db.QueryContext(ctx, dailyTrends, gameID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailyTrendsRow
	for rows.Next() {
		var i DailyTrendsRow
		if err := rows.Scan(&i.Day, &i.Matches, &i.AvgDuration, &i.UniquePlayers); err != nil {
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

const topPlayers = `-- name: TopPlayers :many
SELECT p.player_id, p.username, p.game_id,
       COUNT(ps.stat_id) AS matches_played,
       SUM(ps.kills) AS total_kills,
       SUM(ps.deaths) AS total_deaths,
       SUM(ps.assists) AS total_assists,
       AVG(ps.score) AS avg_score
FROM player_stats ps
JOIN players p ON p.player_id = ps.player_id
JOIN matches m ON m.match_id = ps.match_id
WHERE (?1 = 'all' OR m.game_id = ?1) AND DATE(m.match_date) >= ?2
GROUP BY p.player_id, p.username, p.game_id
ORDER BY avg_score DESC, p.player_id
LIMIT ?3
`

type TopPlayersRow struct {
	PlayerID      string
	Username      string
	GameID        string
	MatchesPlayed int64
	TotalKills    int64
	TotalDeaths   int64
	TotalAssists  int64
	AvgScore      float64
}

func (q *Queries) TopPlayers(ctx context.Context, gameID string, since string, limit int64) ([]TopPlayersRow, error) {
	rows, err := q.db.QueryContext(ctx, topPlayers, gameID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TopPlayersRow
	for rows.Next() {
		var i TopPlayersRow
		if err := rows.Scan(
			&i.PlayerID,
			&i.Username,
			&i.GameID,
			&i.MatchesPlayed,
			&i.TotalKills,
			&i.TotalDeaths,
			&i.TotalAssists,
			&i.AvgScore,
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

const allGamesComparison = `-- name: AllGamesComparison :many
SELECT g.game_id, g.game_name, g.genre,
       COUNT(m.match_id) AS total_matches,
       COALESCE(AVG(m.duration_minutes), 0) AS avg_duration,
       (SELECT COUNT(DISTINCT ps.player_id)
          FROM player_stats ps
          JOIN matches m2 ON m2.match_id = ps.match_id
         WHERE m2.game_id = g.game_id AND DATE(m2.match_date) >= ?1) AS unique_players
FROM games g
LEFT JOIN matches m ON m.game_id = g.game_id AND DATE(m.match_date) >= ?1
GROUP BY g.game_id, g.game_name, g.genre
ORDER BY total_matches DESC, g.game_id
`

type AllGamesComparisonRow struct {
	GameID        string
	GameName      string
	Genre         string
	TotalMatches  int64
	AvgDuration   float64
	UniquePlayers int64
}

func (q *Queries) AllGamesComparison(ctx context.Context, since string) ([]AllGamesComparisonRow, error) {
	rows, err := q.db.QueryContext(ctx, allGamesComparison, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AllGamesComparisonRow
	for rows.Next() {
		var i AllGamesComparisonRow
		if err := rows.Scan(
			&i.GameID,
			&i.GameName,
			&i.Genre,
			&i.TotalMatches,
			&i.AvgDuration,
			&i.UniquePlayers,
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

const gameTrendsComparison = `-- name: GameTrendsComparison :many
SELECT DATE(match_date) AS day, game_id, COUNT(*) AS matches
FROM matches
WHERE DATE(match_date) >= ?1
GROUP BY day, game_id
ORDER BY day, game_id
`

type GameTrendsComparisonRow struct {
	Day     string
	GameID  string
	Matches int64
}

func (q *Queries) GameTrendsComparison(ctx context.Context, since string) ([]GameTrendsComparisonRow, error) {
	rows, err := q.db.QueryContext(ctx, gameTrendsComparison, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GameTrendsComparisonRow
	for rows.Next() {
		var i GameTrendsComparisonRow
		if err := rows.Scan(&i.Day, &i.GameID, &i.Matches); err != nil {
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
