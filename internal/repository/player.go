package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gamestats-pipeline/internal/db"
	"gamestats-pipeline/internal/domain"

	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	queries *db.Queries
	logger  zerolog.Logger
}

func NewPlayerRepository(queries *db.Queries, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		queries: queries,
		logger:  logger,
	}
}

// Upsert keeps a known username when the incoming row has none.
func (r *PlayerRepository) Upsert(ctx context.Context, qtx *db.Queries, player domain.Player) error {
	now := time.Now().UTC()
	err := pick(r.queries, qtx).UpsertPlayer(ctx, db.UpsertPlayerParams{
		PlayerID:   player.PlayerID,
		Username:   player.Username,
		GameID:     player.GameID,
		PlatformID: player.PlatformID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", player.PlayerID, err)
	}
	return nil
}

type PlayerStatRepository struct {
	queries *db.Queries
	logger  zerolog.Logger
}

func NewPlayerStatRepository(queries *db.Queries, logger zerolog.Logger) *PlayerStatRepository {
	return &PlayerStatRepository{
		queries: queries,
		logger:  logger,
	}
}

func (r *PlayerStatRepository) Upsert(ctx context.Context, qtx *db.Queries, stat domain.PlayerStat) (bool, error) {
	q := pick(r.queries, qtx)

	exists, err := q.PlayerStatExists(ctx, stat.StatID)
	if err != nil {
		return false, fmt.Errorf("failed to check stat %s: %w", stat.StatID, err)
	}

	var rank sql.NullInt64
	if stat.Rank != nil {
		rank = sql.NullInt64{Int64: int64(*stat.Rank), Valid: true}
	}
	additional := stat.AdditionalStats
	if additional == "" {
		additional = "{}"
	}

	now := time.Now().UTC()
	err = q.UpsertPlayerStat(ctx, db.UpsertPlayerStatParams{
		StatID:          stat.StatID,
		PlayerID:        stat.PlayerID,
		MatchID:         stat.MatchID,
		Kills:           int64(stat.Kills),
		Deaths:          int64(stat.Deaths),
		Assists:         int64(stat.Assists),
		Score:           int64(stat.Score),
		Rank:            rank,
		AdditionalStats: additional,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert stat %s: %w", stat.StatID, err)
	}
	return !exists, nil
}

func (r *PlayerStatRepository) CountByMatch(ctx context.Context, matchID string) (int, error) {
	count, err := r.queries.CountPlayerStatsByMatch(ctx, matchID)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
