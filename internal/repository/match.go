package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gamestats-pipeline/internal/db"
	"gamestats-pipeline/internal/domain"

	"github.com/rs/zerolog"
)

type MatchRepository struct {
	queries *db.Queries
	logger  zerolog.Logger
}

func NewMatchRepository(queries *db.Queries, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{
		queries: queries,
		logger:  logger,
	}
}

// Upsert writes the match keyed by match_id and reports whether it was new.
// Pass the transaction's queries as qtx, or nil to run on the pool.
func (r *MatchRepository) Upsert(ctx context.Context, qtx *db.Queries, match domain.Match) (bool, error) {
	q := pick(r.queries, qtx)

	exists, err := q.MatchExists(ctx, match.MatchID)
	if err != nil {
		return false, fmt.Errorf("failed to check match %s: %w", match.MatchID, err)
	}

	now := time.Now().UTC()
	additional := match.AdditionalData
	if additional == "" {
		additional = "{}"
	}

	err = q.UpsertMatch(ctx, db.UpsertMatchParams{
		MatchID:         match.MatchID,
		GameID:          match.GameID,
		MatchDate:       match.MatchDate.UTC(),
		DurationMinutes: int64(match.DurationMinutes),
		MatchType:       match.MatchType,
		Platform:        match.Platform,
		Source:          match.Source,
		AdditionalData:  additional,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert match %s: %w", match.MatchID, err)
	}
	return !exists, nil
}

func (r *MatchRepository) Get(ctx context.Context, matchID string) (*domain.Match, error) {
	m, err := r.queries.GetMatch(ctx, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &domain.Match{
		MatchID:         m.MatchID,
		GameID:          m.GameID,
		MatchDate:       m.MatchDate.UTC(),
		DurationMinutes: int(m.DurationMinutes),
		MatchType:       m.MatchType,
		Platform:        m.Platform,
		Source:          m.Source,
		AdditionalData:  m.AdditionalData,
	}, nil
}

func (r *MatchRepository) Count(ctx context.Context, gameID string) (int, error) {
	count, err := r.queries.CountMatchesByGame(ctx, gameID)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// DailyCounts returns per-day match counts for the trailing window of days
// ending at now. Days without matches are absent.
func (r *MatchRepository) DailyCounts(ctx context.Context, gameID string, now time.Time, days int) ([]domain.DailyCount, error) {
	rows, err := r.queries.DailyMatchCounts(ctx, gameID, sinceDay(now, days))
	if err != nil {
		return nil, fmt.Errorf("failed to load daily counts for %s: %w", gameID, err)
	}

	result := make([]domain.DailyCount, 0, len(rows))
	for _, row := range rows {
		day, err := time.Parse(dayLayout, row.Day)
		if err != nil {
			r.logger.Warn().Err(err).Str("day", row.Day).Msg("skipping unparseable day bucket")
			continue
		}
		result = append(result, domain.DailyCount{Date: day, Count: int(row.MatchCount)})
	}
	return result, nil
}
