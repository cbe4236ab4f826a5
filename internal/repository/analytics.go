package repository

import (
	"context"
	"fmt"
	"time"

	"gamestats-pipeline/internal/db"
	"gamestats-pipeline/internal/domain"

	"github.com/rs/zerolog"
)

// AnalyticsRepository serves the read-only aggregates behind the dashboard.
// gameID may be a concrete id or "all".
type AnalyticsRepository struct {
	queries *db.Queries
	logger  zerolog.Logger
}

func NewAnalyticsRepository(queries *db.Queries, logger zerolog.Logger) *AnalyticsRepository {
	return &AnalyticsRepository{
		queries: queries,
		logger:  logger,
	}
}

func (r *AnalyticsRepository) GameStatistics(ctx context.Context, gameID string, now time.Time, days int) (domain.GameStatistics, error) {
	row, err := r.queries.GameStatistics(ctx, gameID, sinceDay(now, days))
	if err != nil {
		return domain.GameStatistics{}, fmt.Errorf("failed to query game statistics: %w", err)
	}

	return domain.GameStatistics{
		GameID:        gameID,
		Days:          days,
		TotalMatches:  int(row.TotalMatches),
		UniquePlayers: int(row.UniquePlayers),
		AvgDuration:   row.AvgDuration,
		AvgKills:      row.AvgKills,
		AvgDeaths:     row.AvgDeaths,
		AvgAssists:    row.AvgAssists,
		AvgScore:      row.AvgScore,
	}, nil
}

func (r *AnalyticsRepository) DailyTrends(ctx context.Context, gameID string, now time.Time, days int) ([]domain.DailyTrend, error) {
	rows, err := r.queries.DailyTrends(ctx, gameID, sinceDay(now, days))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily trends: %w", err)
	}

	result := make([]domain.DailyTrend, len(rows))
	for i, row := range rows {
		result[i] = domain.DailyTrend{
			Date:          row.Day,
			Matches:       int(row.Matches),
			AvgDuration:   row.AvgDuration,
			UniquePlayers: int(row.UniquePlayers),
		}
	}
	return result, nil
}

func (r *AnalyticsRepository) TopPlayers(ctx context.Context, gameID string, now time.Time, days, limit int) ([]domain.TopPlayer, error) {
	rows, err := r.queries.TopPlayers(ctx, gameID, sinceDay(now, days), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query top players: %w", err)
	}

	result := make([]domain.TopPlayer, len(rows))
	for i, row := range rows {
		result[i] = domain.TopPlayer{
			PlayerID:      row.PlayerID,
			Username:      row.Username,
			GameID:        row.GameID,
			MatchesPlayed: int(row.MatchesPlayed),
			TotalKills:    int(row.TotalKills),
			TotalDeaths:   int(row.TotalDeaths),
			TotalAssists:  int(row.TotalAssists),
			AvgScore:      row.AvgScore,
		}
	}
	return result, nil
}

func (r *AnalyticsRepository) AllGamesComparison(ctx context.Context, now time.Time, days int) ([]domain.GameComparison, error) {
	rows, err := r.queries.AllGamesComparison(ctx, sinceDay(now, days))
	if err != nil {
		return nil, fmt.Errorf("failed to query games comparison: %w", err)
	}

	result := make([]domain.GameComparison, len(rows))
	for i, row := range rows {
		result[i] = domain.GameComparison{
			GameID:        row.GameID,
			GameName:      row.GameName,
			Genre:         row.Genre,
			TotalMatches:  int(row.TotalMatches),
			UniquePlayers: int(row.UniquePlayers),
			AvgDuration:   row.AvgDuration,
		}
	}
	return result, nil
}

func (r *AnalyticsRepository) GameTrendsComparison(ctx context.Context, now time.Time, days int) ([]domain.GameTrendPoint, error) {
	rows, err := r.queries.GameTrendsComparison(ctx, sinceDay(now, days))
	if err != nil {
		return nil, fmt.Errorf("failed to query trends comparison: %w", err)
	}

	result := make([]domain.GameTrendPoint, len(rows))
	for i, row := range rows {
		result[i] = domain.GameTrendPoint{
			Date:    row.Day,
			GameID:  row.GameID,
			Matches: int(row.Matches),
		}
	}
	return result, nil
}
