package analytics

import (
	"context"
	"fmt"
	"time"

	"gamestats-pipeline/internal/cache"
	"gamestats-pipeline/internal/constants"
	"gamestats-pipeline/internal/domain"
	"gamestats-pipeline/internal/repository"

	"github.com/rs/zerolog"
)

// Service is the read-only query surface over the store. Every query takes a
// game id or "all" plus a trailing window of days, and results are cached
// until the next pipeline run invalidates them.
type Service struct {
	repo      *repository.AnalyticsRepository
	forecasts *repository.ForecastRepository
	cache     cache.QueryCache
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(repo *repository.AnalyticsRepository, forecasts *repository.ForecastRepository, queryCache cache.QueryCache, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		forecasts: forecasts,
		cache:     queryCache,
		now:       time.Now,
		logger:    logger.With().Str("component", "analytics").Logger(),
	}
}

func normalize(gameID string, days int) (string, int) {
	if gameID == "" {
		gameID = constants.AllGames
	}
	if days <= 0 {
		days = constants.DefaultQueryDays
	}
	return gameID, days
}

// cached serves key from the cache, falling back to load and storing its
// result. Cache failures are logged and never fail the query.
func cached[T any](ctx context.Context, s *Service, key string, load func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var out T
	found, err := s.cache.Get(ctx, key, &out)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if found {
		s.logger.Debug().Str("key", key).Msg("cache hit")
		return out, nil
	}

	out, err = load(ctx)
	if err != nil {
		return out, err
	}
	if err := s.cache.Set(ctx, key, out); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return out, nil
}

func (s *Service) GameStatistics(ctx context.Context, gameID string, days int) (domain.GameStatistics, error) {
	gameID, days = normalize(gameID, days)
	return cached(ctx, s, fmt.Sprintf("stats:%s:%d", gameID, days), func(ctx context.Context) (domain.GameStatistics, error) {
		return s.repo.GameStatistics(ctx, gameID, s.now(), days)
	})
}

func (s *Service) DailyTrends(ctx context.Context, gameID string, days int) ([]domain.DailyTrend, error) {
	gameID, days = normalize(gameID, days)
	return cached(ctx, s, fmt.Sprintf("trends:%s:%d", gameID, days), func(ctx context.Context) ([]domain.DailyTrend, error) {
		return s.repo.DailyTrends(ctx, gameID, s.now(), days)
	})
}

func (s *Service) TopPlayers(ctx context.Context, gameID string, days, limit int) ([]domain.TopPlayer, error) {
	gameID, days = normalize(gameID, days)
	if limit <= 0 {
		limit = constants.TopPlayersLimit
	}
	return cached(ctx, s, fmt.Sprintf("top:%s:%d:%d", gameID, days, limit), func(ctx context.Context) ([]domain.TopPlayer, error) {
		return s.repo.TopPlayers(ctx, gameID, s.now(), days, limit)
	})
}

func (s *Service) AllGamesComparison(ctx context.Context, days int) ([]domain.GameComparison, error) {
	_, days = normalize("", days)
	return cached(ctx, s, fmt.Sprintf("comparison:%d", days), func(ctx context.Context) ([]domain.GameComparison, error) {
		return s.repo.AllGamesComparison(ctx, s.now(), days)
	})
}

func (s *Service) GameTrendsComparison(ctx context.Context, days int) ([]domain.GameTrendPoint, error) {
	_, days = normalize("", days)
	return cached(ctx, s, fmt.Sprintf("game_trends:%d", days), func(ctx context.Context) ([]domain.GameTrendPoint, error) {
		return s.repo.GameTrendsComparison(ctx, s.now(), days)
	})
}

// Forecasts returns stored forecasts dated today or later.
func (s *Service) Forecasts(ctx context.Context, gameID string) ([]domain.Forecast, error) {
	gameID, _ = normalize(gameID, 0)
	return cached(ctx, s, "forecasts:"+gameID, func(ctx context.Context) ([]domain.Forecast, error) {
		return s.forecasts.ListFrom(ctx, gameID, s.now())
	})
}

func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}
