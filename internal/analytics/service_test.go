package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gamestats-pipeline/internal/cache"
	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/constants"
	"gamestats-pipeline/internal/database"
	"gamestats-pipeline/internal/db"
	"gamestats-pipeline/internal/domain"
	"gamestats-pipeline/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)

type fixture struct {
	service   *Service
	matches   *repository.MatchRepository
	forecasts *repository.ForecastRepository
	redis     *miniredis.Miniredis
}

func newFixture(t *testing.T, withRedis bool) fixture {
	t.Helper()
	sqlDB, err := database.New(&config.Config{DBPath: filepath.Join(t.TempDir(), "analytics.db")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	queries := db.New(sqlDB)
	logger := zerolog.Nop()
	f := fixture{
		matches:   repository.NewMatchRepository(queries, logger),
		forecasts: repository.NewForecastRepository(sqlDB, queries, logger),
	}

	var queryCache cache.QueryCache = cache.NopCache{}
	if withRedis {
		f.redis = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: f.redis.Addr()})
		t.Cleanup(func() { client.Close() })
		queryCache = cache.NewRedisCache(client, constants.AnalyticsCachePrefix, time.Minute, logger)
	}

	f.service = NewService(repository.NewAnalyticsRepository(queries, logger), f.forecasts, queryCache, logger)
	f.service.now = func() time.Time { return now }
	return f
}

func (f fixture) addMatch(t *testing.T, id, game string, daysAgo, duration int) {
	t.Helper()
	_, err := f.matches.Upsert(context.Background(), nil, domain.Match{
		MatchID:         id,
		GameID:          game,
		MatchDate:       now.AddDate(0, 0, -daysAgo),
		DurationMinutes: duration,
		Source:          "test",
	})
	require.NoError(t, err)
}

func TestGameStatisticsIsCachedUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.addMatch(t, "d1", "dota2", 1, 30)

	first, err := f.service.GameStatistics(ctx, "dota2", 7)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalMatches)
	assert.True(t, f.redis.Exists("gamestats:query:stats:dota2:7"))

	f.addMatch(t, "d2", "dota2", 1, 50)

	cachedStats, err := f.service.GameStatistics(ctx, "dota2", 7)
	require.NoError(t, err)
	assert.Equal(t, 1, cachedStats.TotalMatches)

	require.NoError(t, f.service.Invalidate(ctx))

	fresh, err := f.service.GameStatistics(ctx, "dota2", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.TotalMatches)
	assert.InDelta(t, 40.0, fresh.AvgDuration, 0.001)
}

func TestQueriesWithoutCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.addMatch(t, "d1", "dota2", 1, 30)
	f.addMatch(t, "d2", "dota2", 2, 40)
	f.addMatch(t, "v1", "valorant", 1, 35)

	stats, err := f.service.GameStatistics(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "all", stats.GameID)
	assert.Equal(t, constants.DefaultQueryDays, stats.Days)
	assert.Equal(t, 3, stats.TotalMatches)

	trends, err := f.service.DailyTrends(ctx, "dota2", 7)
	require.NoError(t, err)
	assert.Len(t, trends, 2)

	comparison, err := f.service.AllGamesComparison(ctx, 7)
	require.NoError(t, err)
	assert.NotEmpty(t, comparison)

	points, err := f.service.GameTrendsComparison(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, points, 3)
}

func TestEmptyResultsAreEmptyLists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	top, err := f.service.TopPlayers(ctx, "cod", 7, 0)
	require.NoError(t, err)
	assert.NotNil(t, top)
	assert.Empty(t, top)

	// served from cache on the second call
	top, err = f.service.TopPlayers(ctx, "cod", 7, 0)
	require.NoError(t, err)
	assert.NotNil(t, top)
	assert.Empty(t, top)
	assert.True(t, f.redis.Exists("gamestats:query:top:cod:7:10"))
}

func TestForecastsFromToday(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	day := func(offset int) time.Time {
		return time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
	}
	require.NoError(t, f.forecasts.UpsertBatch(ctx, []domain.Forecast{
		{ForecastID: "forecast_dota2_player_count_20240530", GameID: "dota2", ForecastDate: day(-1), PredictedMetric: "player_count", PredictedValue: 1000, ConfidenceLower: 800, ConfidenceUpper: 1200, ModelVersion: "1.0"},
		{ForecastID: "forecast_dota2_player_count_20240601", GameID: "dota2", ForecastDate: day(1), PredictedMetric: "player_count", PredictedValue: 1000, ConfidenceLower: 800, ConfidenceUpper: 1200, ModelVersion: "1.0"},
	}))

	got, err := f.service.Forecasts(ctx, "dota2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "forecast_dota2_player_count_20240601", got[0].ForecastID)
}
