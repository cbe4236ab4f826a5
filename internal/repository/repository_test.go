package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/database"
	"gamestats-pipeline/internal/db"
	"gamestats-pipeline/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*sql.DB, *db.Queries) {
	t.Helper()
	sqlDB, err := database.New(&config.Config{DBPath: filepath.Join(t.TempDir(), "test.db")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB, db.New(sqlDB)
}

func match(id, game string, at time.Time, duration int) domain.Match {
	return domain.Match{
		MatchID:         id,
		GameID:          game,
		MatchDate:       at,
		DurationMinutes: duration,
		MatchType:       "ranked",
		Platform:        "pc",
		Source:          "test",
		AdditionalData:  `{"k":1}`,
	}
}

func TestMatchUpsertInsertThenUpdate(t *testing.T) {
	ctx := context.Background()
	_, queries := newTestDB(t)
	repo := NewMatchRepository(queries, zerolog.Nop())

	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	inserted, err := repo.Upsert(ctx, nil, match("m1", "dota2", at, 40))
	require.NoError(t, err)
	assert.True(t, inserted)

	changed := match("m1", "dota2", at, 45)
	changed.MatchType = "public"
	inserted, err = repo.Upsert(ctx, nil, changed)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := repo.Get(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 45, got.DurationMinutes)
	assert.Equal(t, "public", got.MatchType)
	assert.True(t, at.Equal(got.MatchDate))

	count, err := repo.Count(ctx, "dota2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMatchDailyCounts(t *testing.T) {
	ctx := context.Background()
	_, queries := newTestDB(t)
	repo := NewMatchRepository(queries, zerolog.Nop())

	now := time.Date(2024, 5, 31, 18, 0, 0, 0, time.UTC)
	fixtures := []domain.Match{
		match("a", "dota2", now.AddDate(0, 0, -1), 30),
		match("b", "dota2", now.AddDate(0, 0, -1).Add(time.Hour), 30),
		match("c", "dota2", now.AddDate(0, 0, -3), 30),
		match("old", "dota2", now.AddDate(0, 0, -40), 30),
		match("other", "csgo", now.AddDate(0, 0, -1), 30),
	}
	for _, m := range fixtures {
		_, err := repo.Upsert(ctx, nil, m)
		require.NoError(t, err)
	}

	counts, err := repo.DailyCounts(ctx, "dota2", now, 30)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, time.Date(2024, 5, 28, 0, 0, 0, 0, time.UTC), counts[0].Date)
	assert.Equal(t, 1, counts[0].Count)
	assert.Equal(t, 2, counts[1].Count)
}

func TestPlayerStatUpsertRequiresMatchAndPlayer(t *testing.T) {
	ctx := context.Background()
	_, queries := newTestDB(t)
	matches := NewMatchRepository(queries, zerolog.Nop())
	players := NewPlayerRepository(queries, zerolog.Nop())
	stats := NewPlayerStatRepository(queries, zerolog.Nop())

	stat := domain.PlayerStat{StatID: "stat_m1_7", PlayerID: "p7", MatchID: "m1", GameID: "dota2", Kills: 3}
	_, err := stats.Upsert(ctx, nil, stat)
	assert.Error(t, err, "foreign keys must reject an orphan stat")

	_, err = matches.Upsert(ctx, nil, match("m1", "dota2", time.Now(), 30))
	require.NoError(t, err)
	require.NoError(t, players.Upsert(ctx, nil, stat.Player()))

	rank := 4
	stat.Rank = &rank
	inserted, err := stats.Upsert(ctx, nil, stat)
	require.NoError(t, err)
	assert.True(t, inserted)

	stat.Kills = 9
	inserted, err = stats.Upsert(ctx, nil, stat)
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := stats.CountByMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEventInsertIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	_, queries := newTestDB(t)
	matches := NewMatchRepository(queries, zerolog.Nop())
	events := NewEventRepository(queries, zerolog.Nop())

	_, err := matches.Upsert(ctx, nil, match("m1", "dota2", time.Now(), 30))
	require.NoError(t, err)

	ev := domain.GameEvent{EventID: "event_m1_0", MatchID: "m1", GameID: "dota2", EventType: "building_kill", EventTimestamp: time.Now()}
	inserted, err := events.Insert(ctx, nil, ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = events.Insert(ctx, nil, ev)
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := events.CountByMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestForecastUpsertBatch(t *testing.T) {
	ctx := context.Background()
	sqlDB, queries := newTestDB(t)
	repo := NewForecastRepository(sqlDB, queries, zerolog.Nop())

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	f := domain.Forecast{
		ForecastID:      "forecast_dota2_player_count_20240601",
		GameID:          "dota2",
		ForecastDate:    day,
		PredictedMetric: "player_count",
		PredictedValue:  1000,
		ConfidenceLower: 800,
		ConfidenceUpper: 1200,
		ModelVersion:    "1.0",
	}
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Forecast{f}))

	f.PredictedValue = 1100
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Forecast{f}))

	got, err := repo.ListFrom(ctx, "dota2", day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1100.0, got[0].PredictedValue)
	assert.True(t, day.Equal(got[0].ForecastDate))

	bad := f
	bad.ForecastID = "forecast_bad"
	bad.ConfidenceLower = 2000
	assert.Error(t, repo.UpsertBatch(ctx, []domain.Forecast{bad}), "interval check must hold in the store")
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	_, queries := newTestDB(t)
	repo := NewRunRepository(queries, zerolog.Nop())

	run, err := repo.Start(ctx, "manual")
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)

	run.Status = domain.RunStatusSucceeded
	run.MatchesLoaded = 4
	require.NoError(t, repo.Finish(ctx, run))

	runs, err := repo.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunStatusSucceeded, runs[0].Status)
	assert.Equal(t, 4, runs[0].MatchesLoaded)
	assert.NotNil(t, runs[0].FinishedAt)
}

func TestGameRepository(t *testing.T) {
	ctx := context.Background()
	_, queries := newTestDB(t)
	repo := NewGameRepository(queries, zerolog.Nop())

	games, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, games, 6)

	g, err := repo.Get(ctx, "valorant")
	require.NoError(t, err)
	assert.Equal(t, "riot", g.Platform)

	_, err = repo.Get(ctx, "zork")
	assert.ErrorIs(t, err, ErrGameNotFound)
}
