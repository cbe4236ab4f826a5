package load

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/database"
	"gamestats-pipeline/internal/db"
	"gamestats-pipeline/internal/domain"
	"gamestats-pipeline/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db      *sql.DB
	loader  *Loader
	matches *repository.MatchRepository
	stats   *repository.PlayerStatRepository
	events  *repository.EventRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "load.db"), LoadBatchSize: 4}
	sqlDB, err := database.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	queries := db.New(sqlDB)
	logger := zerolog.Nop()
	f := fixture{
		db:      sqlDB,
		matches: repository.NewMatchRepository(queries, logger),
		stats:   repository.NewPlayerStatRepository(queries, logger),
		events:  repository.NewEventRepository(queries, logger),
	}
	f.loader = NewLoader(sqlDB, queries, f.matches, repository.NewPlayerRepository(queries, logger), f.stats, f.events, cfg, logger)
	return f
}

func matches(n int) []domain.Match {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := make([]domain.Match, n)
	for i := range out {
		out[i] = domain.Match{
			MatchID:         fmt.Sprintf("m%d", i),
			GameID:          "dota2",
			MatchDate:       at.Add(time.Duration(i) * time.Hour),
			DurationMinutes: 30 + i,
			MatchType:       "ranked",
			Platform:        "pc",
			Source:          "opendota",
		}
	}
	return out
}

func TestLoadMatchesIsolatesConstraintViolations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	records := matches(10)
	records[6].DurationMinutes = 301

	result := f.loader.LoadMatches(ctx, records, 0)

	assert.Equal(t, domain.LoadResult{Inserted: 9, Errors: 1}, result)
	assert.Equal(t, 9, result.Persisted())

	count, err := f.matches.Count(ctx, "dota2")
	require.NoError(t, err)
	assert.Equal(t, 9, count)

	got, err := f.matches.Get(ctx, "m6")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = f.matches.Get(ctx, "m7")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestLoadMatchesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	records := matches(5)
	first := f.loader.LoadMatches(ctx, records, 2)
	assert.Equal(t, domain.LoadResult{Inserted: 5}, first)

	records[0].DurationMinutes = 99
	second := f.loader.LoadMatches(ctx, records, 2)
	assert.Equal(t, domain.LoadResult{Updated: 5}, second)

	count, err := f.matches.Count(ctx, "dota2")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	got, err := f.matches.Get(ctx, "m0")
	require.NoError(t, err)
	assert.Equal(t, 99, got.DurationMinutes)
}

func TestLoadMatchesRejectsUnknownGame(t *testing.T) {
	f := newFixture(t)

	records := matches(2)
	records[1].GameID = "chess"

	result := f.loader.LoadMatches(context.Background(), records, 0)
	assert.Equal(t, domain.LoadResult{Inserted: 1, Errors: 1}, result)
}

func TestLoadBeginFailureFailsWholeBatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Close())

	result := f.loader.LoadMatches(context.Background(), matches(6), 4)
	assert.Equal(t, domain.LoadResult{Errors: 6}, result)
}

func TestLoadPlayerStatsUpsertsPlayersFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.Equal(t, 2, f.loader.LoadMatches(ctx, matches(2), 0).Inserted)

	rank := 54
	stats := []domain.PlayerStat{
		{StatID: "stat_m0_1", PlayerID: "opendota_player_1", MatchID: "m0", GameID: "dota2", Username: "alpha", Kills: 10, Rank: &rank},
		{StatID: "stat_m1_1", PlayerID: "opendota_player_1", MatchID: "m1", GameID: "dota2", Kills: 4},
		{StatID: "stat_m9_2", PlayerID: "opendota_player_2", MatchID: "m9", GameID: "dota2"},
	}

	result := f.loader.LoadPlayerStats(ctx, stats, 0)
	assert.Equal(t, domain.LoadResult{Inserted: 2, Errors: 1}, result)

	n, err := f.stats.CountByMatch(ctx, "m0")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var username string
	require.NoError(t, f.db.QueryRow(`SELECT username FROM players WHERE player_id = ?`, "opendota_player_1").Scan(&username))
	assert.Equal(t, "alpha", username)

	// the failed stat's player row is rolled back with it
	var players int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM players WHERE player_id = ?`, "opendota_player_2").Scan(&players))
	assert.Zero(t, players)

	again := f.loader.LoadPlayerStats(ctx, stats[:2], 0)
	assert.Equal(t, domain.LoadResult{Updated: 2}, again)
}

func TestLoadGameEventsSkipsExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.Equal(t, 1, f.loader.LoadMatches(ctx, matches(1), 0).Inserted)

	at := time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC)
	events := []domain.GameEvent{
		{EventID: "event_m0_0", MatchID: "m0", GameID: "dota2", EventType: "CHAT_MESSAGE_FIRSTBLOOD", EventTimestamp: at},
		{EventID: "event_m0_1", MatchID: "m0", GameID: "dota2", EventType: "building_kill", EventTimestamp: at.Add(time.Minute)},
	}

	assert.Equal(t, domain.LoadResult{Inserted: 2}, f.loader.LoadGameEvents(ctx, events, 0))
	assert.Equal(t, domain.LoadResult{Skipped: 2}, f.loader.LoadGameEvents(ctx, events, 0))

	n, err := f.events.CountByMatch(ctx, "m0")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLoadEmptyInput(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, domain.LoadResult{}, f.loader.LoadMatches(context.Background(), nil, 0))
}
