package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"gamestats-pipeline/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func testSource(url string) config.SourceConfig {
	return config.SourceConfig{
		BaseURL:        url,
		RateLimit:      6000,
		RateWindow:     time.Minute,
		RetryCount:     2,
		RetryBaseDelay: time.Millisecond,
		Timeout:        2 * time.Second,
	}
}

func TestOpenDotaFetchTrimsToLimit(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/publicMatches", r.URL.Path)
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("X-Ratelimit-Remaining", "42")
		fmt.Fprint(w, `[{"match_id":1},{"match_id":2},{"match_id":3},{"match_id":4},{"match_id":5}]`)
	}))
	defer srv.Close()

	c := NewOpenDotaWith(testSource(srv.URL), zerolog.Nop())
	records, err := c.FetchData(context.Background(), "dota2", 3)
	require.NoError(t, err)

	assert.Equal(t, "6", gotLimit)
	require.Len(t, records, 3)
	assert.Equal(t, int64(1), gjson.GetBytes(records[0].Payload, "match_id").Int())
	assert.Equal(t, "opendota", records[2].Source)
	assert.Equal(t, "dota2", records[2].GameID)
	assert.Equal(t, 42, c.RateLimitInfo().Remaining)
}

func TestOpenDotaPageIsCapped(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := NewOpenDotaWith(testSource(srv.URL), zerolog.Nop())
	records, err := c.FetchData(context.Background(), "dota2", 500)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, "100", gotLimit)
}

func TestOpenDotaRejectsOtherGames(t *testing.T) {
	c := NewOpenDotaWith(testSource("http://127.0.0.1:1"), zerolog.Nop())
	_, err := c.FetchData(context.Background(), "csgo", 5)
	assert.ErrorIs(t, err, ErrUnsupportedGame)
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[{"match_id":9}]`)
	}))
	defer srv.Close()

	c := NewOpenDotaWith(testSource(srv.URL), zerolog.Nop())
	records, err := c.FetchData(context.Background(), "dota2", 1)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRetryExhaustionDegradesToEmpty(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenDotaWith(testSource(srv.URL), zerolog.Nop())
	records, err := c.FetchData(context.Background(), "dota2", 5)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int32(3), hits.Load(), "one attempt plus two retries")
}

func TestNonRetryableStatusFailsFast(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("test", testSource(srv.URL), zerolog.Nop())
	_, err := c.Get(context.Background(), "/missing", nil, nil)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
	assert.Equal(t, int32(1), hits.Load())
}

func TestMinimumIntervalBetweenRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	cfg := testSource(srv.URL)
	cfg.RateLimit = 600 // 100ms apart
	c := NewClient("test", cfg, zerolog.Nop())
	require.Equal(t, 100*time.Millisecond, cfg.MinInterval())

	const n = 4
	start := time.Now()
	for i := 0; i < n; i++ {
		_, err := c.Get(context.Background(), "/", nil, nil)
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	// small allowance for the limiter's float arithmetic
	assert.GreaterOrEqual(t, elapsed, time.Duration(n-1)*cfg.MinInterval()-5*time.Millisecond)
}

func TestSeparateClientsHaveSeparateLimiters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	cfg := testSource(srv.URL)
	cfg.RateLimit = 1 // one per minute
	a := NewClient("a", cfg, zerolog.Nop())
	b := NewClient("b", cfg, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := a.Get(ctx, "/", nil, nil)
	require.NoError(t, err)
	_, err = b.Get(ctx, "/", nil, nil)
	require.NoError(t, err, "b must not wait on a's slot")
}

func TestSteamWithoutKeyReturnsNothing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewSteamWith(testSource(srv.URL), testSource(srv.URL), zerolog.Nop())
	records, err := c.FetchData(context.Background(), "csgo", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, hits.Load())
}

func TestSteamSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ISteamUserStats/GetNumberOfCurrentPlayers/v1/":
			assert.Equal(t, "730", r.URL.Query().Get("appid"))
			assert.Equal(t, "secret", r.URL.Query().Get("key"))
			fmt.Fprint(w, `{"response":{"player_count":812345,"result":1}}`)
		case "/api/appdetails":
			fmt.Fprint(w, `{"730":{"success":true,"data":{"name":"Counter-Strike 2","genres":[{"id":"1","description":"Action"}]}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	api := testSource(srv.URL)
	api.APIKey = "secret"
	c := NewSteamWith(api, testSource(srv.URL), zerolog.Nop())
	c.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) }

	records, err := c.FetchData(context.Background(), "csgo", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	doc := gjson.ParseBytes(records[0].Payload)
	assert.Equal(t, "steam_csgo_730_2024030914", doc.Get("snapshot_id").String())
	assert.Equal(t, int64(812345), doc.Get("player_count").Int())
	assert.Equal(t, "2024-03-09T14:05:00Z", doc.Get("captured_at").String())
	assert.Equal(t, "Counter-Strike 2", doc.Get("app_name").String())
	assert.Equal(t, `["Action"]`, doc.Get("genres").Raw)
}

func TestRiotRequiresPUUIDs(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	cfg := testSource(srv.URL)
	cfg.APIKey = "key"
	c := NewRiotWith(cfg, nil, zerolog.Nop())
	records, err := c.FetchData(context.Background(), "valorant", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, hits.Load())
}

func TestRiotFetchesMatchDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-Riot-Token"))
		switch r.URL.Path {
		case "/val/match/v1/matchlists/by-puuid/p1":
			fmt.Fprint(w, `{"puuid":"p1","history":[{"matchId":"m1"},{"matchId":"m2"},{"matchId":"m3"}]}`)
		case "/val/match/v1/matchlists/by-puuid/p2":
			fmt.Fprint(w, `{"puuid":"p2","history":[{"matchId":"m2"}]}`)
		case "/val/match/v1/matches/m1", "/val/match/v1/matches/m2":
			fmt.Fprintf(w, `{"matchInfo":{"matchId":%q}}`, r.URL.Path[len("/val/match/v1/matches/"):])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := testSource(srv.URL)
	cfg.APIKey = "key"
	c := NewRiotWith(cfg, []string{"p1", "p2"}, zerolog.Nop())
	records, err := c.FetchData(context.Background(), "valorant", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "m1", gjson.GetBytes(records[0].Payload, "matchInfo.matchId").String())
	assert.Equal(t, "m2", gjson.GetBytes(records[1].Payload, "matchInfo.matchId").String())
}

func TestHenrikDevSplitsMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "hdev-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/valorant/v4/by-puuid/matches/eu/pc/p1", r.URL.Path)
		fmt.Fprint(w, `{"status":200,"data":[{"metadata":{"match_id":"a"}},{"metadata":{"match_id":"b"}},{"metadata":{"match_id":"a"}}]}`)
	}))
	defer srv.Close()

	cfg := testSource(srv.URL)
	cfg.APIKey = "hdev-key"
	c := NewHenrikDevWith(cfg, "eu", []string{"p1"}, zerolog.Nop())
	records, err := c.FetchData(context.Background(), "valorant", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "henrikdev", records[0].Source)
	assert.Equal(t, "b", gjson.GetBytes(records[1].Payload, "metadata.match_id").String())
}

func TestOpenDotaMatchDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/matches/77" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"match_id":77,"players":[{"account_id":1}]}`)
	}))
	defer srv.Close()

	c := NewOpenDotaWith(testSource(srv.URL), zerolog.Nop())
	rec, err := c.FetchMatchDetail(context.Background(), "dota2", "77")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.GetBytes(rec.Payload, "players.0.account_id").Int())

	_, err = c.FetchMatchDetail(context.Background(), "dota2", "78")
	assert.Error(t, err)
}
