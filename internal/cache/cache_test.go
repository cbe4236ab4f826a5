package cache

import (
	"context"
	"testing"
	"time"

	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	GameID  string `json:"game_id"`
	Matches int    `json:"matches"`
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, constants.AnalyticsCachePrefix, time.Minute, zerolog.Nop()), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	var got payload
	found, err := c.Get(ctx, "stats:dota2:30", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "stats:dota2:30", payload{GameID: "dota2", Matches: 12}))
	assert.True(t, mr.Exists("gamestats:query:stats:dota2:30"))

	found, err = c.Get(ctx, "stats:dota2:30", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{GameID: "dota2", Matches: 12}, got)
}

func TestRedisCacheExpires(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	require.NoError(t, c.Set(ctx, "k", payload{}))
	mr.FastForward(2 * time.Minute)

	found, err := c.Get(ctx, "k", &payload{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheInvalidateOnlyTouchesPrefix(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	require.NoError(t, c.Set(ctx, "a", payload{}))
	require.NoError(t, c.Set(ctx, "b", payload{}))
	require.NoError(t, mr.Set("other:key", "keep"))

	require.NoError(t, c.Invalidate(ctx))

	assert.False(t, mr.Exists("gamestats:query:a"))
	assert.False(t, mr.Exists("gamestats:query:b"))
	assert.True(t, mr.Exists("other:key"))
}

func TestNewWithoutRedisIsNop(t *testing.T) {
	c := New(&config.Config{}, zerolog.Nop())
	assert.IsType(t, NopCache{}, c)

	found, err := c.Get(context.Background(), "k", &payload{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewConnectsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	c := New(&config.Config{RedisAddr: mr.Addr(), CacheTTL: time.Minute}, zerolog.Nop())
	t.Cleanup(func() { c.Close() })

	_, ok := c.(*RedisCache)
	assert.True(t, ok)
}

func TestNewFallsBackWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c := New(&config.Config{RedisAddr: addr}, zerolog.Nop())
	assert.IsType(t, NopCache{}, c)
}
