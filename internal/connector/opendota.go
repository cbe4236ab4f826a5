package connector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/constants"
	"gamestats-pipeline/internal/domain"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const SourceOpenDota = "opendota"

// OpenDota serves dota2 public matches. The API is usable without a key; a
// configured key is sent as api_key for the higher quota.
type OpenDota struct {
	client *Client
	logger zerolog.Logger
}

func NewOpenDota(cfg *config.Config, logger zerolog.Logger) *OpenDota {
	return NewOpenDotaWith(cfg.OpenDota, logger)
}

func NewOpenDotaWith(cfg config.SourceConfig, logger zerolog.Logger) *OpenDota {
	return &OpenDota{
		client: NewClient(SourceOpenDota, cfg, logger),
		logger: logger.With().Str("source", SourceOpenDota).Logger(),
	}
}

func (c *OpenDota) SourceName() string { return SourceOpenDota }

func (c *OpenDota) RateLimitInfo() RateLimitInfo { return c.client.GetRateLimitInfo() }

func (c *OpenDota) query() url.Values {
	q := url.Values{}
	if c.client.HasKey() {
		q.Set("api_key", c.client.apiKey)
	}
	return q
}

func (c *OpenDota) FetchData(ctx context.Context, gameID string, limit int) ([]domain.RawRecord, error) {
	if gameID != "dota2" {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedGame, SourceOpenDota, gameID)
	}
	if limit <= 0 {
		return []domain.RawRecord{}, nil
	}

	// over-fetch since the public feed contains matches we later drop
	page := min(limit*2, constants.OpenDotaMaxPageSize)
	q := c.query()
	q.Set("limit", strconv.Itoa(page))

	body, err := c.client.Get(ctx, "/publicMatches", q, nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("game_id", gameID).Msg("public matches unavailable, returning no records")
		return []domain.RawRecord{}, nil
	}

	list := gjson.ParseBytes(body)
	if !list.IsArray() {
		c.logger.Warn().Str("game_id", gameID).Msg("unexpected public matches payload")
		return []domain.RawRecord{}, nil
	}

	fetchedAt := time.Now().UTC()
	records := make([]domain.RawRecord, 0, limit)
	list.ForEach(func(_, item gjson.Result) bool {
		if len(records) >= limit {
			return false
		}
		records = append(records, newRecord(gameID, SourceOpenDota, []byte(item.Raw), fetchedAt))
		return true
	})

	c.logger.Info().Str("game_id", gameID).Int("records", len(records)).Msg("fetched public matches")
	return records, nil
}

// FetchMatchDetail returns the full match document, including players and
// objectives. Failures are returned to the caller, which skips the match.
func (c *OpenDota) FetchMatchDetail(ctx context.Context, gameID, matchID string) (domain.RawRecord, error) {
	body, err := c.client.Get(ctx, "/matches/"+url.PathEscape(matchID), c.query(), nil)
	if err != nil {
		return domain.RawRecord{}, fmt.Errorf("failed to fetch match %s: %w", matchID, err)
	}
	if !gjson.ValidBytes(body) {
		return domain.RawRecord{}, fmt.Errorf("invalid JSON for match %s", matchID)
	}
	return newRecord(gameID, SourceOpenDota, body, time.Now().UTC()), nil
}
