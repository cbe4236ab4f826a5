package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/domain"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const SourceHenrikDev = "henrikdev"

// HenrikDev is the community Valorant API. It returns full v4 match documents
// (players included) for a player in one call.
type HenrikDev struct {
	client *Client
	region string
	puuids []string
	logger zerolog.Logger
}

func NewHenrikDev(cfg *config.Config, logger zerolog.Logger) *HenrikDev {
	return NewHenrikDevWith(cfg.HDev, cfg.HDevRegion, cfg.HDevPUUIDs, logger)
}

func NewHenrikDevWith(cfg config.SourceConfig, region string, puuids []string, logger zerolog.Logger) *HenrikDev {
	return &HenrikDev{
		client: NewClient(SourceHenrikDev, cfg, logger),
		region: region,
		puuids: puuids,
		logger: logger.With().Str("source", SourceHenrikDev).Logger(),
	}
}

func (c *HenrikDev) SourceName() string { return SourceHenrikDev }

func (c *HenrikDev) RateLimitInfo() RateLimitInfo { return c.client.GetRateLimitInfo() }

type v4MatchesResponse struct {
	Status int               `json:"status"`
	Data   []json.RawMessage `json:"data"`
}

func (c *HenrikDev) FetchData(ctx context.Context, gameID string, limit int) ([]domain.RawRecord, error) {
	if gameID != "valorant" {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedGame, SourceHenrikDev, gameID)
	}
	if limit <= 0 || !c.client.RequireKey() {
		return []domain.RawRecord{}, nil
	}

	headers := map[string]string{"Authorization": c.client.apiKey}
	seen := make(map[string]struct{})
	records := make([]domain.RawRecord, 0, limit)

	for _, puuid := range c.puuids {
		if len(records) >= limit {
			break
		}
		path := fmt.Sprintf("/valorant/v4/by-puuid/matches/%s/pc/%s", url.PathEscape(c.region), url.PathEscape(puuid))
		resp, err := doRequest[v4MatchesResponse](ctx, c.client, path, nil, headers)
		if err != nil {
			c.logger.Warn().Err(err).Str("puuid", puuid).Msg("matches unavailable")
			continue
		}

		fetchedAt := time.Now().UTC()
		for _, raw := range resp.Data {
			if len(records) >= limit {
				break
			}
			id := gjson.GetBytes(raw, "metadata.match_id").String()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			records = append(records, newRecord(gameID, SourceHenrikDev, raw, fetchedAt))
		}
	}

	c.logger.Info().Str("game_id", gameID).Int("records", len(records)).Msg("fetched matches")
	return records, nil
}
