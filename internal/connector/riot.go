package connector

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/domain"

	"github.com/rs/zerolog"
)

const SourceRiot = "riot"

// Riot serves valorant matches for a configured set of players. The official
// API has no public match feed, so without PUUIDs there is nothing to fetch.
type Riot struct {
	client *Client
	puuids []string
	logger zerolog.Logger
}

func NewRiot(cfg *config.Config, logger zerolog.Logger) *Riot {
	return NewRiotWith(cfg.Riot, cfg.RiotPUUIDs, logger)
}

func NewRiotWith(cfg config.SourceConfig, puuids []string, logger zerolog.Logger) *Riot {
	return &Riot{
		client: NewClient(SourceRiot, cfg, logger),
		puuids: puuids,
		logger: logger.With().Str("source", SourceRiot).Logger(),
	}
}

func (c *Riot) SourceName() string { return SourceRiot }

func (c *Riot) RateLimitInfo() RateLimitInfo { return c.client.GetRateLimitInfo() }

type riotMatchList struct {
	PUUID   string `json:"puuid"`
	History []struct {
		MatchID             string `json:"matchId"`
		GameStartTimeMillis int64  `json:"gameStartTimeMillis"`
		QueueID             string `json:"queueId"`
	} `json:"history"`
}

func (c *Riot) headers() map[string]string {
	return map[string]string{"X-Riot-Token": c.client.apiKey}
}

func (c *Riot) FetchData(ctx context.Context, gameID string, limit int) ([]domain.RawRecord, error) {
	if gameID != "valorant" {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedGame, SourceRiot, gameID)
	}
	if limit <= 0 || !c.client.RequireKey() {
		return []domain.RawRecord{}, nil
	}
	if len(c.puuids) == 0 {
		c.logger.Debug().Msg("no PUUIDs configured, nothing to fetch")
		return []domain.RawRecord{}, nil
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, puuid := range c.puuids {
		list, err := doRequest[riotMatchList](ctx, c.client, "/val/match/v1/matchlists/by-puuid/"+url.PathEscape(puuid), nil, c.headers())
		if err != nil {
			c.logger.Warn().Err(err).Str("puuid", puuid).Msg("match list unavailable")
			continue
		}
		for _, h := range list.History {
			if _, dup := seen[h.MatchID]; dup || h.MatchID == "" {
				continue
			}
			seen[h.MatchID] = struct{}{}
			ids = append(ids, h.MatchID)
		}
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	records := make([]domain.RawRecord, 0, len(ids))
	for _, id := range ids {
		body, err := c.client.Get(ctx, "/val/match/v1/matches/"+url.PathEscape(id), nil, c.headers())
		if err != nil {
			c.logger.Warn().Err(err).Str("match_id", id).Msg("match unavailable, skipping")
			continue
		}
		records = append(records, newRecord(gameID, SourceRiot, body, time.Now().UTC()))
	}

	c.logger.Info().Str("game_id", gameID).Int("records", len(records)).Msg("fetched matches")
	return records, nil
}
