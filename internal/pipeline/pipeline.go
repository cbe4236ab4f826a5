package pipeline

import (
	"context"
	"fmt"
	"sync"

	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/connector"
	"gamestats-pipeline/internal/constants"
	"gamestats-pipeline/internal/domain"
	"gamestats-pipeline/internal/extract"
	"gamestats-pipeline/internal/load"
	"gamestats-pipeline/internal/transform"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// Result holds what one run persisted. Loaded counts are newly inserted rows;
// rows that already existed and were refreshed are not counted.
type Result struct {
	MatchesLoaded int                    `json:"matches_loaded"`
	StatsLoaded   int                    `json:"stats_loaded"`
	EventsLoaded  int                    `json:"events_loaded"`
	Sources       []extract.SourceReport `json:"sources,omitempty"`
}

// Pipeline runs extract, transform and load for every tracked game.
type Pipeline struct {
	orchestrator *extract.Orchestrator
	// per-source fetchers for match payloads the list endpoints leave out
	details      map[string]connector.DetailFetcher
	transformer  *transform.Transformer
	loader       *load.Loader
	defaultLimit int
	logger       zerolog.Logger
}

func NewPipeline(
	cfg *config.Config,
	orchestrator *extract.Orchestrator,
	opendota *connector.OpenDota,
	transformer *transform.Transformer,
	loader *load.Loader,
	logger zerolog.Logger,
) *Pipeline {
	details := map[string]connector.DetailFetcher{connector.SourceOpenDota: opendota}
	return New(orchestrator, details, transformer, loader, cfg.PipelineLimitPerGame, logger)
}

func New(
	orchestrator *extract.Orchestrator,
	details map[string]connector.DetailFetcher,
	transformer *transform.Transformer,
	loader *load.Loader,
	defaultLimit int,
	logger zerolog.Logger,
) *Pipeline {
	if defaultLimit <= 0 {
		defaultLimit = constants.DefaultLimitPerGame
	}
	return &Pipeline{
		orchestrator: orchestrator,
		details:      details,
		transformer:  transformer,
		loader:       loader,
		defaultLimit: defaultLimit,
		logger:       logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run extracts up to limitPerGame records per game, then cleans and loads
// them. Source and record failures are absorbed and counted; the only error
// is a cancelled context.
func (p *Pipeline) Run(ctx context.Context, limitPerGame int) (Result, error) {
	if limitPerGame <= 0 {
		limitPerGame = p.defaultLimit
	}
	log := p.logger.With().Int("limit_per_game", limitPerGame).Logger()
	log.Info().Msg("pipeline run started")

	extracted, reports := p.orchestrator.ExtractAll(ctx, limitPerGame)
	if err := ctx.Err(); err != nil {
		return Result{Sources: reports}, fmt.Errorf("pipeline cancelled during extraction: %w", err)
	}

	var listed []domain.RawRecord
	for _, game := range p.orchestrator.Games() {
		listed = append(listed, extracted[game]...)
	}
	details := p.fetchDetails(ctx, listed)

	// detail payloads first so the richer copy of a match wins deduplication
	records := append(append([]domain.RawRecord{}, details...), listed...)

	matches, matchReport := p.transformer.Matches(records)
	stats, statReport := p.transformer.PlayerStats(records)
	events, eventReport := p.transformer.Events(records)
	log.Info().
		Int("raw", len(records)).
		Int("matches", matchReport.Output).
		Int("matches_dropped", matchReport.Dropped).
		Int("matches_duplicate", matchReport.Duplicates).
		Int("stats", statReport.Output).
		Int("stats_dropped", statReport.Dropped).
		Int("events", eventReport.Output).
		Msg("transform finished")

	// stats and events reference matches, so matches load first
	matchResult := p.loader.LoadMatches(ctx, matches, 0)
	statResult := p.loader.LoadPlayerStats(ctx, stats, 0)
	eventResult := p.loader.LoadGameEvents(ctx, events, 0)

	result := Result{
		MatchesLoaded: matchResult.Inserted,
		StatsLoaded:   statResult.Inserted,
		EventsLoaded:  eventResult.Inserted,
		Sources:       reports,
	}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("pipeline cancelled during load: %w", err)
	}

	log.Info().
		Int("matches_loaded", result.MatchesLoaded).
		Int("stats_loaded", result.StatsLoaded).
		Int("events_loaded", result.EventsLoaded).
		Msg("pipeline run finished")
	return result, nil
}

// fetchDetails pulls the full payload for the first few listed matches of
// every source that has a detail endpoint.
func (p *Pipeline) fetchDetails(ctx context.Context, listed []domain.RawRecord) []domain.RawRecord {
	type target struct {
		game    string
		matchID string
		fetcher connector.DetailFetcher
	}

	var targets []target
	perKey := make(map[string]int)
	for _, rec := range listed {
		fetcher, ok := p.details[rec.Source]
		if !ok || fetcher == nil {
			continue
		}
		key := rec.GameID + "/" + rec.Source
		if perKey[key] >= constants.DetailMatchLimit {
			continue
		}
		matchID := gjson.GetBytes(rec.Payload, "match_id").String()
		if matchID == "" {
			continue
		}
		perKey[key]++
		targets = append(targets, target{game: rec.GameID, matchID: matchID, fetcher: fetcher})
	}
	if len(targets) == 0 {
		return nil
	}

	results := make([]*domain.RawRecord, len(targets))
	var mu sync.Mutex
	failed := 0

	var g errgroup.Group
	g.SetLimit(constants.DetailMatchLimit)
	for i, t := range targets {
		g.Go(func() error {
			rec, err := t.fetcher.FetchMatchDetail(ctx, t.game, t.matchID)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				p.logger.Warn().Err(err).Str("game_id", t.game).Str("match_id", t.matchID).Msg("failed to fetch match detail")
				return nil
			}
			results[i] = &rec
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.RawRecord, 0, len(targets))
	for _, rec := range results {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	p.logger.Debug().Int("requested", len(targets)).Int("fetched", len(out)).Int("failed", failed).Msg("match details fetched")
	return out
}
