package extract

import (
	"context"
	"fmt"
	"time"

	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/connector"
	"gamestats-pipeline/internal/constants"
	"gamestats-pipeline/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SourceReport records what one (game, source) pair produced in a run.
type SourceReport struct {
	GameID   string        `json:"game_id"`
	Source   string        `json:"source"`
	Records  int           `json:"records"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type Orchestrator struct {
	games   []string
	routes  map[string][]connector.Connector
	workers int
	logger  zerolog.Logger
}

// NewOrchestrator wires the production routing: which upstreams serve which
// game. Games absent from the table are still tracked and come back empty.
func NewOrchestrator(
	cfg *config.Config,
	opendota *connector.OpenDota,
	steam *connector.Steam,
	riot *connector.Riot,
	hdev *connector.HenrikDev,
	logger zerolog.Logger,
) *Orchestrator {
	routes := map[string][]connector.Connector{
		"dota2":    {opendota, steam},
		"csgo":     {steam},
		"valorant": {riot, hdev},
		"gta5":     {steam},
	}
	return New(constants.TrackedGames, routes, cfg.ExtractWorkers, logger)
}

func New(games []string, routes map[string][]connector.Connector, workers int, logger zerolog.Logger) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		games:   games,
		routes:  routes,
		workers: workers,
		logger:  logger.With().Str("component", "extract").Logger(),
	}
}

func (o *Orchestrator) Games() []string {
	return append([]string(nil), o.games...)
}

type job struct {
	game string
	conn connector.Connector
}

// ExtractAll runs every (game, connector) pair on a bounded pool. A failing or
// panicking source contributes zero records; it never stops the others.
// Records for a game keep the connector registration order.
func (o *Orchestrator) ExtractAll(ctx context.Context, limitPerGame int) (map[string][]domain.RawRecord, []SourceReport) {
	var jobs []job
	for _, game := range o.games {
		for _, conn := range o.routes[game] {
			if conn != nil {
				jobs = append(jobs, job{game: game, conn: conn})
			}
		}
	}

	results := make([][]domain.RawRecord, len(jobs))
	reports := make([]SourceReport, len(jobs))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, j := range jobs {
		g.Go(func() error {
			results[i], reports[i] = o.run(ctx, j, limitPerGame)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string][]domain.RawRecord, len(o.games))
	for _, game := range o.games {
		out[game] = []domain.RawRecord{}
	}
	for i, j := range jobs {
		out[j.game] = append(out[j.game], results[i]...)
	}

	for _, game := range o.games {
		o.logger.Info().Str("game_id", game).Int("records", len(out[game])).Msg("extraction finished")
	}
	return out, reports
}

func (o *Orchestrator) run(ctx context.Context, j job, limit int) (records []domain.RawRecord, report SourceReport) {
	start := time.Now()
	report = SourceReport{GameID: j.game, Source: j.conn.SourceName()}

	defer func() {
		if r := recover(); r != nil {
			records = nil
			report.Err = fmt.Sprintf("panic: %v", r)
			o.logger.Error().Str("game_id", j.game).Str("source", report.Source).Interface("panic", r).Msg("connector panicked")
		}
		report.Records = len(records)
		report.Duration = time.Since(start)
	}()

	records, err := j.conn.FetchData(ctx, j.game, limit)
	if err != nil {
		report.Err = err.Error()
		o.logger.Warn().Err(err).Str("game_id", j.game).Str("source", report.Source).Msg("source failed, counting zero records")
		return nil, report
	}
	if len(records) == 0 {
		o.logger.Debug().Str("game_id", j.game).Str("source", report.Source).Msg("source returned no records")
	}
	return records, report
}
