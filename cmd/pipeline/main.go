package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gamestats-pipeline/internal/config"
	fxmodules "gamestats-pipeline/internal/fx"
	"gamestats-pipeline/internal/pipeline"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Runs one extract, transform, load and forecast pass, then exits.
func main() {
	limit := flag.Int("limit", 0, "records to extract per game (default PIPELINE_LIMIT_PER_GAME)")
	days := flag.Int("forecast-days", 0, "days to forecast (default FORECAST_DAYS)")
	flag.Parse()

	var (
		scheduler *pipeline.Scheduler
		logger    zerolog.Logger
	)
	app := fx.New(
		fxmodules.Module,
		fx.Decorate(func(cfg *config.Config) *config.Config {
			if *limit > 0 {
				cfg.PipelineLimitPerGame = *limit
			}
			if *days > 0 {
				cfg.ForecastDays = *days
			}
			return cfg
		}),
		fx.Populate(&scheduler, &logger),
		fx.NopLogger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	run, err := scheduler.RunOnce(ctx, pipeline.TriggerCLI)
	if err != nil {
		logger.Error().Err(err).Msg("pipeline run failed")
	} else {
		logger.Info().
			Str("run_id", run.RunID).
			Int("matches_loaded", run.MatchesLoaded).
			Int("stats_loaded", run.StatsLoaded).
			Int("events_loaded", run.EventsLoaded).
			Int("forecasts_saved", run.ForecastsSaved).
			Msg("pipeline run complete")
	}

	if stopErr := app.Stop(context.Background()); stopErr != nil {
		logger.Warn().Err(stopErr).Msg("shutdown incomplete")
	}
	if err != nil {
		os.Exit(1)
	}
}
