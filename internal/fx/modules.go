package fx

import (
	"context"
	"database/sql"

	"gamestats-pipeline/internal/analytics"
	"gamestats-pipeline/internal/cache"
	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/connector"
	"gamestats-pipeline/internal/database"
	"gamestats-pipeline/internal/db"
	"gamestats-pipeline/internal/extract"
	"gamestats-pipeline/internal/forecast"
	"gamestats-pipeline/internal/load"
	"gamestats-pipeline/internal/logger"
	"gamestats-pipeline/internal/pipeline"
	"gamestats-pipeline/internal/repository"
	"gamestats-pipeline/internal/server"
	"gamestats-pipeline/internal/transform"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideQueries(sqlDB *sql.DB) *db.Queries {
	return db.New(sqlDB)
}

// ProvideDatabase opens the store and closes it when the app stops.
func ProvideDatabase(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	sqlDB, err := database.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := sqlDB.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			return nil
		},
	})
	return sqlDB, nil
}

func ProvideCache(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) cache.QueryCache {
	queryCache := cache.New(cfg, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return queryCache.Close()
		},
	})
	return queryCache
}

// ProvideScheduler stops in-flight runs before the database hook closes the
// store; fx runs stop hooks in reverse order of registration.
func ProvideScheduler(
	lc fx.Lifecycle,
	cfg *config.Config,
	p *pipeline.Pipeline,
	engine *forecast.Engine,
	analyticsService *analytics.Service,
	runs *repository.RunRepository,
	logger zerolog.Logger,
) *pipeline.Scheduler {
	scheduler := pipeline.NewScheduler(cfg, p, engine, analyticsService, runs, logger)
	lc.Append(fx.Hook{
		OnStop: scheduler.Stop,
	})
	return scheduler
}

// Module builds everything a pipeline run needs.
var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(ProvideDatabase),
	fx.Provide(ProvideQueries),
	// repos
	fx.Provide(repository.NewGameRepository),
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewPlayerStatRepository),
	fx.Provide(repository.NewEventRepository),
	fx.Provide(repository.NewForecastRepository),
	fx.Provide(repository.NewRunRepository),
	fx.Provide(repository.NewAnalyticsRepository),
	// connectors
	fx.Provide(connector.NewOpenDota),
	fx.Provide(connector.NewSteam),
	fx.Provide(connector.NewRiot),
	fx.Provide(connector.NewHenrikDev),
	// etl
	fx.Provide(extract.NewOrchestrator),
	fx.Provide(transform.NewTransformer),
	fx.Provide(load.NewLoader),
	fx.Provide(pipeline.NewPipeline),
	// forecasting and queries
	fx.Provide(forecast.NewEngine),
	fx.Provide(ProvideCache),
	fx.Provide(analytics.NewService),
	fx.Provide(ProvideScheduler),
)

// ServerModule adds the dashboard RPC surface on top of Module.
var ServerModule = fx.Options(
	Module,
	fx.Provide(server.NewQueryServer),
)
