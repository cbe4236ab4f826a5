package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/constants"
	fxmodules "gamestats-pipeline/internal/fx"
	"gamestats-pipeline/internal/middleware"
	"gamestats-pipeline/internal/pipeline"
	"gamestats-pipeline/internal/server"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.ServerModule,
		fx.Invoke(runServer),
		fx.Invoke(startScheduler),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	queryServer *server.QueryServer,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()

	path, handler := queryServer.Handler()
	mux.Handle(path, middleware.Chain(handler,
		middleware.RequestID(logger),
		middleware.Recover(logger),
		middleware.CORS(),
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           mux,
		ReadHeaderTimeout: constants.RequestTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}

func startScheduler(lc fx.Lifecycle, scheduler *pipeline.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			scheduler.Start()
			return nil
		},
	})
}
