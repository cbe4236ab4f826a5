package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gamestats-pipeline/internal/analytics"
	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/constants"
	"gamestats-pipeline/internal/domain"
	"gamestats-pipeline/internal/forecast"
	"gamestats-pipeline/internal/repository"

	"github.com/rs/zerolog"
)

var ErrAlreadyRunning = errors.New("pipeline already running")

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

// Scheduler owns the run lock. A run is the ETL pass followed by forecasts
// for every game and a query cache flush, recorded in pipeline_runs.
type Scheduler struct {
	pipeline     *Pipeline
	forecasts    *forecast.Engine
	analytics    *analytics.Service
	runs         *repository.RunRepository
	interval     time.Duration
	limit        int
	forecastDays int

	running sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger zerolog.Logger
}

func NewScheduler(
	cfg *config.Config,
	pipeline *Pipeline,
	forecasts *forecast.Engine,
	analyticsService *analytics.Service,
	runs *repository.RunRepository,
	logger zerolog.Logger,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		pipeline:     pipeline,
		forecasts:    forecasts,
		analytics:    analyticsService,
		runs:         runs,
		interval:     cfg.PipelineInterval,
		limit:        cfg.PipelineLimitPerGame,
		forecastDays: cfg.ForecastDays,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger.With().Str("component", "scheduler").Logger(),
	}
}

// RunOnce runs synchronously, or returns ErrAlreadyRunning when another run
// holds the lock.
func (s *Scheduler) RunOnce(ctx context.Context, trigger string) (*domain.PipelineRun, error) {
	if !s.running.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer s.running.Unlock()
	return s.execute(ctx, trigger)
}

// Trigger starts a run in the background and returns at once.
func (s *Scheduler) Trigger(trigger string) error {
	if !s.running.TryLock() {
		return ErrAlreadyRunning
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Unlock()
		if _, err := s.execute(s.ctx, trigger); err != nil {
			s.logger.Error().Err(err).Str("trigger", trigger).Msg("triggered run failed")
		}
	}()
	return nil
}

func (s *Scheduler) execute(ctx context.Context, trigger string) (*domain.PipelineRun, error) {
	run, err := s.runs.Start(ctx, trigger)
	if err != nil {
		return nil, err
	}
	log := s.logger.With().Str("run_id", run.RunID).Str("trigger", trigger).Logger()
	log.Info().Msg("run started")

	result, runErr := s.pipeline.Run(ctx, s.limit)
	run.MatchesLoaded = result.MatchesLoaded
	run.StatsLoaded = result.StatsLoaded
	run.EventsLoaded = result.EventsLoaded

	if runErr == nil {
		saved, err := s.forecasts.GenerateAll(ctx, s.forecastDays)
		run.ForecastsSaved = saved
		if err != nil {
			runErr = fmt.Errorf("failed to save forecasts: %w", err)
		}
	}

	// the run is recorded even when ctx was cancelled
	bookkeeping, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DatabaseTimeout)
	defer cancel()

	if err := s.analytics.Invalidate(bookkeeping); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate query cache")
	}

	run.Status = domain.RunStatusSucceeded
	if runErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = runErr.Error()
	}
	if err := s.runs.Finish(bookkeeping, run); err != nil {
		log.Error().Err(err).Msg("failed to record run result")
	}

	log.Info().
		Str("status", run.Status).
		Int("matches_loaded", run.MatchesLoaded).
		Int("stats_loaded", run.StatsLoaded).
		Int("events_loaded", run.EventsLoaded).
		Int("forecasts_saved", run.ForecastsSaved).
		Msg("run finished")
	return run, runErr
}

// Start begins the periodic loop. A non-positive interval leaves only manual
// runs.
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		s.logger.Info().Msg("periodic runs disabled")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				_, err := s.RunOnce(s.ctx, TriggerSchedule)
				switch {
				case errors.Is(err, ErrAlreadyRunning):
					s.logger.Info().Msg("skipping tick, run in progress")
				case err != nil:
					s.logger.Error().Err(err).Msg("scheduled run failed")
				}
			}
		}
	}()
}

// Stop cancels any in-flight run and waits for it, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to stop scheduler: %w", ctx.Err())
	}
}

func (s *Scheduler) RecentRuns(ctx context.Context, limit int) ([]domain.PipelineRun, error) {
	if limit <= 0 {
		limit = constants.RecentRunsLimit
	}
	return s.runs.Recent(ctx, limit)
}
