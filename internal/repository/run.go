package repository

import (
	"context"
	"fmt"
	"time"

	"gamestats-pipeline/internal/db"
	"gamestats-pipeline/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type RunRepository struct {
	queries *db.Queries
	logger  zerolog.Logger
}

func NewRunRepository(queries *db.Queries, logger zerolog.Logger) *RunRepository {
	return &RunRepository{
		queries: queries,
		logger:  logger,
	}
}

func (r *RunRepository) Start(ctx context.Context, triggeredBy string) (*domain.PipelineRun, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nanoid: %w", err)
	}

	run := &domain.PipelineRun{
		RunID:       id,
		TriggeredBy: triggeredBy,
		Status:      domain.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	err = r.queries.CreatePipelineRun(ctx, db.CreatePipelineRunParams{
		RunID:       run.RunID,
		TriggeredBy: run.TriggeredBy,
		Status:      run.Status,
		StartedAt:   run.StartedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record pipeline run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) Finish(ctx context.Context, run *domain.PipelineRun) error {
	finished := time.Now().UTC()
	run.FinishedAt = &finished

	err := r.queries.FinishPipelineRun(ctx, db.FinishPipelineRunParams{
		Status:         run.Status,
		FinishedAt:     finished,
		MatchesLoaded:  int64(run.MatchesLoaded),
		StatsLoaded:    int64(run.StatsLoaded),
		EventsLoaded:   int64(run.EventsLoaded),
		ForecastsSaved: int64(run.ForecastsSaved),
		Error:          run.Error,
		RunID:          run.RunID,
	})
	if err != nil {
		return fmt.Errorf("failed to finish pipeline run %s: %w", run.RunID, err)
	}
	return nil
}

func (r *RunRepository) Recent(ctx context.Context, limit int) ([]domain.PipelineRun, error) {
	rows, err := r.queries.ListPipelineRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}

	result := make([]domain.PipelineRun, len(rows))
	for i, row := range rows {
		run := domain.PipelineRun{
			RunID:          row.RunID,
			TriggeredBy:    row.TriggeredBy,
			Status:         row.Status,
			StartedAt:      row.StartedAt.UTC(),
			MatchesLoaded:  int(row.MatchesLoaded),
			StatsLoaded:    int(row.StatsLoaded),
			EventsLoaded:   int(row.EventsLoaded),
			ForecastsSaved: int(row.ForecastsSaved),
			Error:          row.Error,
		}
		if row.FinishedAt.Valid {
			finished := row.FinishedAt.Time.UTC()
			run.FinishedAt = &finished
		}
		result[i] = run
	}
	return result, nil
}
