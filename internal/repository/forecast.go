package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gamestats-pipeline/internal/db"
	"gamestats-pipeline/internal/domain"

	"github.com/rs/zerolog"
)

type ForecastRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewForecastRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *ForecastRepository {
	return &ForecastRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// UpsertBatch overwrites forecasts by forecast_id in a single transaction.
func (r *ForecastRepository) UpsertBatch(ctx context.Context, forecasts []domain.Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	now := time.Now().UTC()

	for _, f := range forecasts {
		err := qtx.UpsertForecast(ctx, db.UpsertForecastParams{
			ForecastID:              f.ForecastID,
			GameID:                  f.GameID,
			ForecastDate:            f.ForecastDate.UTC(),
			PredictedMetric:         f.PredictedMetric,
			PredictedValue:          f.PredictedValue,
			ConfidenceIntervalLower: f.ConfidenceLower,
			ConfidenceIntervalUpper: f.ConfidenceUpper,
			ModelVersion:            f.ModelVersion,
			CreatedAt:               now,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert forecast %s: %w", f.ForecastID, err)
		}
	}

	return tx.Commit()
}

// ListFrom returns forecasts for gameID (or "all") dated on or after from.
func (r *ForecastRepository) ListFrom(ctx context.Context, gameID string, from time.Time) ([]domain.Forecast, error) {
	rows, err := r.queries.ListForecastsByGame(ctx, gameID, from.UTC().Format(dayLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list forecasts: %w", err)
	}

	result := make([]domain.Forecast, len(rows))
	for i, f := range rows {
		result[i] = domain.Forecast{
			ForecastID:      f.ForecastID,
			GameID:          f.GameID,
			ForecastDate:    f.ForecastDate.UTC(),
			PredictedMetric: f.PredictedMetric,
			PredictedValue:  f.PredictedValue,
			ConfidenceLower: f.ConfidenceIntervalLower,
			ConfidenceUpper: f.ConfidenceIntervalUpper,
			ModelVersion:    f.ModelVersion,
		}
	}
	return result, nil
}
