package db

import (
	"context"
	"time"
)

const upsertForecast = `-- name: UpsertForecast :exec
INSERT INTO forecasts (
    forecast_id, game_id, forecast_date, predicted_metric, predicted_value,
    confidence_interval_lower, confidence_interval_upper, model_version, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(forecast_id) DO UPDATE SET
    game_id = excluded.game_id,
    forecast_date = excluded.forecast_date,
    predicted_metric = excluded.predicted_metric,
    predicted_value = excluded.predicted_value,
    confidence_interval_lower = excluded.confidence_interval_lower,
    confidence_interval_upper = excluded.confidence_interval_upper,
    model_version = excluded.model_version,
    created_at = excluded.created_at
`

type UpsertForecastParams struct {
	ForecastID              string
	GameID                  string
	ForecastDate            time.Time
	PredictedMetric         string
	PredictedValue          float64
	ConfidenceIntervalLower float64
	ConfidenceIntervalUpper float64
	ModelVersion            string
	CreatedAt               time.Time
}

func (q *Queries) UpsertForecast(ctx context.Context, arg UpsertForecastParams) error {
	_, err := q.db.ExecContext(ctx, upsertForecast,
		arg.ForecastID,
		arg.GameID,
		arg.ForecastDate,
		arg.PredictedMetric,
		arg.PredictedValue,
		arg.ConfidenceIntervalLower,
		arg.ConfidenceIntervalUpper,
		arg.ModelVersion,
		arg.CreatedAt,
	)
	return err
}

const listForecastsByGame = `-- name: ListForecastsByGame :many
SELECT forecast_id, game_id, forecast_date, predicted_metric, predicted_value,
       confidence_interval_lower, confidence_interval_upper, model_version, created_at
FROM forecasts
WHERE (?1 = 'all' OR game_id = ?1) AND DATE(forecast_date) >= ?2
ORDER BY forecast_date, game_id
`

func (q *Queries) ListForecastsByGame(ctx context.Context, gameID string, since string) ([]Forecast, error) {
	rows, err := q.db.QueryContext(ctx, listForecastsByGame, gameID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Forecast
	for rows.Next() {
		var i Forecast
		if err := rows.Scan(
			&i.ForecastID,
			&i.GameID,
			&i.ForecastDate,
			&i.PredictedMetric,
			&i.PredictedValue,
			&i.ConfidenceIntervalLower,
			&i.ConfidenceIntervalUpper,
			&i.ModelVersion,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
