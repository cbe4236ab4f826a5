package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/constants"
	"gamestats-pipeline/internal/domain"
	"gamestats-pipeline/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

type modelKey struct {
	gameID string
	metric string
}

// Engine produces daily forecasts per game. Models are trained lazily, once
// per (game, metric), and kept for the life of the engine.
type Engine struct {
	matches   *repository.MatchRepository
	forecasts *repository.ForecastRepository
	games     *repository.GameRepository
	modelDir  string
	timeout   time.Duration
	now       func() time.Time

	mu     sync.Mutex
	models map[modelKey]*Model

	logger zerolog.Logger
}

func NewEngine(
	cfg *config.Config,
	matches *repository.MatchRepository,
	forecasts *repository.ForecastRepository,
	games *repository.GameRepository,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		matches:   matches,
		forecasts: forecasts,
		games:     games,
		modelDir:  cfg.ModelDir,
		timeout:   cfg.ForecastTimeout,
		now:       time.Now,
		models:    make(map[modelKey]*Model),
		logger:    logger.With().Str("component", "forecast").Logger(),
	}
}

// GeneratePlayerCountForecasts returns one forecast per day for the next days
// days starting tomorrow, and none when days is not positive. It never fails:
// any problem with history, training or inference yields the naive baseline
// instead.
func (e *Engine) GeneratePlayerCountForecasts(ctx context.Context, gameID string, days int) []domain.Forecast {
	if days <= 0 {
		return []domain.Forecast{}
	}
	metric := constants.MetricPlayerCount
	today := truncateDay(e.now())
	log := e.logger.With().Str("game_id", gameID).Int("days", days).Logger()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	counts, err := e.matches.DailyCounts(ctx, gameID, today, constants.HistoryWindowDays)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load history, using naive forecast")
		return naiveForecasts(gameID, metric, today, days)
	}
	if len(counts) < constants.MinHistoryDays {
		log.Info().Int("history_days", len(counts)).Msg("insufficient history, using naive forecast")
		return naiveForecasts(gameID, metric, today, days)
	}

	series := densify(counts, today, constants.PlayersPerMatchEstimate)

	type result struct {
		forecasts []domain.Forecast
		err       error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("forecast panicked: %v", r)}
			}
		}()
		fs, err := e.project(gameID, metric, series, today, days)
		done <- result{forecasts: fs, err: err}
	}()

	select {
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Msg("forecast timed out, using naive forecast")
		return naiveForecasts(gameID, metric, today, days)
	case r := <-done:
		if r.err != nil {
			log.Error().Err(r.err).Msg("model forecast failed, using naive forecast")
			return naiveForecasts(gameID, metric, today, days)
		}
		log.Info().Int("forecasts", len(r.forecasts)).Msg("model forecast generated")
		return r.forecasts
	}
}

func (e *Engine) project(gameID, metric string, series []point, today time.Time, days int) ([]domain.Forecast, error) {
	model, err := e.model(gameID, metric, series)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(series), len(series)+days)
	for i, p := range series {
		values[i] = p.value
	}

	dates := make([]time.Time, days)
	predictions := make([]float64, days)
	for step := range days {
		date := today.AddDate(0, 0, step+1)
		// each step sees history plus the forecasts already made
		rolling := rollingMeans(values, constants.RollingWindow)
		pred := model.Predict(featureRow(date, values, len(values), rolling))
		if math.IsNaN(pred) || math.IsInf(pred, 0) {
			return nil, fmt.Errorf("non-finite prediction for %s", date.Format(time.DateOnly))
		}
		pred = math.Max(0, pred)

		dates[step] = date
		predictions[step] = pred
		values = append(values, pred)
	}

	return withIntervals(gameID, metric, dates, predictions, model.Version), nil
}

func (e *Engine) model(gameID, metric string, series []point) (*Model, error) {
	key := modelKey{gameID: gameID, metric: metric}

	e.mu.Lock()
	defer e.mu.Unlock()

	if m, ok := e.models[key]; ok {
		return m, nil
	}

	if e.modelDir != "" {
		m, err := loadModel(e.modelDir, gameID, metric)
		if err != nil {
			e.logger.Warn().Err(err).Str("game_id", gameID).Msg("ignoring stored model")
		}
		if m != nil {
			e.logger.Debug().Str("game_id", gameID).Msg("loaded stored model")
			e.models[key] = m
			return m, nil
		}
	}

	m, eval, err := train(gameID, metric, series, e.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}
	e.logger.Info().
		Str("game_id", gameID).
		Int("samples", m.Samples).
		Int("holdout", eval.Holdout).
		Float64("mae", eval.MAE).
		Float64("r2", eval.R2).
		Msg("model trained")

	if e.modelDir != "" {
		if err := saveModel(e.modelDir, m); err != nil {
			e.logger.Warn().Err(err).Str("game_id", gameID).Msg("failed to persist model")
		}
	}
	e.models[key] = m
	return m, nil
}

// withIntervals puts a ±z·σ band around every prediction, σ being the
// population spread of the whole horizon.
func withIntervals(gameID, metric string, dates []time.Time, predictions []float64, version string) []domain.Forecast {
	var spread float64
	if len(predictions) == 1 {
		spread = predictions[0] * constants.SinglePointSpread
	} else {
		_, std := stat.PopMeanStdDev(predictions, nil)
		spread = std
	}
	margin := constants.ConfidenceZ * spread

	out := make([]domain.Forecast, len(predictions))
	for i, pred := range predictions {
		out[i] = newForecast(gameID, metric, dates[i], pred, math.Max(0, pred-margin), pred+margin, version)
	}
	return out
}

func naiveForecasts(gameID, metric string, today time.Time, days int) []domain.Forecast {
	base := constants.NaiveBaseline
	out := make([]domain.Forecast, days)
	for i := range out {
		date := today.AddDate(0, 0, i+1)
		out[i] = newForecast(gameID, metric, date, base, base*(1-constants.NaiveBand), base*(1+constants.NaiveBand), constants.NaiveModelVersion)
	}
	return out
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func forecastID(gameID, metric string, date time.Time) string {
	return fmt.Sprintf("forecast_%s_%s_%s", gameID, metric, date.Format("20060102"))
}

func newForecast(gameID, metric string, date time.Time, value, lower, upper float64, version string) domain.Forecast {
	return domain.Forecast{
		ForecastID:      forecastID(gameID, metric, date),
		GameID:          gameID,
		ForecastDate:    date,
		PredictedMetric: metric,
		PredictedValue:  round2(value),
		ConfidenceLower: round2(lower),
		ConfidenceUpper: round2(upper),
		ModelVersion:    version,
	}
}

func (e *Engine) SaveForecasts(ctx context.Context, forecasts []domain.Forecast) error {
	if err := e.forecasts.UpsertBatch(ctx, forecasts); err != nil {
		return fmt.Errorf("failed to save forecasts: %w", err)
	}
	return nil
}

// GenerateAll forecasts and saves every catalogued game, returning how many
// forecasts were written. A non-positive days uses the default horizon.
func (e *Engine) GenerateAll(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = constants.DefaultForecastDays
	}
	games, err := e.games.List(ctx)
	if err != nil {
		return 0, err
	}

	saved := 0
	var errs []error
	for _, g := range games {
		fs := e.GeneratePlayerCountForecasts(ctx, g.GameID, days)
		if err := e.SaveForecasts(ctx, fs); err != nil {
			e.logger.Error().Err(err).Str("game_id", g.GameID).Msg("failed to save forecasts")
			errs = append(errs, fmt.Errorf("%s: %w", g.GameID, err))
			continue
		}
		saved += len(fs)
	}
	return saved, errors.Join(errs...)
}
