package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gamestats-pipeline/internal/constants"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNoTrainingData = errors.New("no training data")
	ErrModelShape     = errors.New("model does not match feature layout")
)

// Model is a ridge-regularised linear regression over the daily feature row.
// The intercept is not penalised.
type Model struct {
	GameID       string    `json:"game_id"`
	Metric       string    `json:"metric"`
	Version      string    `json:"model_version"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Alpha        float64   `json:"alpha"`
	Samples      int       `json:"samples"`
	TrainedAt    time.Time `json:"trained_at"`
}

type Evaluation struct {
	MAE     float64
	R2      float64
	Holdout int
}

func (m *Model) Predict(row []float64) float64 {
	return m.Intercept + floats.Dot(m.Coefficients, row)
}

func (m *Model) validate() error {
	if len(m.Coefficients) != featureCount {
		return fmt.Errorf("%w: %d coefficients, want %d", ErrModelShape, len(m.Coefficients), featureCount)
	}
	return nil
}

func fitRidge(x [][]float64, y []float64, alpha float64) (float64, []float64, error) {
	n := len(x)
	if n == 0 || len(y) != n {
		return 0, nil, ErrNoTrainingData
	}
	p := len(x[0])

	raw := mat.NewDense(n, p, nil)
	for i, row := range x {
		raw.SetRow(i, row)
	}
	means := make([]float64, p)
	for j := range means {
		means[j] = stat.Mean(mat.Col(nil, j, raw), nil)
	}
	ybar := stat.Mean(y, nil)

	centered := mat.NewDense(n, p, nil)
	centered.Apply(func(_, j int, v float64) float64 { return v - means[j] }, raw)
	target := mat.NewVecDense(n, nil)
	for i, v := range y {
		target.SetVec(i, v-ybar)
	}

	var gram mat.Dense
	gram.Mul(centered.T(), centered)
	for j := 0; j < p; j++ {
		gram.Set(j, j, gram.At(j, j)+alpha)
	}
	var moment mat.VecDense
	moment.MulVec(centered.T(), target)

	var beta mat.VecDense
	if err := beta.SolveVec(&gram, &moment); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return 0, nil, fmt.Errorf("failed to solve normal equations: %w", err)
		}
	}

	coef := make([]float64, p)
	for j := range coef {
		coef[j] = beta.AtVec(j)
	}
	return ybar - floats.Dot(coef, means), coef, nil
}

// train fits on the leading share of the series, scores the trailing holdout,
// and then refits on the whole series.
func train(gameID, metric string, series []point, now time.Time) (*Model, Evaluation, error) {
	x, y := designMatrix(series)
	if len(x) == 0 {
		return nil, Evaluation{}, ErrNoTrainingData
	}

	var eval Evaluation
	holdout := int(math.Ceil(float64(len(x)) * constants.HoldoutFraction))
	if split := len(x) - holdout; split >= 2 && holdout >= 1 {
		intercept, coef, err := fitRidge(x[:split], y[:split], constants.RidgeAlpha)
		if err != nil {
			return nil, Evaluation{}, err
		}
		probe := &Model{Intercept: intercept, Coefficients: coef}
		eval = evaluate(probe, x[split:], y[split:])
	}

	intercept, coef, err := fitRidge(x, y, constants.RidgeAlpha)
	if err != nil {
		return nil, Evaluation{}, err
	}
	return &Model{
		GameID:       gameID,
		Metric:       metric,
		Version:      constants.ModelVersion,
		Intercept:    intercept,
		Coefficients: coef,
		Alpha:        constants.RidgeAlpha,
		Samples:      len(x),
		TrainedAt:    now,
	}, eval, nil
}

func evaluate(m *Model, x [][]float64, y []float64) Evaluation {
	estimates := make([]float64, len(x))
	var absErr float64
	for i, row := range x {
		estimates[i] = m.Predict(row)
		absErr += math.Abs(estimates[i] - y[i])
	}
	return Evaluation{
		MAE:     absErr / float64(len(x)),
		R2:      stat.RSquaredFrom(estimates, y, nil),
		Holdout: len(x),
	}
}

func modelPath(dir, gameID, metric string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.json", gameID, metric))
}

func saveModel(dir string, m *Model) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.WriteFile(modelPath(dir, m.GameID, m.Metric), data, 0o644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// loadModel returns nil without error when no model has been saved yet.
func loadModel(dir, gameID, metric string) (*Model, error) {
	data, err := os.ReadFile(modelPath(dir, gameID, metric))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
