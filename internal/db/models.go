package db

import (
	"database/sql"
	"time"
)

type Game struct {
	GameID    string
	GameName  string
	Platform  string
	Genre     string
	CreatedAt time.Time
}

type Match struct {
	MatchID         string
	GameID          string
	MatchDate       time.Time
	DurationMinutes int64
	MatchType       string
	Platform        string
	Source          string
	AdditionalData  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Forecast struct {
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

type PipelineRun struct {
	RunID          string
	TriggeredBy    string
	Status         string
	StartedAt      time.Time
	FinishedAt     sql.NullTime
	MatchesLoaded  int64
	StatsLoaded    int64
	EventsLoaded   int64
	ForecastsSaved int64
	Error          string
}
