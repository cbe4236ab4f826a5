package constants

import "time"

const (
	ExternalAPITimeout = 30 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
	ForecastTimeout    = 30 * time.Second
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	AnalyticsCacheTTL    = 5 * time.Minute
	AnalyticsCachePrefix = "gamestats:query:"
)

// pipeline
const (
	DefaultLimitPerGame   = 100
	DefaultRunInterval    = 15 * time.Minute
	DefaultExtractWorkers = 4
	DetailMatchLimit      = 5
	PlayersPerMatch       = 10
	OpenDotaMaxPageSize   = 100
	MaxDurationMinutes    = 300
	RecentRunsLimit       = 20
)

// forecasting
const (
	MetricPlayerCount       = "player_count"
	ModelVersion            = "1.0"
	NaiveModelVersion       = "naive-1.0"
	DefaultForecastDays     = 7
	HistoryWindowDays       = 30
	MinHistoryDays          = 7
	PlayersPerMatchEstimate = 10
	RollingWindow           = 7
	HoldoutFraction         = 0.2
	RidgeAlpha              = 1.0
	ConfidenceZ             = 1.96
	NaiveBaseline           = 1000.0
	NaiveBand               = 0.2
	SinglePointSpread       = 0.1
)

const (
	DefaultQueryDays = 30
	TopPlayersLimit  = 10
	AllGames         = "all"
)

// TrackedGames is the seeded game catalogue, in extraction order.
var TrackedGames = []string{"dota2", "csgo", "valorant", "gta5", "pubg", "cod"}
