package domain

import "time"

type Game struct {
	GameID   string `json:"game_id"`
	Name     string `json:"game_name"`
	Platform string `json:"platform"`
	Genre    string `json:"genre"`
}

type Player struct {
	PlayerID   string `json:"player_id"`
	Username   string `json:"username"`
	GameID     string `json:"game_id"`
	PlatformID string `json:"platform_id"`
}

type Match struct {
	MatchID         string    `json:"match_id"`
	GameID          string    `json:"game_id"`
	MatchDate       time.Time `json:"match_date"`
	DurationMinutes int       `json:"duration_minutes"`
	MatchType       string    `json:"match_type"`
	Platform        string    `json:"platform"`
	Source          string    `json:"source"`
	// JSON object with the source fields that have no canonical column
	AdditionalData  string    `json:"additional_data"`
}

type PlayerStat struct {
	StatID          string `json:"stat_id"`
	PlayerID        string `json:"player_id"`
	MatchID         string `json:"match_id"`
	// GameID, Username and PlatformID feed the players row written
	// alongside the stat.
	GameID          string `json:"game_id"`
	Username        string `json:"username"`
	PlatformID      string `json:"platform_id,omitempty"`
	Kills           int    `json:"kills"`
	Deaths          int    `json:"deaths"`
	Assists         int    `json:"assists"`
	Score           int    `json:"score"`
	Rank            *int   `json:"rank,omitempty"`
	AdditionalStats string `json:"additional_stats"`
}

func (s PlayerStat) Player() Player {
	return Player{
		PlayerID:   s.PlayerID,
		Username:   s.Username,
		GameID:     s.GameID,
		PlatformID: s.PlatformID,
	}
}

type GameEvent struct {
	EventID        string    `json:"event_id"`
	MatchID        string    `json:"match_id"`
	GameID         string    `json:"game_id"`
	EventType      string    `json:"event_type"`
	EventTimestamp time.Time `json:"event_timestamp"`
	EventData      string    `json:"event_data"`
}

type Forecast struct {
	ForecastID      string    `json:"forecast_id"`
	GameID          string    `json:"game_id"`
	ForecastDate    time.Time `json:"forecast_date"`
	PredictedMetric string    `json:"predicted_metric"`
	PredictedValue  float64   `json:"predicted_value"`
	ConfidenceLower float64   `json:"confidence_interval_lower"`
	ConfidenceUpper float64   `json:"confidence_interval_upper"`
	ModelVersion    string    `json:"model_version"`
}

// RawRecord is one upstream payload, untouched apart from being split out of
// its list envelope.
type RawRecord struct {
	GameID    string    `json:"game_id"`
	Source    string    `json:"source"`
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
}

type LoadResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

func (r *LoadResult) Add(other LoadResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Errors += other.Errors
}

func (r LoadResult) Persisted() int {
	return r.Inserted + r.Updated
}

type DailyCount struct {
	Date  time.Time
	Count int
}

type PipelineRun struct {
	RunID          string     `json:"run_id"`
	TriggeredBy    string     `json:"triggered_by"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	MatchesLoaded  int        `json:"matches_loaded"`
	StatsLoaded    int        `json:"stats_loaded"`
	EventsLoaded   int        `json:"events_loaded"`
	ForecastsSaved int        `json:"forecasts_saved"`
	Error          string     `json:"error,omitempty"`
}

const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)
