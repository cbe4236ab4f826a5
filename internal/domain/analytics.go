package domain

type GameStatistics struct {
	GameID        string  `json:"game_id"`
	Days          int     `json:"days"`
	TotalMatches  int     `json:"total_matches"`
	UniquePlayers int     `json:"unique_players"`
	AvgDuration   float64 `json:"avg_duration_minutes"`
	AvgKills      float64 `json:"avg_kills"`
	AvgDeaths     float64 `json:"avg_deaths"`
	AvgAssists    float64 `json:"avg_assists"`
	AvgScore      float64 `json:"avg_score"`
}

type DailyTrend struct {
	Date          string  `json:"date"`
	Matches       int     `json:"matches"`
	AvgDuration   float64 `json:"avg_duration_minutes"`
	UniquePlayers int     `json:"unique_players"`
}

type TopPlayer struct {
	PlayerID      string  `json:"player_id"`
	Username      string  `json:"username"`
	GameID        string  `json:"game_id"`
	MatchesPlayed int     `json:"matches_played"`
	TotalKills    int     `json:"total_kills"`
	TotalDeaths   int     `json:"total_deaths"`
	TotalAssists  int     `json:"total_assists"`
	AvgScore      float64 `json:"avg_score"`
}

type GameComparison struct {
	GameID        string  `json:"game_id"`
	GameName      string  `json:"game_name"`
	Genre         string  `json:"genre"`
	TotalMatches  int     `json:"total_matches"`
	UniquePlayers int     `json:"unique_players"`
	AvgDuration   float64 `json:"avg_duration_minutes"`
}

type GameTrendPoint struct {
	Date    string `json:"date"`
	GameID  string `json:"game_id"`
	Matches int    `json:"matches"`
}
