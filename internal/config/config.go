package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gamestats-pipeline/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// SourceConfig describes one upstream API: where it lives, the credential it
// wants and how many requests it tolerates per window.
type SourceConfig struct {
	BaseURL        string
	APIKey         string
	RateLimit      int
	RateWindow     time.Duration
	RetryCount     int
	RetryBaseDelay time.Duration
	Timeout        time.Duration
}

// MinInterval is the spacing enforced between two requests to the source.
func (s SourceConfig) MinInterval() time.Duration {
	if s.RateLimit <= 0 || s.RateWindow <= 0 {
		return 0
	}
	return s.RateWindow / time.Duration(s.RateLimit)
}

type Config struct {
	DBPath     string
	ServerPort string
	LogLevel   string
	CacheTTL   time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PipelineInterval     time.Duration
	PipelineLimitPerGame int
	ExtractWorkers       int
	LoadBatchSize        int

	ForecastDays    int
	ForecastTimeout time.Duration
	ModelDir        string

	OpenDota   SourceConfig
	Steam      SourceConfig
	SteamStore SourceConfig
	Riot       SourceConfig
	HDev       SourceConfig

	RiotPUUIDs []string
	HDevPUUIDs []string
	HDevRegion string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:     getEnv("DB_PATH", "gamestats.db"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		CacheTTL:   getEnvDuration("CACHE_TTL", constants.AnalyticsCacheTTL),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		PipelineInterval:     getEnvDuration("PIPELINE_INTERVAL", constants.DefaultRunInterval),
		PipelineLimitPerGame: getEnvInt("PIPELINE_LIMIT_PER_GAME", constants.DefaultLimitPerGame),
		ExtractWorkers:       getEnvInt("EXTRACT_WORKERS", constants.DefaultExtractWorkers),
		LoadBatchSize:        getEnvInt("LOAD_BATCH_SIZE", constants.DBBatchSize),

		ForecastDays:    getEnvInt("FORECAST_DAYS", constants.DefaultForecastDays),
		ForecastTimeout: getEnvDuration("FORECAST_TIMEOUT", constants.ForecastTimeout),
		ModelDir:        getEnv("MODEL_DIR", ""),

		OpenDota:   loadSource("OPENDOTA", "https://api.opendota.com/api", 60, time.Minute),
		Steam:      loadSource("STEAM", "https://api.steampowered.com", 100, time.Minute),
		SteamStore: loadSource("STEAM_STORE", "https://store.steampowered.com", 40, time.Minute),
		Riot:       loadSource("RIOT", "https://americas.api.riotgames.com", 100, 2*time.Minute),
		HDev:       loadSource("HDEV", "https://api.henrikdev.xyz", 30, time.Minute),

		RiotPUUIDs: getEnvList("RIOT_PUUIDS"),
		HDevPUUIDs: getEnvList("HDEV_PUUIDS"),
		HDevRegion: getEnv("HDEV_REGION", "na"),
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Dur("cache_ttl", cfg.CacheTTL).
		Bool("redis", cfg.RedisAddr != "").
		Dur("pipeline_interval", cfg.PipelineInterval).
		Int("limit_per_game", cfg.PipelineLimitPerGame).
		Bool("steam_key", cfg.Steam.APIKey != "").
		Bool("riot_key", cfg.Riot.APIKey != "").
		Bool("hdev_key", cfg.HDev.APIKey != "").
		Msg("configuration loaded")

	return cfg, nil
}

func loadSource(prefix, baseURL string, limit int, window time.Duration) SourceConfig {
	return SourceConfig{
		BaseURL:        strings.TrimRight(getEnv(prefix+"_BASE_URL", baseURL), "/"),
		APIKey:         getEnv(prefix+"_API_KEY", ""),
		RateLimit:      getEnvInt(prefix+"_RATE_LIMIT", limit),
		RateWindow:     getEnvDuration(prefix+"_RATE_WINDOW", window),
		RetryCount:     getEnvInt(prefix+"_RETRY_COUNT", 3),
		RetryBaseDelay: getEnvDuration(prefix+"_RETRY_BASE_DELAY", time.Second),
		Timeout:        getEnvDuration(prefix+"_TIMEOUT", constants.ExternalAPITimeout),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var Module = fx.Provide(Load)
