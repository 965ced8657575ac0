package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Stats sources for player box-score reads
const (
	StatsSourcePostgres   = "postgres"
	StatsSourceClickHouse = "clickhouse"
)

type Config struct {
	// Server
	Port int
	Env  string

	// CORS
	AllowedOrigins []string

	// Ops API token; empty disables the admin routes
	AdminToken string

	// Database URLs
	PostgresURL    string
	ClickHouseURL  string
	RedisURL       string
	RosterMySQLDSN string

	// Worker pool
	WorkerCount   int
	FetchCount    int
	FetchBlock    time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	ReclaimIdle   time.Duration
	PostGameDelay time.Duration

	// Analytics
	PlayerWindowDays        int
	TeamWindowDays          int
	GameLookaheadDays       int
	PlayerLookaheadDays     int
	PredictionCooldown      time.Duration
	TrendThreshold          float64
	PredictionRetentionDays int
	SnapshotRetentionDays   int
	StatsSource             string
	FormCacheTTL            time.Duration

	// Scheduling
	SchedulerEnabled bool
	ListenGameEvents bool
	Location         *time.Location

	// Rate limiting
	RateLimitPerSecond int
	RateLimitBurst     int
}

// Load loads configuration from environment variables.
// It returns an error if critical configuration is missing or inconsistent.
func Load() (*Config, error) {
	cfg := &Config{
		Port:       getEnvInt("PORT", 8080),
		Env:        getEnv("ENV", "development"),
		AdminToken: getEnv("ADMIN_TOKEN", ""),

		ClickHouseURL:  getEnv("CLICKHOUSE_URL", ""),
		RosterMySQLDSN: getEnv("ROSTER_MYSQL_DSN", ""),

		WorkerCount:   getEnvInt("WORKER_COUNT", 4),
		FetchCount:    getEnvInt("FETCH_COUNT", 10),
		FetchBlock:    getEnvDuration("FETCH_BLOCK", 2*time.Second),
		MaxRetries:    getEnvInt("MAX_RETRIES", 3),
		RetryDelay:    getEnvDuration("RETRY_DELAY", 5*time.Minute),
		ReclaimIdle:   getEnvDuration("RECLAIM_IDLE", 10*time.Minute),
		PostGameDelay: getEnvDuration("POST_GAME_DELAY", 60*time.Second),

		PlayerWindowDays:        getEnvInt("PLAYER_WINDOW_DAYS", 30),
		TeamWindowDays:          getEnvInt("TEAM_WINDOW_DAYS", 30),
		GameLookaheadDays:       getEnvInt("GAME_LOOKAHEAD_DAYS", 7),
		PlayerLookaheadDays:     getEnvInt("PLAYER_LOOKAHEAD_DAYS", 3),
		PredictionCooldown:      getEnvDuration("PREDICTION_COOLDOWN", 6*time.Hour),
		TrendThreshold:          getEnvFloat("TREND_THRESHOLD", 0.10),
		PredictionRetentionDays: getEnvInt("PREDICTION_RETENTION_DAYS", 30),
		SnapshotRetentionDays:   getEnvInt("SNAPSHOT_RETENTION_DAYS", 90),
		StatsSource:             strings.ToLower(getEnv("STATS_SOURCE", StatsSourcePostgres)),
		FormCacheTTL:            getEnvDuration("FORM_CACHE_TTL", 24*time.Hour),

		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
		ListenGameEvents: getEnvBool("LISTEN_GAME_EVENTS", true),

		RateLimitPerSecond: getEnvInt("RATE_LIMIT_PER_SECOND", 50),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 100),
	}

	// CORS
	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	// Critical configuration - fail if missing
	if cfg.PostgresURL, err = getEnvRequired("POSTGRES_URL"); err != nil {
		return nil, err
	}
	if cfg.RedisURL, err = getEnvRequired("REDIS_URL"); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StatsSource {
	case StatsSourcePostgres:
	case StatsSourceClickHouse:
		if c.ClickHouseURL == "" {
			return fmt.Errorf("STATS_SOURCE=clickhouse requires CLICKHOUSE_URL")
		}
	default:
		return fmt.Errorf("unknown STATS_SOURCE: %q", c.StatsSource)
	}
	if c.TrendThreshold <= 0 || c.TrendThreshold >= 1 {
		return fmt.Errorf("TREND_THRESHOLD must be in (0,1), got %v", c.TrendThreshold)
	}
	if c.PlayerWindowDays <= 0 || c.TeamWindowDays <= 0 {
		return fmt.Errorf("window days must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative")
	}
	return nil
}

// ArchiveEnabled reports whether finished box scores are copied to ClickHouse.
func (c *Config) ArchiveEnabled() bool {
	return c.ClickHouseURL != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvRequired(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("missing required environment variable: %s", key)
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
