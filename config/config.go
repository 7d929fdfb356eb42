package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names the deployment tier the process runs in.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config aggregates every tunable of the hub. It is loaded once at startup
// from environment variables and passed down read-only.
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	HTTP          HTTPConfig
	Scheduler     SchedulerConfig
	Leaderboard   LeaderboardConfig
	Notifications NotificationsConfig
	Features      *FeatureFlags
	Observability ObservabilityConfig
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// Timezone drives period windows and cron firing times. Location is
	// the resolved form of Timezone, falling back to UTC on bad names.
	Timezone string
	Location *time.Location

	// ShutdownTimeout bounds graceful shutdown on SIGTERM.
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL settings. URL wins over the individual
// DB_* variables when both are present.
type DatabaseConfig struct {
	URL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	QueryTimeout time.Duration
	LogQueries   bool
}

// RedisConfig holds cache settings. Disabled lets development run without
// a Redis at the cost of recomputing leaderboards per request.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// LeaderboardTTL bounds staleness of cached rankings.
	LeaderboardTTL time.Duration

	Disabled bool
}

// HTTPConfig holds the read-only API server settings.
type HTTPConfig struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	EnableCORS         bool
	AllowedOrigins     []string
	RateLimitPerMinute int
}

// SchedulerConfig holds background job settings. Cron expressions are
// evaluated in the app timezone.
type SchedulerConfig struct {
	Enabled bool

	SnapshotCron string
	PruneCron    string

	// ScopeConcurrency caps how many scopes snapshot in parallel.
	ScopeConcurrency int
	JobTimeout       time.Duration

	// KeepPeriods is how many historical windows the prune job retains
	// per scope and period type.
	KeepPeriods int
}

// LeaderboardConfig tunes ranking output and rank change notifications.
type LeaderboardConfig struct {
	// DefaultLimit applies when a client omits the limit parameter.
	DefaultLimit int

	// MinRankChangeForNotification filters out noise from one-position
	// wobble between snapshots.
	MinRankChangeForNotification int

	NotifyRankChanges bool
}

// NotificationsConfig holds notification delivery settings.
// When WebhookURL is empty, notifications go to the structured log only.
type NotificationsConfig struct {
	WebhookURL     string
	WebhookSecret  string
	WebhookTimeout time.Duration
	WebhookRetries int
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// Load reads the whole configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		App:           loadAppConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		HTTP:          loadHTTPConfig(),
		Scheduler:     loadSchedulerConfig(),
		Leaderboard:   loadLeaderboardConfig(),
		Notifications: loadNotificationsConfig(),
		Features:      LoadFeatureFlags(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadAppConfig() AppConfig {
	env := Environment(envStr("APP_ENV", "development"))
	tz := envStr("APP_TIMEZONE", "UTC")

	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	return AppConfig{
		Name:            envStr("APP_NAME", "chrono-performance-hub"),
		Environment:     env,
		Debug:           env == EnvDevelopment || envBool("APP_DEBUG", false),
		Version:         envStr("APP_VERSION", "0.1.0"),
		Timezone:        tz,
		Location:        loc,
		ShutdownTimeout: envDur("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	url := envStr("DATABASE_URL", "")
	if url == "" {
		// Assemble from DB_* pieces for setups that split credentials.
		host := envStr("DB_HOST", "")
		user := envStr("DB_USER", "")
		if host != "" && user != "" {
			url = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
				user,
				envStr("DB_PASSWORD", ""),
				host,
				envStr("DB_PORT", "5432"),
				envStr("DB_NAME", "postgres"),
				envStr("DB_SSLMODE", "require"),
			)
		}
	}

	return DatabaseConfig{
		URL:             url,
		MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnMaxIdleTime: envDur("DB_CONN_MAX_IDLE_TIME", time.Minute),
		QueryTimeout:    envDur("DB_QUERY_TIMEOUT", 30*time.Second),
		LogQueries:      envBool("DB_LOG_QUERIES", false),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:           envStr("REDIS_HOST", "localhost"),
		Port:           envInt("REDIS_PORT", 6379),
		Password:       envStr("REDIS_PASSWORD", ""),
		DB:             envInt("REDIS_DB", 0),
		PoolSize:       envInt("REDIS_POOL_SIZE", 10),
		MinIdleConns:   envInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:    envDur("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:    envDur("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout:   envDur("REDIS_WRITE_TIMEOUT", 3*time.Second),
		LeaderboardTTL: envDur("REDIS_LEADERBOARD_TTL", 5*time.Minute),
		Disabled:       envBool("REDIS_DISABLED", false),
	}
}

func loadHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Host:               envStr("HTTP_HOST", "0.0.0.0"),
		Port:               envInt("HTTP_PORT", 8080),
		ReadTimeout:        envDur("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       envDur("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:        envDur("HTTP_IDLE_TIMEOUT", 60*time.Second),
		EnableCORS:         envBool("HTTP_ENABLE_CORS", true),
		AllowedOrigins:     envList("HTTP_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute: envInt("HTTP_RATE_LIMIT_PER_MINUTE", 100),
	}
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:          envBool("SCHEDULER_ENABLED", true),
		SnapshotCron:     envStr("SCHEDULER_SNAPSHOT_CRON", "*/15 * * * *"),
		PruneCron:        envStr("SCHEDULER_PRUNE_CRON", "0 3 * * *"),
		ScopeConcurrency: envInt("SCHEDULER_SCOPE_CONCURRENCY", 4),
		JobTimeout:       envDur("SCHEDULER_JOB_TIMEOUT", 10*time.Minute),
		KeepPeriods:      envInt("SCHEDULER_KEEP_PERIODS", 12),
	}
}

func loadLeaderboardConfig() LeaderboardConfig {
	return LeaderboardConfig{
		DefaultLimit:                 envInt("LEADERBOARD_DEFAULT_LIMIT", 50),
		MinRankChangeForNotification: envInt("LEADERBOARD_MIN_RANK_CHANGE", 3),
		NotifyRankChanges:            envBool("LEADERBOARD_NOTIFY_RANK_CHANGES", true),
	}
}

func loadNotificationsConfig() NotificationsConfig {
	return NotificationsConfig{
		WebhookURL:     envStr("NOTIFY_WEBHOOK_URL", ""),
		WebhookSecret:  envStr("NOTIFY_WEBHOOK_SECRET", ""),
		WebhookTimeout: envDur("NOTIFY_WEBHOOK_TIMEOUT", 10*time.Second),
		WebhookRetries: envInt("NOTIFY_WEBHOOK_RETRIES", 3),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),
	}
}

// validate collects every problem instead of stopping at the first, so one
// restart fixes them all.
func (c *Config) validate() error {
	var problems []string

	if c.App.Environment == EnvProduction && c.Database.URL == "" {
		problems = append(problems, "DATABASE_URL is required in production")
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		problems = append(problems, "HTTP_PORT must be 1-65535")
	}
	if c.Scheduler.KeepPeriods < 1 {
		problems = append(problems, "SCHEDULER_KEEP_PERIODS must be at least 1")
	}
	if c.Leaderboard.DefaultLimit < 1 || c.Leaderboard.DefaultLimit > 100 {
		problems = append(problems, "LEADERBOARD_DEFAULT_LIMIT must be 1-100")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// Environment parsing helpers. Malformed values fall back to the default
// rather than failing startup; validation catches the ones that matter.

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var items []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
