package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	apperrors "github.com/rajasatyajit/CommentIntel/internal/errors"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Pipeline  PipelineConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Redis     RedisConfig
	Taxonomy  TaxonomyConfig
	Cache     CacheConfig
	Alerting  AlertingConfig
	Schedule  ScheduleConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
	MaxBodyBytes            int64
	CORSOrigins             []string
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	SQLitePath      string // used when URL is empty
}

type PipelineConfig struct {
	RateLimit     float64
	WorkerCount   int
	BatchSize     int
	RetryAttempts int
	RetryDelay    time.Duration
	Sources       []SourceConfig
	PollInterval  time.Duration
}

// SourceConfig names a CSV export polled by the pipeline
type SourceConfig struct {
	Name string
	Path string
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type TaxonomyConfig struct {
	Path string // empty selects the embedded default
}

type CacheConfig struct {
	TTL time.Duration
}

type AlertingConfig struct {
	SlackToken   string
	SlackChannel string
	MinTier      string // urgent, high, medium or low
}

// Enabled reports whether Slack alerting is configured
func (a AlertingConfig) Enabled() bool {
	return a.SlackToken != "" && a.SlackChannel != ""
}

type ScheduleConfig struct {
	Cron         string // empty disables scheduled re-analysis
	LookbackDays int
}

type RateLimitConfig struct {
	RequestsPerMinute int // 0 disables
}

var validTiers = []string{"urgent", "high", "medium", "low"}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:                    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                    getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:             getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:             getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			GracefulShutdownTimeout: getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodyBytes:            int64(getEnvInt("SERVER_MAX_BODY_BYTES", 10<<20)),
			CORSOrigins:             getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 1*time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
			SQLitePath:      getEnv("SQLITE_PATH", ""),
		},
		Pipeline: PipelineConfig{
			RateLimit:     getEnvFloat("PIPELINE_RATE_LIMIT", 5.0),
			WorkerCount:   getEnvInt("PIPELINE_WORKER_COUNT", 4),
			BatchSize:     getEnvInt("PIPELINE_BATCH_SIZE", 500),
			RetryAttempts: getEnvInt("PIPELINE_RETRY_ATTEMPTS", 3),
			RetryDelay:    getEnvDuration("PIPELINE_RETRY_DELAY", 5*time.Second),
			Sources:       parseSources(getEnv("PIPELINE_SOURCES", "")),
			PollInterval:  getEnvDuration("PIPELINE_POLL_INTERVAL", 15*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Taxonomy: TaxonomyConfig{
			Path: getEnv("TAXONOMY_PATH", ""),
		},
		Cache: CacheConfig{
			TTL: getEnvDuration("CACHE_TTL", 10*time.Minute),
		},
		Alerting: AlertingConfig{
			SlackToken:   getEnv("SLACK_TOKEN", ""),
			SlackChannel: getEnv("SLACK_CHANNEL", ""),
			MinTier:      strings.ToLower(getEnv("ALERT_MIN_TIER", "urgent")),
		},
		Schedule: ScheduleConfig{
			Cron:         getEnv("SCHEDULE_CRON", ""),
			LookbackDays: getEnvInt("SCHEDULE_LOOKBACK_DAYS", 7),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_RPM", 120),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration. The returned error matches
// errors.ErrInvalidConfig and lists every offending field.
func (c *Config) Validate() error {
	var errs apperrors.MultiError

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs.Addf("SERVER_PORT", "invalid server port: %d", c.Server.Port)
	}
	if c.Database.MaxConns < 1 {
		errs.Addf("DB_MAX_CONNS", "database max connections must be at least 1")
	}
	if c.Pipeline.WorkerCount < 1 {
		errs.Addf("PIPELINE_WORKER_COUNT", "pipeline worker count must be at least 1")
	}
	if c.Pipeline.RetryAttempts < 0 {
		errs.Addf("PIPELINE_RETRY_ATTEMPTS", "must not be negative")
	}
	if len(c.Pipeline.Sources) > 0 && c.Pipeline.PollInterval <= 0 {
		errs.Addf("PIPELINE_POLL_INTERVAL", "must be positive when sources are configured")
	}
	seen := make(map[string]bool)
	for _, s := range c.Pipeline.Sources {
		if seen[s.Name] {
			errs.Addf("PIPELINE_SOURCES", "duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
	}
	if c.Alerting.MinTier != "" && !oneOf(c.Alerting.MinTier, validTiers) {
		errs.Addf("ALERT_MIN_TIER", "must be one of %s", strings.Join(validTiers, ", "))
	}
	if (c.Alerting.SlackToken == "") != (c.Alerting.SlackChannel == "") {
		errs.Addf("SLACK_CHANNEL", "SLACK_TOKEN and SLACK_CHANNEL must be set together")
	}
	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			errs.Addf("SCHEDULE_CRON", "invalid cron expression: %v", err)
		}
	}
	if c.Schedule.LookbackDays < 1 {
		errs.Addf("SCHEDULE_LOOKBACK_DAYS", "must be at least 1")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		errs.Addf("RATE_LIMIT_RPM", "must not be negative")
	}
	if c.Cache.TTL < 0 {
		errs.Addf("CACHE_TTL", "must not be negative")
	}

	if errs.HasErrors() {
		return &apperrors.ConfigError{Source: "environment", Err: errs}
	}
	return nil
}

// parseSources reads a comma separated list of "name=path" or bare paths.
// A bare path is named after its file name without extension.
func parseSources(value string) []SourceConfig {
	var sources []SourceConfig
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, path, ok := strings.Cut(item, "=")
		if !ok {
			path = item
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		sources = append(sources, SourceConfig{Name: strings.TrimSpace(name), Path: strings.TrimSpace(path)})
	}
	return sources
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
