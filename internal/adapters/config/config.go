package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"quorum/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Analysis      AnalysisConfig
	Dispatch      DispatchConfig
	Monitor       MonitorConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"quorum"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AnalysisConfig holds the defaults for a newly submitted analysis request.
// Per-request values override these.
type AnalysisConfig struct {
	SelectedAnalysts []string `envconfig:"ANALYSIS_SELECTED_ANALYSTS" default:"market,fundamentals,news,social"`
	ResearchDepth    int      `envconfig:"ANALYSIS_RESEARCH_DEPTH" default:"3"`
	MarketType       string   `envconfig:"ANALYSIS_MARKET_TYPE" default:"US"`

	// Opaque pass-through to the analysis workers
	LLMProvider string `envconfig:"ANALYSIS_LLM_PROVIDER" default:"openai"`
	LLMModel    string `envconfig:"ANALYSIS_LLM_MODEL" default:"gpt-4o-mini"`
}

type DispatchConfig struct {
	// Strategy selects the load balancer: round_robin, least_busy, best_performance
	Strategy string `envconfig:"DISPATCH_STRATEGY" default:"round_robin"`
}

// MonitorConfig contains intervals for background workers
type MonitorConfig struct {
	HealthCheckInterval      time.Duration `envconfig:"MONITOR_HEALTH_CHECK_INTERVAL" default:"60s"`
	DirectoryRefreshInterval time.Duration `envconfig:"MONITOR_DIRECTORY_REFRESH_INTERVAL" default:"10m"`
	HeartbeatTTL             time.Duration `envconfig:"MONITOR_HEARTBEAT_TTL" default:"1h"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
