package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Scraper  ScraperConfig
	LLM      LLMConfig
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	ConnectTimeout        time.Duration
	PoolMaxConns          int32
	PoolMinConns          int32
	PoolMaxConnLifetime   time.Duration
	PoolMaxConnIdleTime   time.Duration
	PoolHealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	TTL      time.Duration
}

type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
}

type ScraperConfig struct {
	// SourceBaseURL is the external review feed endpoint; per-location
	// source URLs are resolved against it.
	SourceBaseURL string
	// JobTimeout bounds a scrape job; on expiry the job is forced to
	// failed rather than left in scraping forever.
	JobTimeout time.Duration
	// TerminalJobRetention keeps finished jobs around for late progress
	// subscribers before they are swept.
	TerminalJobRetention time.Duration
	// ScheduleSpec drives the auto-scrape cron.
	ScheduleSpec string
}

type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string

	BatchSize          int
	ConcurrentRequests int
}

var errMissingRequiredEnv = errors.New("missing required environment variables")

func Load() (Config, error) {
	// .env is a local-dev convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := Config{}

	var missing []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key string) string {
		return strings.TrimSpace(os.Getenv(key))
	}
	optDuration := func(key string, def time.Duration) time.Duration {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return def
		}
		return d
	}
	optInt := func(key string, def int) int {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return def
		}
		return v
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: req("APP_ENV"),
		HTTPPort:    req("HTTP_PORT"),
	}

	cfg.Database = DatabaseConfig{
		DBHost:                opt("DB_HOST"),
		DBPort:                opt("DB_PORT"),
		DBName:                opt("DB_NAME"),
		DBUser:                opt("DB_USER"),
		DBPassword:            opt("DB_PASSWORD"),
		DBSSLMode:             opt("DB_SSL_MODE"),
		ConnectTimeout:        optDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		PoolMaxConns:          int32(optInt("DB_POOL_MAX_CONNS", 10)),
		PoolMinConns:          int32(optInt("DB_POOL_MIN_CONNS", 0)),
		PoolMaxConnLifetime:   optDuration("DB_POOL_MAX_CONN_LIFETIME", time.Hour),
		PoolMaxConnIdleTime:   optDuration("DB_POOL_MAX_CONN_IDLE_TIME", 30*time.Minute),
		PoolHealthCheckPeriod: optDuration("DB_POOL_HEALTH_CHECK_PERIOD", time.Minute),
	}

	cfg.Redis = RedisConfig{
		Host:     opt("REDIS_HOST"),
		Port:     opt("REDIS_PORT"),
		Password: opt("REDIS_PASSWORD"),
		TTL:      optDuration("REDIS_TTL", 600*time.Second),
	}

	cfg.Auth = AuthConfig{
		AccessSecret:  req("JWT_ACCESS_SECRET"),
		RefreshSecret: opt("JWT_REFRESH_SECRET"),
	}

	cfg.Scraper = ScraperConfig{
		SourceBaseURL:        opt("SCRAPER_SOURCE_BASE_URL"),
		JobTimeout:           optDuration("SCRAPER_JOB_TIMEOUT", 15*time.Minute),
		TerminalJobRetention: optDuration("SCRAPER_TERMINAL_JOB_RETENTION", 5*time.Minute),
		ScheduleSpec:         opt("SCRAPER_SCHEDULE_SPEC"),
	}

	cfg.LLM = LLMConfig{
		BaseURL:            opt("LLM_BASE_URL"),
		APIKey:             opt("LLM_API_KEY"),
		Model:              opt("LLM_MODEL"),
		BatchSize:          optInt("LLM_BATCH_SIZE", 15),
		ConcurrentRequests: optInt("LLM_CONCURRENT_REQUESTS", 10),
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "openai/gpt-4o-mini"
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}

	return cfg, nil
}
