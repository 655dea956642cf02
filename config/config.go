// Package config loads the application configuration.
//
// Values are layered: built-in defaults, then an optional YAML file named by
// CONFIG_FILE, then environment variables. Later layers win.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all configuration for the application.
type Config struct {
	App       AppConfig       `koanf:"app"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Telegram  TelegramConfig  `koanf:"telegram"`
	League    LeagueConfig    `koanf:"league"`
	HTTP      HTTPConfig      `koanf:"http"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Log       LogConfig       `koanf:"log"`
	Cron      CronConfig      `koanf:"cron"`
}

// AppConfig contains general application settings.
type AppConfig struct {
	Name            string        `koanf:"name"`
	Environment     Environment   `koanf:"environment"`
	Version         string        `koanf:"version"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
}

// RedisConfig contains Redis settings. The cache is optional: with
// Disabled set or no URL, reports are rendered on every request.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	Disabled     bool          `koanf:"disabled"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// Enabled reports whether a Redis connection should be attempted.
func (c RedisConfig) Enabled() bool {
	return !c.Disabled && c.URL != ""
}

// TelegramConfig contains bot settings.
type TelegramConfig struct {
	Token       string `koanf:"token"`
	BotUsername string `koanf:"bot_username"`

	// LeagueChatID restricts score submissions to one group. Zero accepts any chat.
	LeagueChatID int64 `koanf:"league_chat_id"`

	PollingTimeout   time.Duration `koanf:"polling_timeout"`
	UserRateLimit    int           `koanf:"user_rate_limit"`
	UserRateBurst    int           `koanf:"user_rate_burst"`
	UserRateLimitBan time.Duration `koanf:"user_rate_limit_ban"`
	Debug            bool          `koanf:"debug"`
}

// LeagueConfig contains the league calendar settings.
type LeagueConfig struct {
	Timezone string `koanf:"timezone"`

	// Location is resolved from Timezone by Load.
	Location *time.Location `koanf:"-"`
}

// HTTPConfig contains the HTTP server settings.
type HTTPConfig struct {
	Host              string `koanf:"host"`
	Port              int    `koanf:"port"`
	RateLimit         int    `koanf:"rate_limit"`
	RateBurst         int    `koanf:"rate_burst"`
	TrustProxyHeaders bool   `koanf:"trust_proxy"`

	// HealthTimeout bounds each dependency check behind /health.
	HealthTimeout time.Duration `koanf:"health_timeout"`
}

// SchedulerConfig contains the in-process scheduler settings.
type SchedulerConfig struct {
	Enabled         bool   `koanf:"enabled"`
	WeeklyCloseCron string `koanf:"weekly_close_cron"`

	// RecomputeInterval re-ranks today's game periodically. Zero disables it.
	RecomputeInterval time.Duration `koanf:"recompute_interval"`

	TickInterval time.Duration `koanf:"tick_interval"`
	JobTimeout   time.Duration `koanf:"job_timeout"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `koanf:"level"`

	// Format is json or text. Empty means json in production, text elsewhere.
	Format string `koanf:"format"`

	File          string `koanf:"file"`
	FileMaxSizeMB int    `koanf:"file_max_size_mb"`
	FileBackups   int    `koanf:"file_backups"`
	FileMaxAge    int    `koanf:"file_max_age_days"`
}

// CronConfig holds the shared secret for the weekly close endpoint. A bcrypt
// hash takes precedence over the plain key.
type CronConfig struct {
	APIKey     string `koanf:"api_key"`
	APIKeyHash string `koanf:"api_key_hash"`
}

// Configured reports whether the weekly close endpoint can be authenticated.
func (c CronConfig) Configured() bool {
	return c.APIKey != "" || c.APIKeyHash != ""
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:            "timeguessr-bot",
			Environment:     EnvDevelopment,
			Version:         "0.1.0",
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        1,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
			QueryTimeout:    30 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Telegram: TelegramConfig{
			PollingTimeout:   30 * time.Second,
			UserRateLimit:    20,
			UserRateBurst:    5,
			UserRateLimitBan: 5 * time.Minute,
		},
		League: LeagueConfig{
			Timezone: timeutil.DefaultTimezone,
		},
		HTTP: HTTPConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			RateLimit:     60,
			RateBurst:     10,
			HealthTimeout: 5 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:           true,
			WeeklyCloseCron:   timeutil.WeeklyCloseCron,
			RecomputeInterval: 15 * time.Minute,
			TickInterval:      time.Second,
			JobTimeout:        5 * time.Minute,
		},
		Log: LogConfig{
			Level:         "info",
			FileMaxSizeMB: 50,
			FileBackups:   5,
			FileMaxAge:    14,
		},
	}
}

// envKeys maps environment variable names onto config keys. Variables not
// listed here are ignored.
var envKeys = map[string]string{
	"APP_NAME":             "app.name",
	"APP_ENV":              "app.environment",
	"APP_VERSION":          "app.version",
	"APP_SHUTDOWN_TIMEOUT": "app.shutdown_timeout",

	"DATABASE_URL":          "database.url",
	"DB_MAX_CONNS":          "database.max_conns",
	"DB_MIN_CONNS":          "database.min_conns",
	"DB_CONN_MAX_LIFETIME":  "database.conn_max_lifetime",
	"DB_CONN_MAX_IDLE_TIME": "database.conn_max_idle_time",
	"DB_QUERY_TIMEOUT":      "database.query_timeout",

	"REDIS_URL":           "redis.url",
	"REDIS_DISABLED":      "redis.disabled",
	"REDIS_POOL_SIZE":     "redis.pool_size",
	"REDIS_DIAL_TIMEOUT":  "redis.dial_timeout",
	"REDIS_READ_TIMEOUT":  "redis.read_timeout",
	"REDIS_WRITE_TIMEOUT": "redis.write_timeout",

	"TELEGRAM_BOT_TOKEN":           "telegram.token",
	"TELEGRAM_BOT_USERNAME":        "telegram.bot_username",
	"TELEGRAM_LEAGUE_CHAT_ID":      "telegram.league_chat_id",
	"TELEGRAM_POLLING_TIMEOUT":     "telegram.polling_timeout",
	"TELEGRAM_USER_RATE_LIMIT":     "telegram.user_rate_limit",
	"TELEGRAM_USER_RATE_BURST":     "telegram.user_rate_burst",
	"TELEGRAM_USER_RATE_LIMIT_BAN": "telegram.user_rate_limit_ban",
	"TELEGRAM_DEBUG":               "telegram.debug",

	"LEAGUE_TIMEZONE": "league.timezone",
	"APP_TIMEZONE":    "league.timezone",

	"HTTP_HOST":           "http.host",
	"PORT":                "http.port",
	"HTTP_PORT":           "http.port",
	"HTTP_RATE_LIMIT":     "http.rate_limit",
	"HTTP_RATE_BURST":     "http.rate_burst",
	"HTTP_TRUST_PROXY":    "http.trust_proxy",
	"HTTP_HEALTH_TIMEOUT": "http.health_timeout",

	"SCHEDULER_ENABLED":            "scheduler.enabled",
	"SCHEDULER_WEEKLY_CLOSE_CRON":  "scheduler.weekly_close_cron",
	"SCHEDULER_RECOMPUTE_INTERVAL": "scheduler.recompute_interval",
	"SCHEDULER_TICK_INTERVAL":      "scheduler.tick_interval",
	"SCHEDULER_JOB_TIMEOUT":        "scheduler.job_timeout",

	"LOG_LEVEL":             "log.level",
	"LOG_FORMAT":            "log.format",
	"LOG_FILE":              "log.file",
	"LOG_FILE_MAX_SIZE_MB":  "log.file_max_size_mb",
	"LOG_FILE_BACKUPS":      "log.file_backups",
	"LOG_FILE_MAX_AGE_DAYS": "log.file_max_age_days",

	"CRON_API_KEY":      "cron.api_key",
	"CRON_API_KEY_HASH": "cron.api_key_hash",
}

// Load reads the configuration and validates it with Validate.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadUnvalidated reads the configuration without requiring the bot token,
// for tools that only talk to the database.
func LoadUnvalidated() (*Config, error) {
	return load()
}

func load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	// Empty variables are skipped so they never blank a default. Where two
	// variables map to one key the more specific one wins.
	envProvider := env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		if value == "" {
			return "", nil
		}
		if key == "PORT" && os.Getenv("HTTP_PORT") != "" {
			return "", nil
		}
		if key == "APP_TIMEZONE" && os.Getenv("LEAGUE_TIMEZONE") != "" {
			return "", nil
		}
		return envKeys[key], value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}

	loc, err := timeutil.LoadLocation(cfg.League.Timezone)
	if err != nil {
		return nil, fmt.Errorf("LEAGUE_TIMEZONE: %w", err)
	}
	cfg.League.Location = loc
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Telegram.Token == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required")
	}
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	switch c.App.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, fmt.Sprintf("APP_ENV %q is not one of development, staging, production", c.App.Environment))
	}

	if _, err := timeutil.LoadLocation(c.League.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("LEAGUE_TIMEZONE: %v", err))
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, "HTTP_PORT must be 1-65535")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, "DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	if c.Scheduler.Enabled && strings.TrimSpace(c.Scheduler.WeeklyCloseCron) == "" {
		errs = append(errs, "SCHEDULER_WEEKLY_CLOSE_CRON is required when the scheduler is enabled")
	}
	if c.IsProduction() && !c.Cron.Configured() {
		errs = append(errs, "CRON_API_KEY or CRON_API_KEY_HASH is required in production")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}
