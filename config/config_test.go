package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "postgres://localhost/league")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "59 23 * * 0", cfg.Scheduler.WeeklyCloseCron)
	assert.Equal(t, "Europe/Zagreb", cfg.League.Location.String())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, 5*time.Second, cfg.HTTP.HealthTimeout)
	assert.Equal(t, 30*time.Second, cfg.Database.QueryTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_LEAGUE_CHAT_ID", "-100123")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("PORT", "7000")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("CRON_API_KEY", "s3cret")
	t.Setenv("HTTP_HEALTH_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(-100123), cfg.Telegram.LeagueChatID)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 5*time.Second, cfg.App.ShutdownTimeout)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "s3cret", cfg.Cron.APIKey)
	assert.True(t, cfg.Cron.Configured())
	assert.Equal(t, 2*time.Second, cfg.HTTP.HealthTimeout)
}

func TestLoad_TimezoneAlias(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LEAGUE_TIMEZONE", "")
	t.Setenv("APP_TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cfg.League.Location.String())

	t.Setenv("LEAGUE_TIMEZONE", "Europe/Zagreb")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Zagreb", cfg.League.Location.String())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
league:
  timezone: Europe/Berlin
telegram:
  bot_username: liga_bot
  user_rate_limit: 7
log:
  level: debug
`), 0o600))

	setRequired(t)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Europe/Berlin", cfg.League.Location.String())
	assert.Equal(t, "liga_bot", cfg.Telegram.BotUsername)
	assert.Equal(t, 7, cfg.Telegram.UserRateLimit)
	assert.Equal(t, 5, cfg.Telegram.UserRateBurst)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.App.Environment = EnvProduction
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "configuration errors")
	assert.Contains(t, msg, "TELEGRAM_BOT_TOKEN is required")
	assert.Contains(t, msg, "DATABASE_URL is required")
	assert.Contains(t, msg, "HTTP_PORT must be 1-65535")
	assert.Contains(t, msg, "CRON_API_KEY or CRON_API_KEY_HASH is required in production")
}

func TestValidate_UnknownEnvironment(t *testing.T) {
	cfg := Default()
	cfg.Telegram.Token = "t"
	cfg.Database.URL = "postgres://x"
	cfg.App.Environment = "qa"

	assert.ErrorContains(t, cfg.Validate(), `APP_ENV "qa"`)
}

func TestLoad_UnknownTimezone(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LEAGUE_TIMEZONE", "Europe/Zagrb")

	_, err := Load()
	assert.ErrorContains(t, err, "Europe/Zagrb")

	_, err = LoadUnvalidated()
	assert.ErrorContains(t, err, "LEAGUE_TIMEZONE")
}

func TestValidate_UnknownTimezone(t *testing.T) {
	cfg := Default()
	cfg.Telegram.Token = "t"
	cfg.Database.URL = "postgres://x"
	cfg.League.Timezone = "Mars/Olympus"

	assert.ErrorContains(t, cfg.Validate(), `LEAGUE_TIMEZONE: unknown timezone "Mars/Olympus"`)
}
