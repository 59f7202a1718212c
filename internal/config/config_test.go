package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Environment based tests cannot run in parallel because t.Setenv is process wide.

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123456:token")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "123456:token", cfg.Telegram.Token)
	assert.Equal(t, DefaultDatabaseDSN, cfg.Database.DSN)
	assert.Equal(t, DefaultSessionSecret, cfg.Web.SessionSecret)
	assert.Equal(t, DefaultAdminUsername, cfg.Admin.Username)
	assert.Empty(t, cfg.Admin.Password)
	assert.Equal(t, DefaultGeocoderTimeout, cfg.Geocoder.Timeout)
	assert.Equal(t, DefaultGeocoderUserAgent, cfg.Geocoder.UserAgent)
	assert.Equal(t, DefaultDailyQueryCap, cfg.Limits.DailyQueryCap)
	assert.Equal(t, 3*time.Second, cfg.Limits.Interval("number"))
	assert.Equal(t, DefaultMessages.Welcome, cfg.Messages.Welcome)
	assert.True(t, cfg.Scheduler.Tasks["sql_maintenance"].Enabled)
}

func TestLoadConfigMissingTokenIsFatal(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "Token")
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("SECRET_KEY", "a-very-long-secret")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/bot")
	t.Setenv("ADMIN_USERNAME", "root")
	t.Setenv("ADMIN_PASSWORD", "hunter22")
	t.Setenv("ADMIN_TOTP_SECRET", "JBSWY3DPEHPK3PXP")
	t.Setenv("BOT_LOG_LEVEL", "debug")
	t.Setenv("BOT_DAILY_QUERY_CAP", "25")
	t.Setenv("BOT_GEOCODER_TIMEOUT", "7s")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, "a-very-long-secret", cfg.Web.SessionSecret)
	assert.Equal(t, "postgres://u:p@db/bot", cfg.Database.DSN)
	assert.Equal(t, "root", cfg.Admin.Username)
	assert.Equal(t, "hunter22", cfg.Admin.Password)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", cfg.Admin.TOTPSecret)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 25, cfg.Limits.DailyQueryCap)
	assert.Equal(t, 7*time.Second, cfg.Geocoder.Timeout)
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("BOT_TOKEN", "file-test")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
logger:
  level: warn
  json: true
limits:
  nearest_count: 3
  intervals:
    number: 10s
messages:
  welcome: "Hi {name}, {remaining} left"
scheduler:
  tasks:
    ratelimit_sweep:
      enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.True(t, cfg.Logger.JSON)
	assert.Equal(t, 3, cfg.Limits.NearestCount)
	assert.Equal(t, 10*time.Second, cfg.Limits.Interval("number"))
	assert.Equal(t, 2*time.Second, cfg.Limits.Interval("start"), "unlisted intervals keep their defaults")
	assert.Equal(t, "Hi {name}, {remaining} left", cfg.Messages.Welcome)
	assert.Equal(t, DefaultMessages.Help, cfg.Messages.Help)
	assert.False(t, cfg.Scheduler.Tasks["ratelimit_sweep"].Enabled)
	assert.True(t, cfg.Scheduler.Tasks["sql_maintenance"].Enabled)
}

func TestLoadConfigMalformedFile(t *testing.T) {
	t.Setenv("BOT_TOKEN", "file-test")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad log level", func(c *Config) { c.Logger.Level = "verbose" }, true},
		{"interval too long", func(c *Config) { c.Limits.Intervals["backup"] = time.Minute }, true},
		{"interval too short", func(c *Config) { c.Limits.Intervals["text"] = 100 * time.Millisecond }, true},
		{"zero daily cap", func(c *Config) { c.Limits.DailyQueryCap = 0 }, true},
		{"short session secret", func(c *Config) { c.Web.SessionSecret = "abc" }, true},
		{"bad redis url", func(c *Config) { c.Redis.URL = "not a url" }, true},
		{"enabled task without schedule", func(c *Config) {
			c.Scheduler.Tasks["sql_maintenance"] = TaskConfig{Enabled: true}
		}, true},
		{"disabled task without schedule", func(c *Config) {
			c.Scheduler.Tasks["sql_maintenance"] = TaskConfig{}
		}, false},
		{"web enabled without addr", func(c *Config) { c.Web.Addr = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			cfg.Telegram.Token = "token"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIntervalFallback(t *testing.T) {
	t.Parallel()

	l := LimitsConfig{Intervals: map[string]time.Duration{"default": 4 * time.Second}}
	assert.Equal(t, 4*time.Second, l.Interval("unknown"))
	assert.Equal(t, DefaultRateLimitInterval, LimitsConfig{}.Interval("unknown"))
}

func TestFormat(t *testing.T) {
	t.Parallel()

	got := Format(DefaultMessages.Welcome, "name", "Ann", "remaining", "10")
	assert.Contains(t, got, "Hello Ann!")
	assert.Contains(t, got, "You have 10 requests left today.")
	assert.Equal(t, "no {placeholders}", Format("no {placeholders}"))
	assert.Equal(t, "a {b}", Format("a {b}", "c", "d"))
}
