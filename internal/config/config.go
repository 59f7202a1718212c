// Package config provides configuration loading, validation, and management
// for the location bot. Values come from defaults, an optional YAML file,
// a .env file and environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config defines the application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Web       WebConfig       `mapstructure:"web"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls slog output and the optional rotating log file.
type LoggerConfig struct {
	Level          string `mapstructure:"level"             validate:"oneof=debug info warn error"`
	JSON           bool   `mapstructure:"json"`
	File           string `mapstructure:"file"`
	FileMaxSizeMB  int    `mapstructure:"file_max_size_mb"  validate:"min=1"`
	FileMaxBackups int    `mapstructure:"file_max_backups"  validate:"min=0"`
	FileMaxAgeDays int    `mapstructure:"file_max_age_days" validate:"min=0"`
}

// TelegramConfig holds bot API settings.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
}

// DatabaseConfig selects the store. DSN is a SQLite path or a postgres:// URL.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" validate:"required"`
}

// WebConfig controls the admin dashboard.
type WebConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr"             validate:"required_if=Enabled true"`
	SessionSecret   string        `mapstructure:"session_secret"   validate:"required,min=8"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"      validate:"min=1m"`
	SecureCookie    bool          `mapstructure:"secure_cookie"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

// RedisConfig enables shared storage for web sessions and conversation state.
type RedisConfig struct {
	URL      string        `mapstructure:"url"       validate:"omitempty,url"`
	StateTTL time.Duration `mapstructure:"state_ttl" validate:"min=1m"`
}

// AdminConfig seeds the first web admin when none exists.
type AdminConfig struct {
	Username   string `mapstructure:"username" validate:"required"`
	Password   string `mapstructure:"password"`
	TOTPSecret string `mapstructure:"totp_secret"`
}

// GeocoderConfig points at a Nominatim compatible service.
type GeocoderConfig struct {
	SearchURL  string        `mapstructure:"search_url"  validate:"required,url"`
	ReverseURL string        `mapstructure:"reverse_url" validate:"required,url"`
	UserAgent  string        `mapstructure:"user_agent"  validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout"     validate:"min=1s,max=1m"`
}

// LimitsConfig holds the quota and per-command throttle intervals.
type LimitsConfig struct {
	DailyQueryCap int                      `mapstructure:"daily_query_cap" validate:"min=1"`
	NearestCount  int                      `mapstructure:"nearest_count"   validate:"min=1,max=20"`
	Intervals     map[string]time.Duration `mapstructure:"intervals"       validate:"dive,min=1s,max=30s"`
	RateLimitIdle time.Duration            `mapstructure:"rate_limit_idle" validate:"min=1m"`
}

// Interval returns the throttle interval for a command, falling back to the default.
func (l LimitsConfig) Interval(command string) time.Duration {
	if d, ok := l.Intervals[command]; ok {
		return d
	}
	if d, ok := l.Intervals["default"]; ok {
		return d
	}
	return DefaultRateLimitInterval
}

// SchedulerConfig maps task names to their cron schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig configures one scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// LoadConfig reads configuration from defaults, the YAML file at path (optional),
// a .env file (optional) and the environment, then validates it.
func LoadConfig(path string) (*Config, error) {
	// .env is optional; variables already set in the environment win
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
			}
		}
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// bindEnv maps the documented environment names onto config keys; every other
// key is reachable as BOT_<SECTION>_<KEY>.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := map[string][]string{
		"telegram.token":         {"BOT_TOKEN"},
		"web.session_secret":     {"SECRET_KEY"},
		"database.dsn":           {"DATABASE_URL"},
		"admin.username":         {"ADMIN_USERNAME"},
		"admin.password":         {"ADMIN_PASSWORD"},
		"admin.totp_secret":      {"ADMIN_TOTP_SECRET"},
		"redis.url":              {"BOT_REDIS_URL", "REDIS_URL"},
		"web.addr":               {"BOT_WEB_ADDR"},
		"logger.level":           {"BOT_LOG_LEVEL"},
		"logger.json":            {"BOT_LOG_JSON"},
		"logger.file":            {"BOT_LOG_FILE"},
		"limits.daily_query_cap": {"BOT_DAILY_QUERY_CAP"},
	}
	for key, envs := range explicit {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
}
