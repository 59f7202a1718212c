package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultLogLevel          = "info"
	DefaultLogFileMaxSizeMB  = 1
	DefaultLogFileMaxBackups = 3
	DefaultLogFileMaxAgeDays = 28

	DefaultDatabaseDSN = "bot_data.db"

	DefaultWebAddr            = ":5000"
	DefaultSessionSecret      = "dev_secret_key"
	DefaultSessionTTL         = 12 * time.Hour
	DefaultWebShutdownTimeout = 10 * time.Second

	DefaultRedisStateTTL = 24 * time.Hour

	DefaultAdminUsername = "admin"

	DefaultGeocoderSearchURL  = "https://nominatim.openstreetmap.org/search"
	DefaultGeocoderReverseURL = "https://nominatim.openstreetmap.org/reverse"
	DefaultGeocoderUserAgent  = "TeleLocatorBot/1.0"
	DefaultGeocoderTimeout    = 5 * time.Second

	DefaultDailyQueryCap     = 10
	DefaultNearestCount      = 5
	DefaultRateLimitInterval = 2 * time.Second
	DefaultRateLimitIdle     = 30 * time.Minute
)

// DefaultIntervals are the per-command throttle intervals.
func DefaultIntervals() map[string]time.Duration {
	return map[string]time.Duration{
		"default":  DefaultRateLimitInterval,
		"start":    2 * time.Second,
		"help":     2 * time.Second,
		"number":   3 * time.Second,
		"numbers":  3 * time.Second,
		"locate":   3 * time.Second,
		"category": 3 * time.Second,
		"location": 3 * time.Second,
		"text":     1 * time.Second,
		"stats":    5 * time.Second,
		"accounts": 2 * time.Second,
		"backup":   30 * time.Second,
	}
}

// DefaultTasks are the scheduled jobs enabled out of the box.
func DefaultTasks() map[string]TaskConfig {
	return map[string]TaskConfig{
		"sql_maintenance": {Enabled: true, Schedule: "0 0 4 * * *"},
		"ratelimit_sweep": {Enabled: true, Schedule: "0 */10 * * * *"},
	}
}

func defaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:          DefaultLogLevel,
			FileMaxSizeMB:  DefaultLogFileMaxSizeMB,
			FileMaxBackups: DefaultLogFileMaxBackups,
			FileMaxAgeDays: DefaultLogFileMaxAgeDays,
		},
		Database: DatabaseConfig{DSN: DefaultDatabaseDSN},
		Web: WebConfig{
			Enabled:         true,
			Addr:            DefaultWebAddr,
			SessionSecret:   DefaultSessionSecret,
			SessionTTL:      DefaultSessionTTL,
			ShutdownTimeout: DefaultWebShutdownTimeout,
		},
		Redis: RedisConfig{StateTTL: DefaultRedisStateTTL},
		Admin: AdminConfig{Username: DefaultAdminUsername},
		Geocoder: GeocoderConfig{
			SearchURL:  DefaultGeocoderSearchURL,
			ReverseURL: DefaultGeocoderReverseURL,
			UserAgent:  DefaultGeocoderUserAgent,
			Timeout:    DefaultGeocoderTimeout,
		},
		Limits: LimitsConfig{
			DailyQueryCap: DefaultDailyQueryCap,
			NearestCount:  DefaultNearestCount,
			Intervals:     DefaultIntervals(),
			RateLimitIdle: DefaultRateLimitIdle,
		},
		Scheduler: SchedulerConfig{Tasks: DefaultTasks()},
		Messages:  DefaultMessages,
	}
}

// setDefaults registers scalar keys with viper so environment variables can override them.
func setDefaults(v *viper.Viper) {
	d := defaultConfig()

	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.json", d.Logger.JSON)
	v.SetDefault("logger.file", d.Logger.File)
	v.SetDefault("logger.file_max_size_mb", d.Logger.FileMaxSizeMB)
	v.SetDefault("logger.file_max_backups", d.Logger.FileMaxBackups)
	v.SetDefault("logger.file_max_age_days", d.Logger.FileMaxAgeDays)

	v.SetDefault("telegram.token", "")

	v.SetDefault("database.dsn", d.Database.DSN)

	v.SetDefault("web.enabled", d.Web.Enabled)
	v.SetDefault("web.addr", d.Web.Addr)
	v.SetDefault("web.session_secret", d.Web.SessionSecret)
	v.SetDefault("web.session_ttl", d.Web.SessionTTL)
	v.SetDefault("web.secure_cookie", d.Web.SecureCookie)
	v.SetDefault("web.shutdown_timeout", d.Web.ShutdownTimeout)

	v.SetDefault("redis.url", d.Redis.URL)
	v.SetDefault("redis.state_ttl", d.Redis.StateTTL)

	v.SetDefault("admin.username", d.Admin.Username)
	v.SetDefault("admin.password", d.Admin.Password)
	v.SetDefault("admin.totp_secret", d.Admin.TOTPSecret)

	v.SetDefault("geocoder.search_url", d.Geocoder.SearchURL)
	v.SetDefault("geocoder.reverse_url", d.Geocoder.ReverseURL)
	v.SetDefault("geocoder.user_agent", d.Geocoder.UserAgent)
	v.SetDefault("geocoder.timeout", d.Geocoder.Timeout)

	v.SetDefault("limits.daily_query_cap", d.Limits.DailyQueryCap)
	v.SetDefault("limits.nearest_count", d.Limits.NearestCount)
	v.SetDefault("limits.rate_limit_idle", d.Limits.RateLimitIdle)
}

// MessagesConfig holds every user-facing bot string. Placeholders in braces
// ({name}, {remaining}, {query}, ...) are substituted at send time.
type MessagesConfig struct {
	Welcome               string `mapstructure:"welcome"`
	Help                  string `mapstructure:"help"`
	HelpAdmin             string `mapstructure:"help_admin"`
	PromptLocation        string `mapstructure:"prompt_location"`
	PromptLocationNumbers string `mapstructure:"prompt_location_numbers"`
	QuotaExhausted        string `mapstructure:"quota_exhausted"`
	Fallback              string `mapstructure:"fallback"`
	NotFound              string `mapstructure:"not_found"`
	NoNearby              string `mapstructure:"no_nearby"`
	Nearest               string `mapstructure:"nearest"`
	NearestList           string `mapstructure:"nearest_list"`
	GeneralError          string `mapstructure:"general_error"`
	SlowDown              string `mapstructure:"slow_down"`
	NotAuthorized         string `mapstructure:"not_authorized"`
	LocateUsage           string `mapstructure:"locate_usage"`
	LocationFound         string `mapstructure:"location_found"`
	ReverseFound          string `mapstructure:"reverse_found"`
	ReverseNotFound       string `mapstructure:"reverse_not_found"`
	CategoryUsage         string `mapstructure:"category_usage"`
	CategoryFound         string `mapstructure:"category_found"`
	AccountUsage          string `mapstructure:"account_usage"`
	AccountNotFound       string `mapstructure:"account_not_found"`
	SelfLockout           string `mapstructure:"self_lockout"`
	Promoted              string `mapstructure:"promoted"`
	Demoted               string `mapstructure:"demoted"`
	Activated             string `mapstructure:"activated"`
	Deactivated           string `mapstructure:"deactivated"`
	NotifyPromoted        string `mapstructure:"notify_promoted"`
	NotifyDemoted         string `mapstructure:"notify_demoted"`
	NotifyActivated       string `mapstructure:"notify_activated"`
	NotifyDeactivated     string `mapstructure:"notify_deactivated"`
	Stats                 string `mapstructure:"stats"`
	AccountsHeader        string `mapstructure:"accounts_header"`
	BackupUnsupported     string `mapstructure:"backup_unsupported"`
	BackupCaption         string `mapstructure:"backup_caption"`
}

// DefaultMessages are the built-in bot strings.
var DefaultMessages = MessagesConfig{
	Welcome: "👋 Hello {name}! I'm a location lookup bot.\n" +
		"You have {remaining} requests left today.\n" +
		"Send /number to find the closest contact to an address, /numbers for the five closest, or /help for everything else.",
	Help: "📋 Available commands:\n" +
		"/start - Restart the conversation and show your remaining requests.\n" +
		"/number - Find the closest contact to an address.\n" +
		"/numbers - List the closest contacts to an address.\n" +
		"/locate <address> - Get coordinates for a location by address.\n" +
		"/city <name> - Search for a city.\n" +
		"/town <name> - Search for a town.\n" +
		"/village <name> - Search for a village.\n" +
		"/postcode <code> - Search by postcode.\n" +
		"(You can also send a location pin, and I'll tell you the address.)",
	HelpAdmin: "\n\nAdmin commands:\n" +
		"/stats - Show bot usage statistics.\n" +
		"/users - List registered users.\n" +
		"/promote <user_id|@username> - Promote a user to admin.\n" +
		"/demote <user_id|@username> - Revoke a user's admin status.\n" +
		"/activate <user_id|@username> - Reactivate a user.\n" +
		"/deactivate <user_id|@username> - Deactivate a user.\n" +
		"/backup - Create a database backup.",
	PromptLocation:        "📍 Send me an address or place name and I'll find the closest contact.",
	PromptLocationNumbers: "📍 Send me an address or place name and I'll list the closest contacts.",
	QuotaExhausted:        "⏳ You have used all of today's requests. Please try again later.",
	Fallback:              "❓ I didn't understand that. Use /number to start a lookup or /help to see available commands.",
	NotFound:              "❌ Could not find any location for: {query}",
	NoNearby:              "🤷 Location found: {address}\nNo contacts are registered nearby yet.",
	Nearest:               "📍 Location found: {address}\nClosest contact: {contact}\nNear: {near}",
	NearestList:           "📍 Location found: {address}\nClosest contacts:",
	GeneralError:          "⚠️ Something went wrong. Please try again later.",
	SlowDown:              "🐢 Slow down! Please wait a moment before sending another command.",
	NotAuthorized:         "⛔ You are not authorized to use this command.",
	LocateUsage:           "ℹ️ Usage: /locate <address or place name>",
	LocationFound:         "📍 Location found: {address}\n(Latitude: {lat}, Longitude: {lon})",
	ReverseFound:          "📍 You are at: {address}",
	ReverseNotFound:       "ℹ️ Received your location (lat={lat}, lon={lon}).\nSorry, I couldn't find an address for it.",
	CategoryUsage:         "ℹ️ Usage: /{command} <name>",
	CategoryFound:         "🔍 Best {command} match for '{query}': {address}\n(Latitude: {lat}, Longitude: {lon})",
	AccountUsage:          "ℹ️ Usage: /{command} <user_id|@username>",
	AccountNotFound:       "❌ User not found.",
	SelfLockout:           "⚠️ You cannot {action} your own account.",
	Promoted:              "✅ {user} promoted to admin.",
	Demoted:               "ℹ️ Admin privileges revoked for {user}.",
	Activated:             "✅ {user} has been reactivated.",
	Deactivated:           "⚠️ {user} has been deactivated.",
	NotifyPromoted:        "🎉 You have been promoted to admin. Set up 2FA with this code: {secret}",
	NotifyDemoted:         "⚠️ Your admin access has been revoked.",
	NotifyActivated:       "✅ Your account has been reactivated by an admin.",
	NotifyDeactivated:     "⛔ Your account has been deactivated by an admin.",
	Stats:                 "👥 Total users: {accounts} (Admins: {admins})\n📍 Locations logged: {queries}",
	AccountsHeader:        "👥 Users ({total}):",
	BackupUnsupported:     "ℹ️ Backups are only available for SQLite databases.",
	BackupCaption:         "🗄 Database backup {time}",
}

// Format substitutes {key} placeholders in tmpl. pairs alternate key, value.
func Format(tmpl string, pairs ...string) string {
	if len(pairs) < 2 {
		return tmpl
	}
	oldnew := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		oldnew = append(oldnew, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(tmpl)
}
