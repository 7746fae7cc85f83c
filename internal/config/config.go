package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// global configuration structure
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Database DatabaseConfig `mapstructure:"database"`
	Appeals  AppealsConfig  `mapstructure:"appeals"`
	Unban    UnbanConfig    `mapstructure:"unban"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
}

// Telegram bot configuration
type BotConfig struct {
	Token          string        `mapstructure:"token"`
	MainGroupID    int64         `mapstructure:"main_group_id"`
	AdminGroupID   int64         `mapstructure:"admin_group_id"`
	Mode           string        `mapstructure:"mode"`
	Language       string        `mapstructure:"language"`
	CommunityName  string        `mapstructure:"community_name"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	HTTP           HTTPConfig    `mapstructure:"http"`
	Webhook        WebhookConfig `mapstructure:"webhook"`
}

// health/debug server shared with the webhook listener
type HTTPConfig struct {
	ListenPort string `mapstructure:"listen_port"`
	HealthPath string `mapstructure:"health_path"`
	DebugPath  string `mapstructure:"debug_path"`
}

// webhook server configuration
type WebhookConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// logging configuration
type LoggerConfig struct {
	Directory string            `mapstructure:"directory"`
	File      string            `mapstructure:"file"`
	Rotation  LogRotationConfig `mapstructure:"rotation"`
	Level     string            `mapstructure:"level"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
	SSLMode  string `mapstructure:"sslmode"`
	LogLevel string `mapstructure:"log_level"`
}

// appeal workflow settings
type AppealsConfig struct {
	// ShowAdminName embeds the deciding admin's display name in the stored
	// decision text, which is also shown to the submitter.
	ShowAdminName bool `mapstructure:"show_admin_name"`
	StatusLimit   int  `mapstructure:"status_limit"`
}

// unban provider chain
type UnbanConfig struct {
	Providers        []string            `mapstructure:"providers"`
	UseModerationAPI bool                `mapstructure:"use_moderation_api"`
	ModerationAPI    ModerationAPIConfig `mapstructure:"moderation_api"`
}

type ModerationAPIConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

const envPrefix = "TG_APPEALS"

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"

	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	ProviderModerationAPI = "moderation_api"
	ProviderTelegram      = "telegram"
)

// legacyEnv maps the flat environment names used by existing deployments.
var legacyEnv = map[string]string{
	"bot.token":                 "APPEALS_BOT_TOKEN",
	"bot.main_group_id":         "MAIN_GROUP_ID",
	"bot.admin_group_id":        "ADMIN_GROUP_ID",
	"database.path":             "DATABASE_PATH",
	"logger.level":              "LOG_LEVEL",
	"logger.file":               "LOG_FILE",
	"unban.moderation_api.host": "TG_SPAM_HOST",
	"unban.moderation_api.port": "TG_SPAM_PORT",
	"unban.use_moderation_api":  "USE_TG_SPAM_API",
	"sentry.dsn":                "SENTRY_DSN",
}

// Load reads configuration from an optional YAML file, a .env file and the
// process environment. An empty configPath means environment only.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring .env file: %v", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// API_TIMEOUT is given in seconds
	if raw := os.Getenv("API_TIMEOUT"); raw != "" {
		var seconds int
		if _, err := fmt.Sscanf(raw, "%d", &seconds); err == nil && seconds > 0 {
			loaded.Bot.RequestTimeout = time.Duration(seconds) * time.Second
		}
	}

	if err := loaded.Validate(); err != nil {
		return nil, err
	}

	return loaded, nil
}

// bindEnv binds every leaf key of Config to TG_APPEALS_<KEY>, plus its legacy
// name if it has one. AutomaticEnv alone only sees keys that have a default.
func bindEnv(v *viper.Viper) error {
	for _, key := range configKeys(reflect.TypeOf(Config{}), "") {
		names := []string{envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("error binding env for %s: %w", key, err)
		}
	}
	return nil
}

// configKeys lists the dotted mapstructure keys of the leaf fields of t.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct {
			keys = append(keys, configKeys(field.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Validate checks the settings the bot cannot start without.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if c.Bot.MainGroupID == 0 {
		return fmt.Errorf("main group id is required")
	}
	if c.Bot.AdminGroupID == 0 {
		return fmt.Errorf("admin group id is required")
	}

	switch c.Bot.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Bot.Webhook.Endpoint == "" {
			return fmt.Errorf("webhook endpoint is required in webhook mode")
		}
	default:
		return fmt.Errorf("unknown bot mode: %q", c.Bot.Mode)
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}

	for _, name := range c.Unban.Providers {
		if name != ProviderModerationAPI && name != ProviderTelegram {
			return fmt.Errorf("unknown unban provider: %q", name)
		}
	}

	return nil
}

// ModerationAPIURL returns the unban endpoint of the moderation API.
func (c *Config) ModerationAPIURL() string {
	if c.Unban.ModerationAPI.URL != "" {
		return c.Unban.ModerationAPI.URL
	}
	return fmt.Sprintf("http://%s:%d/unban", c.Unban.ModerationAPI.Host, c.Unban.ModerationAPI.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.mode", ModePolling)
	v.SetDefault("bot.language", "ru")
	v.SetDefault("bot.community_name", "F1News.ru")
	v.SetDefault("bot.request_timeout", 30*time.Second)
	v.SetDefault("bot.max_concurrent", 100)
	v.SetDefault("bot.http.listen_port", "8081")
	v.SetDefault("bot.http.health_path", "/healthz")
	v.SetDefault("bot.http.debug_path", "/debug")
	v.SetDefault("bot.webhook.cert_file", "")
	v.SetDefault("bot.webhook.key_file", "")

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.level", "INFO")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "/data/appeals.db")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "WARNING")

	v.SetDefault("appeals.show_admin_name", false)
	v.SetDefault("appeals.status_limit", 5)

	v.SetDefault("unban.providers", []string{ProviderModerationAPI, ProviderTelegram})
	v.SetDefault("unban.use_moderation_api", true)
	v.SetDefault("unban.moderation_api.host", "tg-spam")
	v.SetDefault("unban.moderation_api.port", 8080)

	v.SetDefault("sentry.sample_rate", 1.0)
}
