package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/code-100-precent/LingChat/pkg/logger"
	"github.com/code-100-precent/LingChat/pkg/realtime"
	"github.com/code-100-precent/LingChat/pkg/utils"
)

// Config represents the client configuration
type Config struct {
	ServerName    string `env:"SERVER_NAME"`
	Mode          string `env:"MODE"`
	Addr          string `env:"ADDR"`
	APIPrefix     string `env:"API_PREFIX"`
	MonitorPrefix string `env:"MONITOR_PREFIX"`

	// Shared bearer token for the control API, empty disables the check
	ControlToken   string        `env:"CONTROL_TOKEN"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS"`
	ControlRate    string        `env:"CONTROL_RATE"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	Log            logger.LogConfig
	// Level of the realtime package's logrus output
	RealtimeLogLevel string `env:"REALTIME_LOG_LEVEL"`
	Realtime         *realtime.Config

	GraphQLEndpoint string        `env:"GRAPHQL_ENDPOINT"`
	GraphQLToken    string        `env:"GRAPHQL_TOKEN"`
	GraphQLTimeout  time.Duration `env:"GRAPHQL_TIMEOUT"`
	// Skips the GraphQL lookup of the current user when set
	UserID string `env:"USER_ID"`

	Notification NotificationConfig

	PingSchedule        string `env:"PING_SCHEDULE"`
	DiagnosticsSchedule string `env:"DIAGNOSTICS_SCHEDULE"`
}

// NotificationConfig configures the notification service
type NotificationConfig struct {
	SettingsPath  string        `env:"NOTIFICATION_SETTINGS_PATH"`
	WatchSettings bool          `env:"NOTIFICATION_WATCH_SETTINGS"`
	Icon          string        `env:"NOTIFICATION_ICON"`
	Bell          bool          `env:"NOTIFICATION_BELL"`
	SoundEvery    time.Duration `env:"NOTIFICATION_SOUND_EVERY"`
	AutoDismiss   time.Duration `env:"NOTIFICATION_AUTO_DISMISS"`
	StartHidden   bool          `env:"NOTIFICATION_START_HIDDEN"`
	AutoGrant     bool          `env:"NOTIFICATION_AUTO_GRANT"`
	WebhookURL    string        `env:"NOTIFICATION_WEBHOOK_URL"`
	WebhookSecret string        `env:"NOTIFICATION_WEBHOOK_SECRET"`
}

// GlobalConfig is the global configuration instance
var GlobalConfig *Config

// Load loads configuration from environment variables
func Load() error {
	// Load .env file based on APP_ENV
	env := os.Getenv("APP_ENV")
	if err := utils.LoadEnv(env); err != nil {
		// A missing .env is normal outside development
		log.Printf("Note: .env file not found or failed to load: %v (using default values)", err)
	}

	rt := realtime.LoadConfigFromEnv()
	GlobalConfig = &Config{
		ServerName:     getStringOrDefault("SERVER_NAME", "LingChat"),
		Mode:           getStringOrDefault("MODE", "development"),
		Addr:           getStringOrDefault("ADDR", "127.0.0.1:7073"),
		APIPrefix:      getStringOrDefault("API_PREFIX", "/api"),
		MonitorPrefix:  getStringOrDefault("MONITOR_PREFIX", "/metrics"),
		ControlToken:   getStringOrDefault("CONTROL_TOKEN", ""),
		AllowedOrigins: getListOrDefault("ALLOWED_ORIGINS", nil),
		ControlRate:    getStringOrDefault("CONTROL_RATE", "120-M"),
		RequestTimeout: getDurationOrDefault("REQUEST_TIMEOUT", 15*time.Second),
		Log: logger.LogConfig{
			Level:      getStringOrDefault("LOG_LEVEL", "info"),
			Filename:   getStringOrDefault("LOG_FILENAME", "./logs/chatclient.log"),
			MaxSize:    getIntOrDefault("LOG_MAX_SIZE", 100),
			MaxAge:     getIntOrDefault("LOG_MAX_AGE", 30),
			MaxBackups: getIntOrDefault("LOG_MAX_BACKUPS", 5),
			Daily:      getBoolOrDefault("LOG_DAILY", true),
		},
		RealtimeLogLevel: getStringOrDefault("REALTIME_LOG_LEVEL", "info"),
		Realtime:         rt,
		GraphQLEndpoint:  getStringOrDefault("GRAPHQL_ENDPOINT", "http://localhost:4000/graphql"),
		GraphQLToken:     getStringOrDefault("GRAPHQL_TOKEN", rt.Token),
		GraphQLTimeout:   getDurationOrDefault("GRAPHQL_TIMEOUT", 10*time.Second),
		UserID:           getStringOrDefault("USER_ID", ""),
		Notification: NotificationConfig{
			SettingsPath:  getStringOrDefault("NOTIFICATION_SETTINGS_PATH", "./data/notification-settings.json"),
			WatchSettings: getBoolOrDefault("NOTIFICATION_WATCH_SETTINGS", true),
			Icon:          getStringOrDefault("NOTIFICATION_ICON", ""),
			Bell:          getBoolOrDefault("NOTIFICATION_BELL", true),
			SoundEvery:    getDurationOrDefault("NOTIFICATION_SOUND_EVERY", time.Second),
			AutoDismiss:   getDurationOrDefault("NOTIFICATION_AUTO_DISMISS", 5*time.Second),
			StartHidden:   getBoolOrDefault("NOTIFICATION_START_HIDDEN", true),
			AutoGrant:     getBoolOrDefault("NOTIFICATION_AUTO_GRANT", false),
			WebhookURL:    getStringOrDefault("NOTIFICATION_WEBHOOK_URL", ""),
			WebhookSecret: getStringOrDefault("NOTIFICATION_WEBHOOK_SECRET", ""),
		},
		PingSchedule:        getStringOrDefault("PING_SCHEDULE", "@every 30s"),
		DiagnosticsSchedule: getStringOrDefault("DIAGNOSTICS_SCHEDULE", "@every 5m"),
	}
	return GlobalConfig.Validate()
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("ADDR is required")
	}
	if err := realtime.ValidateConfig(c.Realtime); err != nil {
		return fmt.Errorf("realtime: %w", err)
	}
	if c.Notification.SettingsPath == "" {
		return fmt.Errorf("NOTIFICATION_SETTINGS_PATH is required")
	}
	return nil
}

// getStringOrDefault gets environment variable value, returns default if empty
func getStringOrDefault(key, defaultValue string) string {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getBoolOrDefault gets boolean environment variable value, returns default if empty
func getBoolOrDefault(key string, defaultValue bool) bool {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	return utils.GetBoolEnv(key)
}

// getIntOrDefault gets integer environment variable value, returns default if zero
func getIntOrDefault(key string, defaultValue int) int {
	value := utils.GetIntEnv(key)
	if value == 0 {
		return defaultValue
	}
	return int(value)
}

func getListOrDefault(key string, defaultValue []string) []string {
	value := utils.GetEnv(key)
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

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if d := utils.GetDurationEnv(key); d > 0 {
		return d
	}
	return defaultValue
}
