// Package config provides configuration management for the application.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	API      APIConfig      `mapstructure:"api"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds the diagnostics HTTP server configuration
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// APIConfig holds the feed REST API configuration
type APIConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	Token             string  `mapstructure:"token"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// FeedConfig holds the cache and locale configuration
type FeedConfig struct {
	// Locales is the configured locale set, comma separated in the
	// environment.
	Locales []string

	ScheduleRefreshInterval  time.Duration
	SportDataRefreshInterval time.Duration
	StatusTTL                time.Duration
	MaxLockHold              time.Duration

	// ExceptionStrategy selects "throw" or "catch" for named-value
	// lookups of undefined ids.
	ExceptionStrategy string
}

// SnapshotConfig selects the warm-restart snapshot backend: "local",
// "redis", "sqlite" or "" to disable snapshots.
type SnapshotConfig struct {
	Backend  string
	Path     string
	RedisURL string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from .env file and environment
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if .env file doesn't exist

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("API_BASE_URL", "https://api.betradar.com/v1")
	viper.SetDefault("API_REQUESTS_PER_SECOND", 10.0)
	viper.SetDefault("FEED_LOCALES", "en")
	viper.SetDefault("SCHEDULE_REFRESH_INTERVAL", "1h")
	viper.SetDefault("SPORT_DATA_REFRESH_INTERVAL", "24h")
	viper.SetDefault("STATUS_TTL", "5m")
	viper.SetDefault("MAX_LOCK_HOLD", "1m")
	viper.SetDefault("EXCEPTION_STRATEGY", "throw")
	viper.SetDefault("SNAPSHOT_BACKEND", "local")
	viper.SetDefault("SNAPSHOT_PATH", ".cache/oddsfeed.snapshot.json")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "auto")

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("PORT"),
		},
		API: APIConfig{
			BaseURL:           viper.GetString("API_BASE_URL"),
			Token:             viper.GetString("API_TOKEN"),
			RequestsPerSecond: viper.GetFloat64("API_REQUESTS_PER_SECOND"),
		},
		Feed: FeedConfig{
			Locales:                  splitLocales(viper.GetString("FEED_LOCALES")),
			ScheduleRefreshInterval:  viper.GetDuration("SCHEDULE_REFRESH_INTERVAL"),
			SportDataRefreshInterval: viper.GetDuration("SPORT_DATA_REFRESH_INTERVAL"),
			StatusTTL:                viper.GetDuration("STATUS_TTL"),
			MaxLockHold:              viper.GetDuration("MAX_LOCK_HOLD"),
			ExceptionStrategy:        viper.GetString("EXCEPTION_STRATEGY"),
		},
		Snapshot: SnapshotConfig{
			Backend:  viper.GetString("SNAPSHOT_BACKEND"),
			Path:     viper.GetString("SNAPSHOT_PATH"),
			RedisURL: viper.GetString("SNAPSHOT_REDIS_URL"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}

	return cfg, nil
}

func splitLocales(s string) []string {
	var out []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
