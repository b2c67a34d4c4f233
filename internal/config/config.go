// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	DB       DBConfig       `mapstructure:"db"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	UpdateTimeout   time.Duration `mapstructure:"update_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// FetchConfig configures page retrieval. Mode selects the headless
// browser ("headless") or a plain HTTP client ("static").
type FetchConfig struct {
	Mode               string        `mapstructure:"mode"`
	UserAgent          string        `mapstructure:"user_agent"`
	ViewportWidth      int           `mapstructure:"viewport_width"`
	ViewportHeight     int           `mapstructure:"viewport_height"`
	ChallengeWait      time.Duration `mapstructure:"challenge_wait"`
	ChallengeExtraWait time.Duration `mapstructure:"challenge_extra_wait"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// ScrapeConfig names the target page.
type ScrapeConfig struct {
	URL string `mapstructure:"url"`
}

// ScheduleConfig governs the weekly update cycle and its retry.
type ScheduleConfig struct {
	WeeklySpec string        `mapstructure:"weekly_spec"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// LoggingConfig sets log file sinks and console behavior.
type LoggingConfig struct {
	Dir         string `mapstructure:"dir"`
	Development bool   `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RANKINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.update_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("fetch.mode", "headless")
	v.SetDefault("fetch.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("fetch.viewport_width", 1920)
	v.SetDefault("fetch.viewport_height", 1080)
	v.SetDefault("fetch.challenge_wait", "10s")
	v.SetDefault("fetch.challenge_extra_wait", "15s")
	v.SetDefault("fetch.timeout", "90s")
	v.SetDefault("scrape.url", "https://www.atptour.com/en/rankings/singles")
	v.SetDefault("schedule.weekly_spec", "0 23 * * 1")
	v.SetDefault("schedule.retry_delay", "24h")
	v.SetDefault("logging.dir", "logs")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set")
	}
	if c.Scrape.URL == "" {
		return fmt.Errorf("scrape.url must be set")
	}
	switch c.Fetch.Mode {
	case "headless", "static":
	default:
		return fmt.Errorf("fetch.mode must be %q or %q, got %q", "headless", "static", c.Fetch.Mode)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Schedule.WeeklySpec == "" {
		return fmt.Errorf("schedule.weekly_spec must be set")
	}
	if c.Schedule.RetryDelay <= 0 {
		return fmt.Errorf("schedule.retry_delay must be > 0")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must be set when auth is enabled")
	}
	return nil
}
