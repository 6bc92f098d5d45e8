package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "GRABCAFE_CONFIG"
	databasePathEnv   = "GRABCAFE_DB_PATH"
	listingURLEnv     = "GRABCAFE_LISTING_URL"
	discordWebhookEnv = "DISCORD_WEBHOOK_URL"
	logLevelEnv       = "GRABCAFE_LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Scraper       ScraperConfig      `yaml:"scraper"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Delivery      DeliveryConfig     `yaml:"delivery"`
	Aggregation   AggregationConfig  `yaml:"aggregation"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig describes the SQLite file location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScraperConfig describes the remote listing endpoint.
type ScraperConfig struct {
	ListingURL     string `yaml:"listingUrl"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	UserAgent      string `yaml:"userAgent"`
}

// Timeout resolves the fetch timeout with a sane floor.
func (s ScraperConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// SchedulerConfig defines how often ingestion cycles run and how far
// back the recent-existence fast path looks.
type SchedulerConfig struct {
	IntervalSeconds  int `yaml:"intervalSeconds"`
	RecentWindowDays int `yaml:"recentWindowDays"`
}

// Interval resolves the cycle interval with a sane floor.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// DeliveryConfig bounds how old an undelivered posting may be and
// still be eligible for delivery.
type DeliveryConfig struct {
	LookbackDays int `yaml:"lookbackDays"`
}

// AggregationConfig sets the earliest decision year kept in the
// per-degree aggregate tables.
type AggregationConfig struct {
	CutoffYear int `yaml:"cutoffYear"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Discord DiscordConfig `yaml:"discord"`
}

// DiscordConfig wires the webhook used for posting notifications.
type DiscordConfig struct {
	WebhookURL string `yaml:"webhookUrl"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(listingURLEnv); v != "" {
		c.Scraper.ListingURL = v
	}

	if v := os.Getenv(discordWebhookEnv); v != "" {
		c.Notifications.Discord.WebhookURL = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Scraper.ListingURL != "" {
		base.Scraper.ListingURL = override.Scraper.ListingURL
	}
	if override.Scraper.TimeoutSeconds > 0 {
		base.Scraper.TimeoutSeconds = override.Scraper.TimeoutSeconds
	}
	if override.Scraper.UserAgent != "" {
		base.Scraper.UserAgent = override.Scraper.UserAgent
	}

	if override.Scheduler.IntervalSeconds > 0 {
		base.Scheduler.IntervalSeconds = override.Scheduler.IntervalSeconds
	}
	if override.Scheduler.RecentWindowDays > 0 {
		base.Scheduler.RecentWindowDays = override.Scheduler.RecentWindowDays
	}

	if override.Delivery.LookbackDays > 0 {
		base.Delivery.LookbackDays = override.Delivery.LookbackDays
	}

	if override.Aggregation.CutoffYear > 0 {
		base.Aggregation.CutoffYear = override.Aggregation.CutoffYear
	}

	if override.Notifications.Discord.WebhookURL != "" {
		base.Notifications.Discord.WebhookURL = override.Notifications.Discord.WebhookURL
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Path: "gradcafe_messages.db"},
		Scraper: ScraperConfig{
			ListingURL:     "https://www.thegradcafe.com/survey/?institution=&program=economics",
			TimeoutSeconds: 30,
			UserAgent:      "grab-cafe/1.0",
		},
		Scheduler: SchedulerConfig{
			IntervalSeconds:  60,
			RecentWindowDays: 7,
		},
		Delivery:    DeliveryConfig{LookbackDays: 1},
		Aggregation: AggregationConfig{CutoffYear: 2018},
		Notifications: NotificationConfig{
			Discord: DiscordConfig{WebhookURL: ""},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
