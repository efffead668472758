// Package config loads the contrabot YAML configuration and applies
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for contrabot.
type Config struct {
	Mode    string        `yaml:"mode"` // "against" (contrarian) or "with"
	Feed    Feed          `yaml:"feed"`
	Filter  Filter        `yaml:"filter"`
	Signal  Signal        `yaml:"signal"`
	Trading TradingConfig `yaml:"trading"`
	Broker  Broker        `yaml:"broker"`
	Storage Storage       `yaml:"storage"`
	Logging Logging       `yaml:"logging"`
}

// Feed controls source polling.
type Feed struct {
	Subreddits          []string `yaml:"subreddits"`
	PostsPerPoll        int      `yaml:"posts_per_poll"`
	PollIntervalSeconds int      `yaml:"poll_interval_seconds"`
}

// Filter holds content-filter thresholds.
type Filter struct {
	MinAuthorKarma int `yaml:"min_author_karma"`
}

// Signal holds signal-extraction gates.
type Signal struct {
	MinConfidence  float64  `yaml:"min_confidence"`
	MarketsEnabled []string `yaml:"markets_enabled"` // "stocks", "crypto", "options"
	Model          string   `yaml:"model"`
	AnthropicKey   string   `yaml:"anthropic_api_key"`
}

// TradingConfig defines position limits and reconciliation cadence.
type TradingConfig struct {
	MaxOpenPositions     int     `yaml:"max_open_positions"`
	MaxPositionSizeUSD   float64 `yaml:"max_position_size_usd"`
	HoldingPeriodDays    int     `yaml:"holding_period_days"`
	SignalDedupHours     int     `yaml:"signal_dedup_hours"`
	CheckIntervalMinutes int     `yaml:"check_interval_minutes"`
}

// Broker selects and configures the brokerage backend.
type Broker struct {
	Kind   string `yaml:"kind"` // "alpaca" or "simulator"
	Alpaca Alpaca `yaml:"alpaca"`
}

// Alpaca holds credentials and endpoints for the Alpaca broker API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Storage holds the persistence path.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
}

// ---------------------------------------------------------------------------
// Derived values
// ---------------------------------------------------------------------------

// HoldingPeriod returns the holding period as a duration.
func (t TradingConfig) HoldingPeriod() time.Duration {
	return time.Duration(t.HoldingPeriodDays) * 24 * time.Hour
}

// DedupWindow returns the signal deduplication lookback as a duration.
func (t TradingConfig) DedupWindow() time.Duration {
	return time.Duration(t.SignalDedupHours) * time.Hour
}

// CheckInterval returns the reconciliation cadence as a duration.
func (t TradingConfig) CheckInterval() time.Duration {
	return time.Duration(t.CheckIntervalMinutes) * time.Minute
}

// PollInterval returns the feed polling cadence as a duration.
func (f Feed) PollInterval() time.Duration {
	return time.Duration(f.PollIntervalSeconds) * time.Second
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config populated with the stock defaults. Load layers
// the YAML file and environment overrides on top of these.
func Default() *Config {
	return &Config{
		Mode: "against",
		Feed: Feed{
			Subreddits:          []string{"wallstreetbets"},
			PostsPerPoll:        25,
			PollIntervalSeconds: 60,
		},
		Filter: Filter{MinAuthorKarma: 100},
		Signal: Signal{
			MinConfidence:  0.7,
			MarketsEnabled: []string{"stocks"},
			Model:          "claude-sonnet-4-6",
		},
		Trading: TradingConfig{
			MaxOpenPositions:     10,
			MaxPositionSizeUSD:   500,
			HoldingPeriodDays:    7,
			SignalDedupHours:     24,
			CheckIntervalMinutes: 5,
		},
		Broker:  Broker{Kind: "alpaca"},
		Storage: Storage{SQLitePath: "contrabot.db"},
		Logging: Logging{Level: "info"},
	}
}

// Load reads the YAML configuration file at the given path over the defaults,
// parses it into a Config struct, and then applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Mode != "against" && c.Mode != "with" {
		return fmt.Errorf("mode must be %q or %q, got %q", "against", "with", c.Mode)
	}
	if c.Trading.MaxOpenPositions <= 0 {
		return fmt.Errorf("max_open_positions must be positive, got %d", c.Trading.MaxOpenPositions)
	}
	if c.Trading.MaxPositionSizeUSD <= 0 {
		return fmt.Errorf("max_position_size_usd must be positive, got %v", c.Trading.MaxPositionSizeUSD)
	}
	if c.Trading.HoldingPeriodDays <= 0 {
		return fmt.Errorf("holding_period_days must be positive, got %d", c.Trading.HoldingPeriodDays)
	}
	if c.Broker.Kind != "alpaca" && c.Broker.Kind != "simulator" {
		return fmt.Errorf("broker kind must be %q or %q, got %q", "alpaca", "simulator", c.Broker.Kind)
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Broker.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_SECRET_KEY"); v != "" {
		cfg.Broker.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Broker.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Broker.Alpaca.DataURL = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Broker.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Broker.Alpaca.APISecret = v
	}

	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Signal.AnthropicKey = v
	}
}
