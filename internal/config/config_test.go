package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contrabot.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Mode != "against" {
		t.Errorf("default mode = %q, want against", cfg.Mode)
	}
	if cfg.Trading.MaxOpenPositions != 10 {
		t.Errorf("default max_open_positions = %d, want 10", cfg.Trading.MaxOpenPositions)
	}
	if cfg.Trading.MaxPositionSizeUSD != 500 {
		t.Errorf("default max_position_size_usd = %v, want 500", cfg.Trading.MaxPositionSizeUSD)
	}
	if cfg.Trading.HoldingPeriod() != 7*24*time.Hour {
		t.Errorf("default holding period = %v, want 168h", cfg.Trading.HoldingPeriod())
	}
	if cfg.Trading.DedupWindow() != 24*time.Hour {
		t.Errorf("default dedup window = %v, want 24h", cfg.Trading.DedupWindow())
	}
	if cfg.Trading.CheckInterval() != 5*time.Minute {
		t.Errorf("default check interval = %v, want 5m", cfg.Trading.CheckInterval())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
mode: with
trading:
  max_open_positions: 3
  holding_period_days: 2
broker:
  kind: simulator
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "with" {
		t.Errorf("mode = %q, want with", cfg.Mode)
	}
	if cfg.Trading.MaxOpenPositions != 3 {
		t.Errorf("max_open_positions = %d, want 3", cfg.Trading.MaxOpenPositions)
	}
	if cfg.Trading.HoldingPeriodDays != 2 {
		t.Errorf("holding_period_days = %d, want 2", cfg.Trading.HoldingPeriodDays)
	}
	// Untouched keys keep their defaults.
	if cfg.Trading.MaxPositionSizeUSD != 500 {
		t.Errorf("max_position_size_usd = %v, want default 500", cfg.Trading.MaxPositionSizeUSD)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "broker:\n  kind: simulator\n")

	t.Setenv("ALPACA_API_KEY", "file-key")
	t.Setenv("APCA_API_KEY_ID", "canonical-key")
	t.Setenv("SQLITE_PATH", "/tmp/override.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Canonical SDK variable wins over the friendly name.
	if cfg.Broker.Alpaca.APIKey != "canonical-key" {
		t.Errorf("api key = %q, want canonical-key", cfg.Broker.Alpaca.APIKey)
	}
	if cfg.Storage.SQLitePath != "/tmp/override.db" {
		t.Errorf("sqlite path = %q, want /tmp/override.db", cfg.Storage.SQLitePath)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad mode", "mode: sideways\n"},
		{"bad broker", "broker:\n  kind: robinhood\n"},
		{"zero positions", "trading:\n  max_open_positions: 0\n"},
		{"negative size", "trading:\n  max_position_size_usd: -5\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("Load accepted invalid config %q", tc.yaml)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}
