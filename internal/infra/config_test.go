package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bondora_go/internal/domain"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  name: trader
api:
  token: file-token
  requests_per_second: 2
strategies:
  green:
    max_price: 4.5
  red:
    enabled: false
  auction:
    enabled: true
    bid_amount: 10
scans:
  sell:
    enabled: true
    interval_sec: 600
    max_price: 10
    min_price: 5
    filter:
      LoanStatusCode: "2"
  cancel:
    enabled: true
    interval_sec: 300
`)
	t.Setenv("BONDORA_API_TOKEN", "")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.App.Name != "trader" {
		t.Errorf("Expected app name trader, got %s", cfg.App.Name)
	}
	if cfg.API.BaseURL != DefaultAPIURL {
		t.Errorf("Expected default base URL, got %s", cfg.API.BaseURL)
	}
	if !cfg.Strategies.Green.MaxPrice.Equal(decimal.NewFromFloat(4.5)) {
		t.Errorf("Expected green max price 4.5, got %s", cfg.Strategies.Green.MaxPrice)
	}
	// Untouched thresholds keep their defaults.
	if !cfg.Strategies.Green.MinInterest.Equal(decimal.NewFromInt(18)) {
		t.Errorf("Expected default interest floor, got %s", cfg.Strategies.Green.MinInterest)
	}
	if cfg.Strategies.Red.Enabled {
		t.Error("Expected red strategy disabled")
	}
	if !cfg.Strategies.Auction.BidAmount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected bid amount 10, got %s", cfg.Strategies.Auction.BidAmount)
	}
	if cfg.Scans.Sell.MinPrice == nil || !cfg.Scans.Sell.MinPrice.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected min price 5, got %v", cfg.Scans.Sell.MinPrice)
	}
	if cfg.Scans.Sell.Filter["LoanStatusCode"] != "2" {
		t.Errorf("Expected sell filter, got %v", cfg.Scans.Sell.Filter)
	}
	if cfg.Scans.Sell.RetryDelaySec != 60 {
		t.Errorf("Expected default retry delay 60, got %d", cfg.Scans.Sell.RetryDelaySec)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "api:\n  token: file-token\n")
	t.Setenv("BONDORA_API_TOKEN", "env-token")
	t.Setenv("BONDORA_API_URL", "http://localhost:8080")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.API.Token != "env-token" {
		t.Errorf("Expected env token, got %s", cfg.API.Token)
	}
	if cfg.API.BaseURL != "http://localhost:8080" {
		t.Errorf("Expected env URL, got %s", cfg.API.BaseURL)
	}
}

func TestLoadConfig_NotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.API.Token = "token"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	tests := []struct {
		name  string
		field string
		edit  func(c *Config)
	}{
		{"missing token", "api.token", func(c *Config) { c.API.Token = "" }},
		{"bad base url", "api.base_url", func(c *Config) { c.API.BaseURL = "ftp://x" }},
		{"bad ws url", "feed.ws_url", func(c *Config) { c.Feed.WSURL = "http://x" }},
		{"sell without price", "scans.sell.max_price", func(c *Config) { c.Scans.Sell.Enabled = true }},
		{"inverted band", "scans.sell.min_price", func(c *Config) {
			c.Scans.Sell.Enabled = true
			c.Scans.Sell.MaxPrice = decimal.NewFromInt(5)
			min := decimal.NewFromInt(6)
			c.Scans.Sell.MinPrice = &min
		}},
		{"storage without path", "storage.path", func(c *Config) {
			c.Storage.Enabled = true
			c.Storage.Path = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.edit(cfg)

			err := cfg.Validate()
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, cfgErr.Field)
			}
		})
	}
}
