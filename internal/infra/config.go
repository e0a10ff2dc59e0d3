package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"bondora_go/internal/domain"
	"bondora_go/internal/strategy"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL    = "https://api.bondora.com"
	DefaultUserAgent = "bondora-trader/1.0"
)

// SellScanConfig controls periodic offer placement.
type SellScanConfig struct {
	Enabled           bool              `yaml:"enabled"`
	IntervalSec       int               `yaml:"interval_sec"`
	InitialDelaySec   int               `yaml:"initial_delay_sec"`
	MaxPrice          decimal.Decimal   `yaml:"max_price"`
	MinPrice          *decimal.Decimal  `yaml:"min_price"` // unset: always ask max_price
	DaysBeforePayment int               `yaml:"days_before_payment"`
	Retry             bool              `yaml:"retry"`
	RetryDelaySec     int               `yaml:"retry_delay_sec"`
	Filter            map[string]string `yaml:"filter"`
}

// CancelScanConfig controls periodic offer cancellation.
type CancelScanConfig struct {
	Enabled         bool              `yaml:"enabled"`
	IntervalSec     int               `yaml:"interval_sec"`
	InitialDelaySec int               `yaml:"initial_delay_sec"`
	Filter          map[string]string `yaml:"filter"`
}

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name      string `yaml:"name"`
		Version   string `yaml:"version"`
		InboxSize int    `yaml:"inbox_size"`
	} `yaml:"app"`

	API struct {
		BaseURL           string  `yaml:"base_url"`
		Token             string  `yaml:"token"`
		TimeoutSec        int     `yaml:"timeout_sec"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		DefaultRetryAfter int     `yaml:"default_retry_after_sec"`
	} `yaml:"api"`

	Feed struct {
		WSURL        string `yaml:"ws_url"`
		WebhookAddr  string `yaml:"webhook_addr"`
		MaxBackoffMS int    `yaml:"max_backoff_ms"`
	} `yaml:"feed"`

	Strategies struct {
		Green   strategy.GreenConfig   `yaml:"green"`
		Red     strategy.RedConfig     `yaml:"red"`
		Auction strategy.AuctionConfig `yaml:"auction"`
	} `yaml:"strategies"`

	Scans struct {
		Sell   SellScanConfig   `yaml:"sell"`
		Cancel CancelScanConfig `yaml:"cancel"`
	} `yaml:"scans"`

	Storage struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with every threshold at its tuned default.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "bondora-trader"
	cfg.App.Version = "dev"
	cfg.App.InboxSize = 256

	cfg.API.BaseURL = DefaultAPIURL
	cfg.API.TimeoutSec = 30
	cfg.API.RequestsPerSecond = 1
	cfg.API.Burst = 1
	cfg.API.DefaultRetryAfter = 60

	cfg.Feed.MaxBackoffMS = 30000

	cfg.Strategies.Green = strategy.DefaultGreenConfig()
	cfg.Strategies.Red = strategy.DefaultRedConfig()
	cfg.Strategies.Auction = strategy.DefaultAuctionConfig()

	cfg.Scans.Sell = SellScanConfig{
		IntervalSec:       3600,
		InitialDelaySec:   60,
		MaxPrice:          decimal.Zero,
		DaysBeforePayment: 2,
		Retry:             true,
		RetryDelaySec:     60,
	}
	cfg.Scans.Cancel = CancelScanConfig{
		IntervalSec:     3600,
		InitialDelaySec: 1,
	}

	cfg.Storage.Path = "data/ratelimits.db"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// Values absent from the file keep their DefaultConfig value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// .env is optional; real environment variables take precedence over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", slog.Any("error", err))
	}

	// 4원칙: 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(cfg)

	// 5원칙: 설정 유효성 검사
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	// API
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return &domain.ConfigError{Field: "api.base_url", Err: errors.New("must be an http(s) URL")}
	}
	if c.API.Token == "" {
		return &domain.ConfigError{Field: "api.token", Err: errors.New("required (set BONDORA_API_TOKEN)")}
	}
	if c.API.RequestsPerSecond <= 0 {
		return &domain.ConfigError{Field: "api.requests_per_second", Err: errors.New("must be positive")}
	}

	// Feed
	if c.Feed.WSURL != "" && !strings.HasPrefix(c.Feed.WSURL, "ws://") && !strings.HasPrefix(c.Feed.WSURL, "wss://") {
		return &domain.ConfigError{Field: "feed.ws_url", Err: errors.New("must be a ws(s) URL")}
	}

	// Scans
	sell := c.Scans.Sell
	if sell.Enabled {
		if !sell.MaxPrice.IsPositive() {
			return &domain.ConfigError{Field: "scans.sell.max_price", Err: errors.New("must be positive")}
		}
		if sell.MinPrice != nil && sell.MinPrice.GreaterThan(sell.MaxPrice) {
			return &domain.ConfigError{Field: "scans.sell.min_price", Err: errors.New("must not exceed max_price")}
		}
		if sell.IntervalSec <= 0 {
			return &domain.ConfigError{Field: "scans.sell.interval_sec", Err: errors.New("must be positive")}
		}
	}
	if c.Scans.Cancel.Enabled && c.Scans.Cancel.IntervalSec <= 0 {
		return &domain.ConfigError{Field: "scans.cancel.interval_sec", Err: errors.New("must be positive")}
	}

	// Storage
	if c.Storage.Enabled && c.Storage.Path == "" {
		return &domain.ConfigError{Field: "storage.path", Err: errors.New("required when storage is enabled")}
	}

	return nil
}

// Timeout returns the HTTP client timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// DefaultRetryAfter returns the cool-down applied to a 429 without a Retry-After header.
func (c *Config) DefaultRetryAfter() time.Duration {
	return time.Duration(c.API.DefaultRetryAfter) * time.Second
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if token := os.Getenv("BONDORA_API_TOKEN"); token != "" {
		cfg.API.Token = token
	}
	if url := os.Getenv("BONDORA_API_URL"); url != "" {
		cfg.API.BaseURL = url
	}
	if level := os.Getenv("BONDORA_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
