package infra

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds all application settings. Sensitive values are overridden
// from environment variables after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr        string `yaml:"addr"`
		JWTSecret   string `yaml:"jwt_secret"`
		CORSEnabled bool   `yaml:"cors_enabled"`
		FrontendURL string `yaml:"frontend_url"`
	} `yaml:"server"`

	Rates struct {
		URL             string `yaml:"url"`
		PollIntervalSec int    `yaml:"poll_interval_sec"`
	} `yaml:"rates"`

	Tips struct {
		MinTipSats int64 `yaml:"min_tip_sats"`
		MaxTipSats int64 `yaml:"max_tip_sats"`
		// FeePercent is parsed from the fee_percent scalar after unmarshal;
		// decimal.Decimal has no YAML unmarshaler.
		FeePercent       decimal.Decimal `yaml:"-"`
		FeePercentRaw    string          `yaml:"fee_percent"`
		MinFeeSats       int64           `yaml:"min_fee_sats"`
		DefaultCurrency  string          `yaml:"default_currency"`
		DefaultLocale    string          `yaml:"default_locale"`
		SupportedLocales []string        `yaml:"supported_locales"`
		SweepIntervalSec int             `yaml:"sweep_interval_sec"`
	} `yaml:"tips"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Tips.FeePercentRaw != "" {
		fee, err := decimal.NewFromString(cfg.Tips.FeePercentRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid fee percent %q: %w", cfg.Tips.FeePercentRaw, err)
		}
		cfg.Tips.FeePercent = fee
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Rates.URL == "" || (!hasPrefix(c.Rates.URL, "http://") && !hasPrefix(c.Rates.URL, "https://")) {
		return fmt.Errorf("invalid rates URL: %s", c.Rates.URL)
	}
	if c.Rates.PollIntervalSec <= 0 {
		return fmt.Errorf("rates poll interval must be positive")
	}

	if c.Tips.MinTipSats < 1 {
		return fmt.Errorf("min tip must be at least 1 sat")
	}
	if c.Tips.MaxTipSats < c.Tips.MinTipSats {
		return fmt.Errorf("max tip %d below min tip %d", c.Tips.MaxTipSats, c.Tips.MinTipSats)
	}
	if c.Tips.FeePercent.IsNegative() {
		return fmt.Errorf("fee percent must not be negative")
	}
	if c.Tips.DefaultCurrency == "" {
		return fmt.Errorf("default currency is required")
	}
	if len(c.Tips.SupportedLocales) == 0 {
		return fmt.Errorf("at least one supported locale is required")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}

	return nil
}

// SupportsLocale reports whether a tippee locale is on the supported list.
func (c *Config) SupportsLocale(locale string) bool {
	for _, l := range c.Tips.SupportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv overrides settings from environment variables when present.
func overrideWithEnv(cfg *Config) {
	if secret := os.Getenv("LIGHTSATS_JWT_SECRET"); secret != "" {
		cfg.Server.JWTSecret = secret
	}
	if addr := os.Getenv("LIGHTSATS_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if path := os.Getenv("LIGHTSATS_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if url := os.Getenv("LIGHTSATS_RATES_URL"); url != "" {
		cfg.Rates.URL = url
	}
}
