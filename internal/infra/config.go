package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
// Secrets may be overridden through environment variables after load.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Backend struct {
		BaseURL    string `yaml:"base_url"`
		WSURL      string `yaml:"ws_url"`
		APIToken   string `yaml:"api_token"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"backend"`

	Trading struct {
		Mode            string `yaml:"mode"` // "live" or "demo"
		SettleDelayMS   int    `yaml:"settle_delay_ms"`
		PollIntervalSec int    `yaml:"poll_interval_sec"`
		NoticeTTLSec    int    `yaml:"notice_ttl_sec"`
	} `yaml:"trading"`

	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Backend.TimeoutSec <= 0 {
		cfg.Backend.TimeoutSec = 10
	}
	if cfg.Trading.Mode == "" {
		cfg.Trading.Mode = "demo"
	}
	if cfg.Trading.SettleDelayMS <= 0 {
		cfg.Trading.SettleDelayMS = 1500
	}
	if cfg.Trading.PollIntervalSec <= 0 {
		cfg.Trading.PollIntervalSec = 30
	}
	if cfg.Trading.NoticeTTLSec <= 0 {
		cfg.Trading.NoticeTTLSec = 5
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1:8787"
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("invalid backend base URL: %s", c.Backend.BaseURL)
	}
	if c.Backend.WSURL != "" && !strings.HasPrefix(c.Backend.WSURL, "ws://") && !strings.HasPrefix(c.Backend.WSURL, "wss://") {
		return fmt.Errorf("invalid backend WS URL: %s", c.Backend.WSURL)
	}
	switch c.Trading.Mode {
	case "live", "demo":
	default:
		return fmt.Errorf("trading mode must be live or demo, got %q", c.Trading.Mode)
	}
	return nil
}

// Timeout returns the HTTP client timeout for backend calls.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSec) * time.Second
}

// SettleDelay returns the post-approval settle delay before caches are
// invalidated.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Trading.SettleDelayMS) * time.Millisecond
}

// PollInterval returns the background refresh interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Trading.PollIntervalSec) * time.Second
}

// NoticeTTL returns the visible lifetime of a notification.
func (c *Config) NoticeTTL() time.Duration {
	return time.Duration(c.Trading.NoticeTTLSec) * time.Second
}

// overrideWithEnv applies environment variables over file values.
// Env wins over file so tokens can stay out of the config on disk.
func overrideWithEnv(cfg *Config) {
	if cfg.Backend.APIToken != "" {
		fmt.Println("⚠️  SECURITY WARNING: API token found in config file.")
		fmt.Println("   Recommendation: set STOCKSUB_API_TOKEN instead.")
	}

	if v := os.Getenv("STOCKSUB_API_TOKEN"); v != "" {
		cfg.Backend.APIToken = v
	}
	if v := os.Getenv("STOCKSUB_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("STOCKSUB_WS_URL"); v != "" {
		cfg.Backend.WSURL = v
	}
	if v := os.Getenv("STOCKSUB_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
}
