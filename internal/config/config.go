// Package config loads the runtime configuration for the ingestion service
// from a YAML file with defaults applied and fail-fast validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL            = "wss://fstream.binance.com"
	defaultReconnectDelay     = 3 * time.Second
	defaultHandshakeTimeout   = 10 * time.Second
	defaultDepthTopN          = 20
	defaultFlushInterval      = 10 * time.Second
	defaultCheckInterval      = 15 * time.Second
	defaultStalenessThreshold = 30 * time.Second
	defaultMetricsAddr        = ":9090"
	defaultPredictTimeout     = 5 * time.Second
	defaultLogLevel           = "info"
)

// Config keeps the runtime configuration for the service.
type Config struct {
	Feed       FeedConfig       `yaml:"feed"`
	Storage    StorageConfig    `yaml:"storage"`
	Depth      DepthConfig      `yaml:"depth"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Predict    PredictConfig    `yaml:"predict"`
	LogLevel   string           `yaml:"log_level"`
}

// FeedConfig holds the combined-stream connection settings.
type FeedConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Symbols          []string      `yaml:"symbols"`
	ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// StorageConfig selects the raw-table backend and the optional analytics
// sink. Driver is "memory" or "postgres".
type StorageConfig struct {
	Driver        string `yaml:"driver"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

// DepthConfig holds snapshotter settings.
type DepthConfig struct {
	TopN int `yaml:"top_n"`
}

// SupervisorConfig holds the watchdog cadences.
type SupervisorConfig struct {
	FlushInterval      time.Duration `yaml:"flush_interval"`
	CheckInterval      time.Duration `yaml:"check_interval"`
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`
}

// MetricsConfig holds the diagnostics HTTP listener settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// PredictConfig holds the downstream prediction endpoint. An empty URL
// disables the predictor.
type PredictConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns a config with every default applied and no symbols.
func Default() *Config {
	return &Config{
		Feed: FeedConfig{
			BaseURL:          defaultBaseURL,
			ReconnectDelay:   defaultReconnectDelay,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		Storage: StorageConfig{Driver: "memory"},
		Depth:   DepthConfig{TopN: defaultDepthTopN},
		Supervisor: SupervisorConfig{
			FlushInterval:      defaultFlushInterval,
			CheckInterval:      defaultCheckInterval,
			StalenessThreshold: defaultStalenessThreshold,
		},
		Metrics:  MetricsConfig{Addr: defaultMetricsAddr},
		Predict:  PredictConfig{Timeout: defaultPredictTimeout},
		LogLevel: defaultLogLevel,
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults restores defaults for fields the YAML zeroed out.
func (c *Config) applyDefaults() {
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = defaultBaseURL
	}
	if c.Feed.ReconnectDelay <= 0 {
		c.Feed.ReconnectDelay = defaultReconnectDelay
	}
	if c.Feed.HandshakeTimeout <= 0 {
		c.Feed.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Depth.TopN <= 0 {
		c.Depth.TopN = defaultDepthTopN
	}
	if c.Supervisor.FlushInterval <= 0 {
		c.Supervisor.FlushInterval = defaultFlushInterval
	}
	if c.Supervisor.CheckInterval <= 0 {
		c.Supervisor.CheckInterval = defaultCheckInterval
	}
	if c.Supervisor.StalenessThreshold <= 0 {
		c.Supervisor.StalenessThreshold = defaultStalenessThreshold
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = defaultMetricsAddr
	}
	if c.Predict.Timeout <= 0 {
		c.Predict.Timeout = defaultPredictTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// Validate fails fast on a configuration the process cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Feed.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid feed base URL %q: %w", c.Feed.BaseURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("feed base URL %q: scheme must be ws or wss", c.Feed.BaseURL)
	}

	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	for _, s := range c.Feed.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("empty symbol in symbol list")
		}
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage driver postgres requires postgres_dsn")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	return nil
}

// NormalizedSymbols returns the symbol list upper-cased and trimmed.
func (c *Config) NormalizedSymbols() []string {
	out := make([]string, 0, len(c.Feed.Symbols))
	for _, s := range c.Feed.Symbols {
		out = append(out, strings.ToUpper(strings.TrimSpace(s)))
	}
	return out
}
