package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the weaved server configuration, loaded from YAML with
// environment-free defaults suitable for local runs.
type Config struct {
	Addr         string `yaml:"addr"`
	DBPath       string `yaml:"db_path"`
	LogLevel     string `yaml:"log_level"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	DequeueLimit int    `yaml:"dequeue_limit"`

	// MatcherEndpoint receives content-ready notifications after each
	// fingerprint. Empty disables notification.
	MatcherEndpoint string `yaml:"matcher_endpoint"`

	Anthropic struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"anthropic"`

	RateLimit struct {
		FingerprintPerMinute int `yaml:"fingerprint_per_minute"`
		ListPerMinute        int `yaml:"list_per_minute"`
		StatusPerMinute      int `yaml:"status_per_minute"`
	} `yaml:"rate_limit"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8090"
	}
	if c.DBPath == "" {
		c.DBPath = "db/weave.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 64 << 10
	}
	if c.DequeueLimit <= 0 {
		c.DequeueLimit = 5
	}
	if c.RateLimit.FingerprintPerMinute <= 0 {
		c.RateLimit.FingerprintPerMinute = 30
	}
	if c.RateLimit.ListPerMinute <= 0 {
		c.RateLimit.ListPerMinute = 60
	}
	if c.RateLimit.StatusPerMinute <= 0 {
		c.RateLimit.StatusPerMinute = 120
	}
}

// LoadConfig reads a YAML config file and applies defaults. An empty
// path returns the pure defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("server: read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("server: parse config: %w", err)
		}
	}
	cfg.defaults()
	return cfg, nil
}
