package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Remote struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"remote"`
	Polling struct {
		Interval     string  `yaml:"interval"`
		MaxBackoff   string  `yaml:"max_backoff"`
		StallTimeout string  `yaml:"stall_timeout"`
		Jitter       float64 `yaml:"jitter"`
	} `yaml:"polling"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Papers struct {
		IndexTTL    string `yaml:"index_ttl"`
		JournalSize int    `yaml:"journal_size"`
	} `yaml:"papers"`
}

// Load reads YAML config from path. QSNAP_REMOTE_URL overrides remote.base_url.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields an empty config.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = Config{}
		cfg.applyEnv()
		return cfg, nil
	}
	return cfg, err
}

func (c *Config) applyEnv() {
	if v := os.Getenv("QSNAP_REMOTE_URL"); v != "" {
		c.Remote.BaseURL = v
	}
	if v := os.Getenv("QSNAP_POLL_INTERVAL"); v != "" {
		c.Polling.Interval = v
	}
	if v := os.Getenv("QSNAP_JOURNAL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Papers.JournalSize = n
		}
	}
}

// RemoteURL returns the configured backend base URL or the local default.
func (c Config) RemoteURL() string {
	if c.Remote.BaseURL == "" {
		return "http://localhost:8000"
	}
	return c.Remote.BaseURL
}

// Duration parses a duration string or returns the fallback if empty.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
