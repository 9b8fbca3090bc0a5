// Package config loads the TradeSphere client configuration from a YAML
// file with environment-variable overrides applied after parsing.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level client configuration.
type Config struct {
	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	Cache   Cache   `yaml:"cache"`
	Logging Logging `yaml:"logging"`
}

// Server locates the remote trading service.
type Server struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Storage holds paths for durable client state.
type Storage struct {
	CredentialsPath string `yaml:"credentials_path"`
}

// Cache controls the bounded-staleness read policy.
type Cache struct {
	FreshnessSeconds int `yaml:"freshness_seconds"`
	PollSeconds      int `yaml:"poll_seconds"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: Server{
			BaseURL:        "http://127.0.0.1:5000",
			TimeoutSeconds: 8,
		},
		Storage: Storage{
			CredentialsPath: defaultCredentialsPath(),
		},
		Cache: Cache{
			FreshnessSeconds: 30,
			PollSeconds:      30,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "tradesphere-credentials.db"
	}
	return filepath.Join(dir, "tradesphere", "credentials.db")
}

// Load reads the YAML configuration file at path, fills unset fields with
// defaults, and applies environment variable overrides. A missing file is
// not an error: the defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Server.BaseURL == "" {
		return nil, fmt.Errorf("server.base_url must not be empty")
	}
	if cfg.Server.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("server.timeout_seconds must be positive, got %d", cfg.Server.TimeoutSeconds)
	}
	if cfg.Cache.FreshnessSeconds <= 0 {
		return nil, fmt.Errorf("cache.freshness_seconds must be positive, got %d", cfg.Cache.FreshnessSeconds)
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADESPHERE_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("TRADESPHERE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("TRADESPHERE_CREDENTIALS"); v != "" {
		cfg.Storage.CredentialsPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// FreshnessWindow returns the stock-cache freshness window as a duration.
func (c *Config) FreshnessWindow() time.Duration {
	return time.Duration(c.Cache.FreshnessSeconds) * time.Second
}

// PollInterval returns the background refresh period as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Cache.PollSeconds) * time.Second
}
