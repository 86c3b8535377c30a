package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the marketwatch client.
type Config struct {
	API        API        `yaml:"api"`
	Storage    Storage    `yaml:"storage"`
	Logging    Logging    `yaml:"logging"`
	Poll       Poll       `yaml:"poll"`
	Search     Search     `yaml:"search"`
	Enrichment Enrichment `yaml:"enrichment"`
	Alpaca     Alpaca     `yaml:"alpaca"`
	Archive    Archive    `yaml:"archive"`
}

// API points at the remote market service.
type API struct {
	BaseURL string        `yaml:"base_url" env:"MARKETWATCH_API_URL"`
	Timeout time.Duration `yaml:"timeout" env:"API_TIMEOUT"`
	Debug   bool          `yaml:"debug" env:"API_DEBUG"`
}

// Storage selects where persisted client state lives.
type Storage struct {
	Backend    string `yaml:"backend" env:"STORAGE_BACKEND"` // sqlite | redis | file | memory
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	DataDir    string `yaml:"data_dir" env:"DATA_DIR"`
	Redis      Redis  `yaml:"redis"`
}

// Redis holds connection settings for the redis backend.
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Poll sets the background refresh cadence per collection.
type Poll struct {
	AlertsInterval    time.Duration `yaml:"alerts_interval" env:"POLL_ALERTS_INTERVAL"`
	IndicesInterval   time.Duration `yaml:"indices_interval" env:"POLL_INDICES_INTERVAL"`
	PortfolioInterval time.Duration `yaml:"portfolio_interval" env:"POLL_PORTFOLIO_INTERVAL"`
}

// Search tunes the debounced symbol lookup.
type Search struct {
	Debounce  time.Duration `yaml:"debounce" env:"SEARCH_DEBOUNCE"`
	MinLength int           `yaml:"min_length" env:"SEARCH_MIN_LENGTH"`
}

// Enrichment controls the background display-name fill.
type Enrichment struct {
	Delay           time.Duration `yaml:"delay" env:"ENRICH_DELAY"`
	Source          string        `yaml:"source" env:"ENRICH_SOURCE"` // remote | alpaca
	RateLimitPerMin int           `yaml:"rate_limit_per_min" env:"ENRICH_RATE_LIMIT_PER_MIN"`
}

// Alpaca holds credentials for the optional asset-directory name source.
type Alpaca struct {
	APIKey    string `yaml:"api_key" env:"APCA_API_KEY_ID"`
	APISecret string `yaml:"api_secret" env:"APCA_API_SECRET_KEY"`
	BaseURL   string `yaml:"base_url" env:"APCA_API_BASE_URL"`
}

// Archive sets where holdings snapshots are written.
type Archive struct {
	Dir string `yaml:"dir" env:"ARCHIVE_DIR"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: API{
			BaseURL: "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
		Storage: Storage{
			Backend:    "sqlite",
			SQLitePath: "marketwatch.db",
			DataDir:    ".marketwatch",
		},
		Logging: Logging{Level: "info", Format: "json"},
		Poll: Poll{
			AlertsInterval:    5 * time.Second,
			IndicesInterval:   5 * time.Second,
			PortfolioInterval: 10 * time.Second,
		},
		Search: Search{
			Debounce:  300 * time.Millisecond,
			MinLength: 2,
		},
		Enrichment: Enrichment{
			Delay:           200 * time.Millisecond,
			Source:          "remote",
			RateLimitPerMin: 180,
		},
		Alpaca: Alpaca{BaseURL: "https://paper-api.alpaca.markets"},
		Archive: Archive{Dir: "archive"},
	}
}

// Load starts from Default, overlays the YAML file at path (skipped when
// path is empty), then a .env file if one exists, then environment
// variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	_ = godotenv.Load(".env")

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides sets fields whose env tag names a variable present in the
// environment. Unset variables leave the loaded value alone.
func applyEnvOverrides(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch c.Storage.Backend {
	case "sqlite", "redis", "file", "memory":
	default:
		return fmt.Errorf("storage.backend %q: want sqlite, redis, file or memory", c.Storage.Backend)
	}
	switch c.Enrichment.Source {
	case "remote", "alpaca":
	default:
		return fmt.Errorf("enrichment.source %q: want remote or alpaca", c.Enrichment.Source)
	}
	if c.Search.MinLength < 1 {
		return fmt.Errorf("search.min_length must be at least 1")
	}
	for name, d := range map[string]time.Duration{
		"poll.alerts_interval":    c.Poll.AlertsInterval,
		"poll.indices_interval":   c.Poll.IndicesInterval,
		"poll.portfolio_interval": c.Poll.PortfolioInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
