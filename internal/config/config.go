// Package config loads and validates the applianced service configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultStates is the lifecycle state list registered on first start when the
// config does not supply one. The first six are the start/stop job chain
// phases; the rest are the operator-facing machine states.
var DefaultStates = []string{
	"pre-start", "start", "started",
	"pre-stop", "stop", "stopped",
	"Starting", "Stopping", "Started", "Stopped", "Preparing", "Boosting",
}

// Config is the root configuration for the applianced daemon.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
	NATS    NATSConfig    `yaml:"nats"`
	Retry   RetryConfig   `yaml:"retry"`
	// States is the ordered lifecycle state list registered at first start.
	States []string `yaml:"states"`
	// StateGaugeInterval controls how often the appliances-per-state gauge is
	// recomputed by the scheduler.
	StateGaugeInterval time.Duration `yaml:"state_gauge_interval"`
}

// StorageConfig configures the SQLite ledger database.
type StorageConfig struct {
	// Path is the database file path. ":memory:" is accepted for tests.
	Path string `yaml:"path"`
}

// HTTPConfig configures the API and admin listeners.
type HTTPConfig struct {
	APIPort   int `yaml:"api_port"`
	AdminPort int `yaml:"admin_port"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// NATSConfig configures the optional touch event publisher.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// RetryConfig configures the append retry policy for transient contention.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// Load reads configuration from path, applies environment overrides and
// defaults, and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("APPLIANCED_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("APPLIANCED_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTP.APIPort = port
		}
	}
	if v := os.Getenv("APPLIANCED_ADMIN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTP.AdminPort = port
		}
	}
	if v := os.Getenv("APPLIANCED_LOG_LEVEL"); v != "" {
		c.Logging.Level = NormalizeLogLevel(v)
	}
	if v := os.Getenv("APPLIANCED_NATS_URL"); v != "" {
		c.NATS.URL = v
		c.NATS.Enabled = true
	}
}

func (c *Config) applyDefaults() {
	if c.Storage.Path == "" {
		c.Storage.Path = "applianced.db"
	}
	if c.HTTP.APIPort == 0 {
		c.HTTP.APIPort = 8080
	}
	if c.HTTP.AdminPort == 0 {
		c.HTTP.AdminPort = 8081
	}
	if c.Logging.Level == "" {
		c.Logging.Level = LogLevelInfo
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "appliance.touch"
	}
	if len(c.States) == 0 {
		c.States = DefaultStates
	}
	if c.StateGaugeInterval <= 0 {
		c.StateGaugeInterval = time.Minute
	}
	if c.Retry.Initial <= 0 {
		c.Retry.Initial = 25 * time.Millisecond
	}
	if c.Retry.Max <= 0 {
		c.Retry.Max = time.Second
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.Backoff == "" {
		c.Retry.Backoff = RetryBackoffExponential
	}
}

// Validate checks invariants that defaults cannot repair.
func (c *Config) Validate() error {
	if c.HTTP.APIPort == c.HTTP.AdminPort {
		return fmt.Errorf("api_port and admin_port must differ (both %d)", c.HTTP.APIPort)
	}
	if c.HTTP.APIPort < 1 || c.HTTP.APIPort > 65535 {
		return fmt.Errorf("api_port out of range: %d", c.HTTP.APIPort)
	}
	if c.HTTP.AdminPort < 1 || c.HTTP.AdminPort > 65535 {
		return fmt.Errorf("admin_port out of range: %d", c.HTTP.AdminPort)
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats enabled but no url configured")
	}
	seen := make(map[string]struct{}, len(c.States))
	for _, s := range c.States {
		if s == "" {
			return fmt.Errorf("empty state name in states list")
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("duplicate state name in states list: %q", s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// Init writes a starter configuration file. Refuses to overwrite unless force.
func Init(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
	}
	cfg := &Config{}
	cfg.applyDefaults()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal starter config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
