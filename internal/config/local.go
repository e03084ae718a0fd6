package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Storage backends for the credential, cookie mirror and cache.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config holds the client configuration stored in ~/.timecard/config.yaml
type Config struct {
	API        APIConfig        `yaml:"api"`
	Session    SessionConfig    `yaml:"session"`
	Storage    StorageConfig    `yaml:"storage"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Events     EventsConfig     `yaml:"events"`
	Log        LogConfig        `yaml:"log"`
}

// APIConfig holds the remote API settings
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SessionConfig holds the credential cookie settings
type SessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	CookieDays int    `yaml:"cookie_days"`
	// Production marks the cookie Secure.
	Production bool `yaml:"production"`
}

// StorageConfig selects where state is kept
type StorageConfig struct {
	Backend string `yaml:"backend"` // json or sqlite
}

// ResilienceConfig tunes the gateway circuit breaker and read retries
type ResilienceConfig struct {
	CircuitBreaker bool `yaml:"circuit_breaker"`
	Retry          bool `yaml:"retry"`
	MaxAttempts    int  `yaml:"max_attempts"`
}

// EventsConfig enables publishing transitions to RabbitMQ. Empty URL
// disables it.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// Dir returns the path to ~/.timecard
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".timecard"), nil
}

// EnsureDir creates ~/.timecard and subdirectories if they don't exist.
// The directory holds the credential, so it is owner only.
func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "cache", "state"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0700); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultConfig returns sensible defaults for a development setup
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:5123/api",
			TimeoutSeconds: 15,
		},
		Session: SessionConfig{
			CookieName: "auth_token",
			CookieDays: 7,
		},
		Storage: StorageConfig{
			Backend: BackendJSON,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: true,
			Retry:          true,
			MaxAttempts:    3,
		},
		Events: EventsConfig{
			Exchange: "timecard.events",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads ~/.timecard/config.yaml over the defaults and applies the
// environment overlay.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	cfg, err := loadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	// If config doesn't exist, return defaults
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to ~/.timecard/config.yaml
func Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir, err := EnsureDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
