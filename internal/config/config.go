package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TIMECARD"

// ApplyEnv overlays TIMECARD_* environment variables on cfg. Unset
// variables leave the file value alone.
func ApplyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range []string{"api_base_url", "env", "log_level", "amqp_url", "storage_backend"} {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if s := v.GetString("api_base_url"); s != "" {
		cfg.API.BaseURL = s
	}
	if s := v.GetString("env"); s != "" {
		cfg.Session.Production = strings.EqualFold(s, "production")
	}
	if s := v.GetString("log_level"); s != "" {
		cfg.Log.Level = s
	}
	if s := v.GetString("amqp_url"); s != "" {
		cfg.Events.AMQPURL = s
	}
	if s := v.GetString("storage_backend"); s != "" {
		cfg.Storage.Backend = strings.ToLower(s)
	}
	return nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config: api.base_url %q must be an http(s) URL", c.API.BaseURL)
	}
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("config: storage.backend %q must be json or sqlite", c.Storage.Backend)
	}
	if c.Session.CookieName == "" {
		return errors.New("config: session.cookie_name must be set")
	}
	if c.Resilience.MaxAttempts < 0 {
		return errors.New("config: resilience.max_attempts must not be negative")
	}
	return nil
}

// Timeout returns the API timeout, 15s when unset.
func (c *Config) Timeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// CookieTTL returns the cookie lifetime, 7 days when unset.
func (c *Config) CookieTTL() time.Duration {
	if c.Session.CookieDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.Session.CookieDays) * 24 * time.Hour
}
