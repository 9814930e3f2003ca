// Package config loads service configuration from defaults and environment
// variables. Every setting can be overridden with a SNOOPROXY_-prefixed
// variable, e.g. SNOOPROXY_CLIENT_ID or SNOOPROXY_LISTEN_ADDR.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	pkgerrs "github.com/snooproxy/pkg/errors"
	"github.com/snooproxy/pkg/validation"
)

const envPrefix = "SNOOPROXY_"

// Config carries everything the service needs to run.
type Config struct {
	// Upstream API credentials. Required.
	ClientID     string
	ClientSecret string
	UserAgent    string

	// Upstream endpoints. Empty means the client defaults.
	BaseURL string
	AuthURL string

	// PacingInterval is the minimum spacing between outbound upstream
	// calls.
	PacingInterval time.Duration

	// MaxRetries is the retry budget for throttled or failed requests.
	MaxRetries int

	// HTTPTimeout bounds individual upstream requests.
	HTTPTimeout time.Duration

	// ListenAddr is the address the HTTP service binds to.
	ListenAddr string

	// LogLevel is a zerolog level name: trace, debug, info, warn, error.
	LogLevel string

	// LogFormat is "json" or "console".
	LogFormat string
}

// Load builds the configuration from defaults overlaid with environment
// variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"pacing_interval": "1.1s",
		"max_retries":     3,
		"http_timeout":    "30s",
		"listen_addr":     ":8080",
		"log_level":       "info",
		"log_format":      "json",
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	cfg := &Config{
		ClientID:       k.String("client_id"),
		ClientSecret:   k.String("client_secret"),
		UserAgent:      k.String("user_agent"),
		BaseURL:        k.String("base_url"),
		AuthURL:        k.String("auth_url"),
		PacingInterval: k.Duration("pacing_interval"),
		MaxRetries:     k.Int("max_retries"),
		HTTPTimeout:    k.Duration("http_timeout"),
		ListenAddr:     k.String("listen_addr"),
		LogLevel:       k.String("log_level"),
		LogFormat:      k.String("log_format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and sane. Missing
// credentials are fatal by design: the service cannot reach the upstream
// without them.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return &pkgerrs.ConfigError{Field: "client_id", Message: "missing credential, set " + envPrefix + "CLIENT_ID"}
	}
	if c.ClientSecret == "" {
		return &pkgerrs.ConfigError{Field: "client_secret", Message: "missing credential, set " + envPrefix + "CLIENT_SECRET"}
	}
	if c.UserAgent == "" {
		return &pkgerrs.ConfigError{Field: "user_agent", Message: "missing identifier, set " + envPrefix + "USER_AGENT"}
	}
	if err := validation.UserAgent(c.UserAgent); err != nil {
		return err
	}
	if c.PacingInterval <= 0 {
		return &pkgerrs.ConfigError{Field: "pacing_interval", Message: "pacing interval must be positive"}
	}
	if c.MaxRetries < 0 {
		return &pkgerrs.ConfigError{Field: "max_retries", Message: "retry budget cannot be negative"}
	}
	if c.HTTPTimeout <= 0 {
		return &pkgerrs.ConfigError{Field: "http_timeout", Message: "HTTP timeout must be positive"}
	}
	if c.ListenAddr == "" {
		return &pkgerrs.ConfigError{Field: "listen_addr", Message: "listen address cannot be empty"}
	}
	return nil
}
