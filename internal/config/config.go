// Package config defines process configuration for the prefrank client and
// the reference preference store, and how it is loaded.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a dotenv file, a YAML file and PREFRANK_* env vars on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"time"

	"github.com/okian/prefrank/internal/domain/selection"
	"github.com/okian/prefrank/pkg/logger"
)

// Config contains process configuration shared by both binaries.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address of the store, e.g. ":9080".
	Addr string `koanf:"addr"`

	// APIBaseURL is where the client reaches the preference store.
	APIBaseURL string `koanf:"api_base_url"`

	// ProgramID is the ranking target of the student flow.
	ProgramID string `koanf:"program_id"`

	// StorePath is the server SQLite file. Empty keeps rankings in memory.
	StorePath string `koanf:"store_path"`

	// LocalPath is the client SQLite file holding the session token and
	// submitted markers.
	LocalPath string `koanf:"local_path"`

	// JWTSecret signs session tokens issued by the store.
	JWTSecret string `koanf:"jwt_secret"`

	// SessionTTLMinutes is the lifetime of an issued session token.
	SessionTTLMinutes int `koanf:"session_ttl_minutes"`

	// HTTPTimeoutMS bounds every client request.
	HTTPTimeoutMS int `koanf:"http_timeout_ms"`

	// RetryMaxAttempts and RetryInitialBackoffMS control retries of
	// transient store failures.
	RetryMaxAttempts      int `koanf:"retry_max_attempts"`
	RetryInitialBackoffMS int `koanf:"retry_initial_backoff_ms"`

	// MaxSelection bounds the selection set.
	MaxSelection int `koanf:"max_selection"`

	// SelectionPolicy is default_all or explicit.
	SelectionPolicy string `koanf:"selection_policy"`

	// MaxAnnotationLength caps the statement of purpose accepted by the store.
	MaxAnnotationLength int `koanf:"max_annotation_length"`

	// IdempotencyCacheSize bounds the store's idempotency key ledger.
	IdempotencyCacheSize int `koanf:"idempotency_cache_size"`

	// SeedPath points at a YAML file with projects, users and wishlists.
	SeedPath string `koanf:"seed_path"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		APIBaseURL:            "http://localhost:9080",
		ProgramID:             "default",
		StorePath:             "",
		LocalPath:             "prefrank.db",
		JWTSecret:             "change-me",
		SessionTTLMinutes:     24 * 60,
		HTTPTimeoutMS:         10_000,
		RetryMaxAttempts:      4,
		RetryInitialBackoffMS: 200,
		MaxSelection:          selection.DefaultMax,
		SelectionPolicy:       string(selection.PolicyDefaultAll),
		MaxAnnotationLength:   5000,
		IdempotencyCacheSize:  50_000,
	}
}

// HTTPTimeout returns HTTPTimeoutMS as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

// RetryInitialBackoff returns RetryInitialBackoffMS as a duration.
func (c *Config) RetryInitialBackoff() time.Duration {
	return time.Duration(c.RetryInitialBackoffMS) * time.Millisecond
}

// SessionTTL returns SessionTTLMinutes as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Validate checks the invariants both binaries rely on.
func (c *Config) Validate() error {
	if _, err := logger.ParseFormat(c.LogFormat); err != nil {
		return fmt.Errorf("log_format: %w: %w", err, ErrInvalidConfig)
	}
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	case c.APIBaseURL == "":
		return fmt.Errorf("api_base_url must not be empty: %w", ErrInvalidConfig)
	case c.MaxSelection <= 0:
		return fmt.Errorf("max_selection must be positive: %w", ErrInvalidConfig)
	case c.SelectionPolicy != string(selection.PolicyDefaultAll) && c.SelectionPolicy != string(selection.PolicyExplicit):
		return fmt.Errorf("selection_policy %q is not default_all or explicit: %w", c.SelectionPolicy, ErrInvalidConfig)
	case c.RetryMaxAttempts < 1:
		return fmt.Errorf("retry_max_attempts must be at least 1: %w", ErrInvalidConfig)
	case c.HTTPTimeoutMS <= 0:
		return fmt.Errorf("http_timeout_ms must be positive: %w", ErrInvalidConfig)
	case c.MaxAnnotationLength <= 0:
		return fmt.Errorf("max_annotation_length must be positive: %w", ErrInvalidConfig)
	case c.SessionTTLMinutes <= 0:
		return fmt.Errorf("session_ttl_minutes must be positive: %w", ErrInvalidConfig)
	}
	return nil
}
