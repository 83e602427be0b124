// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New() returns a Config populated with defaults.
//   - Load layers a YAML file and PREDICTOR_* env vars over the defaults.
//   - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/predictor/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// AppTitle is shown on the landing page.
	AppTitle string `koanf:"app_title"`

	// Store selects the backend: memory, postgres or sqlite.
	Store string `koanf:"store"`

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `koanf:"database_url"`

	// SQLitePath is the SQLite database file.
	SQLitePath string `koanf:"sqlite_path"`

	// DBMaxConns caps the PostgreSQL pool.
	DBMaxConns int `koanf:"db_max_conns"`

	// Points is the scoring rubric.
	Points scoring.Rubric `koanf:"points"`

	// Cutoff locks predictions from this instant (RFC3339). Empty never locks.
	Cutoff string `koanf:"cutoff"`

	// AdminCode guards the admin endpoints. Empty disables them.
	AdminCode string `koanf:"admin_code"`

	// CORSAllowOrigins lists allowed browser origins.
	CORSAllowOrigins []string `koanf:"cors_allow_origins"`

	// RateLimitRequests per RateLimitWindow per client IP. Zero disables.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	// MaxLeaderboardLimit caps the leaderboard limit accepted over HTTP and MCP.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MCPEnabled mounts the MCP tool server at /mcp.
	MCPEnabled bool `koanf:"mcp_enabled"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		AppTitle:            "Predictor",
		Store:               "memory",
		SQLitePath:          "data/predictor.db",
		DBMaxConns:          10,
		Points:              scoring.DefaultRubric(),
		CORSAllowOrigins:    []string{"*"},
		RateLimitRequests:   120,
		RateLimitWindow:     time.Minute,
		MaxLeaderboardLimit: 100,
		ShutdownTimeout:     10 * time.Second,
		MCPEnabled:          true,
	}
}

// CutoffTime returns the parsed cutoff and whether one is configured.
func (c *Config) CutoffTime() (time.Time, bool, error) {
	if strings.TrimSpace(c.Cutoff) == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(c.Cutoff))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: cutoff %q: %w", ErrInvalidConfig, c.Cutoff, err)
	}
	return t, true, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.Store {
	case "memory", "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: database_url required for postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	if c.Store == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("%w: sqlite_path required for sqlite store", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if err := c.Points.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.RateLimitRequests < 0 {
		return fmt.Errorf("%w: rate_limit_requests must not be negative", ErrInvalidConfig)
	}
	if c.RateLimitRequests > 0 && c.RateLimitWindow <= 0 {
		return fmt.Errorf("%w: rate_limit_window must be positive", ErrInvalidConfig)
	}
	if c.MaxLeaderboardLimit < 1 {
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	if _, _, err := c.CutoffTime(); err != nil {
		return err
	}
	return nil
}
