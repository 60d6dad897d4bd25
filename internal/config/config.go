// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the persistent store: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the sqlite file path or the postgres connection URL.
	StoreDSN string `koanf:"store_dsn"`

	// StoreMaxOpenConns caps the postgres pool. SQLite always uses one connection.
	StoreMaxOpenConns int `koanf:"store_max_open_conns"`

	// EmbeddingDim is the fixed embedding length accepted system-wide.
	EmbeddingDim int `koanf:"embedding_dim"`

	// EmbeddingNormalize L2-normalizes query and samples before comparing.
	EmbeddingNormalize bool `koanf:"embedding_normalize"`

	// MatchThreshold is the exclusive upper bound on accepted distance.
	MatchThreshold float64 `koanf:"match_threshold"`

	// CatalogCache enables the revision-checked catalog cache.
	CatalogCache bool `koanf:"catalog_cache"`

	// Timezone names the location session dates and times are read in.
	Timezone string `koanf:"timezone"`

	// DefaultLateGraceMinutes applies to sessions created without a grace.
	DefaultLateGraceMinutes int `koanf:"default_late_grace_minutes"`

	// DefaultMaxScore applies to sessions created without a max score.
	DefaultMaxScore int `koanf:"default_max_score"`

	// EarlyNote is the note recorded for recognitions before a session starts.
	EarlyNote string `koanf:"early_note"`

	// CORSAllowedOrigins lists origins allowed by the HTTP API.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		StoreDriver:             DriverSQLite,
		StoreDSN:                "rollcall.db",
		StoreMaxOpenConns:       10,
		EmbeddingDim:            512,
		EmbeddingNormalize:      true,
		MatchThreshold:          1.0,
		CatalogCache:            true,
		Timezone:                "Local",
		DefaultLateGraceMinutes: 15,
		DefaultMaxScore:         10,
		EarlyNote:               "after-window",
		CORSAllowedOrigins:      []string{"*"},
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// DefaultLateGrace returns the default grace as a duration.
func (c *Config) DefaultLateGrace() time.Duration {
	return time.Duration(c.DefaultLateGraceMinutes) * time.Minute
}
