package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "ROLLCALL_"
	envConfig  = "ROLLCALL_CONFIG"
	dotEnvFile = ".env"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if ROLLCALL_CONFIG is set
//  3. env (prefix ROLLCALL_), after .env in the working directory is applied
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, dotEnvFile, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Map env keys like ROLLCALL_MATCH_THRESHOLD -> match_threshold (flat keys).
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field that has a constrained domain.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.EmbeddingDim <= 0:
		return invalid("embedding_dim must be positive, got %d", c.EmbeddingDim)
	case c.MatchThreshold <= 0 || math.IsNaN(c.MatchThreshold) || math.IsInf(c.MatchThreshold, 0):
		return invalid("match_threshold must be a positive number, got %v", c.MatchThreshold)
	case c.DefaultMaxScore <= 0:
		return invalid("default_max_score must be positive, got %d", c.DefaultMaxScore)
	case c.DefaultLateGraceMinutes < 0:
		return invalid("default_late_grace_minutes must not be negative, got %d", c.DefaultLateGraceMinutes)
	case c.StoreMaxOpenConns <= 0:
		return invalid("store_max_open_conns must be positive, got %d", c.StoreMaxOpenConns)
	}

	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.StoreDSN == "" {
			return invalid("store_dsn is required for driver %s", c.StoreDriver)
		}
	default:
		return invalid("unknown store_driver %q", c.StoreDriver)
	}

	switch c.EarlyNote {
	case "after-window", "before-window":
	default:
		return invalid("early_note must be after-window or before-window, got %q", c.EarlyNote)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}

	if _, err := c.Location(); err != nil {
		return invalid("timezone %q: %v", c.Timezone, err)
	}
	return nil
}
