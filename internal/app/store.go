package service

import (
	"context"
	"fmt"

	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/adapters/repository/memory"
	"github.com/okian/rollcall/internal/adapters/repository/postgres"
	"github.com/okian/rollcall/internal/adapters/repository/sqlite"
	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/internal/domain/matching"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/scoring"
	"github.com/okian/rollcall/pkg/logger"
)

// OpenStore opens the store selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		return sqlite.New(ctx, cfg.StoreDSN, sqlite.WithLogger(log))
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.StoreDSN,
			postgres.WithLogger(log),
			postgres.WithMaxOpenConns(cfg.StoreMaxOpenConns),
		)
	}
	return nil, fmt.Errorf("%w: %q", repository.ErrUnsupportedDriver, cfg.StoreDriver)
}

// FromConfig builds a Service over store using cfg.
func FromConfig(cfg *config.Config, store repository.Store, log logger.Logger) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("%w: timezone: %w", config.ErrInvalidConfig, err)
	}
	early, ok := model.ParseNote(cfg.EarlyNote)
	if !ok {
		return nil, fmt.Errorf("%w: early_note %q", config.ErrInvalidConfig, cfg.EarlyNote)
	}

	return New(store,
		WithLogger(log),
		WithDimension(cfg.EmbeddingDim),
		WithMatcher(matching.NewMatcher(
			matching.WithThreshold(cfg.MatchThreshold),
			matching.WithNormalize(cfg.EmbeddingNormalize),
		)),
		WithPolicy(scoring.NewPolicy(scoring.WithEarlyNote(early))),
		WithCatalogCache(cfg.CatalogCache),
		WithLocation(loc),
		WithDefaultLateGrace(cfg.DefaultLateGrace()),
		WithDefaultMaxScore(cfg.DefaultMaxScore),
	), nil
}
