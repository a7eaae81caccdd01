package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/lost-found/internal/config"
	"github.com/kozaktomas/lost-found/internal/database"
	"github.com/kozaktomas/lost-found/internal/database/postgres"
	"github.com/kozaktomas/lost-found/internal/logger"
	"github.com/kozaktomas/lost-found/internal/matching"
	"go.uber.org/zap"
)

// openBackend connects to PostgreSQL and returns the registered repositories.
func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*postgres.Pool, *database.Backend, error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(ctx, &cfg.Database, cfg.Embedding.DescriptorDim, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	backend, err := database.GetBackend()
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, backend, nil
}

// newLogger builds the process logger from the loaded configuration.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// newMatcher wires the matcher to the backend with the confirm hook that
// resolves both reports.
func newMatcher(cfg *config.Config, backend *database.Backend, log *zap.Logger, opts ...matching.Option) *matching.Matcher {
	base := []matching.Option{
		matching.WithLogger(log.Named("matching")),
		matching.WithConcurrency(cfg.Match.SweepConcurrency),
		matching.WithConfirmHook(matching.ResolvePairHook(backend.Resolver)),
	}
	return matching.New(backend.Lost, backend.Found, backend.Matches, append(base, opts...)...)
}
