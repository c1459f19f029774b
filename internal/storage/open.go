package storage

import (
	"context"
	"fmt"
	"log/slog"

	cfg "github.com/fendi147258369-dot/omnisafe-web/backend/config"
	"github.com/fendi147258369-dot/omnisafe-web/backend/pkg/database"
)

// Backend names accepted in configuration.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Open builds the configured backend. The returned close function releases
// its connections and is never nil.
func Open(ctx context.Context, logger *slog.Logger, config *cfg.Config) (Store, func(), error) {
	noop := func() {}

	switch config.Storage.Backend {
	case BackendMemory:
		logger.Info("Using in-memory storage")
		return NewMemoryStore(), noop, nil

	case BackendFile, "":
		store, err := NewBoltStore(config.Storage.Dir)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Using bolt file storage", "dir", config.Storage.Dir, "file", BoltFileName)
		return store, func() { _ = store.Close() }, nil

	case BackendRedis:
		store, err := NewRedisStore(ctx, RedisConfig{URL: config.Redis.URL, Password: config.Redis.Password})
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Using redis storage")
		return store, func() { _ = store.Close() }, nil

	case BackendPostgres:
		if config.DB.DatabaseURL == "" {
			return nil, noop, fmt.Errorf("postgres storage requires DATABASE_URL")
		}
		if err := database.RunMigrations(ctx, logger, config.DB.DatabaseURL, config.DB.MigrationsPath); err != nil {
			return nil, noop, err
		}
		pg, err := database.New(ctx, config.DB.DatabaseURL,
			database.MaxPoolSize(config.DB.PoolMax),
			database.ConnTimeout(config.DB.ConnectTimeout),
			database.HealthCheckPeriod(config.DB.HealthCheckPeriod),
		)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Using postgres storage")
		return NewPostgresStore(logger, pg), pg.Close, nil
	}

	return nil, noop, fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
}
