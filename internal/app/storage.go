package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abgdnv/storefront/internal/commerce"
	"github.com/abgdnv/storefront/internal/snapshot"
	"github.com/abgdnv/storefront/pkg/bootstrap"
	"github.com/abgdnv/storefront/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// SetupStorage opens the snapshot backend named by cfg.Driver. Every backend
// but memory is wrapped with retries and a circuit breaker. The returned
// closer releases connections.
func SetupStorage(ctx context.Context, cfg config.StorageConfig, resilience config.ResilienceConfig,
	onStateChange func(name string, from, to gobreaker.State), logger *slog.Logger) (commerce.Storage, func(), error) {

	noop := func() {}
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("Snapshots are kept in memory and lost on restart")
		return snapshot.NewMemoryStorage(), noop, nil

	case config.DriverFile:
		fs, err := snapshot.NewFileStorage(cfg.File.Dir)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Snapshots are kept on disk", "dir", cfg.File.Dir)
		return snapshot.NewResilientStorage("snapshot-file", fs, resilience, onStateChange), noop, nil

	case config.DriverRedis:
		client, err := bootstrap.NewRedisClient(ctx, cfg.Redis.URL, cfg.Timeout)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Successfully connected to redis!")
		closer := func() {
			if err := client.Close(); err != nil {
				logger.Error("Failed to close redis client", "error", err)
			}
		}
		st := snapshot.NewRedisStorage(client, cfg.Redis.TTL)
		return snapshot.NewResilientStorage("snapshot-redis", st, resilience, onStateChange), closer, nil

	case config.DriverPostgres:
		if err := snapshot.Migrate(cfg.Database.URL); err != nil {
			return nil, noop, err
		}
		dbPool, err := bootstrap.NewDbPool(ctx, cfg.Database.URL, cfg.Database.Timeout)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Successfully connected to the database!")
		st := snapshot.NewPgStorage(dbPool)
		return snapshot.NewResilientStorage("snapshot-postgres", st, resilience, onStateChange), dbPool.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}
