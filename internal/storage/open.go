package storage

import (
	"context"
	"fmt"
	"time"

	"push-relay/internal/common/config"
	"push-relay/internal/common/database"
	"push-relay/internal/common/logger"
)

const (
	readyAttempts = 5
	readyDelay    = 500 * time.Millisecond
)

// Open builds the store selected by cfg.Driver and waits for its backend to
// answer. The returned close function releases the backend connection.
func Open(ctx context.Context, cfg config.StorageConfig, indexes Indexes, log logger.Logger) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case config.DriverMemory, "":
		log.Info("Using in-memory storage", nil)
		return NewMemoryStore(), noop, nil

	case config.DriverRedis:
		rc, err := database.NewRedis(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		if err := database.WaitReady(ctx, rc, readyAttempts, readyDelay, log, "redis"); err != nil {
			rc.Close()
			return nil, nil, err
		}
		log.Info("Connected to Redis storage", map[string]interface{}{"address": cfg.Redis.Address})
		return NewRedisStore(rc.Client, cfg.Prefix, indexes), rc.Close, nil

	case config.DriverPostgres:
		pc, err := database.NewPostgres(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := database.WaitReady(ctx, pc, readyAttempts, readyDelay, log, "postgres"); err != nil {
			pc.Close()
			return nil, nil, err
		}
		store := NewPostgresStore(pc.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			pc.Close()
			return nil, nil, err
		}
		log.Info("Connected to PostgreSQL storage", map[string]interface{}{
			"host":     cfg.Postgres.Host,
			"database": cfg.Postgres.Database,
		})
		return store, pc.Close, nil

	case config.DriverElasticsearch:
		ec, err := database.NewElasticsearch(cfg.Elasticsearch)
		if err != nil {
			return nil, nil, err
		}
		if err := database.WaitReady(ctx, ec, readyAttempts, readyDelay, log, "elasticsearch"); err != nil {
			ec.Close()
			return nil, nil, err
		}
		store := NewElasticsearchStore(ec.Client, cfg.Prefix)
		for collection := range indexes {
			if err := store.EnsureIndex(ctx, collection); err != nil {
				ec.Close()
				return nil, nil, err
			}
		}
		log.Info("Connected to Elasticsearch storage", map[string]interface{}{"url": cfg.Elasticsearch.GetURL()})
		return store, ec.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
