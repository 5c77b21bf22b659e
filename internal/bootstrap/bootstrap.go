// Package bootstrap opens the backends selected in config. The API, the
// worker and clipforgectl all start from here so they agree on where jobs live.
package bootstrap

import (
	"context"

	"clipforge/internal/adapters/jobstore/jsonfile"
	"clipforge/internal/config"
	apperrors "clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/ports"
	"clipforge/internal/queue"
	"clipforge/internal/repositories"
)

// OpenStore opens the job store and video library named by STORE_BACKEND.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (ports.Store, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		log.Info("connecting to PostgreSQL")
		s, err := repositories.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("PostgreSQL connected")
		return s, nil
	case config.StoreFile:
		log.Info("opening job file", "path", cfg.JobStoreFile)
		s, err := jsonfile.Open(cfg.JobStoreFile)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, apperrors.ValidationField("STORE_BACKEND", "unknown store backend: "+cfg.StoreBackend)
	}
}

// OpenQueue returns the queue named by QUEUE_BACKEND. The store queue reads
// pending jobs straight from store.
func OpenQueue(ctx context.Context, cfg *config.Config, store ports.JobStore, log *logger.Logger) (ports.JobQueue, error) {
	switch cfg.QueueBackend {
	case config.QueueRedis:
		log.Info("connecting to Redis", "addr", cfg.RedisAddr, "queue", cfg.QueueName)
		rdb, err := queue.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		log.Info("Redis connected")
		return queue.NewRedisQueue(rdb, cfg.QueueName, cfg.QueuePopTimeout), nil
	case config.QueueStore:
		return queue.NewPollQueue(store, cfg.WorkerCheckInterval), nil
	default:
		return nil, apperrors.ValidationField("QUEUE_BACKEND", "unknown queue backend: "+cfg.QueueBackend)
	}
}

// NewLogger builds the process logger from config.
func NewLogger(cfg *config.Config, service string) *logger.Logger {
	return logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: service,
		AddSource:   cfg.LogSource,
	})
}
