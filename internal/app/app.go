// Package app wires configuration, storage and the thumbnail generator into
// a handler shared by every trigger (webhook, queue worker, Lambda).
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/phambaophuc/blob-thumbnail/internal/config"
	"github.com/phambaophuc/blob-thumbnail/internal/metrics"
	"github.com/phambaophuc/blob-thumbnail/internal/services/idempotency"
	"github.com/phambaophuc/blob-thumbnail/internal/services/naming"
	"github.com/phambaophuc/blob-thumbnail/internal/services/storage"
	"github.com/phambaophuc/blob-thumbnail/internal/services/thumbnail"
)

type App struct {
	Config    *config.Config
	Store     storage.BlobStore
	Generator *thumbnail.Generator
	// Metrics is nil when New was given no registerer.
	Metrics *metrics.Metrics
	// Handler is the generator behind the idempotency guard.
	Handler idempotency.Handler

	redisStore  *idempotency.RedisStore
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewLogger builds a production zap logger at the given level. "debug" also
// switches to the development encoder.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	if lvl == zapcore.DebugLevel {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// New builds the event handler from cfg. Redis is optional: without
// REDIS_ADDR, or when Redis does not answer, duplicates are tracked in
// process memory instead.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	store, err := storage.NewStorageService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage service: %w", err)
	}

	deriver, err := naming.NewDeriver(cfg.Thumbnail.Naming)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.NewMetrics(reg)
	}

	gen, err := thumbnail.NewGenerator(thumbnail.Options{
		Width:       cfg.Thumbnail.Width,
		Resampler:   cfg.Thumbnail.Resampler,
		JPEGQuality: cfg.Thumbnail.JPEGQuality,
		MaxPixels:   cfg.Thumbnail.MaxPixels,
	}, deriver, store, logger, m)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Store:     store,
		Generator: gen,
		Metrics:   m,
		logger:    logger,
	}

	var seen idempotency.Store = idempotency.NewMemoryStore(cfg.Redis.IdempotencyTTL)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, tracking handled events in memory", zap.Error(err))
			client.Close()
		} else {
			a.redisClient = client
			a.redisStore = idempotency.NewRedisStore(client, cfg.Redis.IdempotencyTTL)
			seen = a.redisStore
		}
	}

	a.Handler = idempotency.Guard(seen, gen.Process, logger)

	logger.Info("Thumbnail generator ready",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("naming", cfg.Thumbnail.Naming),
		zap.Int("width", cfg.Thumbnail.Width),
		zap.Bool("redis", a.redisClient != nil),
	)

	return a, nil
}

// StorageHealth reports the blob store status.
func (a *App) StorageHealth(ctx context.Context) map[string]string {
	return storage.HealthCheck(ctx, a.Config.Storage.Backend, a.Store)
}

// RedisHealth reports the idempotency store status.
func (a *App) RedisHealth(ctx context.Context) map[string]string {
	if a.redisStore == nil {
		return map[string]string{"redis": "not configured"}
	}
	return map[string]string{"redis": a.redisStore.HealthCheck(ctx)}
}

func (a *App) Close() error {
	if a.redisClient != nil {
		return a.redisClient.Close()
	}
	return nil
}
