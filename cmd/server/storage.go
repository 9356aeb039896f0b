package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	httpapi "profilereg/internal/http"
	"profilereg/internal/kv"
	"profilereg/internal/kv/memory"
	kvpostgres "profilereg/internal/kv/postgres"
	kvredis "profilereg/internal/kv/redis"
	"profilereg/internal/platform/config"
	"profilereg/internal/platform/postgres"
	"profilereg/internal/platform/redis"
)

// storage is the opened storage backend and what it needs at shutdown.
type storage struct {
	host   kv.Host
	db     *sql.DB
	health map[string]httpapi.HealthCheck
	close  []func() error
}

func (s *storage) Close() {
	for i := len(s.close) - 1; i >= 0; i-- {
		_ = s.close[i]()
	}
}

func openStorage(ctx context.Context, cfg config.Config, log *slog.Logger, m *kv.Metrics) (*storage, error) {
	lifetime := kv.Lifetime{Initial: cfg.Lifetime.Initial}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		log.Warn("using in-memory storage; state is lost on restart")
		return &storage{host: memory.New(memory.WithLifetime(lifetime), memory.WithMetrics(m))}, nil

	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Storage.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		host := kvredis.New(client.Client,
			kvredis.WithPrefix(cfg.Storage.Redis.Prefix),
			kvredis.WithTxTimeout(cfg.Storage.TxTimeout),
			kvredis.WithLifetime(lifetime),
			kvredis.WithMetrics(m),
			kvredis.WithLogger(log),
		)
		return &storage{
			host:   host,
			health: map[string]httpapi.HealthCheck{"redis": client.Health},
			close:  []func() error{client.Close},
		}, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := kvpostgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate storage schema: %w", err)
		}
		host := kvpostgres.New(db,
			kvpostgres.WithTxTimeout(cfg.Storage.TxTimeout),
			kvpostgres.WithMaxRetries(cfg.Storage.MaxRetries),
			kvpostgres.WithLifetime(lifetime),
			kvpostgres.WithMetrics(m),
			kvpostgres.WithLogger(log),
		)
		return &storage{
			host:   host,
			db:     db,
			health: map[string]httpapi.HealthCheck{"postgres": db.PingContext},
			close:  []func() error{db.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
