// Package backends opens the notification ledger selected by DEDUP_BACKEND.
package backends

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/config"
	"github.com/Mide008/Roothaus-1/internal/repository"
	"github.com/Mide008/Roothaus-1/internal/repository/memory"
	"github.com/Mide008/Roothaus-1/internal/repository/postgres"
	"github.com/Mide008/Roothaus-1/internal/repository/redis"
)

// Open connects the configured ledger backend. The returned close function
// releases its connections; migrations run before a postgres ledger is returned.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Repositories, func(), error) {
	switch cfg.Dedup.Backend {
	case "", "memory":
		logger.Warn("Using in-memory notification ledger: duplicates are only suppressed within this process")
		return &repository.Repositories{
			Notification: memory.NewNotificationRepository(cfg.Dedup.ClaimTTL),
		}, func() {}, nil

	case "postgres":
		db, err := postgres.NewConnection(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := postgres.RunMigrations(db, logger); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return postgres.NewRepositories(db, cfg.Dedup.ClaimTTL, logger), func() { db.Close() }, nil

	case "redis":
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return &repository.Repositories{
			Notification: redis.NewNotificationRepository(client, cfg.Dedup.ClaimTTL, cfg.Dedup.Retention, logger),
		}, func() { client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.Dedup.Backend)
	}
}

// NewRedisClient parses REDIS_URL and checks the server is reachable
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
