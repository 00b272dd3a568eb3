package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dmsd/dmsd/internal/config"
)

// NewPostgresPool opens the account and journal database. The first ping is
// retried up to cfg.ConnectRetries times so the API can start alongside its
// database container.
func NewPostgresPool(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	pcfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := waitReady(ctx, "postgres", cfg.ConnectRetries, logger, pool.Ping); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// NewRedisClient opens the cache holding nonces, dashboard snapshots,
// idempotent responses and notifications.
func NewRedisClient(ctx context.Context, cfg config.Config, logger *slog.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := waitReady(ctx, "redis", cfg.ConnectRetries, logger, ping); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func waitReady(ctx context.Context, name string, tries uint, logger *slog.Logger, ping func(context.Context) error) error {
	if tries == 0 {
		tries = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := ping(pingCtx); err != nil {
			logger.Warn("store not ready", "store", name, "attempt", attempt, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
	if err != nil {
		return fmt.Errorf("ping %s: %w", name, err)
	}
	return nil
}
