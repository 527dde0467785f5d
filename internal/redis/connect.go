package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/sethvargo/go-retry"
)

// Config holds the connection settings for the store.
type Config struct {
	Addr      string `env:"REDIS_ADDR, required"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB, default=0"`
	TLS       bool   `env:"REDIS_TLS, default=false"`
	MaxIdle   int    `env:"REDIS_MAX_IDLE, default=8"`
	MaxActive int    `env:"REDIS_MAX_ACTIVE, default=0"`
}

// Connect creates the process-wide pool and checks the store is reachable.
//
// The caller owns the pool and closes it at shutdown.
func Connect(ctx context.Context, cfg Config) (*redis.Pool, error) {
	pool := &redis.Pool{
		MaxIdle:     cfg.MaxIdle,
		MaxActive:   cfg.MaxActive,
		IdleTimeout: 4 * time.Minute,
		Wait:        true,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", cfg.Addr,
				redis.DialPassword(cfg.Password),
				redis.DialDatabase(cfg.DB),
				redis.DialUseTLS(cfg.TLS),
			)
		},
		TestOnBorrow: func(c redis.Conn, lastUsed time.Time) error {
			if time.Since(lastUsed) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	c, err := pool.GetContext(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error dialing %s: %w", cfg.Addr, err)
	}
	defer c.Close()

	if _, err := c.Do("PING"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging %s: %w", cfg.Addr, err)
	}

	return pool, nil
}

// ConnectWithRetry keeps trying [Connect] until the store answers or maxWait
// has passed, for when the store starts alongside the process.
func ConnectWithRetry(ctx context.Context, cfg Config, maxWait time.Duration) (*redis.Pool, error) {
	var pool *redis.Pool
	backoff := retry.WithMaxDuration(maxWait, retry.NewFibonacci(250*time.Millisecond))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		p, err := Connect(ctx, cfg)
		if err != nil {
			return retry.RetryableError(err)
		}
		pool = p

		return nil
	}); err != nil {
		return nil, err
	}

	return pool, nil
}
