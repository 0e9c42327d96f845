// Package redis wraps go-redis with the key layout and the few atomic
// operations the API and workers share: idempotency records, rate-limit
// windows and job locks.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/railexchange-backend/pkg/config"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

var errNotInitialized = errors.New("redis client not initialized")

type cmdable interface {
	redis.Scripter
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

type Client struct {
	store cmdable
	raw   *redis.Client
}

// IdempotencyStore is what the HTTP and webhook dedupe layers need.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// New dials Redis and fails unless it answers PING.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"addr": opts.Addr, "db": opts.DB, "pool_size": opts.PoolSize}), "redis.connected")
	}
	return &Client{store: raw, raw: raw}, nil
}

// optionsFromConfig prefers REDIS_URL; explicit config fills whatever the URL
// leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address == "":
		return nil, errors.New("redis url or address is required")
	}

	opts.DB = orDefault(opts.DB, cfg.DB)
	opts.PoolSize = orDefault(opts.PoolSize, cfg.PoolSize)
	opts.MinIdleConns = orDefault(opts.MinIdleConns, cfg.MinIdleConns)
	opts.DialTimeout = orDefault(opts.DialTimeout, cfg.DialTimeout)
	opts.ReadTimeout = orDefault(opts.ReadTimeout, cfg.ReadTimeout)
	opts.WriteTimeout = orDefault(opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

// orDefault keeps set unless it is the zero value.
func orDefault[T comparable](set, fallback T) T {
	var zero T
	if set == zero {
		return fallback
	}
	return set
}

// run executes fn against the live store, or reports an uninitialized client.
func run[T any](c *Client, fn func(cmdable) (T, error)) (T, error) {
	if c == nil || c.store == nil {
		var zero T
		return zero, errNotInitialized
	}
	return fn(c.store)
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	_, err := run(c, func(s cmdable) (string, error) { return s.Set(ctx, key, value, ttl).Result() })
	return err
}

// Get returns redis.Nil when key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return run(c, func(s cmdable) (string, error) { return s.Get(ctx, key).Result() })
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return run(c, func(s cmdable) (bool, error) { return s.SetNX(ctx, key, value, ttl).Result() })
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	_, err := run(c, func(s cmdable) (int64, error) { return s.Del(ctx, keys...).Result() })
	return err
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := run(c, func(s cmdable) (string, error) { return s.Ping(ctx).Result() })
	return err
}

func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}
