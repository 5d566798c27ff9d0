package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds Redis connection settings. Enabled=false produces a
// client whose operations report ErrDisabled, which callers treat as
// a fail-open condition.
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	Enabled      bool
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ErrDisabled is returned when the Redis backend is switched off by
// configuration.
var ErrDisabled = fmt.Errorf("redis: disabled by configuration")

type Client struct {
	rdb     *redis.Client
	enabled bool
	logger  *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !cfg.Enabled {
		logger.Warn("Redis disabled, counter operations will fail open")
		return &Client{enabled: false, logger: logger}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &Client{rdb: rdb, enabled: true, logger: logger}
}

func (c *Client) IsEnabled() bool {
	return c.enabled
}

func (c *Client) Ping(ctx context.Context) error {
	if !c.enabled {
		return ErrDisabled
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if !c.enabled {
		return nil
	}
	return c.rdb.Close()
}

// IncrWithTTL atomically increments the counter at key. The TTL is
// established only when the increment created the key, so the window
// start is fixed by the first failure and decays on its own.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if !c.enabled {
		return 0, ErrDisabled
	}

	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	if count == 1 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			c.logger.Warn("Failed to set counter TTL",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	return count, nil
}

// GetCount returns the current counter value and its remaining TTL.
// A missing key reports zero with no error.
func (c *Client) GetCount(ctx context.Context, key string) (int64, time.Duration, error) {
	if !c.enabled {
		return 0, 0, ErrDisabled
	}

	count, err := c.rdb.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("failed to get counter: %w", err)
	}

	ttl, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return count, 0, fmt.Errorf("failed to get counter ttl: %w", err)
	}

	return count, ttl, nil
}

// Del removes the given keys. Deleting absent keys is a no-op.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if !c.enabled {
		return ErrDisabled
	}

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}
