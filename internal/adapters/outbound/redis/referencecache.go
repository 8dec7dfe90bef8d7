// Package redis provides a Redis implementation of the ReferenceCache port.
//
// Entries are stored under prefix:key with a TTL so that reference data
// reloaded in Postgres becomes visible without an explicit flush.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/archon-research/emissions-api/internal/ports/outbound"
)

// Compile-time check that ReferenceCache implements outbound.ReferenceCache
var _ outbound.ReferenceCache = (*ReferenceCache)(nil)

// Config holds Redis cache configuration.
type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string
	// Password for Redis authentication (empty for no auth)
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// TTL is used when Set is called without one
	TTL time.Duration
	// KeyPrefix is prepended to all cache keys
	KeyPrefix string
}

// ConfigDefaults returns sensible defaults for Redis cache configuration.
func ConfigDefaults() Config {
	return Config{
		Addr:      "localhost:6379",
		DB:        0,
		TTL:       time.Hour,
		KeyPrefix: "emissions-api",
	}
}

// ReferenceCache is a Redis implementation of the outbound.ReferenceCache port.
type ReferenceCache struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	logger    *slog.Logger
}

// NewReferenceCache creates a new Redis reference cache. The connection is
// established lazily; call Ping to verify it.
func NewReferenceCache(cfg Config, logger *slog.Logger) (*ReferenceCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = ConfigDefaults().TTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if logger == nil {
		logger = slog.Default()
	}

	return &ReferenceCache{
		client:    client,
		ttl:       cfg.TTL,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger.With("component", "redis-cache"),
	}, nil
}

// Ping checks the Redis connection.
func (c *ReferenceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// HealthCheck implements outbound.HealthChecker.
func (c *ReferenceCache) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx)
}

// Close closes the Redis connection.
func (c *ReferenceCache) Close() error {
	return c.client.Close()
}

func (c *ReferenceCache) key(key string) string {
	if c.keyPrefix == "" {
		return key
	}
	return c.keyPrefix + ":" + key
}

// Get returns the payload stored under key. A missing key is not an error.
func (c *ReferenceCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores data under key. ttl <= 0 uses the configured TTL.
func (c *ReferenceCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	c.logger.Debug("cached reference data", "key", key, "bytes", len(data), "ttl", ttl)
	return nil
}
