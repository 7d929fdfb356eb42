// Package redis implements Redis caching for the Chrono Performance Hub.
// It holds hot leaderboard data so repeated reads do not recompute scores
// from the activity read model on every request.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds the Redis client settings.
type Config struct {
	// Host - Redis server hostname.
	Host string

	// Port - Redis server port.
	Port int

	// Password - auth password, empty for no auth.
	Password string

	// DB - logical database number.
	DB int

	// PoolSize - cap on open connections.
	PoolSize int

	// MinIdleConns - idle connections kept warm.
	MinIdleConns int

	// MaxRetries - command retries before giving up.
	MaxRetries int

	// DialTimeout - limit on establishing a connection.
	DialTimeout time.Duration

	// ReadTimeout - limit on socket reads.
	ReadTimeout time.Duration

	// WriteTimeout - limit on socket writes.
	WriteTimeout time.Duration

	// PoolTimeout - limit on waiting for a free connection.
	PoolTimeout time.Duration
}

// DefaultConfig targets a local Redis with modest pooling.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

// Addr renders the host:port pair for the client.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS AND KEYS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheMiss means the key is absent. Callers treat it as "recompute",
	// never as a failure.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection wraps a failed connection attempt.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization wraps JSON encode or decode failures. On reads
	// it usually means the cached shape changed between versions.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheKeyEmpty rejects operations on an empty key.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// PrefixLeaderboard namespaces every leaderboard key in the database.
const PrefixLeaderboard = "leaderboard:"

// TTLLeaderboardCache bounds how stale a cached ranking may get when
// configuration does not set its own TTL.
const TTLLeaderboardCache = 5 * time.Minute

// RankedKey names the cached ranking of one scope and period. Scope IDs
// already carry their kind ("company:<id>", "project:<id>"), so the key
// stays unambiguous across scope levels.
func RankedKey(scopeID, periodType string) string {
	return PrefixLeaderboard + "ranked:" + scopeID + ":" + periodType
}

// ScopePattern matches every cached period of a single scope, for
// invalidation after a snapshot run.
func ScopePattern(scopeID string) string {
	return PrefixLeaderboard + "ranked:" + scopeID + ":*"
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache is a thin JSON-over-Redis store. Values are marshalled on Set and
// unmarshalled on Get; TTLs are mandatory so nothing lives forever.
type Cache struct {
	client *redis.Client
	config Config
}

// NewCache connects and verifies the server is reachable before returning.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	return &Cache{client: client, config: cfg}, nil
}

// Client exposes the underlying go-redis client for components that need
// more than get/set, such as the Pub/Sub event bus.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close releases the client's connections.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks reachability, for readiness probes.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Set stores value as JSON under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Get loads key into dest, returning ErrCacheMiss for absent keys.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return nil
}

// Delete removes the given keys. Deleting nothing is not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// DeleteByPattern scans for matching keys and deletes them in batches of a
// hundred, without ever blocking the server the way KEYS would.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) error {
	if pattern == "" {
		return ErrCacheKeyEmpty
	}

	const batch = 100
	iter := c.client.Scan(ctx, 0, pattern, batch).Iterator()

	keys := make([]string, 0, batch)
	flush := func() error {
		if len(keys) == 0 {
			return nil
		}
		err := c.client.Del(ctx, keys...).Err()
		keys = keys[:0]
		return err
	}

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= batch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return flush()
}
