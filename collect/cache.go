package collect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache TTLs: fundamentals change slowly, indicators daily.
const (
	FundamentalsTTL = 90 * 24 * time.Hour
	TechnicalTTL    = 24 * time.Hour
)

// FundamentalsKey builds the cache key for a fundamentals record.
func FundamentalsKey(symbol, date string) string {
	return fmt.Sprintf("fund:%s:%s", symbol, date)
}

// TechnicalKey builds the cache key for a technical-indicator record.
func TechnicalKey(symbol, date, period string) string {
	return fmt.Sprintf("tech:%s:%s:%s", symbol, date, period)
}

// Cache is the collector-facing cache contract. Implementations must be
// safe for concurrent use. A nil Cache is valid everywhere and means
// "no cache": every read misses, every write is dropped.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	Close() error
}

// RedisCache implements Cache over a Redis server. Redis errors degrade
// silently: failed reads count as misses, failed writes are logged and
// dropped, and the collectors keep working against live upstreams.
type RedisCache struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisCache connects to addr and verifies the connection with a short
// ping. An unreachable server returns an error so the caller can choose to
// run uncached.
func NewRedisCache(addr, password string, db int, log *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisCache{client: client, log: log}, nil
}

// Get reads key and reports whether a value was present.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		cacheMisses.Inc()
		return nil, false
	}
	cacheHits.Inc()
	return val, true
}

// Set writes key with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if err := c.client.SetEx(ctx, key, val, ttl).Err(); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// cacheGet is the nil-tolerant read helper collectors use.
func cacheGet(ctx context.Context, c Cache, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	return c.Get(ctx, key)
}

// cacheSet is the nil-tolerant write helper collectors use.
func cacheSet(ctx context.Context, c Cache, key string, val []byte, ttl time.Duration) {
	if c == nil {
		return
	}
	c.Set(ctx, key, val, ttl)
}
