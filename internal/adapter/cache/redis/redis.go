// Package redis puts a read-through Redis cache in front of the link namespace.
//
// Link records are immutable once written, so cached entries never go stale and
// need no invalidation. Misses are not cached: an unknown short code may be issued
// a moment later.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/surl/internal/kv"
)

const (
	defaultTTL       = 24 * time.Hour
	defaultKeyPrefix = "surl:link:"
)

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Cache wraps a kv.Reader. Only kv.Links lookups are cached.
type Cache struct {
	client redisClient
	next   kv.Reader
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

var _ kv.Reader = (*Cache)(nil)

// Option configures a Cache.
type Option func(*Cache)

func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func New(client redisClient, next kv.Reader, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		next:   next,
		ttl:    defaultTTL,
		prefix: defaultKeyPrefix,
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get serves kv.Links keys from Redis when possible and fills the cache on a miss.
// Redis failures fall back to the wrapped reader.
func (c *Cache) Get(ctx context.Context, ns kv.Namespace, key []byte) ([]byte, error) {
	const op = "adapter.cache.redis.Cache.Get"

	if ns != kv.Links {
		return c.next.Get(ctx, ns, key)
	}

	cacheKey := c.prefix + string(key)

	val, err := c.client.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		return val, nil
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "cache lookup failed", slog.String("op", op), slog.Any("err", err))
	}

	val, err = c.next.Get(ctx, ns, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := c.client.Set(ctx, cacheKey, val, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache fill failed", slog.String("op", op), slog.Any("err", err))
	}

	return val, nil
}
