package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/pkg/errors"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeNotFound, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "serialization failed")
)

// Loader computes a value on a cache miss.
type Loader func(ctx context.Context) (interface{}, error)

// Cache is a prefixed JSON value cache.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// GetOrSet reads key into dest, or runs loader once per key across
	// concurrent callers, stores its result and decodes it into dest.
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader Loader) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

type redisCache struct {
	client       *Client
	logger       logging.Logger
	prefix       string
	defaultTTL   time.Duration
	jitter       bool
	singleflight singleflight.Group
}

type CacheOption func(*redisCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *redisCache) { c.prefix = prefix }
}

func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.defaultTTL = ttl }
}

// WithoutJitter stores entries with their exact TTL.
func WithoutJitter() CacheOption {
	return func(c *redisCache) { c.jitter = false }
}

// NewRedisCache returns a Cache with prefix "magi:", a 24h TTL and
// jitter, each of which opts can override.
func NewRedisCache(client *Client, log logging.Logger, opts ...CacheOption) Cache {
	c := &redisCache{client: client, logger: log, prefix: "magi:", defaultTTL: 24 * time.Hour, jitter: true}
	if c.logger == nil {
		c.logger = logging.NewNopLogger()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *redisCache) keys(keys ...string) []string {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return full
}

// expiry resolves a zero ttl to the default and spreads it by up to 10%
// either way so entries written together do not expire together.
func (c *redisCache) expiry(ttl time.Duration) time.Duration {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if c.jitter && ttl > 0 {
		ttl += time.Duration((rand.Float64()*0.2 - 0.1) * float64(ttl))
	}
	return ttl
}

func encodeErr(key string, err error) error {
	return ErrSerializationFailed.WithDetail("key=" + key).WithCause(err)
}

func (c *redisCache) raw(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	switch {
	case err == redis.Nil:
		return nil, ErrCacheMiss
	case err != nil:
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "cache read failed")
	}
	return data, nil
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.raw(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return encodeErr(key, err)
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return encodeErr(key, err)
	}
	return c.store(ctx, key, data, ttl)
}

func (c *redisCache) store(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, data, c.expiry(ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache write failed")
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, c.keys(keys...)...).Err()
}

// GetOrSet shares one loader call among concurrent misses on key. The
// loaded value is stored best-effort: a failed write is logged and the
// value is still returned.
func (c *redisCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader Loader) error {
	data, err := c.raw(ctx, key)
	if err == ErrCacheMiss {
		var shared interface{}
		shared, err, _ = c.singleflight.Do(key, func() (interface{}, error) {
			v, err := loader(ctx)
			if err != nil {
				return nil, err
			}
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, encodeErr(key, err)
			}
			if err := c.store(ctx, key, encoded, ttl); err != nil {
				c.logger.Warn("cache fill failed", logging.String("key", key), logging.Err(err))
			}
			return encoded, nil
		})
		if err == nil {
			data = shared.([]byte)
		}
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return encodeErr(key, err)
	}
	return nil
}

// DeleteByPrefix removes every key under prefix, one scan page at a time,
// and returns how many it deleted.
func (c *redisCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	var deleted int64
	pattern := c.prefix + prefix + "*"
	for cursor := uint64(0); ; {
		page, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, err
		}
		if len(page) > 0 {
			n, err := c.client.Del(ctx, page...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		if cursor = next; cursor == 0 {
			return deleted, nil
		}
	}
}
