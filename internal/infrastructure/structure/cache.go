package structure

import (
	"context"
	"time"

	"github.com/TimothyStephens/magi/internal/domain/compound"
	"github.com/TimothyStephens/magi/internal/infrastructure/database/redis"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
)

// CacheKeyPrefix namespaces tautomer lists inside the configured Redis prefix.
const CacheKeyPrefix = "tautomer:"

// CachedFinder serves tautomer lists from Redis and asks the Enumerator on a
// miss.  Only successful enumerations are stored.
type CachedFinder struct {
	inner  Enumerator
	cache  redis.Cache
	ttl    time.Duration
	logger logging.Logger
}

func NewCachedFinder(inner Enumerator, cache redis.Cache, ttl time.Duration, logger logging.Logger) *CachedFinder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CachedFinder{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

// Tautomers implements connect.TautomerFinder.
func (f *CachedFinder) Tautomers(ctx context.Context, c compound.Compound) ([]string, error) {
	var (
		keys    []string
		loadErr error
	)
	err := f.cache.GetOrSet(ctx, CacheKeyPrefix+c.InChIKey, &keys, f.ttl, func(ctx context.Context) (interface{}, error) {
		k, err := f.inner.Enumerate(ctx, c)
		loadErr = err
		return k, err
	})
	switch {
	case err == nil:
		return keys, nil
	case loadErr != nil:
		return f.degrade(ctx, c, loadErr)
	}

	f.logger.Warn("tautomer cache unavailable", logging.String("inchi_key", c.InChIKey), logging.Err(err))
	keys, err = f.inner.Enumerate(ctx, c)
	if err != nil {
		return f.degrade(ctx, c, err)
	}
	return keys, nil
}

func (f *CachedFinder) degrade(ctx context.Context, c compound.Compound, err error) ([]string, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.logger.Warn("tautomer enumeration failed; using compound skeleton",
		logging.String("inchi_key", c.InChIKey), logging.Err(err))
	return fallback(c), nil
}
