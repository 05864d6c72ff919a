package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/TimothyStephens/magi/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	client *Client
	mock   redismock.ClientMock
	cache  Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.client = NewClientFromUniversal(db, logging.NewNopLogger())
	s.cache = NewRedisCache(s.client, logging.NewNopLogger(), WithPrefix("test:"))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

func (s *CacheTestSuite) TestGet_CacheHit() {
	s.mock.ExpectGet("test:tautomer:AAAA").SetVal(`["AAAA","AAAB"]`)

	var dest []string
	err := s.cache.Get(context.Background(), "tautomer:AAAA", &dest)

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"AAAA", "AAAB"}, dest)
}

func (s *CacheTestSuite) TestGet_CacheMiss() {
	s.mock.ExpectGet("test:key1").RedisNil()

	var dest []string
	err := s.cache.Get(context.Background(), "key1", &dest)

	assert.Equal(s.T(), ErrCacheMiss, err)
	assert.True(s.T(), pkgerrors.IsNotFound(err))
}

func (s *CacheTestSuite) TestGet_RedisError() {
	s.mock.ExpectGet("test:key1").SetErr(fmt.Errorf("connection reset"))

	var dest []string
	err := s.cache.Get(context.Background(), "key1", &dest)

	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestGet_CorruptValue() {
	s.mock.ExpectGet("test:key1").SetVal("{not json")

	var dest []string
	err := s.cache.Get(context.Background(), "key1", &dest)

	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestDelete_Success() {
	s.mock.ExpectDel("test:k1", "test:k2").SetVal(2)

	err := s.cache.Delete(context.Background(), "k1", "k2")
	assert.NoError(s.T(), err)
}

func (s *CacheTestSuite) TestDelete_NoKeys() {
	assert.NoError(s.T(), s.cache.Delete(context.Background()))
}

func (s *CacheTestSuite) TestGetOrSet_Hit() {
	s.mock.ExpectGet("test:key1").SetVal(`["X"]`)

	called := false
	loader := func(ctx context.Context) (interface{}, error) {
		called = true
		return []string{"Y"}, nil
	}

	var dest []string
	err := s.cache.GetOrSet(context.Background(), "key1", &dest, time.Minute, loader)

	assert.NoError(s.T(), err)
	assert.False(s.T(), called)
	assert.Equal(s.T(), []string{"X"}, dest)
}

func (s *CacheTestSuite) TestGetOrSet_LoaderError() {
	s.mock.ExpectGet("test:key1").RedisNil()

	loader := func(ctx context.Context) (interface{}, error) {
		return nil, pkgerrors.New(pkgerrors.ErrCodeStructureFailure, "helper failed")
	}

	var dest []string
	err := s.cache.GetOrSet(context.Background(), "key1", &dest, time.Minute, loader)

	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeStructureFailure))
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func newMiniCache(t *testing.T, opts ...CacheOption) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	client := NewClientFromUniversal(rdb, logging.NewNopLogger())
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, logging.NewNopLogger(), opts...), mr
}

func TestCache_SetStoresJSONWithTTL(t *testing.T) {
	cache, mr := newMiniCache(t, WithPrefix("magi:"), WithoutJitter())
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "tautomer:AAAA", []string{"AAAA", "AAAB"}, time.Hour))

	raw, err := mr.Get("magi:tautomer:AAAA")
	require.NoError(t, err)
	var got []string
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, []string{"AAAA", "AAAB"}, got)
	assert.Equal(t, time.Hour, mr.TTL("magi:tautomer:AAAA"))
}

func TestCache_JitterStaysWithinTenPercent(t *testing.T) {
	cache, mr := newMiniCache(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("k%d", i)
		require.NoError(t, cache.Set(ctx, key, i, 100*time.Second))
		ttl := mr.TTL("magi:" + key)
		assert.GreaterOrEqual(t, ttl, 90*time.Second)
		assert.LessOrEqual(t, ttl, 110*time.Second)
	}
}

func TestCache_DefaultTTL(t *testing.T) {
	cache, mr := newMiniCache(t, WithDefaultTTL(time.Minute), WithoutJitter())

	require.NoError(t, cache.Set(context.Background(), "k", "v", 0))
	assert.Equal(t, time.Minute, mr.TTL("magi:k"))
}

func TestCache_GetOrSetLoadsOnce(t *testing.T) {
	cache, _ := newMiniCache(t)
	ctx := context.Background()

	var calls int32
	loader := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return []string{"BBBB"}, nil
	}

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var dest []string
			assert.NoError(t, cache.GetOrSet(ctx, "tautomer:BBBB", &dest, time.Minute, loader))
			results[i] = dest
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, []string{"BBBB"}, r)
	}
	assert.Less(t, atomic.LoadInt32(&calls), int32(len(results)))

	var cached []string
	require.NoError(t, cache.Get(ctx, "tautomer:BBBB", &cached))
	assert.Equal(t, []string{"BBBB"}, cached)

	before := atomic.LoadInt32(&calls)
	var again []string
	require.NoError(t, cache.GetOrSet(ctx, "tautomer:BBBB", &again, time.Minute, loader))
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestCache_DeleteByPrefix(t *testing.T) {
	cache, mr := newMiniCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "tautomer:A", 1, time.Minute))
	require.NoError(t, cache.Set(ctx, "tautomer:B", 2, time.Minute))
	require.NoError(t, cache.Set(ctx, "other:C", 3, time.Minute))

	n, err := cache.DeleteByPrefix(ctx, "tautomer:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.False(t, mr.Exists("magi:tautomer:A"))
	assert.True(t, mr.Exists("magi:other:C"))
}
