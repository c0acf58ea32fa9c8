package intent

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget-nlq/internal/common/logger"
)

type redisStore struct {
	client *redis.Client
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *redisStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func newCacheFixture(t *testing.T, inner Extractor) (*CachedExtractor, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cached := NewCachedExtractor(inner, &redisStore{client: client}, "2024.2", time.Minute, logger.NewTestLogger(t))
	return cached, srv
}

func TestCachedExtractor_HitSkipsInner(t *testing.T) {
	inner := &fakeExtractor{parsed: modelIntent(0.8)}
	cached, _ := newCacheFixture(t, inner)
	ctx := context.Background()

	first, err := cached.ExtractIntent(ctx, "תברים פעילים")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	second, err := cached.ExtractIntent(ctx, "תברים פעילים")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "second call must be served from cache")
	assert.Equal(t, first.Domain, second.Domain)
	assert.Equal(t, first.Filters, second.Filters)
}

func TestCachedExtractor_NormalizedKeysShareEntries(t *testing.T) {
	inner := &fakeExtractor{parsed: modelIntent(0.8)}
	cached, _ := newCacheFixture(t, inner)
	ctx := context.Background()

	_, err := cached.ExtractIntent(ctx, `תב"רים פעילים`)
	require.NoError(t, err)

	// Same query with typographic gershayim normalizes to the same key.
	parsed, err := cached.ExtractIntent(ctx, `תב״רים פעילים`)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, `תב״רים פעילים`, parsed.Intent, "cached entry must carry the caller's text")
}

func TestCachedExtractor_ErrorNotCached(t *testing.T) {
	inner := &fakeExtractor{err: assert.AnError}
	cached, srv := newCacheFixture(t, inner)

	_, err := cached.ExtractIntent(context.Background(), "תברים")
	require.Error(t, err)
	assert.Empty(t, srv.Keys())
}

func TestCachedExtractor_CorruptEntryIgnored(t *testing.T) {
	inner := &fakeExtractor{parsed: modelIntent(0.8)}
	cached, srv := newCacheFixture(t, inner)
	ctx := context.Background()

	key := cached.cacheKey("תברים פעילים")
	require.NoError(t, srv.Set(key, "{not json"))

	parsed, err := cached.ExtractIntent(ctx, "תברים פעילים")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "corrupt entry must fall through to the extractor")
	assert.Equal(t, "tabarim", parsed.Domain)
}

func TestCachedExtractor_EntriesExpire(t *testing.T) {
	inner := &fakeExtractor{parsed: modelIntent(0.8)}
	cached, srv := newCacheFixture(t, inner)
	ctx := context.Background()

	_, err := cached.ExtractIntent(ctx, "תברים פעילים")
	require.NoError(t, err)

	srv.FastForward(2 * time.Minute)

	_, err = cached.ExtractIntent(ctx, "תברים פעילים")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}
