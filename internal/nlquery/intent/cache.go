// internal/nlquery/intent/cache.go
package intent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"budget-nlq/internal/common/logger"
	"budget-nlq/internal/common/metrics"
	"budget-nlq/internal/nlquery/schema"
)

const cacheKeyPrefix = "nlq:intent:"

// cacheStore is the consumer interface of the intent cache.
type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// CachedExtractor caches model extractions in Redis. Only the model path
// is worth caching; rule extraction is cheaper than the round trip. Cached
// intents are keyed by normalized query text and catalog version, so a
// catalog change invalidates every entry at once.
type CachedExtractor struct {
	inner   Extractor
	store   cacheStore
	version string
	ttl     time.Duration
	logger  logger.Logger
}

func NewCachedExtractor(inner Extractor, store cacheStore, catalogVersion string, ttl time.Duration, log logger.Logger) *CachedExtractor {
	return &CachedExtractor{
		inner:   inner,
		store:   store,
		version: catalogVersion,
		ttl:     ttl,
		logger:  log.WithFields(map[string]interface{}{"component": "intent-cache"}),
	}
}

func (c *CachedExtractor) ExtractIntent(ctx context.Context, query string) (*ParsedIntent, error) {
	key := c.cacheKey(query)

	if cached, ok := c.getFromCache(ctx, key); ok {
		metrics.ExtractorCacheTotal.WithLabelValues("hit").Inc()
		// The cached entry describes a different literal query with the
		// same normalization; keep the caller's original text.
		cached.Intent = query
		return cached, nil
	}
	metrics.ExtractorCacheTotal.WithLabelValues("miss").Inc()

	parsed, err := c.inner.ExtractIntent(ctx, query)
	if err != nil {
		return nil, err
	}

	c.putToCache(ctx, key, parsed)
	return parsed, nil
}

func (c *CachedExtractor) cacheKey(query string) string {
	h := sha256.Sum256([]byte(c.version + "|" + schema.NormalizeText(query)))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedExtractor) getFromCache(ctx context.Context, key string) (*ParsedIntent, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("intent cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}

	var parsed ParsedIntent
	if err := json.Unmarshal([]byte(data), &parsed); err != nil {
		c.logger.Warn("discarding corrupt intent cache entry", map[string]interface{}{"key": key})
		return nil, false
	}
	if parsed.Validate() != nil {
		return nil, false
	}
	return &parsed, true
}

func (c *CachedExtractor) putToCache(ctx context.Context, key string, parsed *ParsedIntent) {
	data, err := json.Marshal(parsed)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Warn("intent cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
