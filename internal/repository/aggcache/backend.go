// Package aggcache caches aggregation results in a key-value store.
package aggcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/db"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/search/aggregation"
	"github.com/kailas-cloud/corpusq/internal/domain/search/expr"
)

const cacheKeySegment = "agg_cache:"

// backend is the decorated aggregation backend.
type backend interface {
	Aggregate(ctx context.Context, c corpus.Corpus, e expr.Expression, req aggregation.Request) (aggregation.Raw, error)
}

// store is the consumer interface for the aggregation cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedBackend caches aggregation results for ttl. Cache failures fall through to the inner backend.
type CachedBackend struct {
	inner      backend
	store      store
	ttl        time.Duration
	keyPrefix  string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner backend,
	s store,
	ttl time.Duration,
	keyPrefix string,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedBackend {
	return &CachedBackend{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		keyPrefix:  keyPrefix + cacheKeySegment,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// cachedRaw is the stored form of aggregation.Raw.
type cachedRaw struct {
	Value         *float64       `json:"value,omitempty"`
	ValueAsString string         `json:"value_as_string,omitempty"`
	Buckets       []cachedBucket `json:"buckets,omitempty"`
}

type cachedBucket struct {
	Key         string `json:"key"`
	KeyAsString string `json:"key_as_string,omitempty"`
	DocCount    int    `json:"doc_count"`
}

// Aggregate returns a cached result or calls the inner backend.
// Errors are never cached.
func (c *CachedBackend) Aggregate(
	ctx context.Context, co corpus.Corpus, e expr.Expression, req aggregation.Request,
) (aggregation.Raw, error) {
	key := c.cacheKey(co, e, req)

	if raw, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return raw, nil
	}

	c.incCache("miss")

	raw, err := c.inner.Aggregate(ctx, co, e, req)
	if err != nil {
		return aggregation.Raw{}, fmt.Errorf("aggregate: %w", err)
	}

	c.putToCache(ctx, key, raw)
	return raw, nil
}

func (c *CachedBackend) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedBackend) cacheKey(co corpus.Corpus, e expr.Expression, req aggregation.Request) string {
	h := sha256.Sum256([]byte(co.Index() + "\x00" + e.String() + "\x00" + req.String()))
	return c.keyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedBackend) getFromCache(ctx context.Context, key string) (aggregation.Raw, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached aggregation", zap.String("key", key), zap.Error(err))
		}
		return aggregation.Raw{}, false
	}
	if len(data) == 0 {
		return aggregation.Raw{}, false
	}

	var cr cachedRaw
	if err := json.Unmarshal(data, &cr); err != nil {
		c.logger.Warn("Failed to parse cached aggregation", zap.String("key", key), zap.Error(err))
		return aggregation.Raw{}, false
	}
	return fromCached(cr), true
}

func (c *CachedBackend) putToCache(ctx context.Context, key string, raw aggregation.Raw) {
	data, err := json.Marshal(toCached(raw))
	if err != nil {
		c.logger.Warn("Failed to encode aggregation", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache aggregation", zap.String("key", key), zap.Error(err))
	}
}

func toCached(raw aggregation.Raw) cachedRaw {
	cr := cachedRaw{Value: raw.Value, ValueAsString: raw.ValueAsString}
	for _, b := range raw.Buckets {
		cr.Buckets = append(cr.Buckets, cachedBucket(b))
	}
	return cr
}

func fromCached(cr cachedRaw) aggregation.Raw {
	raw := aggregation.Raw{Value: cr.Value, ValueAsString: cr.ValueAsString}
	for _, b := range cr.Buckets {
		raw.Buckets = append(raw.Buckets, aggregation.RawBucket(b))
	}
	return raw
}
