package aggcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/db"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
	"github.com/kailas-cloud/corpusq/internal/domain/search/aggregation"
	"github.com/kailas-cloud/corpusq/internal/domain/search/expr"
)

type mockBackend struct {
	raw   aggregation.Raw
	err   error
	calls int
}

func (m *mockBackend) Aggregate(
	_ context.Context, _ corpus.Corpus, _ expr.Expression, _ aggregation.Request,
) (aggregation.Raw, error) {
	m.calls++
	return m.raw, m.err
}

// mockKVStore is an in-memory store recording TTLs.
type mockKVStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	ttls  map[string]time.Duration
	getFn func(ctx context.Context, key string) ([]byte, error)
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKVStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
		m.ttls = make(map[string]time.Duration)
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func testCorpus() corpus.Corpus {
	return corpus.Reconstruct("letters", "letters:idx", []field.Field{
		field.Reconstruct("year", field.Range, field.Options{}),
		field.Reconstruct("genre", field.MultipleChoice, field.Options{}),
	})
}

func newTestCache(t *testing.T, inner *mockBackend) (*CachedBackend, *mockKVStore, *prometheus.CounterVec) {
	t.Helper()
	ms := &mockKVStore{}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	return New(inner, ms, time.Minute, "corpusq:", total, zap.NewNop()), ms, total
}
