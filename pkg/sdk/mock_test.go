package corpusq

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/corpusq/internal/db"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/search/aggregation"
	"github.com/kailas-cloud/corpusq/internal/domain/search/expr"
)

// --- db.Store fake ---

type fakeStore struct {
	mu      sync.Mutex
	pingErr error
	kv      map[string][]byte
	indexes map[string]*db.IndexDefinition
	closed  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{kv: make(map[string][]byte), indexes: make(map[string]*db.IndexDefinition)}
}

func (s *fakeStore) Ping(_ context.Context) error { return s.pingErr }

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (s *fakeStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return nil
}

func (s *fakeStore) SetWithTTL(ctx context.Context, key string, value []byte, _ time.Duration) error {
	return s.Set(ctx, key, value)
}

func (s *fakeStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}

func (s *fakeStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	s.indexes[def.Name] = def
	return nil
}

func (s *fakeStore) DropIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; !ok {
		return db.ErrIndexNotFound
	}
	delete(s.indexes, name)
	return nil
}

func (s *fakeStore) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.indexes[name]
	return ok, nil
}

func (s *fakeStore) Aggregate(_ context.Context, _ *db.AggregateQuery) (*db.AggregateResult, error) {
	return &db.AggregateResult{}, nil
}

func (s *fakeStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeStore) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// --- aggregation backend mock ---

type mockBackend struct {
	mu    sync.Mutex
	calls int
	lo    float64
	hi    float64
}

func (m *mockBackend) Aggregate(
	_ context.Context, _ corpus.Corpus, _ expr.Expression, req aggregation.Request,
) (aggregation.Raw, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	switch req.Kind {
	case aggregation.KindMin:
		v := m.lo
		return aggregation.Raw{Value: &v}, nil
	case aggregation.KindMax:
		v := m.hi
		return aggregation.Raw{Value: &v}, nil
	}
	return aggregation.Raw{}, nil
}

func (m *mockBackend) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
