package view

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
	"github.com/kailas-cloud/corpusq/internal/domain/search/aggregation"
	"github.com/kailas-cloud/corpusq/internal/domain/search/expr"
)

// mockBackend answers min/max with fixed bounds and terms with fixed buckets.
type mockBackend struct {
	mu    sync.Mutex
	calls map[aggregation.Kind]int

	lo, hi  float64
	buckets []aggregation.RawBucket
	err     error
}

func (m *mockBackend) Aggregate(
	_ context.Context, _ corpus.Corpus, _ expr.Expression, req aggregation.Request,
) (aggregation.Raw, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[aggregation.Kind]int)
	}
	m.calls[req.Kind]++
	m.mu.Unlock()

	if m.err != nil {
		return aggregation.Raw{}, m.err
	}
	switch req.Kind {
	case aggregation.KindMin:
		v := m.lo
		return aggregation.Raw{Value: &v}, nil
	case aggregation.KindMax:
		v := m.hi
		return aggregation.Raw{Value: &v}, nil
	}
	return aggregation.Raw{Buckets: m.buckets}, nil
}

func (m *mockBackend) count(kind aggregation.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[kind]
}

func testCorpus() corpus.Corpus {
	return corpus.Reconstruct("letters", "letters:idx", []field.Field{
		field.Reconstruct("content", field.None, field.Options{}),
		field.Reconstruct("year", field.Range, field.Options{}),
		field.Reconstruct("category", field.MultipleChoice, field.Options{OptionCount: 5}),
		field.Reconstruct("has_image", field.Boolean, field.Options{}),
	})
}

func newTestService(t *testing.T, backend *mockBackend) *Service {
	t.Helper()
	return newTestServiceWith(t, backend, Options{SyncWindow: time.Hour})
}

func newTestServiceWith(t *testing.T, backend *mockBackend, opts Options) *Service {
	t.Helper()
	s := New([]corpus.Corpus{testCorpus()}, backend, opts, zap.NewNop())
	t.Cleanup(s.Close)
	return s
}

func mustQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("ParseQuery(%q): %v", raw, err)
	}
	return v
}
