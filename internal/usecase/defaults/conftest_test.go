package defaults

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
	"github.com/kailas-cloud/corpusq/internal/domain/search/aggregation"
	"github.com/kailas-cloud/corpusq/internal/domain/search/expr"
	"github.com/kailas-cloud/corpusq/internal/domain/search/query"
)

type call struct {
	req  aggregation.Request
	expr expr.Expression
}

// mockBackend implements Backend and records every request.
type mockBackend struct {
	mu    sync.Mutex
	calls []call

	aggregateFn func(ctx context.Context, e expr.Expression, req aggregation.Request) (aggregation.Raw, error)
}

func (m *mockBackend) Aggregate(
	ctx context.Context, _ corpus.Corpus,
	e expr.Expression, req aggregation.Request,
) (aggregation.Raw, error) {
	m.mu.Lock()
	m.calls = append(m.calls, call{req: req, expr: e})
	m.mu.Unlock()
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, e, req)
	}
	return aggregation.Raw{}, nil
}

func (m *mockBackend) count(kind aggregation.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.req.Kind == kind {
			n++
		}
	}
	return n
}

func (m *mockBackend) recorded() []call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]call, len(m.calls))
	copy(out, m.calls)
	return out
}

func value(v float64) *float64 { return &v }

// boundsBackend answers min/max with fixed values and terms with fixed buckets.
func boundsBackend(lo, hi float64, buckets ...aggregation.RawBucket) *mockBackend {
	return &mockBackend{
		aggregateFn: func(_ context.Context, _ expr.Expression, req aggregation.Request) (aggregation.Raw, error) {
			switch req.Kind {
			case aggregation.KindMin:
				return aggregation.Raw{Value: value(lo)}, nil
			case aggregation.KindMax:
				return aggregation.Raw{Value: value(hi)}, nil
			}
			return aggregation.Raw{Buckets: buckets}, nil
		},
	}
}

func testCorpus() corpus.Corpus {
	return corpus.Reconstruct("letters", "letters:idx", []field.Field{
		field.Reconstruct("year", field.Range, field.Options{}),
		field.Reconstruct("date", field.Date, field.Options{}),
		field.Reconstruct("category", field.MultipleChoice, field.Options{OptionCount: 25}),
		field.Reconstruct("language", field.MultipleChoice, field.Options{}),
		field.Reconstruct("has_image", field.Boolean, field.Options{}),
	})
}

func newTestResolver(t *testing.T, b Backend, opts Options) (*Resolver, *query.Model) {
	t.Helper()
	if opts.CoalesceWindow == 0 {
		opts.CoalesceWindow = 10 * time.Millisecond
	}
	r := New(b, opts, zap.NewNop())
	m := query.New(testCorpus())
	t.Cleanup(func() {
		r.Close()
		m.Dispose()
	})
	return r, m
}
