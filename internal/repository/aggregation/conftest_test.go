package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/corpusq/internal/db"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	aggregateFn func(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error)
	last        *db.AggregateQuery
}

func (m *mockStore) Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error) {
	m.last = q
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, q)
	}
	return &db.AggregateResult{}, nil
}

func rows(r ...map[string]string) func(context.Context, *db.AggregateQuery) (*db.AggregateResult, error) {
	return func(context.Context, *db.AggregateQuery) (*db.AggregateResult, error) {
		return &db.AggregateResult{Rows: r}, nil
	}
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func testCorpus() corpus.Corpus {
	return corpus.Reconstruct("letters", "letters:idx", []field.Field{
		field.Reconstruct("year", field.Range, field.Options{}),
		field.Reconstruct("date", field.Date, field.Options{}),
		field.Reconstruct("genre", field.MultipleChoice, field.Options{}),
	})
}

func epochMillis(t *testing.T, day string) float64 {
	t.Helper()
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		t.Fatal(err)
	}
	return float64(d.UnixMilli())
}
