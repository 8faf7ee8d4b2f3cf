package corpusindex

import (
	"context"
	"testing"

	"github.com/kailas-cloud/corpusq/internal/db"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)

	created []*db.IndexDefinition
	dropped []string
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	m.created = append(m.created, def)
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	m.dropped = append(m.dropped, name)
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "corpusq:"), ms
}

func testCorpus() corpus.Corpus {
	return corpus.Reconstruct("letters", "letters:idx", []field.Field{
		field.Reconstruct("content", field.None, field.Options{}),
		field.Reconstruct("has_image", field.Boolean, field.Options{}),
		field.Reconstruct("year", field.Range, field.Options{}),
		field.Reconstruct("date", field.Date, field.Options{}),
		field.Reconstruct("genre", field.MultipleChoice, field.Options{}),
		field.Reconstruct("persons", field.Tag, field.Options{}),
	})
}
