// Package corpusindex manages the FT index that backs a corpus.
package corpusindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/corpusq/internal/db"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
)

// ValueSeparator separates the values of multi-valued fields in stored documents.
const ValueSeparator = ","

// store is the consumer interface for index management (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo creates and drops corpus indexes.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a corpus index repository. Documents of corpus c live under keyPrefix + c.Name() + ":".
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// DocumentPrefix returns the key prefix of the corpus documents.
func (r *Repo) DocumentPrefix(c corpus.Corpus) string {
	return r.keyPrefix + c.Name() + ":"
}

// Ensure creates the corpus index unless it exists. Reports whether it was created.
func (r *Repo) Ensure(ctx context.Context, c corpus.Corpus) (bool, error) {
	exists, err := r.store.IndexExists(ctx, c.Index())
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", c.Index(), err)
	}
	if exists {
		return false, nil
	}

	def, err := buildIndex(c, r.DocumentPrefix(c))
	if err != nil {
		return false, fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		// Lost a race with another instance.
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %w", c.Index(), err)
	}
	return true, nil
}

// Rebuild drops and recreates the corpus index, e.g. after the field set changed.
// Documents are kept; the server re-indexes them.
func (r *Repo) Rebuild(ctx context.Context, c corpus.Corpus) error {
	if err := r.store.DropIndex(ctx, c.Index()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", c.Index(), err)
	}
	def, err := buildIndex(c, r.DocumentPrefix(c))
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", c.Index(), err)
	}
	return nil
}

// buildIndex creates an IndexDefinition from corpus fields. Filter fields are
// SORTABLE so aggregations read them from the index.
func buildIndex(c corpus.Corpus, prefix string) (*db.IndexDefinition, error) {
	b := db.NewIndex(c.Index()).OnHash().Prefix(prefix)

	for _, f := range c.Fields() {
		switch f.FilterType() {
		case field.Boolean:
			b.Tag(f.Name()).Sortable()
		case field.MultipleChoice, field.Tag:
			b.TagWithOpts(f.Name(), ValueSeparator, true).Sortable()
		case field.Range, field.Date:
			b.Numeric(f.Name()).Sortable()
		case field.None:
			b.Text(f.Name())
		default:
			return nil, fmt.Errorf("unknown filter type: %s", f.FilterType())
		}
	}

	return b.Build()
}
