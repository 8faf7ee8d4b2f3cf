package defaults

import (
	"context"

	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/search/aggregation"
	"github.com/kailas-cloud/corpusq/internal/domain/search/expr"
)

// Backend runs one aggregation over the documents of a corpus matching an expression.
type Backend interface {
	Aggregate(
		ctx context.Context, c corpus.Corpus,
		e expr.Expression, req aggregation.Request,
	) (aggregation.Raw, error)
}
