package defaults

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/corpusq/internal/domain"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/search/aggregation"
	"github.com/kailas-cloud/corpusq/internal/domain/search/expr"
	"github.com/kailas-cloud/corpusq/internal/domain/search/query"
	"github.com/kailas-cloud/corpusq/internal/metrics"
)

// Run executes one aggregator against the documents matching m.
// Every failure is returned as an AggregationError.
func Run[R any](
	ctx context.Context, b Backend, m *query.Model, agg aggregation.Aggregator[R],
) (R, error) {
	var zero R
	req := agg.Request()
	kind := string(req.Kind)

	e, err := m.Expression()
	if err != nil {
		return zero, domain.NewAggregationFailure(agg.Field(), kind, fmt.Errorf("build expression: %w", err))
	}

	start := time.Now()
	raw, err := b.Aggregate(ctx, m.Corpus(), e, req)
	metrics.AggregationRequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AggregationRequestsTotal.WithLabelValues(kind, "error").Inc()
		return zero, domain.NewAggregationFailure(agg.Field(), kind, err)
	}

	res, err := agg.Parse(raw)
	if err != nil {
		metrics.AggregationRequestsTotal.WithLabelValues(kind, "error").Inc()
		return zero, domain.NewAggregationFailure(agg.Field(), kind, err)
	}
	metrics.AggregationRequestsTotal.WithLabelValues(kind, "ok").Inc()
	return res, nil
}

// minMax runs both scalar aggregators concurrently and fails if either fails.
func minMax[T any](
	ctx context.Context, b Backend, m *query.Model,
	lo, hi aggregation.Aggregator[T],
) (T, T, error) {
	var minVal, maxVal T
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := Run(gctx, b, m, lo)
		minVal = v
		return err
	})
	g.Go(func() error {
		v, err := Run(gctx, b, m, hi)
		maxVal = v
		return err
	})
	if err := g.Wait(); err != nil {
		return minVal, maxVal, err //nolint:wrapcheck // already an AggregationError
	}
	return minVal, maxVal, nil
}

// limitedBackend bounds every call by a timeout and a shared rate limit.
type limitedBackend struct {
	inner   Backend
	limiter *rate.Limiter
	timeout time.Duration
}

func (b limitedBackend) Aggregate(
	ctx context.Context, c corpus.Corpus,
	e expr.Expression, req aggregation.Request,
) (aggregation.Raw, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return aggregation.Raw{}, fmt.Errorf("rate limit: %w", err)
	}
	raw, err := b.inner.Aggregate(ctx, c, e, req)
	if err != nil {
		return aggregation.Raw{}, fmt.Errorf("aggregate: %w", err)
	}
	return raw, nil
}
