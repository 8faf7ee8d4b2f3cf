// Package aggregation runs aggregation requests against corpus indexes.
package aggregation

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/kailas-cloud/corpusq/internal/db"
	"github.com/kailas-cloud/corpusq/internal/domain"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
	agg "github.com/kailas-cloud/corpusq/internal/domain/search/aggregation"
	"github.com/kailas-cloud/corpusq/internal/domain/search/expr"
	"github.com/kailas-cloud/corpusq/internal/domain/search/filter"
)

// Result property names used in FT.AGGREGATE pipelines.
const (
	propValue  = "value"
	propCount  = "count"
	propBucket = "bucket"
)

// store is the consumer interface for aggregations (ISP).
type store interface {
	Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error)
}

// Repo implements usecase/defaults.Backend.
type Repo struct {
	store store
}

// New creates an aggregation repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Aggregate computes req over the documents of c matching e.
// Date fields are indexed as epoch seconds and reported as epoch milliseconds.
func (r *Repo) Aggregate(
	ctx context.Context, c corpus.Corpus, e expr.Expression, req agg.Request,
) (agg.Raw, error) {
	f, ok := c.FieldByName(req.Field)
	if !ok {
		return agg.Raw{}, domain.NewUnknownField(req.Field)
	}
	isDate := f.FilterType() == field.Date

	q, err := buildQuery(c.Index(), e, req)
	if err != nil {
		return agg.Raw{}, err
	}

	res, err := r.store.Aggregate(ctx, q)
	if err != nil {
		return agg.Raw{}, fmt.Errorf("aggregate %s on %s: %w", req, c.Name(), err)
	}

	switch req.Kind {
	case agg.KindMin, agg.KindMax:
		return parseScalar(res, isDate)
	case agg.KindTerms:
		return parseTerms(res, req.Field), nil
	case agg.KindDateHistogram:
		return parseHistogram(res)
	}
	return agg.Raw{}, fmt.Errorf("unsupported aggregation kind %q", req.Kind)
}

func buildQuery(index string, e expr.Expression, req agg.Request) (*db.AggregateQuery, error) {
	q := &db.AggregateQuery{IndexName: index, Filters: e}

	switch req.Kind {
	case agg.KindMin:
		q.Reducers = []db.Reducer{{Func: db.ReduceMin, Field: req.Field, As: propValue}}

	case agg.KindMax:
		q.Reducers = []db.Reducer{{Func: db.ReduceMax, Field: req.Field, As: propValue}}

	case agg.KindTerms:
		q.GroupBy = []string{req.Field}
		q.Reducers = []db.Reducer{{Func: db.ReduceCount, As: propCount}}
		if req.MinDocCount > 0 {
			q.Having = "@" + propCount + ">=" + strconv.Itoa(req.MinDocCount)
		}
		q.SortBy = []db.SortKey{{Property: propCount, Desc: true}, {Property: req.Field}}
		q.Limit = req.Size

	case agg.KindDateHistogram:
		interval := req.Interval
		if !interval.IsValid() {
			interval = agg.IntervalYear
		}
		q.Load = []string{req.Field}
		q.Apply = []db.Apply{{Expr: fmt.Sprintf("%s(@%s)", interval, req.Field), As: propBucket}}
		q.GroupBy = []string{propBucket}
		q.Reducers = []db.Reducer{{Func: db.ReduceCount, As: propCount}}
		q.SortBy = []db.SortKey{{Property: propBucket}}

	default:
		return nil, fmt.Errorf("unsupported aggregation kind %q", req.Kind)
	}
	return q, nil
}

// parseScalar reads the single row of a GROUPBY 0 pipeline. An empty result set
// yields no row or an infinite value; both mean "no value".
func parseScalar(res *db.AggregateResult, isDate bool) (agg.Raw, error) {
	if len(res.Rows) == 0 {
		return agg.Raw{}, nil
	}
	s, ok := res.Rows[0][propValue]
	if !ok || s == "" {
		return agg.Raw{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return agg.Raw{}, fmt.Errorf("parse %s %q: %w", propValue, s, err)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return agg.Raw{}, nil
	}
	if !isDate {
		return agg.Raw{Value: &v, ValueAsString: s}, nil
	}
	ms := v * 1000
	return agg.Raw{Value: &ms, ValueAsString: formatDay(int64(ms))}, nil
}

func parseTerms(res *db.AggregateResult, fieldName string) agg.Raw {
	buckets := make([]agg.RawBucket, 0, len(res.Rows))
	for _, row := range res.Rows {
		key, ok := row[fieldName]
		if !ok || key == "" {
			continue
		}
		n, _ := strconv.Atoi(row[propCount])
		buckets = append(buckets, agg.RawBucket{Key: key, KeyAsString: key, DocCount: n})
	}
	return agg.Raw{Buckets: buckets}
}

func parseHistogram(res *db.AggregateResult) (agg.Raw, error) {
	buckets := make([]agg.RawBucket, 0, len(res.Rows))
	for _, row := range res.Rows {
		s, ok := row[propBucket]
		if !ok || s == "" {
			continue
		}
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return agg.Raw{}, fmt.Errorf("parse %s %q: %w", propBucket, s, err)
		}
		ms := int64(secs) * 1000
		n, _ := strconv.Atoi(row[propCount])
		buckets = append(buckets, agg.RawBucket{
			Key:         strconv.FormatInt(ms, 10),
			KeyAsString: formatDay(ms),
			DocCount:    n,
		})
	}
	return agg.Raw{Buckets: buckets}, nil
}

func formatDay(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(filter.DateLayout)
}
