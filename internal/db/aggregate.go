package db

import (
	"errors"

	"github.com/kailas-cloud/corpusq/internal/domain/search/expr"
)

// ReduceFunc is a GROUPBY reducer.
type ReduceFunc string

const (
	// ReduceCount counts the rows of a group.
	ReduceCount ReduceFunc = "COUNT"
	// ReduceMin takes the smallest value of a property.
	ReduceMin ReduceFunc = "MIN"
	// ReduceMax takes the largest value of a property.
	ReduceMax ReduceFunc = "MAX"
)

// Reducer computes one property per group. Field is empty for COUNT.
type Reducer struct {
	Func  ReduceFunc
	Field string
	As    string
}

// Apply computes a property from an expression over loaded fields, e.g. year(@date).
type Apply struct {
	Expr string
	As   string
}

// SortKey orders result rows by a property.
type SortKey struct {
	Property string
	Desc     bool
}

// AggregateQuery is the input for FT.AGGREGATE.
// An empty GroupBy groups every matching document into a single row.
type AggregateQuery struct {
	IndexName string
	Filters   expr.Expression
	Load      []string
	Apply     []Apply
	GroupBy   []string
	Reducers  []Reducer
	SortBy    []SortKey
	// Having is a post-group FILTER expression, e.g. "@count>=2".
	Having string
	// Limit caps the returned rows. Zero means the server default.
	Limit int
}

// AggregateResult is the output of an aggregation: one property map per row.
type AggregateResult struct {
	Rows []map[string]string
}

// Validate checks that the query is well-formed.
func (q *AggregateQuery) Validate() error {
	if q.IndexName == "" {
		return errors.New("index name is required")
	}
	if len(q.Reducers) == 0 {
		return errors.New("at least one reducer is required")
	}
	for _, r := range q.Reducers {
		if r.As == "" {
			return errors.New("reducer alias is required")
		}
		if r.Func != ReduceCount && r.Field == "" {
			return errors.New("reducer " + string(r.Func) + " requires a field")
		}
	}
	for _, a := range q.Apply {
		if a.Expr == "" || a.As == "" {
			return errors.New("apply requires an expression and an alias")
		}
	}
	if q.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}
