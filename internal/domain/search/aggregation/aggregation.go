// Package aggregation describes backend aggregation requests and parses their results.
//
// Every aggregator is a stateless request/parse pair: the same field and
// parameters always produce the same Request, and Parse never mutates state.
package aggregation

import (
	"errors"
	"fmt"
)

// Kind is the statistic an aggregation computes.
type Kind string

// Supported aggregation kinds.
const (
	KindTerms         Kind = "terms"
	KindMin           Kind = "min"
	KindMax           Kind = "max"
	KindDateHistogram Kind = "date_histogram"
)

// Interval is a calendar bucket width for date histograms.
type Interval string

// Supported histogram intervals.
const (
	IntervalDay   Interval = "day"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// IsValid reports whether the interval is supported.
func (i Interval) IsValid() bool {
	switch i {
	case IntervalDay, IntervalMonth, IntervalYear:
		return true
	}
	return false
}

// DefaultTermsSize is used when a terms aggregation is requested without a size.
const DefaultTermsSize = 10

// ErrNoValue is returned when the backend produced no value, e.g. for an empty result set.
var ErrNoValue = errors.New("aggregation returned no value")

// Request is the backend-neutral aggregation request.
type Request struct {
	Kind        Kind
	Field       string
	Size        int
	MinDocCount int
	Interval    Interval
}

// String returns a stable textual form, usable as a cache key component.
func (r Request) String() string {
	switch r.Kind {
	case KindTerms:
		return fmt.Sprintf("%s(%s,size=%d,min_doc_count=%d)", r.Kind, r.Field, r.Size, r.MinDocCount)
	case KindDateHistogram:
		return fmt.Sprintf("%s(%s,interval=%s)", r.Kind, r.Field, r.Interval)
	}
	return fmt.Sprintf("%s(%s)", r.Kind, r.Field)
}

// RawBucket is one bucket of a backend response.
type RawBucket struct {
	Key         string
	KeyAsString string
	DocCount    int
}

// Raw is the backend-neutral aggregation response.
// Scalar results carry Value (dates as epoch milliseconds), bucket results carry Buckets.
type Raw struct {
	Value         *float64
	ValueAsString string
	Buckets       []RawBucket
}

// TermsResult is one term with its document count.
type TermsResult struct {
	Key      string
	DocCount int
}

// HistogramBucket is one date histogram bucket. Key is the bucket start in epoch milliseconds.
type HistogramBucket struct {
	Key         int64
	KeyAsString string
	DocCount    int
}

// Aggregator turns a statistic over one field into a request and parses its result.
type Aggregator[R any] interface {
	Field() string
	Request() Request
	Parse(raw Raw) (R, error)
}
