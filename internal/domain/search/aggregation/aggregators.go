package aggregation

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

type terms struct {
	field       string
	size        int
	minDocCount int
}

// Terms requests up to size most frequent values of field, ordered by document count.
// The result keeps backend order; display sorting is the caller's job.
func Terms(field string, size, minDocCount int) Aggregator[[]TermsResult] {
	if size <= 0 {
		size = DefaultTermsSize
	}
	if minDocCount < 0 {
		minDocCount = 0
	}
	return terms{field: field, size: size, minDocCount: minDocCount}
}

func (a terms) Field() string { return a.field }

func (a terms) Request() Request {
	return Request{Kind: KindTerms, Field: a.field, Size: a.size, MinDocCount: a.minDocCount}
}

func (a terms) Parse(raw Raw) ([]TermsResult, error) {
	out := make([]TermsResult, 0, len(raw.Buckets))
	for _, b := range raw.Buckets {
		out = append(out, TermsResult{Key: b.Key, DocCount: b.DocCount})
	}
	return out, nil
}

type scalar struct {
	field string
	kind  Kind
}

// Min requests the smallest numeric value of field.
func Min(field string) Aggregator[float64] { return scalar{field: field, kind: KindMin} }

// Max requests the largest numeric value of field.
func Max(field string) Aggregator[float64] { return scalar{field: field, kind: KindMax} }

func (a scalar) Field() string { return a.field }

func (a scalar) Request() Request { return Request{Kind: a.kind, Field: a.field} }

func (a scalar) Parse(raw Raw) (float64, error) {
	return value(raw)
}

type dateScalar struct {
	scalar
}

// MinDate requests the earliest date of field.
func MinDate(field string) Aggregator[time.Time] {
	return dateScalar{scalar{field: field, kind: KindMin}}
}

// MaxDate requests the latest date of field.
func MaxDate(field string) Aggregator[time.Time] {
	return dateScalar{scalar{field: field, kind: KindMax}}
}

func (a dateScalar) Parse(raw Raw) (time.Time, error) {
	v, err := value(raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(v)).UTC(), nil
}

type histogram struct {
	field    string
	interval Interval
}

// DateHistogram requests document counts per calendar interval. Invalid intervals fall back to year.
func DateHistogram(field string, interval Interval) Aggregator[[]HistogramBucket] {
	if !interval.IsValid() {
		interval = IntervalYear
	}
	return histogram{field: field, interval: interval}
}

func (a histogram) Field() string { return a.field }

func (a histogram) Request() Request {
	return Request{Kind: KindDateHistogram, Field: a.field, Interval: a.interval}
}

func (a histogram) Parse(raw Raw) ([]HistogramBucket, error) {
	out := make([]HistogramBucket, 0, len(raw.Buckets))
	for _, b := range raw.Buckets {
		key, err := strconv.ParseInt(b.Key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse bucket key %q: %w", b.Key, err)
		}
		out = append(out, HistogramBucket{Key: key, KeyAsString: b.KeyAsString, DocCount: b.DocCount})
	}
	return out, nil
}

func value(raw Raw) (float64, error) {
	if raw.Value == nil {
		return 0, ErrNoValue
	}
	if math.IsNaN(*raw.Value) || math.IsInf(*raw.Value, 0) {
		return 0, fmt.Errorf("non-finite aggregation value %v", *raw.Value)
	}
	return *raw.Value, nil
}
