package corpusq

import "github.com/kailas-cloud/corpusq/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound           = domain.ErrNotFound
	ErrInvalidConfig      = domain.ErrInvalidConfig
	ErrViewClosed         = domain.ErrViewClosed
	ErrInvalidFilterData  = domain.ErrInvalidFilterData
	ErrUnknownField       = domain.ErrUnknownField
	ErrMalformedParam     = domain.ErrMalformedParam
	ErrAggregationFailure = domain.ErrAggregationFailure
)
