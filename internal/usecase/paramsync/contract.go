package paramsync

import (
	"context"
	"net/url"

	"github.com/kailas-cloud/corpusq/internal/domain/search/query"
)

// Navigator moves the location to v. Replace rewrites the current history
// entry instead of adding one. A navigation is expected to be reported back
// through Engine.URLChanged.
type Navigator interface {
	Navigate(ctx context.Context, v url.Values, replace bool) error
}

// Model is the query state the engine keeps in step with the URL.
type Model interface {
	Version() uint64
	Params() query.Params
	Relevant(v url.Values) query.Params
	ApplyParams(p query.Params) error
	Subscribe(fn func()) func()
}

// ErrorHandler receives recoverable errors, e.g. malformed URL parameters.
type ErrorHandler func(err error)
