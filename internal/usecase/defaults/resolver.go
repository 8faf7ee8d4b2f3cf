// Package defaults resolves filter default data (bounds, option lists and
// counts) lazily through backend aggregations.
package defaults

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
	"github.com/kailas-cloud/corpusq/internal/domain/search/aggregation"
	"github.com/kailas-cloud/corpusq/internal/domain/search/filter"
	"github.com/kailas-cloud/corpusq/internal/domain/search/query"
	"github.com/kailas-cloud/corpusq/internal/metrics"
)

// Options tunes a Resolver.
type Options struct {
	// Timeout bounds a single backend call. Zero means no timeout.
	Timeout time.Duration
	// MaxRPS caps backend calls per second. Zero or less means unlimited.
	MaxRPS float64
	// DefaultOptionCount sizes terms requests for fields without an option count.
	DefaultOptionCount int
	// CoalesceWindow delays option count refreshes after sibling edits.
	CoalesceWindow time.Duration
}

// Resolver populates SearchFilter default data on first activation. One
// Resolver serves one query model; Close cancels everything it started.
type Resolver struct {
	backend Backend
	opts    Options
	logger  *zap.Logger

	group singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inflight map[string]*inflightCall
	counters map[string]*OptionCounter
	nextCall uint64
	closed   bool
}

type inflightCall struct {
	id     uint64
	cancel context.CancelFunc
}

// New creates a resolver over backend.
func New(backend Backend, opts Options, logger *zap.Logger) *Resolver {
	if opts.DefaultOptionCount <= 0 {
		opts.DefaultOptionCount = aggregation.DefaultTermsSize
	}
	limit := rate.Inf
	burst := 0
	if opts.MaxRPS > 0 {
		limit = rate.Limit(opts.MaxRPS)
		burst = max(1, int(opts.MaxRPS))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		backend: limitedBackend{
			inner:   backend,
			limiter: rate.NewLimiter(limit, burst),
			timeout: opts.Timeout,
		},
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]*inflightCall),
		counters: make(map[string]*OptionCounter),
	}
}

// Activate resolves the default data of a filter when its widget becomes active.
// A filter whose default is already present costs no backend call. Concurrent
// activations of the same field share one resolution. On failure the default
// stays unresolved and a later activation retries.
func (r *Resolver) Activate(ctx context.Context, m *query.Model, name string) error {
	sf, err := m.FilterForField(name)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	var counter *OptionCounter
	switch sf.FilterType() {
	case field.Range, field.Date:
	case field.MultipleChoice:
		// Counts follow sibling edits from the first activation on.
		if counter, err = r.WatchOptions(m, name); err != nil {
			return fmt.Errorf("activate: %w", err)
		}
	default:
		return nil
	}
	if sf.HasDefault() {
		metrics.DefaultCacheTotal.WithLabelValues("hit").Inc()
		return nil
	}
	metrics.DefaultCacheTotal.WithLabelValues("miss").Inc()

	ch := r.group.DoChan(name, func() (any, error) {
		if sf.HasDefault() {
			return nil, nil
		}
		fctx, done, err := r.track(name)
		if err != nil {
			return nil, err
		}
		defer done()
		return nil, r.resolve(fctx, m, sf, counter)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			r.logger.Warn("Filter default resolution failed",
				zap.String("field", name),
				zap.Error(res.Err),
			)
			return fmt.Errorf("resolve %q: %w", name, res.Err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("resolve %q: %w", name, ctx.Err())
	}
}

func (r *Resolver) resolve(
	ctx context.Context, m *query.Model, sf *filter.SearchFilter, counter *OptionCounter,
) error {
	// The first count is a request of the counter so a sibling edit made while
	// it is in flight supersedes it.
	var gen uint64
	if counter != nil {
		gen = counter.begin(counter.signature(), nil)
	}

	ex, err := m.ExcludingFilter(sf.Name())
	if err != nil {
		return err //nolint:wrapcheck // UnknownFieldError carries the field
	}

	var def filter.Data
	var counts []filter.OptionCount

	switch sf.FilterType() {
	case field.Range:
		lo, hi, err := minMax(ctx, r.backend, ex, aggregation.Min(sf.Name()), aggregation.Max(sf.Name()))
		if err != nil {
			return err
		}
		def = filter.RangeData{Min: lo, Max: hi}
	case field.Date:
		lo, hi, err := minMax(ctx, r.backend, ex, aggregation.MinDate(sf.Name()), aggregation.MaxDate(sf.Name()))
		if err != nil {
			return err
		}
		def = filter.DateData{Min: lo, Max: hi}
	case field.MultipleChoice:
		counts, err = r.countOptions(ctx, ex, sf)
		if err != nil {
			counter.settle(gen, nil, err)
			return err
		}
		def = filter.MultipleChoiceData{Options: optionValues(counts)}
	}

	// A torn down field must not be mutated by a late response.
	if ctx.Err() != nil || sf.Disposed() {
		metrics.StaleResponsesTotal.Inc()
		return fmt.Errorf("field %q torn down: %w", sf.Name(), context.Canceled)
	}

	stored, err := sf.SetDefaultData(def)
	if err != nil {
		return fmt.Errorf("store default: %w", err)
	}
	if !stored {
		r.logger.Debug("Redundant filter default resolution", zap.String("field", sf.Name()))
	}
	if counter != nil && !counter.settle(gen, counts, nil) {
		r.logger.Debug("Superseded option counts dropped", zap.String("field", sf.Name()))
	}
	return nil
}

// countOptions runs a terms aggregation sized to the field's option count and
// returns the options sorted by label.
func (r *Resolver) countOptions(
	ctx context.Context, ex *query.Model, sf *filter.SearchFilter,
) ([]filter.OptionCount, error) {
	size := sf.Field().Options().OptionCount
	if size <= 0 {
		size = r.opts.DefaultOptionCount
	}
	terms, err := Run(ctx, r.backend, ex, aggregation.Terms(sf.Name(), size, 0))
	if err != nil {
		return nil, err
	}
	counts := make([]filter.OptionCount, len(terms))
	for i, t := range terms {
		counts[i] = filter.OptionCount{Label: t.Key, Value: t.Key, DocCount: t.DocCount}
	}
	slices.SortStableFunc(counts, func(a, b filter.OptionCount) int {
		return cmp.Compare(a.Label, b.Label)
	})
	return counts, nil
}

func optionValues(counts []filter.OptionCount) []string {
	out := make([]string, len(counts))
	for i, c := range counts {
		out[i] = c.Value
	}
	return out
}

// track registers a cancellable context for in-flight work on a field.
// The returned func unregisters it.
func (r *Resolver) track(name string) (context.Context, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, fmt.Errorf("resolver closed: %w", context.Canceled)
	}
	ctx, cancel := context.WithCancel(r.ctx)
	r.nextCall++
	call := &inflightCall{id: r.nextCall, cancel: cancel}
	r.inflight[name] = call
	return ctx, func() {
		cancel()
		r.mu.Lock()
		if cur, ok := r.inflight[name]; ok && cur.id == call.id {
			delete(r.inflight, name)
		}
		r.mu.Unlock()
	}, nil
}

// Teardown cancels in-flight work for a field and stops its option counter.
func (r *Resolver) Teardown(name string) {
	r.mu.Lock()
	call := r.inflight[name]
	delete(r.inflight, name)
	counter := r.counters[name]
	delete(r.counters, name)
	r.mu.Unlock()

	if call != nil {
		call.cancel()
	}
	if counter != nil {
		counter.Close()
	}
}

// Close cancels all in-flight work and stops every option counter.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	counters := make([]*OptionCounter, 0, len(r.counters))
	for _, c := range r.counters {
		counters = append(counters, c)
	}
	clear(r.counters)
	clear(r.inflight)
	r.mu.Unlock()

	r.cancel()
	for _, c := range counters {
		c.Close()
	}
}
