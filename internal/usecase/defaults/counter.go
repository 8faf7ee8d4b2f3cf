package defaults

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
	"github.com/kailas-cloud/corpusq/internal/domain/search/filter"
	"github.com/kailas-cloud/corpusq/internal/domain/search/query"
	"github.com/kailas-cloud/corpusq/internal/metrics"
)

// OptionCounter keeps the option counts of one multiple-choice filter in step
// with its sibling filters. Counts depend on what the other filters restrict
// results to, so every change of the filter-excluding query schedules one
// terms request after a coalescing window. Every request, including the one
// issued on first activation, takes a generation; only the response of the
// newest generation reaches the filter, and nothing does after teardown.
type OptionCounter struct {
	r      *Resolver
	m      *query.Model
	sf     *filter.SearchFilter
	window time.Duration
	logger *zap.Logger

	notify  chan struct{}
	results chan countResult
	stop    chan struct{}
	done    chan struct{}
	unsub   func()
	once    sync.Once

	mu       sync.Mutex
	gen      uint64
	counted  string
	inflight context.CancelFunc
}

type countResult struct {
	gen    uint64
	counts []filter.OptionCount
	err    error
}

// WatchOptions starts an option counter for a multiple-choice field. A field
// already watched keeps its existing counter.
func (r *Resolver) WatchOptions(m *query.Model, name string) (*OptionCounter, error) {
	sf, err := m.FilterForField(name)
	if err != nil {
		return nil, fmt.Errorf("watch options: %w", err)
	}
	if sf.FilterType() != field.MultipleChoice {
		return nil, fmt.Errorf("watch options: %q is a %s filter", name, sf.FilterType())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("watch options: resolver closed: %w", context.Canceled)
	}
	if c, ok := r.counters[name]; ok {
		return c, nil
	}

	c := &OptionCounter{
		r:       r,
		m:       m,
		sf:      sf,
		window:  r.opts.CoalesceWindow,
		logger:  r.logger.With(zap.String("field", name)),
		notify:  make(chan struct{}, 1),
		results: make(chan countResult, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.counted = c.signature()
	if sf.HasDefault() {
		// Watched again after a teardown: the stored counts may be stale.
		c.counted = ""
		c.notify <- struct{}{}
	}
	c.unsub = m.Subscribe(c.changed)
	r.counters[name] = c
	go c.run()
	return c, nil
}

// changed runs on the mutating goroutine and never blocks.
func (c *OptionCounter) changed() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// signature identifies the filter-excluding query: the model params minus this filter's key.
func (c *OptionCounter) signature() string {
	p := c.m.Params()
	delete(p, c.sf.Name())
	return p.String()
}

func (c *OptionCounter) run() {
	defer close(c.done)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		c.mu.Lock()
		if c.inflight != nil {
			c.inflight()
		}
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.stop:
			return

		case <-c.notify:
			if fire == nil {
				timer = time.NewTimer(c.window)
				fire = timer.C
			}

		case <-fire:
			fire = nil
			c.refresh()

		case res := <-c.results:
			c.apply(res)
		}
	}
}

// begin supersedes any in-flight request and returns the generation of a new
// one counting the filter-excluding query identified by sig.
func (c *OptionCounter) begin(sig string, cancel context.CancelFunc) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight != nil {
		c.inflight()
	}
	c.gen++
	c.counted = sig
	c.inflight = cancel
	return c.gen
}

// refresh starts a terms request if the filter-excluding query changed since the last count.
func (c *OptionCounter) refresh() {
	if c.sf.Disposed() {
		return
	}
	sig := c.signature()
	c.mu.Lock()
	unchanged := sig == c.counted
	c.mu.Unlock()
	if unchanged {
		return
	}

	ctx, cancel := context.WithCancel(c.r.ctx)
	gen := c.begin(sig, cancel)
	ex, err := c.m.ExcludingFilter(c.sf.Name())
	if err != nil {
		cancel()
		c.logger.Error("Build filter-excluding query", zap.Error(err))
		return
	}

	go func() {
		defer cancel()
		counts, err := c.r.countOptions(ctx, ex, c.sf)
		select {
		case c.results <- countResult{gen: gen, counts: counts, err: err}:
		case <-c.done:
		}
	}()
}

func (c *OptionCounter) apply(res countResult) {
	if res.err != nil && c.current(res.gen) {
		c.logger.Warn("Option count refresh failed", zap.Error(res.err))
	}
	c.settle(res.gen, res.counts, res.err)
}

func (c *OptionCounter) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// settle stores the counts of generation gen unless a newer request has
// started or the filter is gone. Reports whether the counts were stored.
func (c *OptionCounter) settle(gen uint64, counts []filter.OptionCount, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.sf.Disposed() {
		metrics.StaleResponsesTotal.Inc()
		return false
	}
	c.inflight = nil
	if err != nil {
		c.counted = ""
		return false
	}
	c.sf.SetOptionCounts(counts)
	return true
}

// Close stops the counter and cancels its in-flight request. Safe to call more than once.
func (c *OptionCounter) Close() {
	c.once.Do(func() {
		c.unsub()
		close(c.stop)
	})
	<-c.done
}
