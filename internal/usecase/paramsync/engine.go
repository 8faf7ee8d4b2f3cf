// Package paramsync keeps a query model and the URL query parameters in step.
//
// Two sources feed the engine: model changes (state to params) and location
// changes (params to state). Both are coalesced over a fixed window that starts
// at the first event of a burst; only the last value observed in a window is
// acted upon. Deep equality against the last synchronized params breaks the
// navigation/echo loop, and the model version recorded after applying URL params
// keeps state read from the URL from being written back.
package paramsync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/domain"
	"github.com/kailas-cloud/corpusq/internal/domain/search/query"
	"github.com/kailas-cloud/corpusq/internal/metrics"
)

// DefaultWindow is the coalescing window used when none is configured.
const DefaultWindow = 100 * time.Millisecond

const maxFlushRounds = 4

// Options tunes an Engine.
type Options struct {
	Window  time.Duration
	OnError ErrorHandler
}

// Engine is the bidirectional pump between a Model and the location. Its state
// is owned by a single loop goroutine; inputs only signal it.
type Engine struct {
	model   Model
	nav     Navigator
	window  time.Duration
	onError ErrorHandler
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	stateCh chan struct{}
	urlCh   chan struct{}
	flushCh chan chan struct{}
	stop    chan struct{}
	done    chan struct{}

	urlMu      sync.Mutex
	pendingURL url.Values

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
	unsub     func()

	// owned by the loop after Start
	latestURL      url.Values
	lastPushed     query.Params
	appliedVersion uint64
}

// New creates an engine. Call Start to begin synchronizing.
func New(m Model, nav Navigator, opts Options, logger *zap.Logger) *Engine {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		model:   m,
		nav:     nav,
		window:  opts.Window,
		onError: opts.OnError,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		stateCh: make(chan struct{}, 1),
		urlCh:   make(chan struct{}, 1),
		flushCh: make(chan chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start applies the initial location synchronously and starts the loop.
func (e *Engine) Start(initial url.Values) {
	e.startOnce.Do(func() {
		e.latestURL = url.Values{}
		e.lastPushed = query.Params{}
		e.pull(initial)
		e.unsub = e.model.Subscribe(e.stateChanged)
		e.started.Store(true)
		go e.run()
	})
}

// URLChanged reports a new location. Never blocks; the last reported value wins.
func (e *Engine) URLChanged(v url.Values) {
	e.urlMu.Lock()
	e.pendingURL = cloneValues(v)
	e.urlMu.Unlock()
	signal(e.urlCh)
}

func (e *Engine) stateChanged() { signal(e.stateCh) }

// Flush acts on pending events immediately instead of waiting for their window,
// including the echoes its own navigations cause.
func (e *Engine) Flush() {
	if !e.started.Load() {
		return
	}
	ack := make(chan struct{})
	select {
	case e.flushCh <- ack:
		<-ack
	case <-e.done:
	}
}

// Close stops the loop and waits for it to exit. Pending events are dropped.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.unsub != nil {
			e.unsub()
		}
		e.cancel()
		close(e.stop)
	})
	e.startOnce.Do(func() { close(e.done) })
	<-e.done
}

func (e *Engine) run() {
	defer close(e.done)

	var stateTimer, urlTimer *time.Timer
	var stateFire, urlFire <-chan time.Time
	stopTimers := func() {
		if stateTimer != nil {
			stateTimer.Stop()
		}
		if urlTimer != nil {
			urlTimer.Stop()
		}
		stateFire, urlFire = nil, nil
	}
	defer stopTimers()

	for {
		select {
		case <-e.stop:
			return

		case <-e.stateCh:
			if stateFire == nil {
				stateTimer = time.NewTimer(e.window)
				stateFire = stateTimer.C
			}

		case <-e.urlCh:
			if urlFire == nil {
				urlTimer = time.NewTimer(e.window)
				urlFire = urlTimer.C
			}

		case <-stateFire:
			stateFire = nil
			e.pushState()

		case <-urlFire:
			urlFire = nil
			e.pullPending()

		case ack := <-e.flushCh:
			for range maxFlushRounds {
				urlDue := urlFire != nil || drain(e.urlCh)
				stateDue := stateFire != nil || drain(e.stateCh)
				if !urlDue && !stateDue {
					break
				}
				stopTimers()
				if urlDue {
					e.pullPending()
				}
				if stateDue {
					e.pushState()
				}
			}
			close(ack)
		}
	}
}

// pushState publishes the model params if they differ from the last synchronized ones.
func (e *Engine) pushState() {
	if e.model.Version() == e.appliedVersion {
		// The state is exactly what the last URL produced.
		return
	}
	desired := e.model.Params()
	if desired.Equal(e.lastPushed) {
		metrics.NavigationsSuppressedTotal.Inc()
		return
	}

	next := merge(e.latestURL, desired, e.model.Relevant(e.latestURL))
	if err := e.nav.Navigate(e.ctx, next, false); err != nil {
		e.logger.Error("Navigation failed", zap.Error(err))
		e.onError(fmt.Errorf("navigate: %w", err))
		return
	}
	metrics.NavigationsTotal.WithLabelValues("push").Inc()
	e.logger.Debug("Pushed state to URL", zap.String("params", desired.String()))

	e.lastPushed = desired
	e.latestURL = next
}

func (e *Engine) pullPending() {
	e.urlMu.Lock()
	v := e.pendingURL
	e.pendingURL = nil
	e.urlMu.Unlock()
	if v == nil {
		return
	}
	e.pull(v)
}

// pull reconciles the model with a location. It never pushes back what it applied.
func (e *Engine) pull(v url.Values) {
	if v == nil {
		v = url.Values{}
	}
	if canonical, rewritten := query.RewriteLegacy(v); rewritten {
		v = canonical
		if err := e.nav.Navigate(e.ctx, v, true); err != nil {
			e.logger.Error("Legacy param rewrite failed", zap.Error(err))
			e.onError(fmt.Errorf("navigate: %w", err))
		} else {
			metrics.NavigationsTotal.WithLabelValues("legacy_rewrite").Inc()
		}
	}
	e.latestURL = v

	relevant := e.model.Relevant(v)
	if relevant.Equal(e.lastPushed) || relevant.Equal(e.model.Params()) {
		metrics.URLEchoesTotal.Inc()
		e.lastPushed = relevant
		return
	}

	err := e.model.ApplyParams(relevant)
	e.lastPushed = relevant
	e.appliedVersion = e.model.Version()
	if err != nil {
		e.report(err)
	}
}

func (e *Engine) report(err error) {
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	for _, err := range errs {
		var mpe *domain.MalformedParamError
		if errors.As(err, &mpe) {
			metrics.MalformedParamsTotal.WithLabelValues(mpe.Key).Inc()
			e.logger.Warn("Malformed URL parameter",
				zap.String("key", mpe.Key),
				zap.String("value", mpe.Value),
				zap.Error(mpe.Err),
			)
		} else {
			e.logger.Error("Apply URL params", zap.Error(err))
		}
		e.onError(err)
	}
}

// merge replaces the model's keys in base with p: keys the model no longer
// produces are removed, everything else in base is preserved.
func merge(base url.Values, p query.Params, stale query.Params) url.Values {
	next := cloneValues(base)
	for k := range stale {
		next.Del(k)
	}
	for k, v := range p {
		next.Set(k, v)
	}
	return next
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func drain(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
