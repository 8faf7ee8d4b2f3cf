// Package view composes the query model, location history, param sync engine
// and default resolver of one search view, scoped to the view's lifetime.
package view

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/domain"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/search/filter"
	"github.com/kailas-cloud/corpusq/internal/domain/search/query"
	"github.com/kailas-cloud/corpusq/internal/usecase/defaults"
	"github.com/kailas-cloud/corpusq/internal/usecase/paramsync"
)

// maxRecentErrors caps the recoverable errors kept per view.
const maxRecentErrors = 16

// Options tunes the views a Service opens.
type Options struct {
	SyncWindow time.Duration
	Defaults   defaults.Options
}

// View is one search view: everything it owns is torn down by Close.
type View struct {
	id        string
	createdAt time.Time
	model     *query.Model
	history   *History
	engine    *paramsync.Engine
	resolver  *defaults.Resolver
	logger    *zap.Logger
	unlisten  func()

	mu     sync.Mutex
	closed bool
	errs   []error
}

// State is a consistent snapshot of a view.
type State struct {
	ID        string
	Corpus    string
	CreatedAt time.Time
	Location  url.Values
	QueryText string
	Sort      query.Sort
	Highlight int
	Filters   []filter.Snapshot
	Errors    []error
	CanBack   bool
	CanFwd    bool
}

// QueryUpdate changes the model-level settings of a view. Nil fields are left unchanged.
type QueryUpdate struct {
	Text      *string
	Sort      *query.Sort
	Highlight *int
}

func open(
	id string, c corpus.Corpus, backend defaults.Backend,
	initial url.Values, opts Options, logger *zap.Logger,
) (*View, error) {
	logger = logger.With(zap.String("view_id", id), zap.String("corpus", c.Name()))
	if opts.Defaults.CoalesceWindow == 0 {
		opts.Defaults.CoalesceWindow = opts.SyncWindow
	}

	v := &View{
		id:        id,
		createdAt: time.Now().UTC(),
		model:     query.New(c),
		history:   NewHistory(initial),
		resolver:  defaults.New(backend, opts.Defaults, logger),
		logger:    logger,
	}
	v.engine = paramsync.New(v.model, v.history, paramsync.Options{
		Window:  opts.SyncWindow,
		OnError: v.recordError,
	}, logger)
	v.unlisten = v.history.Listen(v.engine.URLChanged)
	v.engine.Start(initial)
	return v, nil
}

// ID returns the view id.
func (v *View) ID() string { return v.id }

// Corpus returns the name of the corpus the view searches.
func (v *View) Corpus() string { return v.model.Corpus().Name() }

// Model returns the view's query model.
func (v *View) Model() *query.Model { return v.model }

// History returns the view's location history.
func (v *View) History() *History { return v.history }

func (v *View) recordError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errs = append(v.errs, err)
	if len(v.errs) > maxRecentErrors {
		v.errs = v.errs[len(v.errs)-maxRecentErrors:]
	}
}

func (v *View) check() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return domain.ErrViewClosed
	}
	return nil
}

// Settle runs pending synchronization now so the location reflects the state.
func (v *View) Settle() { v.engine.Flush() }

// State settles the view and returns a snapshot.
func (v *View) State() State {
	v.Settle()
	filters := v.model.Filters()
	snaps := make([]filter.Snapshot, len(filters))
	for i, sf := range filters {
		snaps[i] = sf.Snapshot()
	}
	highlight, _ := v.model.Highlight()

	v.mu.Lock()
	errs := append([]error(nil), v.errs...)
	v.mu.Unlock()

	idx, n := v.history.Index(), v.history.Len()
	return State{
		ID:        v.id,
		Corpus:    v.model.Corpus().Name(),
		CreatedAt: v.createdAt,
		Location:  v.history.Location(),
		QueryText: v.model.QueryText(),
		Sort:      v.model.Sort(),
		Highlight: highlight,
		Filters:   snaps,
		Errors:    errs,
		CanBack:   idx > 0,
		CanFwd:    idx < n-1,
	}
}

// UpdateQuery applies model-level settings.
func (v *View) UpdateQuery(u QueryUpdate) error {
	if err := v.check(); err != nil {
		return err
	}
	if u.Sort != nil {
		if err := v.model.SetSort(*u.Sort); err != nil {
			return fmt.Errorf("set sort: %w", err)
		}
	}
	if u.Highlight != nil {
		if err := v.model.SetHighlight(*u.Highlight); err != nil {
			return fmt.Errorf("set highlight: %w", err)
		}
	}
	if u.Text != nil {
		v.model.SetQueryText(*u.Text)
	}
	return nil
}

// SetFilter sets a filter value as a widget would.
func (v *View) SetFilter(name string, d filter.Data) error {
	if err := v.check(); err != nil {
		return err
	}
	sf, err := v.model.FilterForField(name)
	if err != nil {
		return err //nolint:wrapcheck // UnknownFieldError carries the field
	}
	if err := sf.Set(d); err != nil {
		return err //nolint:wrapcheck // InvalidFilterDataError carries the field
	}
	return nil
}

// ClearFilter returns a filter to its inert value.
func (v *View) ClearFilter(name string) error {
	if err := v.check(); err != nil {
		return err
	}
	sf, err := v.model.FilterForField(name)
	if err != nil {
		return err //nolint:wrapcheck // UnknownFieldError carries the field
	}
	sf.Deactivate()
	return nil
}

// Activate resolves a filter's default data, as when its widget opens.
func (v *View) Activate(ctx context.Context, name string) error {
	if err := v.check(); err != nil {
		return err
	}
	if err := v.resolver.Activate(ctx, v.model, name); err != nil {
		return fmt.Errorf("activate %q: %w", name, err)
	}
	return nil
}

// Dismiss is called when a filter's widget goes away. In-flight resolution
// for the field is cancelled and its option counts stop following sibling
// edits until the next Activate. The filter value is kept.
func (v *View) Dismiss(name string) error {
	if err := v.check(); err != nil {
		return err
	}
	if _, err := v.model.FilterForField(name); err != nil {
		return err //nolint:wrapcheck // UnknownFieldError carries the field
	}
	v.resolver.Teardown(name)
	return nil
}

// Navigate moves to an externally supplied location, e.g. a pasted link.
func (v *View) Navigate(loc url.Values) error {
	if err := v.check(); err != nil {
		return err
	}
	v.history.Push(loc)
	return nil
}

// Back goes one entry back in the view's history.
func (v *View) Back() (bool, error) {
	if err := v.check(); err != nil {
		return false, err
	}
	v.Settle()
	return v.history.Back(), nil
}

// Forward goes one entry forward in the view's history.
func (v *View) Forward() (bool, error) {
	if err := v.check(); err != nil {
		return false, err
	}
	v.Settle()
	return v.history.Forward(), nil
}

// Close tears the view down: in-flight aggregations are cancelled, the sync
// loop exits and every filter is disposed. Safe to call more than once.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	v.unlisten()
	v.engine.Close()
	v.resolver.Close()
	v.model.Dispose()
	v.logger.Debug("View closed")
}
