// Package query holds the query model: the aggregate root of a search view.
package query

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/corpusq/internal/domain"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/search/expr"
	"github.com/kailas-cloud/corpusq/internal/domain/search/filter"
)

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort orders results by a corpus field. The zero value sorts by relevance.
type Sort struct {
	Field     string
	Direction Direction
}

// IsZero reports whether the sort is the default relevance order.
func (s Sort) IsZero() bool { return s.Field == "" }

// Model is the query state of one search view: free text, one filter per
// filterable field, sort and highlight settings. Safe for concurrent use.
type Model struct {
	corpus  corpus.Corpus
	filters []*filter.SearchFilter
	byName  map[string]*filter.SearchFilter

	mu        sync.RWMutex
	queryText string
	sort      Sort
	highlight int // fragment size, 0 when unset
	disposed  bool

	version atomic.Uint64

	subsMu  sync.Mutex
	subs    map[int]func()
	nextSub int
}

// New creates a model with an inactive filter for every filterable field of c.
func New(c corpus.Corpus) *Model {
	m := newModel(c)
	for _, f := range c.FilterableFields() {
		sf, err := filter.New(f)
		if err != nil {
			continue
		}
		m.add(sf)
	}
	return m
}

func newModel(c corpus.Corpus) *Model {
	return &Model{
		corpus: c,
		byName: make(map[string]*filter.SearchFilter),
		subs:   make(map[int]func()),
	}
}

func (m *Model) add(sf *filter.SearchFilter) {
	sf.OnChange(m.changed)
	m.filters = append(m.filters, sf)
	m.byName[sf.Name()] = sf
}

// Corpus returns the corpus the model queries.
func (m *Model) Corpus() corpus.Corpus { return m.corpus }

// Version returns a counter that grows on every state change.
func (m *Model) Version() uint64 { return m.version.Load() }

// Subscribe registers fn to run after every state change. The returned func unsubscribes.
// Listeners run on the mutating goroutine and must not block.
func (m *Model) Subscribe(fn func()) func() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subsMu.Lock()
		delete(m.subs, id)
		m.subsMu.Unlock()
	}
}

func (m *Model) changed() {
	m.version.Add(1)
	m.subsMu.Lock()
	fns := make([]func(), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subsMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// FilterForField returns the filter of a filterable field.
func (m *Model) FilterForField(name string) (*filter.SearchFilter, error) {
	sf, ok := m.byName[name]
	if !ok {
		return nil, domain.NewUnknownField(name)
	}
	return sf, nil
}

// Filters returns all filters in corpus declaration order.
func (m *Model) Filters() []*filter.SearchFilter {
	out := make([]*filter.SearchFilter, len(m.filters))
	copy(out, m.filters)
	return out
}

// ActiveFilters returns the filters that currently constrain the query.
func (m *Model) ActiveFilters() []*filter.SearchFilter {
	var out []*filter.SearchFilter
	for _, sf := range m.filters {
		if sf.Active() {
			out = append(out, sf)
		}
	}
	return out
}

// QueryText returns the free-text query.
func (m *Model) QueryText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryText
}

// SetQueryText replaces the free-text query.
func (m *Model) SetQueryText(text string) {
	m.mu.Lock()
	if m.disposed || m.queryText == text {
		m.mu.Unlock()
		return
	}
	m.queryText = text
	m.mu.Unlock()
	m.changed()
}

// Sort returns the current sort.
func (m *Model) Sort() Sort {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sort
}

// SetSort changes the result order. The zero Sort restores relevance order.
func (m *Model) SetSort(s Sort) error {
	if err := m.validateSort(s); err != nil {
		return err
	}
	if !s.IsZero() && s.Direction == "" {
		s.Direction = Asc
	}
	m.mu.Lock()
	if m.disposed || m.sort == s {
		m.mu.Unlock()
		return nil
	}
	m.sort = s
	m.mu.Unlock()
	m.changed()
	return nil
}

func (m *Model) validateSort(s Sort) error {
	if s.IsZero() {
		return nil
	}
	if _, ok := m.corpus.FieldByName(s.Field); !ok {
		return domain.NewUnknownField(s.Field)
	}
	switch s.Direction {
	case "", Asc, Desc:
		return nil
	}
	return fmt.Errorf("invalid sort direction %q", s.Direction)
}

// Highlight returns the highlight fragment size and whether highlighting is on.
func (m *Model) Highlight() (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.highlight, m.highlight > 0
}

// SetHighlight sets the highlight fragment size. Zero turns highlighting off.
func (m *Model) SetHighlight(size int) error {
	if size < 0 {
		return fmt.Errorf("highlight fragment size must be positive, got %d", size)
	}
	m.mu.Lock()
	if m.disposed || m.highlight == size {
		m.mu.Unlock()
		return nil
	}
	m.highlight = size
	m.mu.Unlock()
	m.changed()
	return nil
}

// Clone returns a deep copy with its own change hooks and no subscribers.
func (m *Model) Clone() *Model {
	c := newModel(m.corpus)
	for _, sf := range m.filters {
		c.add(sf.Clone())
	}
	m.mu.RLock()
	c.queryText = m.queryText
	c.sort = m.sort
	c.highlight = m.highlight
	m.mu.RUnlock()
	c.version.Store(m.version.Load())
	return c
}

// ExcludingFilter returns a clone with the named filter deactivated: the query
// the other filters restrict results to, ignoring this one.
func (m *Model) ExcludingFilter(name string) (*Model, error) {
	if _, err := m.FilterForField(name); err != nil {
		return nil, err
	}
	c := m.Clone()
	c.byName[name].Deactivate()
	return c, nil
}

// Expression builds the backend-neutral constraint expression from the active filters.
func (m *Model) Expression() (expr.Expression, error) {
	var conds []expr.Condition
	for _, sf := range m.ActiveFilters() {
		cond, err := condition(sf.Name(), sf.CurrentData())
		if err != nil {
			return expr.Expression{}, fmt.Errorf("filter %q: %w", sf.Name(), err)
		}
		conds = append(conds, cond)
	}
	return expr.New(m.QueryText(), conds)
}

func condition(name string, d filter.Data) (expr.Condition, error) {
	switch v := d.(type) {
	case filter.BooleanData:
		return expr.NewAnyOf(name, strconv.FormatBool(v.Checked))
	case filter.RangeData:
		return expr.NewRange(name, v.Min, v.Max)
	case filter.DateData:
		// Dates are indexed as epoch seconds; the upper day is inclusive.
		upper := filter.Day(v.Max).AddDate(0, 0, 1).Add(-time.Second)
		return expr.NewRange(name, float64(filter.Day(v.Min).Unix()), float64(upper.Unix()))
	case filter.MultipleChoiceData:
		return expr.NewAnyOf(name, v.Selected...)
	case filter.TagData:
		vals := make([]string, len(v.Tags))
		for i, id := range v.Tags {
			vals[i] = strconv.Itoa(id)
		}
		return expr.NewAnyOf(name, vals...)
	}
	return expr.Condition{}, fmt.Errorf("unsupported filter data %T", d)
}

// Dispose tears down the model and all its filters. Later mutations are ignored.
func (m *Model) Dispose() {
	m.mu.Lock()
	m.disposed = true
	m.mu.Unlock()
	for _, sf := range m.filters {
		sf.Dispose()
	}
	m.subsMu.Lock()
	clear(m.subs)
	m.subsMu.Unlock()
}
