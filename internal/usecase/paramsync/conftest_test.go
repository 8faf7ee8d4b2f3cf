package paramsync

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
	"github.com/kailas-cloud/corpusq/internal/domain/search/filter"
	"github.com/kailas-cloud/corpusq/internal/domain/search/query"
)

type navigation struct {
	values  url.Values
	replace bool
}

// mockNavigator records navigations and reports them back to the engine like a browser would.
type mockNavigator struct {
	mu     sync.Mutex
	calls  []navigation
	engine *Engine
}

func (n *mockNavigator) Navigate(_ context.Context, v url.Values, replace bool) error {
	n.mu.Lock()
	n.calls = append(n.calls, navigation{values: cloneValues(v), replace: replace})
	eng := n.engine
	n.mu.Unlock()
	if eng != nil {
		eng.URLChanged(v)
	}
	return nil
}

func (n *mockNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *mockNavigator) last() navigation {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		return navigation{}
	}
	return n.calls[len(n.calls)-1]
}

// errorSink collects errors passed to the engine's error handler.
type errorSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *errorSink) handle(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *errorSink) all() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func testCorpus() corpus.Corpus {
	return corpus.Reconstruct("letters", "letters:idx", []field.Field{
		field.Reconstruct("year", field.Range, field.Options{}),
		field.Reconstruct("category", field.MultipleChoice, field.Options{}),
		field.Reconstruct("has_image", field.Boolean, field.Options{}),
	})
}

type harness struct {
	engine *Engine
	model  *query.Model
	nav    *mockNavigator
	errs   *errorSink
}

func newHarness(t *testing.T, window time.Duration, initial string) *harness {
	t.Helper()
	v, err := url.ParseQuery(initial)
	if err != nil {
		t.Fatalf("ParseQuery(%q): %v", initial, err)
	}
	m := query.New(testCorpus())
	nav := &mockNavigator{}
	sink := &errorSink{}
	e := New(m, nav, Options{Window: window, OnError: sink.handle}, zap.NewNop())
	nav.engine = e
	e.Start(v)
	t.Cleanup(func() {
		e.Close()
		m.Dispose()
	})
	return &harness{engine: e, model: m, nav: nav, errs: sink}
}

func (h *harness) filter(t *testing.T, name string) *filter.SearchFilter {
	t.Helper()
	sf, err := h.model.FilterForField(name)
	if err != nil {
		t.Fatal(err)
	}
	return sf
}
