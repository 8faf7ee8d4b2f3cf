package view

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/domain"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/search/query"
	"github.com/kailas-cloud/corpusq/internal/metrics"
	"github.com/kailas-cloud/corpusq/internal/usecase/defaults"
)

// Service is the registry of open search views.
type Service struct {
	corpora []corpus.Corpus
	backend defaults.Backend
	opts    Options
	logger  *zap.Logger

	mu    sync.RWMutex
	views map[string]*View
}

// New creates a view service over the configured corpora.
func New(corpora []corpus.Corpus, backend defaults.Backend, opts Options, logger *zap.Logger) *Service {
	return &Service{
		corpora: corpora,
		backend: backend,
		opts:    opts,
		logger:  logger,
		views:   make(map[string]*View),
	}
}

// Corpora returns the configured corpora.
func (s *Service) Corpora() []corpus.Corpus {
	return slices.Clone(s.corpora)
}

// Corpus looks a corpus up by name.
func (s *Service) Corpus(name string) (corpus.Corpus, error) {
	for _, c := range s.corpora {
		if c.Name() == name {
			return c, nil
		}
	}
	return corpus.Corpus{}, fmt.Errorf("corpus %q: %w", name, domain.ErrNotFound)
}

// Open creates a view over a corpus, starting at location initial.
func (s *Service) Open(corpusName string, initial url.Values) (*View, error) {
	c, err := s.Corpus(corpusName)
	if err != nil {
		return nil, err
	}
	v, err := open(uuid.NewString(), c, s.backend, initial, s.opts, s.logger)
	if err != nil {
		return nil, fmt.Errorf("open view: %w", err)
	}

	s.mu.Lock()
	s.views[v.ID()] = v
	s.mu.Unlock()
	metrics.OpenViews.Inc()

	s.logger.Info("View opened", zap.String("view_id", v.ID()), zap.String("corpus", corpusName))
	return v, nil
}

// Get returns an open view.
func (s *Service) Get(id string) (*View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[id]
	if !ok {
		return nil, fmt.Errorf("view %q: %w", id, domain.ErrNotFound)
	}
	return v, nil
}

// List returns open views ordered by creation time.
func (s *Service) List() []*View {
	s.mu.RLock()
	out := make([]*View, 0, len(s.views))
	for _, v := range s.views {
		out = append(out, v)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b *View) int {
		return cmp.Or(a.createdAt.Compare(b.createdAt), cmp.Compare(a.id, b.id))
	})
	return out
}

// CloseView tears a view down and forgets it.
func (s *Service) CloseView(id string) error {
	s.mu.Lock()
	v, ok := s.views[id]
	delete(s.views, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("view %q: %w", id, domain.ErrNotFound)
	}
	v.Close()
	metrics.OpenViews.Dec()
	return nil
}

// Close tears down every open view.
func (s *Service) Close() {
	s.mu.Lock()
	views := s.views
	s.views = make(map[string]*View)
	s.mu.Unlock()
	for _, v := range views {
		v.Close()
		metrics.OpenViews.Dec()
	}
}

// Canonicalize parses a location against a corpus and renders it canonically:
// legacy keys rewritten, the corpus keys re-encoded from the parsed state and
// every other key kept. Malformed values are dropped and reported.
func (s *Service) Canonicalize(corpusName string, loc url.Values) (url.Values, error) {
	c, err := s.Corpus(corpusName)
	if err != nil {
		return nil, err
	}
	return Canonicalize(c, loc)
}

// Canonicalize is Service.Canonicalize for a known corpus.
func Canonicalize(c corpus.Corpus, loc url.Values) (url.Values, error) {
	m := query.New(c)
	defer m.Dispose()

	loc, _ = query.RewriteLegacy(loc)
	applyErr := m.ApplyParams(m.Relevant(loc))

	out := make(url.Values, len(loc))
	for k, vals := range loc {
		if !m.IsRelevant(k) {
			out[k] = append([]string(nil), vals...)
		}
	}
	for k, v := range m.Params() {
		out.Set(k, v)
	}
	return out, applyErr
}
