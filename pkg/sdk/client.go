package corpusq

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/db"
	dbRedis "github.com/kailas-cloud/corpusq/internal/db/redis"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/repository/aggcache"
	"github.com/kailas-cloud/corpusq/internal/repository/aggregation"
	"github.com/kailas-cloud/corpusq/internal/repository/corpusindex"
	"github.com/kailas-cloud/corpusq/internal/usecase/defaults"
	healthuc "github.com/kailas-cloud/corpusq/internal/usecase/health"
	viewuc "github.com/kailas-cloud/corpusq/internal/usecase/view"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the corpusq SDK entry point.
type Client struct {
	store     db.Store
	views     *viewuc.Service
	indexes   *corpusindex.Repo
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("corpusq: database address required (use WithRedis)")
	}
	corpora, err := buildCorpora(cfg.corpora)
	if err != nil {
		return nil, err
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Username: cfg.username,
		Password: cfg.password,
		DB:       cfg.db,
	})
	if err != nil {
		return nil, fmt.Errorf("corpusq: create redis store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("corpusq: database not ready: %w", err)
	}

	c := wireClient(store, aggregation.New(store), corpora, cfg, obs)
	if cfg.ensureIndexes {
		if err := c.EnsureIndexes(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func buildCorpora(decls []Corpus) ([]corpus.Corpus, error) {
	out := make([]corpus.Corpus, 0, len(decls))
	seen := make(map[string]bool, len(decls))
	for _, d := range decls {
		if seen[d.Name] {
			return nil, fmt.Errorf("corpusq: duplicate corpus %q: %w", d.Name, ErrInvalidConfig)
		}
		seen[d.Name] = true
		c, err := corpusToDomain(d)
		if err != nil {
			return nil, fmt.Errorf("corpusq: corpus %q: %w", d.Name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func wireClient(
	store db.Store, backend defaults.Backend, corpora []corpus.Corpus,
	cfg *clientConfig, obs *observer,
) *Client {
	if cfg.cacheTTL > 0 {
		backend = aggcache.New(backend, store, cfg.cacheTTL, cfg.keyPrefix, nil, zap.NewNop())
	}

	views := viewuc.New(corpora, backend, viewuc.Options{
		SyncWindow: cfg.syncWindow,
		Defaults: defaults.Options{
			Timeout:            cfg.aggTimeout,
			MaxRPS:             cfg.maxRPS,
			DefaultOptionCount: cfg.defaultOptionCount,
		},
	}, zap.NewNop())

	names := make([]string, len(corpora))
	for i, c := range corpora {
		names[i] = c.Index()
	}

	return &Client{
		store:     store,
		views:     views,
		indexes:   corpusindex.New(store, cfg.keyPrefix),
		healthSvc: healthuc.New(store, store, names...),
		obs:       obs,
	}
}

// Close tears down every open view and releases the connection.
func (c *Client) Close() {
	c.views.Close()
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Corpora returns the declared corpora.
func (c *Client) Corpora() []Corpus {
	corpora := c.views.Corpora()
	out := make([]Corpus, len(corpora))
	for i, dc := range corpora {
		out[i] = corpusFromDomain(dc)
	}
	return out
}

// EnsureIndexes creates the index of every declared corpus that lacks one.
func (c *Client) EnsureIndexes(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ensure_indexes", start, err) }()

	for _, dc := range c.views.Corpora() {
		if _, err = c.indexes.Ensure(ctx, dc); err != nil {
			return fmt.Errorf("ensure index %q: %w", dc.Index(), err)
		}
	}
	return nil
}

// DocumentPrefix returns the key prefix documents of a corpus must be stored under.
func (c *Client) DocumentPrefix(corpusName string) (string, error) {
	dc, err := c.views.Corpus(corpusName)
	if err != nil {
		return "", err //nolint:wrapcheck // ErrNotFound carries the corpus
	}
	return c.indexes.DocumentPrefix(dc), nil
}

// Canonicalize renders a query string the way a view of the corpus would
// write it back. Malformed values are dropped and returned joined in err;
// the canonical string is valid either way.
func (c *Client) Canonicalize(corpusName, rawQuery string) (string, error) {
	loc, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("parse query string: %w", err)
	}
	out, err := c.views.Canonicalize(corpusName, loc)
	if out == nil {
		return "", err //nolint:wrapcheck // ErrNotFound carries the corpus
	}
	return out.Encode(), err //nolint:wrapcheck // joined MalformedParamErrors
}

// OpenView opens a search view over a corpus at rawQuery.
func (c *Client) OpenView(corpusName, rawQuery string) (_ *View, err error) {
	start := time.Now()
	defer func() { c.obs.observe("open_view", start, err) }()

	loc, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("parse query string: %w", err)
	}
	v, err := c.views.Open(corpusName, loc)
	if err != nil {
		return nil, err //nolint:wrapcheck // already wrapped by the view service
	}
	return &View{inner: v, svc: c.views, obs: c.obs}, nil
}

// View returns an open view by id.
func (c *Client) View(id string) (*View, error) {
	v, err := c.views.Get(id)
	if err != nil {
		return nil, err //nolint:wrapcheck // ErrNotFound carries the id
	}
	return &View{inner: v, svc: c.views, obs: c.obs}, nil
}
