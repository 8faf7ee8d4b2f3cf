package corpusq

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	username string
	password string
	db       int

	corpora       []Corpus
	keyPrefix     string
	ensureIndexes bool

	syncWindow         time.Duration
	aggTimeout         time.Duration
	maxRPS             float64
	cacheTTL           time.Duration
	defaultOptionCount int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		keyPrefix:          "corpusq:",
		syncWindow:         100 * time.Millisecond,
		aggTimeout:         5 * time.Second,
		defaultOptionCount: 10,
	}
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedisCluster configures the client to connect to a Redis cluster.
func WithRedisCluster(addrs []string, username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = addrs
		c.username = username
		c.password = password
	})
}

// WithCorpus declares a corpus. Call once per corpus.
func WithCorpus(corpus Corpus) Option {
	return optionFunc(func(c *clientConfig) {
		c.corpora = append(c.corpora, corpus)
	})
}

// WithKeyPrefix sets the prefix of every key the client reads or writes.
// Default: "corpusq:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithEnsureIndexes creates missing corpus indexes when the client connects.
func WithEnsureIndexes() Option {
	return optionFunc(func(c *clientConfig) {
		c.ensureIndexes = true
	})
}

// WithSyncWindow sets how long a view collects state changes before it
// pushes one location. Default: 100ms.
func WithSyncWindow(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.syncWindow = d
	})
}

// WithAggregationTimeout bounds a single FT.AGGREGATE call. Default: 5s.
func WithAggregationTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.aggTimeout = d
	})
}

// WithMaxRPS caps aggregation calls per second per view. Default: unlimited.
func WithMaxRPS(rps float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxRPS = rps
	})
}

// WithAggregationCache caches aggregation results in Redis for ttl.
// Default: disabled.
func WithAggregationCache(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = ttl
	})
}

// WithDefaultOptionCount sets how many options a multiple-choice filter
// lists when its field declares none. Default: 10.
func WithDefaultOptionCount(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultOptionCount = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
