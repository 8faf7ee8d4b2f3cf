package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/config"
	dbRedis "github.com/kailas-cloud/corpusq/internal/db/redis"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/metrics"
	"github.com/kailas-cloud/corpusq/internal/repository/aggcache"
	"github.com/kailas-cloud/corpusq/internal/repository/aggregation"
	"github.com/kailas-cloud/corpusq/internal/repository/corpusindex"
	chiTransport "github.com/kailas-cloud/corpusq/internal/transport/chi"
	"github.com/kailas-cloud/corpusq/internal/usecase/defaults"
	healthuc "github.com/kailas-cloud/corpusq/internal/usecase/health"
	viewuc "github.com/kailas-cloud/corpusq/internal/usecase/view"
	"github.com/kailas-cloud/corpusq/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting corpusq API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", envName),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Int("corpora", len(cfg.Corpora)),
	)

	corpora, err := cfg.BuildCorpora()
	if err != nil {
		return fmt.Errorf("build corpora: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterSyncMetrics()
	metrics.RegisterAggregationMetrics()

	indexes := corpusindex.New(store, cfg.Storage.KeyPrefix)
	if cfg.Database.EnsureIndexes {
		if err := ensureIndexes(ctx, indexes, corpora, logger); err != nil {
			return err
		}
	}

	// Aggregation backend: FT.AGGREGATE, optionally behind a TTL cache
	var backend defaults.Backend = aggregation.New(store)
	if ttl := cfg.Aggregation.CacheTTL(); ttl > 0 {
		backend = aggcache.New(backend, store, ttl, cfg.Storage.KeyPrefix, metrics.AggregationCacheTotal, logger)
		logger.Info("Aggregation cache enabled", zap.Duration("ttl", ttl))
	}

	views := viewuc.New(corpora, backend, viewuc.Options{
		SyncWindow: cfg.Sync.CoalesceWindow(),
		Defaults: defaults.Options{
			Timeout:            cfg.Aggregation.Timeout(),
			MaxRPS:             cfg.Aggregation.MaxRPS,
			DefaultOptionCount: cfg.Aggregation.DefaultOptionCount,
		},
	}, logger)
	defer views.Close()

	indexNames := make([]string, len(corpora))
	for i, c := range corpora {
		indexNames[i] = c.Index()
	}
	healthSvc := healthuc.New(store, store, indexNames...)

	server := chiTransport.NewServer(views, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-quit:
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func ensureIndexes(ctx context.Context, indexes *corpusindex.Repo, corpora []corpus.Corpus, logger *zap.Logger) error {
	for _, c := range corpora {
		created, err := indexes.Ensure(ctx, c)
		if err != nil {
			return fmt.Errorf("ensure index for %q: %w", c.Name(), err)
		}
		if created {
			logger.Info("Created corpus index",
				zap.String("corpus", c.Name()),
				zap.String("index", c.Index()),
				zap.String("prefix", indexes.DocumentPrefix(c)),
			)
		}
	}
	return nil
}

func openStore(cfg config.Config) (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	return store, nil
}
