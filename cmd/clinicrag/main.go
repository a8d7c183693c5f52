package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/config"
	dbRedis "github.com/kailas-cloud/clinicrag/internal/db/redis"
	"github.com/kailas-cloud/clinicrag/internal/db/sqlite"
	"github.com/kailas-cloud/clinicrag/internal/domain"
	logpkg "github.com/kailas-cloud/clinicrag/internal/logger"
	"github.com/kailas-cloud/clinicrag/internal/metrics"
	"github.com/kailas-cloud/clinicrag/internal/repository/catalog"
	"github.com/kailas-cloud/clinicrag/internal/repository/embcache"
	"github.com/kailas-cloud/clinicrag/internal/repository/history"
	chiTransport "github.com/kailas-cloud/clinicrag/internal/transport/chi"
	"github.com/kailas-cloud/clinicrag/internal/transport/local"
	openaiTransport "github.com/kailas-cloud/clinicrag/internal/transport/openai"
	chatuc "github.com/kailas-cloud/clinicrag/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/clinicrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/clinicrag/internal/usecase/health"
	"github.com/kailas-cloud/clinicrag/internal/usecase/retrieval"
	"github.com/kailas-cloud/clinicrag/internal/version"
)

// provider is the embedding backend seen by the composition root.
type provider interface {
	domain.Embedder
	domain.HealthChecker
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting clinicrag API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_backend", cfg.Embedding.Backend),
		zap.String("generation_backend", cfg.Generation.Backend),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()
	dataLog := logpkg.Component(logger, "data")
	modelLog := logpkg.Component(logger, "modeling")
	pipelineLog := logpkg.Component(logger, "pipeline")
	apiLog := logpkg.Component(logger, "api")

	// Catalog
	catalogDB, err := sqlite.Open(cfg.Source.Path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = catalogDB.Close() }()

	sources := make([]catalog.Source, len(cfg.Retrieval.Categories))
	categories := make([]retrieval.Category, len(cfg.Retrieval.Categories))
	for i, c := range cfg.Retrieval.Categories {
		sources[i] = catalog.Source{Category: c.Name, Tables: c.Tables, Columns: c.Columns}
		categories[i] = retrieval.Category{Name: c.Name, Fields: c.Columns}
	}
	catalogRepo, err := catalog.New(catalogDB, sources, dataLog)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	// Embedding cache (optional)
	var cache *dbRedis.Store
	if cfg.Cache.Enabled() {
		cache, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			return fmt.Errorf("create cache store: %w", err)
		}
		defer cache.Close()

		if err := cache.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			return fmt.Errorf("cache not ready: %w", err)
		}
		logger.Info("Embedding cache connected",
			zap.String("driver", cfg.Cache.Driver),
			zap.Strings("addrs", cfg.Cache.Addrs),
		)
	}

	// Embedding chain
	base, err := buildProvider(cfg, modelLog)
	if err != nil {
		return err
	}
	embedder := buildEmbedder(cfg, base, cache, modelLog)

	// Initial build
	collections, err := catalogRepo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	engine, err := retrieval.NewEngine(ctx, categories, collections, embedder, pipelineLog)
	if err != nil {
		return fmt.Errorf("build indexes: %w", err)
	}

	// Generation
	generator, err := buildGenerator(cfg, modelLog)
	if err != nil {
		return err
	}

	// Chat history (optional)
	var historyStore chatuc.HistoryStore
	if cfg.History.Enabled {
		historyDB := catalogDB
		if cfg.History.Path != cfg.Source.Path {
			if historyDB, err = sqlite.Open(cfg.History.Path); err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer func() { _ = historyDB.Close() }()
		}
		repo, err := history.New(ctx, historyDB)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		historyStore = repo
	}

	chatSvc := chatuc.New(engine, generator, historyStore, "")
	healthSvc := healthuc.New(engine, cachePinger(cache), sqlPinger(catalogDB), base)

	server := chiTransport.NewServer(
		chatSvc, engine, retrieval.NewRefresher(engine, catalogRepo), healthSvc,
		chiTransport.Config{
			DefaultTopK:    cfg.Retrieval.TopK,
			RequestTimeout: time.Duration(cfg.Retrieval.TimeoutSec) * time.Second,
			APIKeys:        cfg.Auth.APIKeys,
		},
		apiLog,
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
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
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-quit:
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	return nil
}

// buildProvider creates the configured embedding backend.
func buildProvider(cfg config.Config, logger *zap.Logger) (provider, error) {
	timeout := time.Duration(cfg.Embedding.TimeoutSec) * time.Second
	switch cfg.Embedding.Backend {
	case config.BackendLocal:
		e, err := local.NewEmbedder(&local.Config{
			ServerURL: cfg.Embedding.ServerURL,
			Model:     cfg.Embedding.Model,
			BatchSize: cfg.Embedding.MaxBatchSize,
			Timeout:   timeout,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("local embedder: %w", err)
		}
		return e, nil
	default:
		p := cfg.Embedding.Providers[cfg.Embedding.Provider]
		return openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     p.APIKey,
			BaseURL:    p.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Timeout:    timeout,
			Logger:     logger,
		}), nil
	}
}

// buildEmbedder assembles the decorator chain: provider -> Cached -> Instrumented -> Dedup.
func buildEmbedder(cfg config.Config, base domain.Embedder, cache *dbRedis.Store, logger *zap.Logger) domain.Embedder {
	var embedder domain.Embedder = base
	if cache != nil {
		embedder = embcache.New(base, cache, embcache.Config{
			KeyPrefix: cfg.Cache.KeyPrefix,
			Namespace: fmt.Sprintf("%s/%s/%d", cfg.Embedding.Backend, cfg.Embedding.Model, cfg.Embedding.Dimensions),
			TTL:       time.Duration(cfg.Cache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Backend, cfg.Embedding.Model, cfg.Embedding.MaxBatchSize, logger,
	)

	// Outermost: the retrievers of one request share a single query embedding
	return embeddinguc.NewDedupEmbedder(embedder)
}

// buildGenerator creates the configured answer generation backend.
func buildGenerator(cfg config.Config, logger *zap.Logger) (chatuc.Generator, error) {
	g := cfg.Generation
	timeout := time.Duration(g.TimeoutSec) * time.Second
	switch g.Backend {
	case config.BackendLocal:
		gen, err := local.NewGenerator(&local.GeneratorConfig{
			Config: local.Config{
				ServerURL: g.ServerURL,
				Model:     g.Model,
				Timeout:   timeout,
				Logger:    logger,
			},
			Temperature: g.Temperature,
			TopP:        g.TopP,
			MaxTokens:   g.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("local generator: %w", err)
		}
		return gen, nil
	default:
		p := cfg.Embedding.Providers[g.Provider]
		return openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
			APIKey:      p.APIKey,
			BaseURL:     p.BaseURL,
			Model:       g.Model,
			Temperature: float32(g.Temperature),
			TopP:        float32(g.TopP),
			MaxTokens:   g.MaxTokens,
			Timeout:     timeout,
			Logger:      logger,
		}), nil
	}
}

// cachePinger returns nil when no cache is configured so health skips the check.
func cachePinger(s *dbRedis.Store) healthuc.Pinger {
	if s == nil {
		return nil
	}
	return s
}

func sqlPinger(db *sql.DB) healthuc.Pinger {
	return healthuc.PingFunc(func(ctx context.Context) error { return sqlite.Ping(ctx, db) })
}
