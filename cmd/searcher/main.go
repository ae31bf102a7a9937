package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/text/language"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shardcache"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/shardsource"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	exclusive := flag.Bool("exclusive", false, "reject searches while another is running instead of queueing them")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"shard_source", cfg.Shards.Source,
	)

	if cfg.Search.StopwordsFile != "" {
		words, err := config.LoadStopwords(cfg.Search.StopwordsFile)
		if err != nil {
			slog.Error("failed to load stopwords", "error", err)
			os.Exit(1)
		}
		cfg.Search.Stopwords = words
		slog.Info("stopwords loaded", "file", cfg.Search.StopwordsFile, "count", len(words))
	}
	tag, err := language.Parse(cfg.Search.Language)
	if err != nil {
		slog.Warn("unknown collation language, using root order", "language", cfg.Search.Language, "error", err)
		tag = language.Und
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	stack, err := shardsource.Open(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to open shard source", "error", err)
		os.Exit(1)
	}
	defer stack.Close()
	slog.Info("shard source ready", "source", stack.Source.Name())

	cache := shardcache.New(stack.Source,
		shardcache.WithConcurrency(cfg.Shards.MaxConcurrentFetches),
		shardcache.WithFetchTimeout(cfg.Shards.FetchTimeout),
		shardcache.WithMetrics(m),
	)

	execOpts := []executor.Option{executor.WithMetrics(m), executor.WithLanguage(tag)}
	if cfg.Tracing.Enabled {
		execOpts = append(execOpts, executor.WithSpanLogging())
	}
	exec := executor.New(cache, cfg.Search, execOpts...)

	checker := health.NewChecker()
	checker.Register("shards", health.Ping(stack.Ping, false))
	if stack.Redis != nil {
		checker.Register("redis", health.Ping(stack.Redis.Ping, true))
	}

	aggregator := analytics.NewAggregator()
	var collector *analytics.Collector
	if cfg.Analytics.Enabled {
		var publisher analytics.Publisher = aggregator
		if cfg.Kafka.Enabled {
			topic := cfg.Kafka.Topics.QueryEvents
			producer := kafka.NewProducer(cfg.Kafka, topic)
			defer producer.Close()
			publisher = producer

			consumer := kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(aggregator))
			defer consumer.Close()
			go func() {
				if err := aggregator.Consume(ctx, consumer); err != nil {
					slog.Error("analytics consumer error", "error", err)
				}
			}()
			checker.Register("kafka", health.Ping(func(ctx context.Context) error {
				return kafka.Ping(ctx, cfg.Kafka.Brokers)
			}, true))
			slog.Info("query events routed through kafka", "topic", topic)
		}
		collector = analytics.NewCollector(publisher, cfg.Analytics)
		collector.Start(ctx)
		defer collector.Close()
	}

	var store *analytics.Store
	if cfg.Analytics.Enabled && cfg.Analytics.SnapshotInterval > 0 {
		db := stack.Postgres
		if db == nil {
			db, err = postgres.New(cfg.Postgres)
			if err != nil {
				slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
			} else {
				defer db.Close()
			}
		}
		if db != nil {
			store = analytics.NewStore(db)
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Warn("analytics schema unavailable, snapshots disabled", "error", err)
				store = nil
			} else {
				store.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
				checker.Register("postgres", health.Ping(db.Ping, true))
			}
		}
	}

	if len(cfg.Shards.Preload) > 0 {
		refs := make([]shard.Ref, 0, len(cfg.Shards.Preload))
		for _, raw := range cfg.Shards.Preload {
			ref, err := shard.ParseRef(raw)
			if err != nil {
				slog.Warn("skipping preload entry", "entry", raw, "error", err)
				continue
			}
			refs = append(refs, ref)
		}
		go func() {
			cache.Warm(ctx, refs)
			slog.Info("shard preload finished", "requested", len(refs), "loaded", cache.Stats().Loaded)
		}()
	}

	opts := []handler.Option{handler.WithMaxLimit(cfg.Search.MaxResults)}
	if stack.Cache != nil {
		opts = append(opts, handler.WithRemoteCache(stack.Cache))
	}
	if collector != nil {
		opts = append(opts, handler.WithCollector(collector))
	}
	if *exclusive {
		opts = append(opts, handler.Exclusive())
	}
	h := handler.New(exec, cache, opts...)
	analyticsH := analytics.NewHandler(aggregator, store)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsH.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, map[string]http.HandlerFunc{
			"GET /health/live":  checker.LiveHandler(),
			"GET /health/ready": checker.ReadyHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	mws := []func(http.Handler) http.Handler{middleware.RequestID, middleware.Metrics(m)}
	if len(cfg.Server.CORSOrigins) > 0 {
		mws = append(mws, middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins)))
	}
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					limiter.Sweep()
				}
			}
		}()
		mws = append(mws, middleware.RateLimit(limiter))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.WriteTimeout))
	chain := middleware.Chain(mux, mws...)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
