// Command analytics runs query telemetry as its own process.
//
// It consumes query events that search services publish to Kafka, aggregates
// them in memory (outcome counts, latency percentiles, top queries and top
// discarded terms), snapshots the totals to Postgres and serves both over
// HTTP. Use it when several searchers share one Kafka topic.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8090]
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

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/analytics"
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
	port := flag.Int("port", 8090, "HTTP port, kept apart from the searcher's")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	topic := cfg.Kafka.Topics.QueryEvents
	slog.Info("starting analytics service", "port", *port, "topic", topic)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(aggregator))
	defer consumer.Close()
	go func() {
		if err := aggregator.Consume(ctx, consumer); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("kafka", health.Ping(func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}, false))

	var store *analytics.Store
	if db, err := postgres.New(cfg.Postgres); err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store = analytics.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create analytics schema", "error", err)
			os.Exit(1)
		}
		interval := cfg.Analytics.SnapshotInterval
		if interval <= 0 {
			interval = time.Minute
		}
		store.StartPeriodicSave(ctx, aggregator, interval)
		checker.Register("postgres", health.Ping(db.Ping, true))
	}

	h := analytics.NewHandler(aggregator, store)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      middleware.Chain(mux, middleware.RequestID),
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
