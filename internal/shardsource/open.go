package shardsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/resilience"
)

// Stack is the configured chain of sources plus the clients it owns.
type Stack struct {
	// Source is what the engine reads from.
	Source Source
	// Origin is the innermost source, below any Redis layer.
	Origin   Source
	Cache    *Redis
	Redis    *pkgredis.Client
	Postgres *postgres.Client
	closers  []func() error
}

// Open builds the source chain selected by cfg.Shards. A Redis layer that
// cannot connect is skipped with a warning; the origin itself must open.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Stack, error) {
	st := &Stack{}
	switch cfg.Shards.Source {
	case "fs":
		st.Origin = NewDir(cfg.Shards.Dir)
	case "segment":
		seg, err := OpenSegment(cfg.Shards.SegmentPath)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, seg.Close)
		st.Origin = seg
	case "http":
		h, err := NewHTTP(HTTPConfig{
			BaseURL:       cfg.Shards.BaseURL,
			Timeout:       cfg.Shards.FetchTimeout,
			RetryAttempts: cfg.Shards.RetryAttempts,
			Breaker: resilience.CircuitBreakerConfig{
				OnStateChange: func(name string, to resilience.State) {
					if m != nil {
						m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
					}
				},
			},
		})
		if err != nil {
			return nil, err
		}
		st.Origin = h
	case "postgres":
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrSourceUnavailable, err)
		}
		st.closers = append(st.closers, client.Close)
		st.Postgres = client
		pg := NewPostgres(client)
		if err := pg.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, err
		}
		st.Origin = pg
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedSource, cfg.Shards.Source)
	}

	st.Source = Instrumented(st.Origin, m)
	if cfg.Shards.RedisCache {
		client, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, shard cache layer disabled", "error", err)
		} else {
			st.closers = append(st.closers, client.Close)
			st.Redis = client
			st.Cache = NewRedis(st.Source, client, cfg.Redis.CacheTTL)
			st.Source = st.Cache
			slog.Info("redis shard cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	return st, nil
}

// Ping checks that the origin answers. A missing word list still proves the
// origin is reachable.
func (s *Stack) Ping(ctx context.Context) error {
	_, err := s.Origin.Fetch(ctx, shard.Ref{Kind: shard.KindWordList})
	if err != nil && !errors.Is(err, apperrors.ErrShardNotFound) {
		return err
	}
	return nil
}

// Close releases every client the stack opened.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
