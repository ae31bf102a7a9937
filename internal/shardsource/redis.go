package shardsource

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/redis"
)

const redisKeyPrefix = "shard:"

// Redis fronts another Source with a shared Redis cache of raw shard bytes,
// so several engine processes share one copy of each retrieved shard.
// Concurrent misses for the same key collapse into one upstream fetch.
type Redis struct {
	next   Source
	client *pkgredis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func NewRedis(next Source, client *pkgredis.Client, ttl time.Duration) *Redis {
	return &Redis{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "shard-redis"),
	}
}

func (r *Redis) Name() string { return "redis+" + r.next.Name() }

func (r *Redis) Fetch(ctx context.Context, ref shard.Ref) ([]byte, error) {
	key := redisKeyPrefix + ref.String()
	if data, ok := r.lookup(ctx, key); ok {
		return data, nil
	}
	val, err, _ := r.group.Do(key, func() (interface{}, error) {
		if data, ok := r.lookup(ctx, key); ok {
			return data, nil
		}
		data, err := r.next.Fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		if err := r.client.Set(ctx, key, data, r.ttl); err != nil {
			r.logger.Error("redis set failed", "key", key, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]byte), nil
}

func (r *Redis) lookup(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.GetBytes(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			r.logger.Error("redis get failed", "key", key, "error", err)
		}
		r.misses.Add(1)
		return nil, false
	}
	r.hits.Add(1)
	return data, true
}

// Invalidate drops every cached shard, returning the number of keys removed.
func (r *Redis) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := r.client.FlushByPattern(ctx, redisKeyPrefix+"*")
	if err != nil {
		return deleted, err
	}
	r.logger.Info("shard cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (r *Redis) Stats() (hits, misses int64) {
	return r.hits.Load(), r.misses.Load()
}
