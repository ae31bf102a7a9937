// Package shardcache is the session-scoped memo of decoded shards. Each key
// is retrieved at most once for the cache's lifetime: a placeholder is stored
// before the retrieval starts, and a failed retrieval leaves the empty
// sentinel in place for good.
//
// Retrievals are detached from the caller that started them. A cancelled
// caller stops waiting, but the retrieval runs on, bounded by the fetch
// timeout, so one abandoned request cannot blank a key for later ones.
package shardcache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/shardsource"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/metrics"
)

const (
	defaultConcurrency  = 16
	defaultFetchTimeout = 30 * time.Second
)

type entry struct {
	ready chan struct{}
	// Written once before ready is closed.
	stem  shard.StemIndex
	facet shard.FacetShard
	words string
	ok    bool
}

type Cache struct {
	src          shardsource.Source
	concurrency  int
	fetchTimeout time.Duration
	metrics      *metrics.Metrics
	logger      *slog.Logger

	mu      sync.Mutex
	entries map[shard.Ref]*entry

	hits     atomic.Int64
	misses   atomic.Int64
	failures atomic.Int64
}

type Option func(*Cache)

// WithConcurrency bounds the number of retrievals one batch runs at once.
func WithConcurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithFetchTimeout bounds a single retrieval. It applies whether or not the
// caller that started it is still waiting.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

func New(src shardsource.Source, opts ...Option) *Cache {
	c := &Cache{
		src:          src,
		concurrency:  defaultConcurrency,
		fetchTimeout: defaultFetchTimeout,
		entries:      make(map[shard.Ref]*entry),
		logger:       slog.Default().With("component", "shard-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StemIndex returns the postings for stem, retrieving them on first use.
func (c *Cache) StemIndex(ctx context.Context, stem string) shard.StemIndex {
	e := c.get(ctx, shard.Ref{Kind: shard.KindStem, Key: stem})
	if e == nil {
		return shard.StemIndex{}
	}
	return e.stem
}

// FacetShard returns the facet data for filterID, retrieving it on first use.
func (c *Cache) FacetShard(ctx context.Context, filterID string) shard.FacetShard {
	e := c.get(ctx, shard.Ref{Kind: shard.KindFacet, Key: filterID})
	if e == nil {
		return shard.FacetShard{}
	}
	return e.facet
}

// WordList returns the corpus word list used for wildcard expansion.
func (c *Cache) WordList(ctx context.Context) string {
	e := c.get(ctx, shard.Ref{Kind: shard.KindWordList})
	if e == nil {
		return ""
	}
	return e.words
}

// Peek returns the stored stem index without retrieving or waiting. The
// second result is false for keys that are absent or still pending.
func (c *Cache) Peek(stem string) (shard.StemIndex, bool) {
	c.mu.Lock()
	e, ok := c.entries[shard.Ref{Kind: shard.KindStem, Key: stem}]
	c.mu.Unlock()
	if !ok {
		return shard.StemIndex{}, false
	}
	select {
	case <-e.ready:
		return e.stem, true
	default:
		return shard.StemIndex{}, false
	}
}

// Facet is Peek for facet shards.
func (c *Cache) Facet(filterID string) (shard.FacetShard, bool) {
	c.mu.Lock()
	e, ok := c.entries[shard.Ref{Kind: shard.KindFacet, Key: filterID}]
	c.mu.Unlock()
	if !ok {
		return shard.FacetShard{}, false
	}
	select {
	case <-e.ready:
		return e.facet, true
	default:
		return shard.FacetShard{}, false
	}
}

// claim returns the entry for ref and whether the caller must fill it.
func (c *Cache) claim(ref shard.Ref) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[ref]; ok {
		return e, false
	}
	e := &entry{ready: make(chan struct{})}
	c.entries[ref] = e
	if c.metrics != nil {
		c.metrics.ShardCacheEntries.Set(float64(len(c.entries)))
	}
	return e, true
}

func (c *Cache) get(ctx context.Context, ref shard.Ref) *entry {
	e, owner := c.claim(ref)
	if owner {
		c.recordMiss(ref)
		go c.fill(ctx, ref, e)
	} else {
		c.recordHit(ref)
	}
	return c.wait(ctx, e)
}

func (c *Cache) wait(ctx context.Context, e *entry) *entry {
	select {
	case <-e.ready:
		return e
	case <-ctx.Done():
		return nil
	}
}

// fill retrieves and decodes ref. Any failure leaves the zero value, which
// is the empty sentinel for every kind. ctx contributes its values only.
func (c *Cache) fill(ctx context.Context, ref shard.Ref, e *entry) {
	defer close(e.ready)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()
	data, err := c.src.Fetch(ctx, ref)
	if err != nil {
		c.failures.Add(1)
		c.logger.Warn("shard retrieval failed", "shard", ref.String(), "source", c.src.Name(), "error", err)
		return
	}
	switch ref.Kind {
	case shard.KindStem:
		e.stem, err = shard.DecodeStemIndex(data)
	case shard.KindFacet:
		e.facet, err = shard.DecodeFacetShard(data)
	case shard.KindWordList:
		e.words = strings.TrimSpace(string(data))
	}
	if err != nil {
		c.failures.Add(1)
		c.logger.Warn("shard decode failed", "shard", ref.String(), "error", err)
		return
	}
	e.ok = true
}

// Prefetch retrieves every ref not yet present, concurrently, and returns
// once all of them have settled or ctx is done. Refs already pending in
// another batch are waited for, not re-requested. It never fails: retrieval
// errors become empty sentinels.
func (c *Cache) Prefetch(ctx context.Context, refs []shard.Ref) {
	type claimed struct {
		ref shard.Ref
		e   *entry
	}
	var owned []claimed
	all := make([]*entry, 0, len(refs))
	for _, ref := range refs {
		e, owner := c.claim(ref)
		all = append(all, e)
		if !owner {
			c.recordHit(ref)
			continue
		}
		c.recordMiss(ref)
		owned = append(owned, claimed{ref: ref, e: e})
	}

	if len(owned) > 0 {
		go func() {
			var g errgroup.Group
			g.SetLimit(c.concurrency)
			for _, o := range owned {
				o := o
				g.Go(func() error {
					c.fill(ctx, o.ref, o.e)
					return nil
				})
			}
			_ = g.Wait()
		}()
	}
	for _, e := range all {
		if c.wait(ctx, e) == nil {
			return
		}
	}
}

// Warm retrieves refs one after another in order. It stops early when ctx is
// cancelled and returns how many refs were processed.
func (c *Cache) Warm(ctx context.Context, refs []shard.Ref) int {
	queue := append([]shard.Ref(nil), refs...)
	done := 0
	for len(queue) > 0 {
		if ctx.Err() != nil {
			break
		}
		ref := queue[0]
		queue = queue[1:]
		c.get(ctx, ref)
		done++
	}
	c.logger.Info("warm-up finished", "requested", len(refs), "processed", done)
	return done
}

func (c *Cache) recordHit(ref shard.Ref) {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.ShardCacheHitsTotal.WithLabelValues(string(ref.Kind)).Inc()
	}
}

func (c *Cache) recordMiss(ref shard.Ref) {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.ShardCacheMissTotal.WithLabelValues(string(ref.Kind)).Inc()
	}
}

type Stats struct {
	Entries  int   `json:"entries"`
	Loaded   int   `json:"loaded"`
	Pending  int   `json:"pending"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Failures int64 `json:"failures"`
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Entries:  len(c.entries),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Failures: c.failures.Load(),
	}
	for _, e := range c.entries {
		select {
		case <-e.ready:
			if e.ok {
				s.Loaded++
			}
		default:
			s.Pending++
		}
	}
	return s
}
