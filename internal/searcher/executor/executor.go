package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/text/language"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/facet"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/tracing"
)

type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeNoTerms   Outcome = "no_terms"
	OutcomeNoResults Outcome = "no_results"
	OutcomeTooMany   Outcome = "too_many"
)

// Index is the shard store a search reads from. *shardcache.Cache
// satisfies it.
type Index interface {
	StemIndex(ctx context.Context, stem string) shard.StemIndex
	FacetShard(ctx context.Context, filterID string) shard.FacetShard
	WordList(ctx context.Context) string
	Prefetch(ctx context.Context, refs []shard.Ref)
}

type Request struct {
	Query  string
	Facets []facet.Selection
	Scopes []string
	Offset int
	Limit  int
}

type SearchResult struct {
	Query           string          `json:"query"`
	NormalizedQuery string          `json:"normalized_query"`
	Outcome         Outcome         `json:"outcome"`
	Terms           []parser.Term   `json:"terms"`
	Discarded       []string        `json:"discarded,omitempty"`
	DocsFound       int             `json:"docs_found"`
	ContextsFound   int             `json:"contexts_found"`
	ScoreTotal      float64         `json:"score_total"`
	Results         []*merger.Entry `json:"results"`
	TookMS          float64         `json:"took_ms"`
	Trace           *tracing.Report `json:"trace,omitempty"`
}

type Executor struct {
	index     Index
	parserCfg parser.Config
	cfg       config.SearchConfig
	ranker    *ranker.Ranker
	sortKey   func(docID string) string
	metrics   *metrics.Metrics
	logSpans  bool
	busy      atomic.Bool
}

type Option func(*Executor)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithSortKey supplies the secondary ordering key for equally scored
// documents.
func WithSortKey(fn func(docID string) string) Option {
	return func(e *Executor) { e.sortKey = fn }
}

// WithSpanLogging logs the stage timings of every search at debug level.
func WithSpanLogging() Option {
	return func(e *Executor) { e.logSpans = true }
}

func WithLanguage(tag language.Tag) Option {
	return func(e *Executor) { e.ranker = ranker.New(tag) }
}

func New(index Index, cfg config.SearchConfig, opts ...Option) *Executor {
	e := &Executor{
		index:     index,
		parserCfg: parser.FromSearchConfig(cfg),
		cfg:       cfg,
		ranker:    ranker.New(language.Und),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TrySearch runs Search unless another TrySearch is in progress, in which
// case it fails fast with ErrBusy.
func (e *Executor) TrySearch(ctx context.Context, req Request) (*SearchResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, apperrors.ErrBusy
	}
	defer e.busy.Store(false)
	return e.Search(ctx, req)
}

// Search evaluates one query. All shards the query needs are retrieved as a
// single concurrent batch before any merging starts.
func (e *Executor) Search(ctx context.Context, req Request) (*SearchResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "query-executor")
	if e.metrics != nil {
		e.metrics.SearchesInFlight.Inc()
		defer e.metrics.SearchesInFlight.Dec()
	}

	ctx, root := tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
	result, err := e.search(ctx, req)
	root.End()
	if err != nil {
		log.Warn("search failed", "query", req.Query, "error", err)
		return nil, err
	}
	report := root.Report()
	result.Trace = &report
	if e.logSpans {
		root.Log(log)
	}

	result.TookMS = float64(time.Since(start).Microseconds()) / 1000
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(string(result.Outcome)).Inc()
		e.metrics.SearchLatency.WithLabelValues("total").Observe(time.Since(start).Seconds())
		e.metrics.SearchResultsCount.Observe(float64(result.DocsFound))
	}
	log.Info("query executed",
		"query", req.Query,
		"outcome", result.Outcome,
		"terms", len(result.Terms),
		"docs", result.DocsFound,
		"took_ms", result.TookMS,
	)
	return result, nil
}

func (e *Executor) search(ctx context.Context, req Request) (*SearchResult, error) {
	var selections []facet.Selection
	for _, sel := range req.Facets {
		if sel.Active() {
			selections = append(selections, sel)
		}
	}

	st := e.stage(ctx, "parse")
	pcfg := e.parserCfg
	pcfg.LoadWordList = func() string { return e.index.WordList(ctx) }
	plan := parser.Parse(req.Query, pcfg)
	st.span.SetAttr("terms", len(plan.Terms))
	st.end()

	result := &SearchResult{
		Query:           req.Query,
		NormalizedQuery: plan.NormalizedQuery,
		Terms:           plan.Terms,
		Discarded:       plan.Discarded,
		Results:         []*merger.Entry{},
	}
	if len(plan.Terms) == 0 && len(selections) == 0 {
		result.Outcome = OutcomeNoTerms
		return result, nil
	}

	st = e.stage(ctx, "fetch")
	refs := make([]shard.Ref, 0, len(plan.Terms)+len(selections))
	for _, stem := range plan.Stems() {
		refs = append(refs, shard.Ref{Kind: shard.KindStem, Key: stem})
	}
	for _, id := range facet.FilterIDs(selections) {
		refs = append(refs, shard.Ref{Kind: shard.KindFacet, Key: id})
	}
	e.index.Prefetch(st.ctx, refs)
	st.span.SetAttr("shards", len(refs))
	st.end()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("retrieving shards: %w: %w", apperrors.ErrTimeout, err)
	}

	st = e.stage(ctx, "merge")
	set := facet.Resolve(selections, func(id string) shard.FacetShard {
		return e.index.FacetShard(ctx, id)
	})
	var scopes map[string]struct{}
	if len(req.Scopes) > 0 {
		scopes = make(map[string]struct{}, len(req.Scopes))
		for _, s := range req.Scopes {
			scopes[s] = struct{}{}
		}
	}
	rs := merger.Merge(plan.Terms, func(stem string) shard.StemIndex {
		return e.index.StemIndex(ctx, stem)
	}, set, merger.Options{
		MaxSnippets:  e.cfg.MaxSnippets,
		CapMode:      merger.ParseCapMode(e.cfg.SnippetCap),
		MergeScoring: merger.ParseMergeScoring(e.cfg.MergeScoring),
		Scopes:       scopes,
		ScopeMode:    merger.ParseScopeMode(e.cfg.ScopeScoring),
		SortKey:      e.sortKey,
	})
	st.span.SetAttr("docs", rs.Len())
	st.end()

	result.DocsFound = rs.Len()
	result.ContextsFound = rs.ContextCount()
	result.ScoreTotal = rs.ScoreTotal()
	switch {
	case rs.Len() == 0:
		result.Outcome = OutcomeNoResults
		return result, nil
	case e.cfg.MaxResults > 0 && rs.Len() > e.cfg.MaxResults:
		result.Outcome = OutcomeTooMany
		return result, nil
	}

	st = e.stage(ctx, "rank")
	entries := rs.Entries()
	e.ranker.Sort(entries)
	result.Results = ranker.Page(entries, req.Offset, req.Limit)
	st.end()

	result.Outcome = OutcomeOK
	return result, nil
}

type stageTimer struct {
	name    string
	ctx     context.Context
	span    *tracing.Span
	start   time.Time
	metrics *metrics.Metrics
}

func (e *Executor) stage(ctx context.Context, name string) *stageTimer {
	ctx, span := tracing.StartChildSpan(ctx, name)
	return &stageTimer{name: name, ctx: ctx, span: span, start: time.Now(), metrics: e.metrics}
}

func (s *stageTimer) end() {
	s.span.End()
	if s.metrics != nil {
		s.metrics.SearchLatency.WithLabelValues(s.name).Observe(time.Since(s.start).Seconds())
	}
}
