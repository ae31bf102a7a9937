package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/facet"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shardcache"
	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/middleware"
)

type Searcher interface {
	Search(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
	TrySearch(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
}

// LocalCache is the in-process shard memo.
type LocalCache interface {
	Stats() shardcache.Stats
}

// RemoteCache is the shared Redis layer in front of the shard origin.
type RemoteCache interface {
	Invalidate(ctx context.Context) (int64, error)
	Stats() (hits, misses int64)
}

type Handler struct {
	searcher  Searcher
	cache     LocalCache
	remote    RemoteCache
	collector *analytics.Collector
	exclusive bool
	maxLimit  int
	logger    *slog.Logger
}

type Option func(*Handler)

func WithRemoteCache(rc RemoteCache) Option {
	return func(h *Handler) { h.remote = rc }
}

func WithCollector(c *analytics.Collector) Option {
	return func(h *Handler) { h.collector = c }
}

// Exclusive makes the handler reject a search while another is running
// instead of queueing it.
func Exclusive() Option {
	return func(h *Handler) { h.exclusive = true }
}

func WithMaxLimit(n int) Option {
	return func(h *Handler) { h.maxLimit = n }
}

func New(searcher Searcher, cache LocalCache, opts ...Option) *Handler {
	h := &Handler{
		searcher: searcher,
		cache:    cache,
		maxLimit: 1000,
		logger:   slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Search serves GET /api/v1/search.
//
// Parameters: q (query text), facet (repeatable, "kind:filterId=v1|v2" or
// "kind:filterId=min..max"), scope (repeatable context scope id), offset,
// limit, and trace=1 to include stage timings.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	query := strings.TrimSpace(params.Get("q"))
	var facets []facet.Selection
	for _, raw := range params["facet"] {
		sel, err := facet.ParseSelection(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		facets = append(facets, sel)
	}
	if query == "" && len(facets) == 0 {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' or 'facet' is required")
		return
	}

	offset, err := intParam(params.Get("offset"), 0)
	if err != nil || offset < 0 {
		h.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := intParam(params.Get("limit"), 0)
	if err != nil || limit < 0 {
		h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if h.maxLimit > 0 && (limit == 0 || limit > h.maxLimit) {
		limit = h.maxLimit
	}

	req := executor.Request{
		Query:  query,
		Facets: facets,
		Scopes: params["scope"],
		Offset: offset,
		Limit:  limit,
	}
	search := h.searcher.Search
	if h.exclusive {
		search = h.searcher.TrySearch
	}
	result, err := search(ctx, req)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if errors.Is(err, apperrors.ErrBusy) {
			status = http.StatusTooManyRequests
		}
		log.Error("search execution failed", "query", query, "status", status, "error", err)
		h.writeError(w, status, http.StatusText(status))
		return
	}
	if params.Get("trace") != "1" {
		result.Trace = nil
	}

	if h.collector != nil {
		h.collector.Track(queryEvent(result, facets, middleware.GetRequestID(ctx)))
	}
	h.writeJSON(w, http.StatusOK, result)
}

func queryEvent(res *executor.SearchResult, facets []facet.Selection, requestID string) analytics.QueryEvent {
	terms := make([]string, len(res.Terms))
	for i, t := range res.Terms {
		terms[i] = t.Text
	}
	return analytics.QueryEvent{
		Query:           res.Query,
		NormalizedQuery: res.NormalizedQuery,
		Outcome:         string(res.Outcome),
		Terms:           terms,
		Discarded:       res.Discarded,
		Facets:          facet.FilterIDs(facets),
		DocsFound:       res.DocsFound,
		LatencyMs:       res.TookMS,
		RequestID:       requestID,
		Timestamp:       time.Now().UTC(),
	}
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"shards": h.cache.Stats()}
	if h.remote != nil {
		hits, misses := h.remote.Stats()
		remote := map[string]any{"hits": hits, "misses": misses}
		if total := hits + misses; total > 0 {
			remote["hit_rate"] = float64(hits) / float64(total)
		}
		body["redis"] = remote
	}
	h.writeJSON(w, http.StatusOK, body)
}

// CacheInvalidate drops the shared Redis copies of every shard. The
// in-process memo is per session and is not affected.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.remote == nil {
		h.writeError(w, http.StatusServiceUnavailable, "shared shard cache is disabled")
		return
	}
	n, err := h.remote.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "deleted": n})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
