package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shardcache"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/shardsource"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
)

func writeShards(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"stems/eleph.json": `{"stem":"eleph","instances":[
			{"docId":"d1","docTitle":"Zoo","score":2,"contexts":[{"context":"an <mark>elephant</mark>","weight":1,"in":["body"]}]},
			{"docId":"d2","docTitle":"Circus","score":3,"contexts":[{"context":"two <mark>elephants</mark>","weight":1,"in":["notes"]}]}]}`,
		"filters/ssBoolPublished.json": `{"filterId":"ssBoolPublished","filterName":"Published","ssBoolPublished_1":{"name":"true","docs":["d1"]}}`,
	}
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func newStack(t *testing.T, opts ...Option) (*Handler, *shardcache.Cache) {
	t.Helper()
	cache := shardcache.New(shardsource.NewDir(writeShards(t)))
	ex := executor.New(cache, config.Default().Search)
	return New(ex, cache, opts...), cache
}

func get(t *testing.T, h http.HandlerFunc, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestSearch(t *testing.T) {
	h, _ := newStack(t)
	rec, body := get(t, h.Search, "/api/v1/search?q=elephant")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["outcome"])
	assert.EqualValues(t, 2, body["docs_found"])
	results := body["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "d2", results[0].(map[string]any)["docId"])
	assert.Nil(t, body["trace"])
}

func TestSearch_FacetScopeAndTrace(t *testing.T) {
	h, _ := newStack(t)

	_, body := get(t, h.Search, "/api/v1/search?q=elephant&facet=bool:ssBoolPublished=true&trace=1")
	assert.EqualValues(t, 1, body["docs_found"])
	assert.NotNil(t, body["trace"])

	_, body = get(t, h.Search, "/api/v1/search?q=elephant&scope=notes")
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "d2", results[0].(map[string]any)["docId"])

	_, body = get(t, h.Search, "/api/v1/search?facet=bool:ssBoolPublished=true")
	assert.Equal(t, "ok", body["outcome"])
	assert.EqualValues(t, 1, body["docs_found"])
}

func TestSearch_BadRequests(t *testing.T) {
	h, _ := newStack(t)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=x&limit=-1",
		"/api/v1/search?q=x&offset=abc",
		"/api/v1/search?q=x&facet=num:ssNumPages=a..b",
	} {
		rec, body := get(t, h.Search, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestSearch_StopwordQuery(t *testing.T) {
	h, cache := newStack(t)
	rec, body := get(t, h.Search, "/api/v1/search?q=the")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no_terms", body["outcome"])
	assert.Zero(t, cache.Stats().Entries)
}

type fakeSearcher struct {
	err error
}

func (f fakeSearcher) Search(context.Context, executor.Request) (*executor.SearchResult, error) {
	return nil, f.err
}

func (f fakeSearcher) TrySearch(context.Context, executor.Request) (*executor.SearchResult, error) {
	return nil, apperrors.ErrBusy
}

func TestSearch_ErrorStatus(t *testing.T) {
	cache := shardcache.New(shardsource.NewDir(t.TempDir()))

	h := New(fakeSearcher{err: fmt.Errorf("retrieving shards: %w", apperrors.ErrTimeout)}, cache)
	rec, _ := get(t, h.Search, "/api/v1/search?q=elephant")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h = New(fakeSearcher{}, cache, Exclusive())
	rec, _ = get(t, h.Search, "/api/v1/search?q=elephant")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

type fakeRemote struct {
	deleted int64
}

func (f *fakeRemote) Invalidate(context.Context) (int64, error) { return f.deleted, nil }
func (f *fakeRemote) Stats() (int64, int64)                      { return 3, 1 }

func TestCacheEndpoints(t *testing.T) {
	h, _ := newStack(t)
	get(t, h.Search, "/api/v1/search?q=elephant")

	_, body := get(t, h.CacheStats, "/api/v1/cache/stats")
	shards := body["shards"].(map[string]any)
	assert.EqualValues(t, 1, shards["entries"])
	assert.Nil(t, body["redis"])

	rec := httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h, _ = newStack(t, WithRemoteCache(&fakeRemote{deleted: 4}))
	_, body = get(t, h.CacheStats, "/api/v1/cache/stats")
	redis := body["redis"].(map[string]any)
	assert.EqualValues(t, 0.75, redis["hit_rate"])

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"invalidated","deleted":4}`, rec.Body.String())
}

func TestSearch_TracksQueryEvents(t *testing.T) {
	agg := analytics.NewAggregator()
	collector := analytics.NewCollector(agg, config.AnalyticsConfig{BatchSize: 1, FlushInterval: time.Hour})
	collector.Start(context.Background())

	h, _ := newStack(t, WithCollector(collector))
	get(t, h.Search, "/api/v1/search?q=elephant")
	get(t, h.Search, "/api/v1/search?q=giraffe")
	collector.Close()

	stats := agg.Stats()
	assert.EqualValues(t, 2, stats.TotalSearches)
	assert.EqualValues(t, 1, stats.Outcomes["no_results"])
}
