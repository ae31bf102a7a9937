package shardsource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/redis"
)

var (
	stemRef  = shard.Ref{Kind: shard.KindStem, Key: "eleph"}
	facetRef = shard.Ref{Kind: shard.KindFacet, Key: "ssBoolPublished"}
	wordsRef = shard.Ref{Kind: shard.KindWordList}
)

const stemJSON = `{"stem":"eleph","instances":[{"docId":"d1","docTitle":"One","score":2,"contexts":[]}]}`

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"stems/eleph.json":            stemJSON,
		"filters/ssBoolPublished.json": `{"filterId":"ssBoolPublished","filterName":"Published","ssBoolPublished_1":{"name":"true","docs":["d1"]}}`,
		WordListFile:                  "elephant|elephants",
		"notes/readme.md":             "ignored",
	}
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

type countingSource struct {
	mu    sync.Mutex
	calls map[string]int
	data  map[string][]byte
	delay time.Duration
}

func newCounting(data map[shard.Ref]string) *countingSource {
	c := &countingSource{calls: make(map[string]int), data: make(map[string][]byte)}
	for ref, body := range data {
		c.data[ref.String()] = []byte(body)
	}
	return c
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) Fetch(ctx context.Context, ref shard.Ref) ([]byte, error) {
	c.mu.Lock()
	c.calls[ref.String()]++
	c.mu.Unlock()
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	data, ok := c.data[ref.String()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, apperrors.ErrShardNotFound)
	}
	return data, nil
}

func (c *countingSource) count(ref shard.Ref) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[ref.String()]
}

func TestPath(t *testing.T) {
	p, err := Path(stemRef)
	require.NoError(t, err)
	assert.Equal(t, "stems/eleph.json", p)

	p, err = Path(facetRef)
	require.NoError(t, err)
	assert.Equal(t, "filters/ssBoolPublished.json", p)

	p, err = Path(wordsRef)
	require.NoError(t, err)
	assert.Equal(t, WordListFile, p)

	_, err = Path(shard.Ref{Kind: shard.KindStem, Key: "../etc/passwd"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRefForPath(t *testing.T) {
	for _, ref := range []shard.Ref{stemRef, facetRef, wordsRef} {
		p, err := Path(ref)
		require.NoError(t, err)
		got, ok := RefForPath(p)
		require.True(t, ok, p)
		assert.Equal(t, ref, got)
	}
	_, ok := RefForPath("notes/readme.md")
	assert.False(t, ok)
}

func TestDir_Fetch(t *testing.T) {
	src := NewDir(writeTree(t))
	data, err := src.Fetch(context.Background(), stemRef)
	require.NoError(t, err)
	assert.JSONEq(t, stemJSON, string(data))

	_, err = src.Fetch(context.Background(), shard.Ref{Kind: shard.KindStem, Key: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrShardNotFound)
}

func TestDir_Walk(t *testing.T) {
	src := NewDir(writeTree(t))
	var refs []shard.Ref
	require.NoError(t, src.Walk(func(ref shard.Ref) error {
		refs = append(refs, ref)
		return nil
	}))
	assert.ElementsMatch(t, []shard.Ref{stemRef, facetRef, wordsRef}, refs)
}

func TestHTTP_Fetch(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/search/stems/eleph.json":
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			fmt.Fprint(w, stemJSON)
		case "/search/stems/html.json":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html>not here</html>")
		case "/search/stems/flaky.json":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src, err := NewHTTP(HTTPConfig{BaseURL: srv.URL + "/search", Timeout: time.Second, RetryAttempts: 2})
	require.NoError(t, err)
	ctx := context.Background()

	data, err := src.Fetch(ctx, stemRef)
	require.NoError(t, err)
	assert.JSONEq(t, stemJSON, string(data))

	hits.Store(0)
	_, err = src.Fetch(ctx, shard.Ref{Kind: shard.KindStem, Key: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrShardNotFound)
	assert.EqualValues(t, 1, hits.Load(), "not found is not retried")

	_, err = src.Fetch(ctx, shard.Ref{Kind: shard.KindStem, Key: "html"})
	assert.ErrorIs(t, err, apperrors.ErrMalformedShard)

	hits.Store(0)
	_, err = src.Fetch(ctx, shard.Ref{Kind: shard.KindStem, Key: "flaky"})
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
	assert.EqualValues(t, 2, hits.Load(), "transient failures are retried")
}

func TestNewHTTP_RejectsBadScheme(t *testing.T) {
	_, err := NewHTTP(HTTPConfig{BaseURL: "ftp://example.test/"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRedis_CachesAndCollapses(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	upstream := newCounting(map[shard.Ref]string{stemRef: stemJSON})
	upstream.delay = 20 * time.Millisecond
	src := NewRedis(upstream, client, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := src.Fetch(ctx, stemRef)
			assert.NoError(t, err)
			assert.JSONEq(t, stemJSON, string(data))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, upstream.count(stemRef))
	assert.True(t, mr.Exists("shard:stem:eleph"))

	_, err = src.Fetch(ctx, stemRef)
	require.NoError(t, err)
	assert.Equal(t, 1, upstream.count(stemRef))
	hits, _ := src.Stats()
	assert.GreaterOrEqual(t, hits, int64(1))

	_, err = src.Fetch(ctx, shard.Ref{Kind: shard.KindStem, Key: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrShardNotFound)

	deleted, err := src.Invalidate(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
	assert.False(t, mr.Exists("shard:stem:eleph"))
}

func TestSegment_RoundTrip(t *testing.T) {
	dir := NewDir(writeTree(t))
	var refs []shard.Ref
	require.NoError(t, dir.Walk(func(ref shard.Ref) error {
		refs = append(refs, ref)
		return nil
	}))

	path := filepath.Join(t.TempDir(), "out", "shards.spdx")
	n, err := WriteSegment(context.Background(), path, dir, refs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	seg, err := OpenSegment(path)
	require.NoError(t, err)
	defer seg.Close()
	assert.Equal(t, 3, seg.Len())

	for _, ref := range refs {
		want, err := dir.Fetch(context.Background(), ref)
		require.NoError(t, err)
		got, err := seg.Fetch(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, want, got, ref.String())
	}
	_, err = seg.Fetch(context.Background(), shard.Ref{Kind: shard.KindStem, Key: "nope"})
	assert.ErrorIs(t, err, apperrors.ErrShardNotFound)
}

func TestOpenSegment_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.spdx")
	require.NoError(t, os.WriteFile(path, make([]byte, HeaderSize+FooterSize), 0o644))
	_, err := OpenSegment(path)
	assert.ErrorIs(t, err, apperrors.ErrMalformedShard)
}

func TestInstrumented(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	src := Instrumented(newCounting(map[shard.Ref]string{stemRef: stemJSON}), m)

	_, err := src.Fetch(context.Background(), stemRef)
	require.NoError(t, err)
	_, err = src.Fetch(context.Background(), facetRef)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShardFetchesTotal.WithLabelValues("counting", "stem", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShardFetchesTotal.WithLabelValues("counting", "facet", "not_found")))
}

func TestPostgres_LoadAndFetch(t *testing.T) {
	client, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            5432,
		Database:        envOrDefault("TEST_POSTGRES_DB", "staticsearch_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "staticsearch"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	src := NewPostgres(client)
	require.NoError(t, src.EnsureSchema(ctx))

	n, err := src.Load(ctx, newCounting(map[shard.Ref]string{stemRef: stemJSON}), []shard.Ref{stemRef})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := src.Fetch(ctx, stemRef)
	require.NoError(t, err)
	assert.JSONEq(t, stemJSON, string(data))

	_, err = src.Fetch(ctx, shard.Ref{Kind: shard.KindStem, Key: "absent-in-table"})
	assert.ErrorIs(t, err, apperrors.ErrShardNotFound)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
