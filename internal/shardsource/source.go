// Package shardsource retrieves raw shard payloads from wherever the shard
// builder published them: a local directory, an HTTP origin, a PostgreSQL
// table or a packed segment file, optionally fronted by Redis.
package shardsource

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/metrics"
)

// Source fetches the raw bytes of one shard. Implementations return an error
// wrapping errors.ErrShardNotFound when the shard does not exist.
type Source interface {
	Fetch(ctx context.Context, ref shard.Ref) ([]byte, error)
	Name() string
}

// WordListFile is the name of the corpus word list relative to the shard root.
const WordListFile = "ssWordString.txt"

// Path returns the location of ref relative to the shard root.
func Path(ref shard.Ref) (string, error) {
	switch ref.Kind {
	case shard.KindWordList:
		return WordListFile, nil
	case shard.KindStem, shard.KindFacet:
	default:
		return "", fmt.Errorf("%w: unknown shard kind %q", apperrors.ErrInvalidInput, ref.Kind)
	}
	if ref.Key == "" || strings.ContainsAny(ref.Key, `/\`) || ref.Key == "." || ref.Key == ".." {
		return "", fmt.Errorf("%w: bad shard key %q", apperrors.ErrInvalidInput, ref.Key)
	}
	dir := "stems"
	if ref.Kind == shard.KindFacet {
		dir = "filters"
	}
	return path.Join(dir, ref.Key+".json"), nil
}

// RefForPath is the inverse of Path.
func RefForPath(p string) (shard.Ref, bool) {
	p = path.Clean(strings.ReplaceAll(p, `\`, "/"))
	if p == WordListFile {
		return shard.Ref{Kind: shard.KindWordList}, true
	}
	dir, file := path.Split(p)
	key, ok := strings.CutSuffix(file, ".json")
	if !ok || key == "" {
		return shard.Ref{}, false
	}
	switch strings.TrimSuffix(dir, "/") {
	case "stems":
		return shard.Ref{Kind: shard.KindStem, Key: key}, true
	case "filters":
		return shard.Ref{Kind: shard.KindFacet, Key: key}, true
	}
	return shard.Ref{}, false
}

type instrumented struct {
	next Source
	m    *metrics.Metrics
}

// Instrumented records fetch counts and latency for next.
func Instrumented(next Source, m *metrics.Metrics) Source {
	if m == nil {
		return next
	}
	return &instrumented{next: next, m: m}
}

func (s *instrumented) Name() string { return s.next.Name() }

func (s *instrumented) Fetch(ctx context.Context, ref shard.Ref) ([]byte, error) {
	start := time.Now()
	data, err := s.next.Fetch(ctx, ref)
	s.m.ShardFetchDuration.WithLabelValues(s.next.Name()).Observe(time.Since(start).Seconds())
	status := "ok"
	switch {
	case errors.Is(err, apperrors.ErrShardNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	s.m.ShardFetchesTotal.WithLabelValues(s.next.Name(), string(ref.Kind), status).Inc()
	return data, err
}
