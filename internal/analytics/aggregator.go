package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/kafka"
)

const (
	maxLatencySamples = 10000
	topN              = 10
)

type Stats struct {
	TotalSearches     int64            `json:"total_searches"`
	Outcomes          map[string]int64 `json:"outcomes"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      float64          `json:"p50_latency_ms"`
	P95LatencyMs      float64          `json:"p95_latency_ms"`
	P99LatencyMs      float64          `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	TooManyQueries    []QueryCount     `json:"too_many_queries"`
	DiscardedTerms    []QueryCount     `json:"discarded_terms"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds query events into running statistics. It is fed either
// by a Kafka consumer through HandleEvent or directly as a Publisher.
type Aggregator struct {
	mu        sync.RWMutex
	total     int64
	outcomes  map[string]int64
	latencies []float64
	next      int
	queries   map[string]int64
	zero      map[string]int64
	tooMany   map[string]int64
	discarded map[string]int64
	startTime time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		outcomes:  make(map[string]int64),
		latencies: make([]float64, 0, 1024),
		queries:   make(map[string]int64),
		zero:      make(map[string]int64),
		tooMany:   make(map[string]int64),
		discarded: make(map[string]int64),
		startTime: time.Now(),
		logger:    slog.Default().With("component", "analytics-aggregator"),
	}
}

// Consume feeds the aggregator from consumer until ctx is cancelled.
func (a *Aggregator) Consume(ctx context.Context, consumer *kafka.Consumer) error {
	a.logger.Info("analytics aggregator consuming")
	return consumer.Start(ctx)
}

// HandleEvent decodes query events from Kafka into agg.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			return err
		}
		if ev.Outcome == "" {
			return fmt.Errorf("query event without outcome: %w", apperrors.ErrInvalidInput)
		}
		agg.Record(ev)
		return nil
	}
}

// PublishBatch records events in process, standing in for Kafka.
func (a *Aggregator) PublishBatch(_ context.Context, events []kafka.Event) error {
	for _, e := range events {
		ev, ok := e.Value.(QueryEvent)
		if !ok {
			return fmt.Errorf("unexpected event %T: %w", e.Value, apperrors.ErrInvalidInput)
		}
		a.Record(ev)
	}
	return nil
}

func (a *Aggregator) Record(ev QueryEvent) {
	key := ev.NormalizedQuery
	if key == "" {
		key = ev.Query
	}
	key = strings.ToLower(strings.TrimSpace(key))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	a.outcomes[ev.Outcome]++
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, ev.LatencyMs)
	} else {
		a.latencies[a.next] = ev.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
	if key != "" {
		a.queries[key]++
	}
	switch ev.Outcome {
	case "no_results":
		a.zero[key]++
	case "too_many":
		a.tooMany[key]++
	}
	for _, d := range ev.Discarded {
		a.discarded[strings.ToLower(d)]++
	}
}

func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalSearches:     a.total,
		Outcomes:          make(map[string]int64, len(a.outcomes)),
		TopQueries:        top(a.queries, topN),
		ZeroResultQueries: top(a.zero, topN),
		TooManyQueries:    top(a.tooMany, topN),
		DiscardedTerms:    top(a.discarded, topN),
	}
	for k, v := range a.outcomes {
		stats.Outcomes[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := append([]float64(nil), a.latencies...)
		sort.Float64s(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.total) / elapsed
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func top(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
