package analytics

import "time"

// QueryEvent is the telemetry record emitted for every executed search.
type QueryEvent struct {
	Query           string    `json:"query"`
	NormalizedQuery string    `json:"normalized_query"`
	Outcome         string    `json:"outcome"`
	Terms           []string  `json:"terms"`
	Discarded       []string  `json:"discarded,omitempty"`
	Facets          []string  `json:"facets,omitempty"`
	DocsFound       int       `json:"docs_found"`
	LatencyMs       float64   `json:"latency_ms"`
	RequestID       string    `json:"request_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}
