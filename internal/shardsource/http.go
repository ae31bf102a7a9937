package shardsource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/resilience"
)

// maxShardBytes bounds a single response body.
const maxShardBytes = 64 << 20

type HTTPConfig struct {
	BaseURL string
	// Timeout applies to each attempt.
	Timeout       time.Duration
	RetryAttempts int
	Breaker       resilience.CircuitBreakerConfig
	Client        *http.Client
}

// HTTP fetches shards from the site that hosts them.
type HTTP struct {
	base    *url.URL
	cfg     HTTPConfig
	client  *http.Client
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing shard base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: shard base url must be http(s), got %q", apperrors.ErrInvalidInput, cfg.BaseURL)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &HTTP{
		base:    base,
		cfg:     cfg,
		client:  client,
		breaker: resilience.NewCircuitBreaker("shard-origin", cfg.Breaker),
		logger:  slog.Default().With("component", "shard-http", "base", base.String()),
	}, nil
}

func (h *HTTP) Name() string { return "http" }

// BreakerState exposes the origin circuit breaker for health checks.
func (h *HTTP) BreakerState() resilience.State {
	return h.breaker.GetState()
}

func (h *HTTP) Fetch(ctx context.Context, ref shard.Ref) ([]byte, error) {
	rel, err := Path(ref)
	if err != nil {
		return nil, err
	}
	target := h.base.ResolveReference(&url.URL{Path: rel})

	var data []byte
	err = resilience.Retry(ctx, "fetch "+ref.String(), resilience.RetryConfig{
		MaxAttempts:  h.cfg.RetryAttempts,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
	}, func() error {
		return h.breaker.Execute(func() error {
			body, err := resilience.Timed(ctx, h.cfg.Timeout, "shard request", func(ctx context.Context) ([]byte, error) {
				return h.get(ctx, target, ref)
			})
			if err != nil {
				return err
			}
			data = body
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (h *HTTP) get(ctx context.Context, target *url.URL, ref shard.Ref) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", ref, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrSourceUnavailable, ref, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%s: %w", ref, apperrors.ErrShardNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s: status %d", apperrors.ErrSourceUnavailable, ref, resp.StatusCode)
	}
	if err := checkContentType(ref, resp.Header.Get("Content-Type")); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxShardBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", apperrors.ErrSourceUnavailable, ref, err)
	}
	return body, nil
}

// checkContentType rejects HTML error pages served with a 200 status.
func checkContentType(ref shard.Ref, header string) error {
	if header == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return fmt.Errorf("%w: %s: content type %q", apperrors.ErrMalformedShard, ref, header)
	}
	if ref.Kind == shard.KindWordList {
		if strings.HasPrefix(mediaType, "text/") && mediaType != "text/html" {
			return nil
		}
	} else if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		return nil
	}
	return fmt.Errorf("%w: %s: unexpected content type %q", apperrors.ErrMalformedShard, ref, mediaType)
}
