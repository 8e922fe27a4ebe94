package sparql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/kathRex/kartbuilds/internal/metrics"
)

// Querier runs SELECT queries. kind labels the query for logs and metrics.
type Querier interface {
	Query(ctx context.Context, kind, query string) (*Results, error)
}

type ClientConfig struct {
	Endpoint          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
}

// BreakerStatus is a snapshot of the endpoint circuit breaker.
type BreakerStatus struct {
	Name                 string `json:"name"`
	State                string `json:"state"`
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

func NewHTTPClient(cfg ClientConfig, logger *slog.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	c := &HTTPClient{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sparql",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SPARQLBreakerTransitions.WithLabelValues(to.String()).Inc()
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Query sends query as GET {endpoint}?query=...&format=json and decodes the
// JSON results. Requests wait on the rate limiter and fail fast while the
// breaker is open.
func (c *HTTPClient) Query(ctx context.Context, kind, query string) (*Results, error) {
	start := time.Now()
	res, err := c.query(ctx, kind, query)
	metrics.ObserveSPARQL(kind, start, err)
	if err != nil {
		c.logger.Error("sparql query failed", "kind", kind, "error", err)
		return nil, err
	}
	c.logger.Debug("sparql query", "kind", kind, "rows", len(res.Bindings), "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (c *HTTPClient) query(ctx context.Context, kind, query string) (*Results, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("sparql %s: rate limiter wait: %w", kind, err)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doReq(ctx, kind, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("sparql %s: %w", kind, err)
		}
		return nil, err
	}
	return out.(*Results), nil
}

func (c *HTTPClient) doReq(ctx context.Context, kind, query string) (*Results, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sparql %s: %w", kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sparql %s: read body: %w", kind, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("sparql %s: %d %s", kind, resp.StatusCode, string(body))
	}

	res, err := ParseResults(body)
	if err != nil {
		return nil, fmt.Errorf("sparql %s: %w", kind, err)
	}
	return res, nil
}

// BreakerStatus reports the breaker state and its current counts.
func (c *HTTPClient) BreakerStatus() BreakerStatus {
	counts := c.breaker.Counts()
	return BreakerStatus{
		Name:                 c.breaker.Name(),
		State:                c.breaker.State().String(),
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}
