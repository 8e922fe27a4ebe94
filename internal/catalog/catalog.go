package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/kathRex/kartbuilds/internal/metrics"
	"github.com/kathRex/kartbuilds/internal/sparql"
)

// Slipperiness classes in the ontology.
const (
	ClassLightSlip  = "LightSlip"
	ClassMediumSlip = "MediumSlip"
	ClassHeavySlip  = "HeavySlip"
)

// SlipClasses lists the slipperiness classes, lightest first.
var SlipClasses = []string{ClassLightSlip, ClassMediumSlip, ClassHeavySlip}

type Config struct {
	Namespace    string
	CacheSize    int
	CacheTTL     time.Duration
	// FetchTimeout bounds a shared fetch, which outlives any single caller.
	FetchTimeout time.Duration
}

const defaultFetchTimeout = 30 * time.Second

// Catalog reads game data from a SPARQL endpoint and keeps the decoded
// results in an expiring LRU. Returned slices and maps are shared with the
// cache and must not be modified.
type Catalog struct {
	querier sparql.Querier
	queries sparql.Queries
	cache   *expirable.LRU[string, any]
	group   singleflight.Group
	timeout time.Duration
	logger  *slog.Logger
}

func New(q sparql.Querier, cfg Config, logger *slog.Logger) *Catalog {
	size := cfg.CacheSize
	if size <= 0 {
		size = 256
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Catalog{
		querier: q,
		queries: sparql.NewQueries(cfg.Namespace),
		cache:   expirable.NewLRU[string, any](size, nil, ttl),
		timeout: timeout,
		logger:  logger,
	}
}

// Queries exposes the query builder bound to the catalog's namespace.
func (c *Catalog) Queries() sparql.Queries { return c.queries }

// Refresh drops every cached result and reports how many entries were held.
func (c *Catalog) Refresh() int {
	n := c.cache.Len()
	c.cache.Purge()
	c.logger.Info("catalog cache purged", "entries", n)
	return n
}

// Len returns the number of cached entries.
func (c *Catalog) Len() int { return c.cache.Len() }

// cached returns the value under key, computing it with fetch on a miss.
// Concurrent misses for one key share a single fetch. The fetch is detached
// from the caller that started it, so a cancelled caller only abandons its
// own wait. Errors are not cached.
func cached[T any](ctx context.Context, c *Catalog, kind, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := c.cache.Get(key); ok {
		if t, ok := v.(T); ok {
			metrics.CatalogCacheHits.WithLabelValues(kind).Inc()
			return t, nil
		}
	}
	metrics.CatalogCacheMisses.WithLabelValues(kind).Inc()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		if v, ok := c.cache.Get(key); ok {
			return v, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		t, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, t)
		return t, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("catalog %s: %w", kind, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (c *Catalog) run(ctx context.Context, kind, query string) (*sparql.Results, error) {
	res, err := c.querier.Query(ctx, kind, query)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", kind, err)
	}
	return res, nil
}
