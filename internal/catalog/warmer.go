package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Warmer keeps the component catalog and slip table loaded. It loads once
// on Start and then on every tick, so entries that expired are fetched
// again before a request needs them.
type Warmer struct {
	catalog  *Catalog
	interval time.Duration
	logger   *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewWarmer returns a warmer ticking every interval. A non-positive
// interval warms once.
func NewWarmer(c *Catalog, interval time.Duration, logger *slog.Logger) *Warmer {
	return &Warmer{
		catalog:  c,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (w *Warmer) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

func (w *Warmer) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Warmer) loop(ctx context.Context) {
	defer w.wg.Done()
	w.Warm(ctx)
	if w.interval <= 0 {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Warm(ctx)
		}
	}
}

// Warm loads the data most requests need. Failures are logged; the next
// request or tick tries again.
func (w *Warmer) Warm(ctx context.Context) bool {
	start := time.Now()
	set, err := w.catalog.Components(ctx)
	if err != nil {
		w.logger.Warn("catalog warm-up failed", "error", err)
		return false
	}
	if _, err := w.catalog.SlipTable(ctx); err != nil {
		w.logger.Warn("slip table warm-up failed", "error", err)
		return false
	}
	w.logger.Debug("catalog warm",
		"drivers", len(set.Drivers), "bodies", len(set.Bodies),
		"tires", len(set.Tires), "gliders", len(set.Gliders),
		"cached", w.catalog.Len(),
		"duration_ms", time.Since(start).Milliseconds())
	return true
}
