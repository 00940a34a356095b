package tuning

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Controller computes safe worker counts, tool invocation concurrency
// and per-item timeouts from live signals: CPU count, reported queue
// depth, and the monitor's recent batch durations. Readers only ever
// see values between the configured floor (never zero) and ceiling.
type Controller struct {
	mu sync.RWMutex

	maxWorkers  int
	baseTimeout time.Duration
	maxTimeout  time.Duration

	workers         int
	toolConcurrency int
	timeout         time.Duration

	queueDepth int64
	monitor    *Monitor
	logger     *slog.Logger
}

// ControllerConfig bounds the controller's outputs.
type ControllerConfig struct {
	MaxWorkers  int
	BaseTimeout time.Duration
	MaxTimeout  time.Duration
}

// NewController returns a controller seeded from CPU count; Recompute
// (or the Start loop) refines it from live load.
func NewController(cfg ControllerConfig, monitor *Monitor, logger *slog.Logger) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	if cfg.BaseTimeout <= 0 {
		cfg.BaseTimeout = 30 * time.Second
	}
	if cfg.MaxTimeout < cfg.BaseTimeout {
		cfg.MaxTimeout = 4 * cfg.BaseTimeout
	}

	c := &Controller{
		maxWorkers:  cfg.MaxWorkers,
		baseTimeout: cfg.BaseTimeout,
		maxTimeout:  cfg.MaxTimeout,
		monitor:     monitor,
		logger:      logger.With("component", "tuning"),
	}
	c.Recompute()
	return c
}

// Start runs the internal feedback loop until ctx is cancelled,
// recomputing at the given interval.
func (c *Controller) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Recompute()
			}
		}
	}()
}

// Workers returns the item preparation pool size, always >= 1.
func (c *Controller) Workers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.workers
}

// ToolConcurrency returns the chunk-level invocation bound, >= 1 and
// independent of the item pool.
func (c *Controller) ToolConcurrency() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.toolConcurrency
}

// Timeout returns the per-item preparation budget.
func (c *Controller) Timeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeout
}

// ChunkSize proxies the monitor's adapted chunk size so one value
// satisfies the resolver's tuning dependency.
func (c *Controller) ChunkSize() int {
	return c.monitor.ChunkSize()
}

// ObserveQueueDepth feeds the latest eligible-item count into the
// feedback loop. Called by dispatchers after each store check.
func (c *Controller) ObserveQueueDepth(depth int64) {
	c.mu.Lock()
	c.queueDepth = depth
	c.mu.Unlock()
}

// Recompute derives fresh values from the current signals.
func (c *Controller) Recompute() {
	cpus := runtime.NumCPU()
	recent := c.monitor.RecentBatchDuration()

	c.mu.Lock()
	defer c.mu.Unlock()

	workers := cpus
	// A deep queue wants full parallelism; a trickle does not need it.
	if c.queueDepth > 0 && c.queueDepth < int64(cpus) {
		workers = int(c.queueDepth)
	}
	// Slow batches mean the tool or disk is saturated; back off.
	if recent > 30*time.Second {
		workers = workers / 2
	}
	c.workers = clamp(workers, 1, c.maxWorkers)
	c.toolConcurrency = clamp(c.workers/2, 1, c.maxWorkers)

	timeout := c.baseTimeout
	if recent > c.baseTimeout {
		timeout = recent * 2
	}
	if timeout > c.maxTimeout {
		timeout = c.maxTimeout
	}
	c.timeout = timeout

	c.logger.Debug("recomputed concurrency",
		"workers", c.workers,
		"tool_concurrency", c.toolConcurrency,
		"timeout", c.timeout,
		"queue_depth", c.queueDepth)
}
