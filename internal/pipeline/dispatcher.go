package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"rekoda/internal/models"
)

// DepthObserver receives the eligible-item count after each store
// check; the concurrency controller uses it as a load signal.
type DepthObserver interface {
	ObserveQueueDepth(depth int64)
}

// Dispatcher decides how much work to release per check: up to one
// batch of items eligible for the stage's entry state, rate-limited to
// a maximum items-per-second ceiling. It holds no lifecycle state of
// its own; the owning Pipeline consults the state machine before
// calling Dispatch.
type Dispatcher struct {
	stage    StageConfig
	store    Store
	observer DepthObserver
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewDispatcher wires a dispatcher. maxPerSecond <= 0 disables the
// rate ceiling; observer may be nil.
func NewDispatcher(stage StageConfig, store Store, observer DepthObserver, maxPerSecond float64, logger *slog.Logger) *Dispatcher {
	limit := rate.Inf
	if maxPerSecond > 0 {
		limit = rate.Limit(maxPerSecond)
	}
	return &Dispatcher{
		stage:    stage,
		store:    store,
		observer: observer,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.With("component", "dispatcher", "stage", stage.Name),
	}
}

// Dispatch queries the store for up to one batch of eligible items and
// converts them to work items. Reading the store is the only state
// consulted; emission is side-effect-free beyond handing items on.
func (d *Dispatcher) Dispatch(ctx context.Context) ([]models.WorkItem, error) {
	videos, err := d.store.ListEligible(ctx, d.stage.EntryState, d.stage.BatchSize)
	if err != nil {
		return nil, err
	}

	if d.observer != nil {
		depth, derr := d.store.CountInState(ctx, d.stage.EntryState)
		if derr == nil {
			d.observer.ObserveQueueDepth(depth)
		}
	}

	if len(videos) == 0 {
		return nil, nil
	}

	items := make([]models.WorkItem, len(videos))
	for i, v := range videos {
		items[i] = models.WorkItem{
			Path:       v.Path,
			LibraryID:  v.LibraryID,
			SourceType: v.SourceType,
			Force:      v.Force,
		}
	}
	d.logger.Debug("dispatching items", "count", len(items))
	return items, nil
}

// Throttle blocks until the rate ceiling admits one more item.
func (d *Dispatcher) Throttle(ctx context.Context) error {
	return d.limiter.Wait(ctx)
}
