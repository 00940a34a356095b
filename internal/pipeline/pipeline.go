package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rekoda/internal/events"
	"rekoda/internal/models"
)

// Pipeline is one stage instance: it owns the lifecycle state and runs
// the dispatch and batch loops. State is mutated only under mu and
// only through the pure Transition function, so no two goroutines ever
// race a transition and every step remains independently testable.
type Pipeline struct {
	stage      StageConfig
	dispatcher *Dispatcher
	proc       *Processor
	store      Store
	bus        *events.Bus
	logger     *slog.Logger

	mu    sync.Mutex
	state State

	items chan models.WorkItem
	kick  chan struct{}
	wg    sync.WaitGroup
}

// PollInterval is the dispatcher's periodic store check cadence.
const PollInterval = 5 * time.Second

// New assembles one pipeline instance around its stage config.
func New(stage StageConfig, dispatcher *Dispatcher, proc *Processor, store Store, bus *events.Bus, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		stage:      stage,
		dispatcher: dispatcher,
		proc:       proc,
		store:      store,
		bus:        bus,
		logger:     logger.With("component", "pipeline", "stage", stage.Name),
		state:      StatePaused,
		items:      make(chan models.WorkItem, stage.BatchSize),
		kick:       make(chan struct{}, 1),
	}
}

// Start launches the dispatch and batch loops. They run until ctx is
// cancelled; Wait blocks until both exit.
func (p *Pipeline) Start(ctx context.Context) {
	p.wg.Add(2)
	go p.dispatchLoop(ctx)
	go p.batchLoop(ctx)
	p.logger.Info("pipeline started", "state", p.State())
}

// Wait blocks until the pipeline's loops have exited.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Stage returns the stage name.
func (p *Pipeline) Stage() string { return p.stage.Name }

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Running reports whether the pipeline is actively accepting dispatch.
func (p *Pipeline) Running() bool {
	s := p.State()
	return s != StatePaused && s != StatePausing
}

// Resume moves a paused pipeline to running and triggers an immediate
// eligibility check.
func (p *Pipeline) Resume() {
	if p.apply(Resume()) {
		p.DispatchAvailable()
	}
}

// Pause requests a stop: immediate when no batch is in flight, after
// the current batch otherwise. Idempotent.
func (p *Pipeline) Pause() {
	p.apply(PauseRequest())
}

// DispatchAvailable triggers an immediate eligibility check instead of
// waiting for the next poll tick.
func (p *Pipeline) DispatchAvailable() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// apply runs one transition under the lock; rejected events are logged
// at debug and reported false.
func (p *Pipeline) apply(e Event) bool {
	p.mu.Lock()
	prev := p.state
	next, err := Transition(p.state, e)
	p.state = next
	p.mu.Unlock()

	if err != nil {
		p.logger.Debug("transition rejected", "state", prev, "error", err)
		return false
	}
	if next != prev {
		p.logger.Debug("state changed", "from", prev, "to", next)
		if p.bus != nil {
			p.bus.Publish(events.Event{
				Type:  events.TypePipelineState,
				Stage: p.stage.Name,
				State: string(next),
			})
		}
	}
	return true
}

// dispatchLoop periodically (and on demand) asks the dispatcher to
// release work into the item queue.
func (p *Pipeline) dispatchLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.kick:
		}
		p.checkForWork(ctx)
	}
}

// checkForWork releases one batch worth of eligible items when the
// state machine allows dispatch.
func (p *Pipeline) checkForWork(ctx context.Context) {
	if !Accepting(p.State()) {
		return
	}

	items, err := p.dispatcher.Dispatch(ctx)
	if err != nil {
		p.logger.Error("dispatch failed", "error", err)
		return
	}
	if len(items) == 0 {
		p.apply(NoEligibleWork())
		return
	}

	if !p.apply(StartProcessing()) {
		// A pause won the race; the items stay in the store untouched.
		return
	}
	for _, item := range items {
		if err := p.dispatcher.Throttle(ctx); err != nil {
			return
		}
		select {
		case p.items <- item:
		case <-ctx.Done():
			return
		}
	}
}

// batchLoop accumulates dispatched items into batches and processes
// them. Completion feeds work_completed back into the state machine;
// pause always wins over pending work.
func (p *Pipeline) batchLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		batch := collectBatch(ctx, p.items, p.stage.BatchSize, p.stage.FlushTimeout)
		if batch == nil {
			return
		}

		// A batch collected after the pipeline parked must not run.
		// The items came from a store query, so dropping them is safe:
		// the next dispatch after resume re-derives them.
		if p.State() == StatePaused {
			p.logger.Debug("discarding batch collected while paused", "count", len(batch))
			continue
		}

		p.proc.Process(ctx, batch)

		more := false
		if depth, err := p.store.CountInState(ctx, p.stage.EntryState); err == nil {
			more = depth > 0
		}
		p.apply(WorkCompleted(more))

		// Capacity has freed; pull the next batch promptly when the
		// machine still accepts work.
		if more && Accepting(p.State()) {
			p.DispatchAvailable()
		}
	}
}
