package pipeline

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"rekoda/internal/events"
	"rekoda/internal/failures"
	"rekoda/internal/mediainfo"
	"rekoda/internal/models"
	"rekoda/internal/storage"
	"rekoda/internal/tuning"
)

// Store is the slice of persistence one pipeline needs.
type Store interface {
	ListEligible(ctx context.Context, state string, limit int) ([]*models.Video, error)
	CountInState(ctx context.Context, state string) (int64, error)
	UpsertBatch(ctx context.Context, videos []*models.Video) error
	GetByPath(ctx context.Context, path string) (*models.Video, error)
	SetState(ctx context.Context, id int64, state string) error
	DeleteByPath(ctx context.Context, path string) error
}

// MetadataResolver resolves technical metadata in bulk with a
// per-path fallback for whatever a bulk call leaves unresolved.
type MetadataResolver interface {
	ResolveBulk(ctx context.Context, paths []string) map[string]*mediainfo.Metadata
	ResolveOne(ctx context.Context, path string) (*mediainfo.Metadata, error)
}

// Recorder persists categorized failures.
type Recorder interface {
	Record(ctx context.Context, videoID int64, stage string, f *failures.Failure)
	Resolve(ctx context.Context, videoID int64)
}

// Tuner supplies the processor's live concurrency parameters.
type Tuner interface {
	Workers() int
	Timeout() time.Duration
}

// PrepResult is the tri-state outcome of preparing one item: ready to
// persist (Video set), skipped (Skip holds the reason), or failed
// (the error returned alongside).
type PrepResult struct {
	Video *models.Video
	Skip  string
}

// PrepareFunc derives the persistence record for one item. meta is nil
// for stages that do not resolve bulk metadata.
type PrepareFunc func(ctx context.Context, item models.WorkItem, meta *mediainfo.Metadata) (PrepResult, error)

// StageConfig describes one pipeline stage instance.
type StageConfig struct {
	Name         string
	EntryState   string
	NextState    string
	BatchSize    int
	FlushTimeout time.Duration

	// ResolveMetadata enables the batched external-tool call; stages
	// past analysis read attributes from the store instead.
	ResolveMetadata bool

	Prepare PrepareFunc

	// Satisfied is the terminal-condition shortcut: when it reports
	// true the item skips the normal next state and lands in encoded,
	// with the returned reason logged.
	Satisfied func(v *models.Video, item models.WorkItem) (bool, string)
}

// Persistence retry bounds (batch granularity, contention only).
const (
	persistAttempts = 3
	persistBackoff  = 100 * time.Millisecond
)

// Processor runs one batch through the stage: bulk metadata, bounded
// concurrent per-item preparation, one batched persistence write with
// retry under contention, and per-item state transitions.
type Processor struct {
	stage    StageConfig
	store    Store
	resolver MetadataResolver
	recorder Recorder
	tuner    Tuner
	monitor  *tuning.Monitor
	bus      *events.Bus
	logger   *slog.Logger

	// Swappable in tests.
	retryable func(error) bool
	sleep     func(time.Duration)
}

// NewProcessor wires a processor for one stage. monitor and bus may be
// nil (no self-tuning feedback / no listeners).
func NewProcessor(stage StageConfig, store Store, resolver MetadataResolver, recorder Recorder, tuner Tuner, monitor *tuning.Monitor, bus *events.Bus, logger *slog.Logger) *Processor {
	return &Processor{
		stage:     stage,
		store:     store,
		resolver:  resolver,
		recorder:  recorder,
		tuner:     tuner,
		monitor:   monitor,
		bus:       bus,
		logger:    logger.With("component", "processor", "stage", stage.Name),
		retryable: storage.IsContention,
		sleep:     time.Sleep,
	}
}

type prepOutcome int

const (
	outcomeReady prepOutcome = iota
	outcomeSkip
	outcomeFail
)

type itemResult struct {
	item    models.WorkItem
	outcome prepOutcome
	video   *models.Video
	reason  string
	failure *failures.Failure
}

// Process runs one batch to completion. Per-item failures never abort
// the batch; only persistence retry exhaustion fails it whole.
func (p *Processor) Process(ctx context.Context, batch []models.WorkItem) {
	start := time.Now()

	metas := p.resolveMetadata(ctx, batch)
	results := p.prepareAll(ctx, batch, metas)

	var ready []itemResult
	for _, r := range results {
		switch r.outcome {
		case outcomeReady:
			ready = append(ready, r)
		case outcomeSkip:
			p.logger.Info("item skipped", "path", r.item.Path, "reason", r.reason)
		case outcomeFail:
			p.recordFailure(ctx, r.item, r.failure)
		}
	}

	if len(ready) > 0 {
		if err := p.persistBatch(ctx, ready); err != nil {
			// No partial commit is assumed: the whole batch's items fail.
			f := failures.StorageContention("retries_exhausted",
				"batched upsert failed after %d attempts: %v", persistAttempts, err)
			for _, r := range ready {
				p.recordFailure(ctx, r.item, f)
			}
		} else {
			p.finishItems(ctx, ready)
		}
	}

	elapsed := time.Since(start)
	if p.monitor != nil {
		p.monitor.RecordBatch(len(batch), elapsed)
	}

	depth, err := p.store.CountInState(ctx, p.stage.EntryState)
	if err != nil {
		p.logger.Warn("queue depth check failed", "error", err)
	}
	if p.bus != nil {
		p.bus.Publish(events.Event{
			Type:       events.TypeBatchThroughput,
			Stage:      p.stage.Name,
			BatchSize:  len(batch),
			QueueDepth: depth,
		})
		p.bus.Publish(events.Event{
			Type:  events.TypeBatchCompleted,
			Stage: p.stage.Name,
		})
	}
	p.logger.Info("batch completed",
		"batch_size", len(batch),
		"ready", len(ready),
		"duration", elapsed,
		"queue_depth", depth)
}

// resolveMetadata performs the one batched tool call for the whole
// batch. Unresolved paths are left to the per-item fallback inside
// prepareItem, so a total bulk failure degrades, never aborts.
func (p *Processor) resolveMetadata(ctx context.Context, batch []models.WorkItem) map[string]*mediainfo.Metadata {
	if !p.stage.ResolveMetadata {
		return nil
	}
	paths := make([]string, len(batch))
	for i, item := range batch {
		paths[i] = item.Path
	}
	return p.resolver.ResolveBulk(ctx, paths)
}

// prepareAll runs per-item preparation on a bounded pool with a
// per-item timeout. Worker count and timeout are re-read per batch
// from the controller.
func (p *Processor) prepareAll(ctx context.Context, batch []models.WorkItem, metas map[string]*mediainfo.Metadata) []itemResult {
	results := make([]itemResult, len(batch))
	sem := make(chan struct{}, p.tuner.Workers())
	timeout := p.tuner.Timeout()

	var wg sync.WaitGroup
	for i, item := range batch {
		wg.Add(1)
		go func(i int, item models.WorkItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = p.prepareItem(ctx, item, metas[item.Path], timeout)
		}(i, item)
	}
	wg.Wait()
	return results
}

// prepareItem handles one item under its timeout budget. A worker that
// overruns is abandoned (its context is cancelled and its result
// discarded), never left to hold up the batch. Panics become failed
// items rather than taking the pipeline down.
func (p *Processor) prepareItem(ctx context.Context, item models.WorkItem, meta *mediainfo.Metadata, timeout time.Duration) itemResult {
	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan itemResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- itemResult{item: item, outcome: outcomeFail,
					failure: failures.Unknown("panic during preparation: %v", rec)}
			}
		}()
		done <- p.doPrepare(ictx, item, meta)
	}()

	select {
	case r := <-done:
		return r
	case <-ictx.Done():
		return itemResult{item: item, outcome: outcomeFail,
			failure: failures.Timeout("prepare_timeout",
				"preparation exceeded %v for %s", timeout, item.Path)}
	}
}

func (p *Processor) doPrepare(ctx context.Context, item models.WorkItem, meta *mediainfo.Metadata) itemResult {
	// Missing source files resolve by deleting the stale record, not
	// by recording a failure to retry.
	if _, err := os.Stat(item.Path); err != nil {
		if os.IsNotExist(err) {
			if derr := p.store.DeleteByPath(ctx, item.Path); derr != nil {
				p.logger.Warn("stale record delete failed", "path", item.Path, "error", derr)
			}
			return itemResult{item: item, outcome: outcomeSkip,
				reason: "source file missing, stale record deleted"}
		}
		return itemResult{item: item, outcome: outcomeFail,
			failure: failures.FileAccess("stat_failed", "cannot stat %s: %v", item.Path, err)}
	}

	if p.stage.ResolveMetadata {
		if meta == nil {
			// Per-item fallback for paths the bulk call left unresolved.
			m, err := p.resolver.ResolveOne(ctx, item.Path)
			if err != nil {
				return itemResult{item: item, outcome: outcomeFail, failure: failures.Categorize(err)}
			}
			meta = m
		}
		if !meta.Valid() {
			return itemResult{item: item, outcome: outcomeFail,
				failure: failures.Validation("bad_shape",
					"metadata for %s has no usable video track", item.Path)}
		}
	}

	res, err := p.stage.Prepare(ctx, item, meta)
	if err != nil {
		return itemResult{item: item, outcome: outcomeFail, failure: failures.Categorize(err)}
	}
	if res.Skip != "" {
		return itemResult{item: item, outcome: outcomeSkip, reason: res.Skip}
	}
	if res.Video == nil {
		return itemResult{item: item, outcome: outcomeFail,
			failure: failures.Unknown("stage %s prepared neither record nor skip for %s",
				p.stage.Name, item.Path)}
	}

	video := res.Video
	if ok, reason := p.stage.Satisfied(video, item); ok {
		video.State = models.StateEncoded
		p.logger.Info("terminal condition met, skipping downstream stages",
			"path", item.Path, "reason", reason)
	} else {
		video.State = p.stage.NextState
	}
	return itemResult{item: item, outcome: outcomeReady, video: video}
}

// persistBatch writes all ready records in one upsert, retried whole
// under contention with exponential backoff. The upsert is idempotent
// per path, so replaying the identical payload is safe.
func (p *Processor) persistBatch(ctx context.Context, ready []itemResult) error {
	videos := make([]*models.Video, len(ready))
	for i, r := range ready {
		videos[i] = r.video
	}

	var err error
	delay := persistBackoff
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		err = p.store.UpsertBatch(ctx, videos)
		if err == nil {
			return nil
		}
		if !p.retryable(err) || attempt == persistAttempts {
			return err
		}
		p.logger.Warn("storage contention, retrying batch",
			"attempt", attempt, "delay", delay, "error", err)
		p.sleep(delay)
		delay *= 2
	}
	return err
}

// finishItems resolves prior failure records for items that just
// succeeded and logs each transition.
func (p *Processor) finishItems(ctx context.Context, ready []itemResult) {
	for _, r := range ready {
		v, err := p.store.GetByPath(ctx, r.item.Path)
		if err != nil || v == nil {
			continue
		}
		p.recorder.Resolve(ctx, v.ID)
		p.logger.Debug("item transitioned", "path", r.item.Path, "state", r.video.State)
	}
}

// recordFailure looks up the owning record and hands the failure to
// the recorder. Items without a record yet are only logged.
func (p *Processor) recordFailure(ctx context.Context, item models.WorkItem, f *failures.Failure) {
	if f == nil {
		f = failures.Unknown("unreported failure for %s", item.Path)
	}
	v, err := p.store.GetByPath(ctx, item.Path)
	if err != nil {
		p.logger.Error("failure lookup failed", "path", item.Path, "error", err)
		return
	}
	if v == nil {
		p.logger.Warn("failure for untracked path",
			"path", item.Path, "category", f.Category, "message", f.Message)
		return
	}
	p.recorder.Record(ctx, v.ID, p.stage.Name, f)
}
