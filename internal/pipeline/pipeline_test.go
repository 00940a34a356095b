package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rekoda/internal/mediainfo"
	"rekoda/internal/models"
)

// testStage builds a trivial pass-through stage: no metadata, every
// item prepares instantly.
func testStage(batchSize int) StageConfig {
	return StageConfig{
		Name:         "test",
		EntryState:   models.StateNeedsAnalysis,
		NextState:    models.StateAnalyzed,
		BatchSize:    batchSize,
		FlushTimeout: 20 * time.Millisecond,
		Prepare: func(_ context.Context, item models.WorkItem, _ *mediainfo.Metadata) (PrepResult, error) {
			return PrepResult{Video: &models.Video{Path: item.Path}}, nil
		},
		Satisfied: func(*models.Video, models.WorkItem) (bool, string) { return false, "" },
	}
}

func newTestPipeline(t *testing.T, store *fakeStore, stage StageConfig) *Pipeline {
	t.Helper()
	logger := testLogger()
	rec := &fakeRecorder{store: store}
	proc := NewProcessor(stage, store, &fakeResolver{}, rec, fixedTuner{workers: 2, timeout: time.Second}, nil, nil, logger)
	proc.sleep = func(time.Duration) {}
	disp := NewDispatcher(stage, store, nil, 0, logger)
	return New(stage, disp, proc, store, nil, logger)
}

func seedFiles(t *testing.T, store *fakeStore, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		name := filepath.Join(dir, "v"+string(rune('a'+i))+".mkv")
		if err := os.WriteFile(name, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		store.seed(name, models.StateNeedsAnalysis)
		paths[i] = name
	}
	return paths
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPipelineStartsPaused(t *testing.T) {
	store := newFakeStore()
	seedFiles(t, store, 2)
	p := newTestPipeline(t, store, testStage(10))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	if p.State() != StatePaused {
		t.Fatalf("initial state = %s, want paused", p.State())
	}
	// A kick while paused must not release work.
	p.DispatchAvailable()
	time.Sleep(50 * time.Millisecond)
	if n, _ := store.CountInState(ctx, models.StateNeedsAnalysis); n != 2 {
		t.Errorf("paused pipeline processed work, %d items remain", n)
	}
}

func TestPipelineDrainsToIdle(t *testing.T) {
	store := newFakeStore()
	paths := seedFiles(t, store, 3)
	p := newTestPipeline(t, store, testStage(10))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	p.Resume()

	waitFor(t, func() bool {
		n, _ := store.CountInState(ctx, models.StateNeedsAnalysis)
		return n == 0
	}, "pipeline did not drain the queue")

	for _, path := range paths {
		if got := store.stateOf(path); got != models.StateAnalyzed {
			t.Errorf("%s state = %s, want analyzed", path, got)
		}
	}

	waitFor(t, func() bool { return p.State() == StateIdle }, "pipeline did not settle to idle")
}

func TestPipelinePauseParks(t *testing.T) {
	store := newFakeStore()
	seedFiles(t, store, 2)
	p := newTestPipeline(t, store, testStage(10))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	p.Resume()

	waitFor(t, func() bool {
		n, _ := store.CountInState(ctx, models.StateNeedsAnalysis)
		return n == 0
	}, "pipeline did not process")

	p.Pause()
	waitFor(t, func() bool { return p.State() == StatePaused }, "pipeline did not park after pause")
	if p.Running() {
		t.Error("Running() true after pause")
	}

	// Fresh work added while paused stays untouched.
	seedFiles(t, store, 1)
	p.DispatchAvailable()
	time.Sleep(50 * time.Millisecond)
	if n, _ := store.CountInState(ctx, models.StateNeedsAnalysis); n != 1 {
		t.Errorf("paused pipeline picked up new work, %d remain", n)
	}

	// Resume drains it.
	p.Resume()
	waitFor(t, func() bool {
		n, _ := store.CountInState(ctx, models.StateNeedsAnalysis)
		return n == 0
	}, "resumed pipeline did not drain new work")
}

// Items already sitting in the internal queue when the pipeline is
// parked must not be run as a fresh batch; they are re-derived from the
// store after resume instead.
func TestPausedPipelineDiscardsQueuedItems(t *testing.T) {
	store := newFakeStore()
	paths := seedFiles(t, store, 1)
	p := newTestPipeline(t, store, testStage(10))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	// Splitting a dispatch across flushes can leave items queued after
	// the machine parks; simulate that leftover directly.
	p.items <- models.WorkItem{Path: paths[0]}

	time.Sleep(100 * time.Millisecond)
	if got := store.stateOf(paths[0]); got != models.StateNeedsAnalysis {
		t.Fatalf("paused pipeline processed a queued item, state = %s", got)
	}
	if p.State() != StatePaused {
		t.Fatalf("state = %s, want paused", p.State())
	}

	// The item is still eligible in the store and resumes normally.
	p.Resume()
	waitFor(t, func() bool {
		return store.stateOf(paths[0]) == models.StateAnalyzed
	}, "resumed pipeline did not process the item")
}

func TestPipelineStopsOnContextCancel(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(t, store, testStage(10))

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("loops did not exit on context cancel")
	}
}

func TestDispatcherRespectsBatchLimit(t *testing.T) {
	store := newFakeStore()
	seedFiles(t, store, 5)

	d := NewDispatcher(testStage(2), store, nil, 0, testLogger())
	items, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("dispatched %d items, want batch limit 2", len(items))
	}
}

func TestDispatcherReportsDepth(t *testing.T) {
	store := newFakeStore()
	seedFiles(t, store, 4)

	obs := &depthSink{}
	d := NewDispatcher(testStage(2), store, obs, 0, testLogger())
	if _, err := d.Dispatch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if obs.last != 4 {
		t.Errorf("observed depth = %d, want 4", obs.last)
	}
}

type depthSink struct{ last int64 }

func (s *depthSink) ObserveQueueDepth(depth int64) { s.last = depth }

// A record flagged for forced reprocessing dispatches with the flag
// set, so stages skip their already-at-target shortcuts.
func TestDispatcherCarriesForceFlag(t *testing.T) {
	store := newFakeStore()
	v := store.seed("/mnt/forced.mkv", models.StateNeedsAnalysis)
	v.Force = true

	d := NewDispatcher(testStage(10), store, nil, 0, testLogger())
	items, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || !items[0].Force {
		t.Errorf("items = %+v, want one item with Force set", items)
	}
}
