package mediainfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

type fakeTuning struct {
	chunk       int
	concurrency int
}

func (f fakeTuning) ChunkSize() int       { return f.chunk }
func (f fakeTuning) ToolConcurrency() int { return f.concurrency }

// fakeRunner answers invocations from a canned per-path table and
// records every call.
type fakeRunner struct {
	mu        sync.Mutex
	calls     [][]string
	failPaths map[string]bool // any chunk containing one of these fails
}

func (f *fakeRunner) Run(_ context.Context, paths []string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), paths...))
	f.mu.Unlock()

	var entries []string
	for _, p := range paths {
		if f.failPaths[p] {
			return nil, &ToolError{Command: "mediainfo " + p, Err: errors.New("exit status 1")}
		}
		entries = append(entries, fmt.Sprintf(
			`{"media": {"@ref": %q, "track": [{"@type":"General","Duration":"10"},{"@type":"Video","Format":"AVC"}]}}`, p))
	}
	if len(entries) == 1 {
		return []byte(entries[0]), nil
	}
	return []byte("[" + strings.Join(entries, ",") + "]"), nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveBulkChunksAndMapsEveryPath(t *testing.T) {
	runner := &fakeRunner{}
	r := NewResolver(runner, nil, fakeTuning{chunk: 2, concurrency: 2}, discard())

	paths := []string{"/a", "/b", "/c", "/d", "/e"}
	got := r.ResolveBulk(context.Background(), paths)

	if len(got) != len(paths) {
		t.Fatalf("resolved %d of %d paths", len(got), len(paths))
	}
	for _, p := range paths {
		if got[p] == nil {
			t.Errorf("path %s unresolved", p)
		}
	}
	// 5 paths at chunk size 2 -> 3 invocations.
	if n := runner.callCount(); n != 3 {
		t.Errorf("tool invoked %d times, want 3", n)
	}
}

func TestResolveBulkFailedChunkLeftUnresolved(t *testing.T) {
	runner := &fakeRunner{failPaths: map[string]bool{"/bad": true}}
	r := NewResolver(runner, nil, fakeTuning{chunk: 2, concurrency: 1}, discard())

	got := r.ResolveBulk(context.Background(), []string{"/a", "/bad", "/c"})

	// The chunk ["/a", "/bad"] fails whole; "/c" is its own chunk.
	if got["/c"] == nil {
		t.Error("healthy chunk should resolve")
	}
	if got["/a"] != nil || got["/bad"] != nil {
		t.Error("failed chunk's paths must be left unresolved, not fabricated")
	}

	// Per-item fallback recovers the healthy path from the failed chunk.
	meta, err := r.ResolveOne(context.Background(), "/a")
	if err != nil || meta == nil {
		t.Fatalf("ResolveOne(/a) = %v, %v", meta, err)
	}
	if _, err := r.ResolveOne(context.Background(), "/bad"); err == nil {
		t.Error("ResolveOne(/bad) should fail explicitly, not silently skip")
	}
	var te *ToolError
	if _, err := r.ResolveOne(context.Background(), "/bad"); !errors.As(err, &te) {
		t.Error("tool failures should surface as *ToolError with command context")
	}
}

func TestResolveBulkEmptyInput(t *testing.T) {
	r := NewResolver(&fakeRunner{}, nil, fakeTuning{chunk: 10, concurrency: 1}, discard())
	if got := r.ResolveBulk(context.Background(), nil); len(got) != 0 {
		t.Errorf("empty input resolved %d entries", len(got))
	}
}

func TestChunkPaths(t *testing.T) {
	tests := []struct {
		n, size  int
		wantLens []int
	}{
		{5, 2, []int{2, 2, 1}},
		{4, 2, []int{2, 2}},
		{1, 100, []int{1}},
		{3, 0, []int{1, 1, 1}}, // floor guards a zero chunk size
	}
	for _, tt := range tests {
		paths := make([]string, tt.n)
		for i := range paths {
			paths[i] = fmt.Sprintf("/p%d", i)
		}
		chunks := chunkPaths(paths, tt.size)
		if len(chunks) != len(tt.wantLens) {
			t.Errorf("n=%d size=%d: %d chunks, want %d", tt.n, tt.size, len(chunks), len(tt.wantLens))
			continue
		}
		for i, c := range chunks {
			if len(c) != tt.wantLens[i] {
				t.Errorf("n=%d size=%d chunk[%d] len=%d want %d", tt.n, tt.size, i, len(c), tt.wantLens[i])
			}
		}
	}
}
