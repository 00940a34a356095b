package mediainfo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Tuning supplies the chunk size and chunk-level concurrency for bulk
// resolution. Both are re-read per call so the feedback loops that own
// them take effect between batches.
type Tuning interface {
	ChunkSize() int
	ToolConcurrency() int
}

// Resolver answers metadata queries for many paths with as few tool
// invocations as possible: bulk cache first, then one invocation per
// chunk with bounded chunk concurrency. Paths belonging to a failed
// chunk are simply absent from the result; the caller decides whether
// to fall back to ResolveOne per missing path.
type Resolver struct {
	runner Runner
	cache  *Cache
	tuning Tuning
	logger *slog.Logger
}

// NewResolver wires a resolver. cache may be nil to disable caching.
func NewResolver(runner Runner, cache *Cache, tuning Tuning, logger *slog.Logger) *Resolver {
	return &Resolver{
		runner: runner,
		cache:  cache,
		tuning: tuning,
		logger: logger.With("component", "mediainfo"),
	}
}

// ResolveBulk resolves metadata for paths. The returned map holds one
// entry per successfully resolved path; unresolved paths (failed chunk,
// unparsable output) are missing and left to the caller's per-item
// fallback. The map never contains a nil Metadata.
func (r *Resolver) ResolveBulk(ctx context.Context, paths []string) map[string]*Metadata {
	if len(paths) == 0 {
		return map[string]*Metadata{}
	}

	resolved := make(map[string]*Metadata, len(paths))
	pending := paths

	if r.cache != nil {
		hits, misses := r.cache.GetBulk(paths)
		for p, m := range hits {
			resolved[p] = m
		}
		pending = misses
		if len(hits) > 0 {
			r.logger.Debug("bulk cache hits", "hits", len(hits), "misses", len(misses))
		}
	}
	if len(pending) == 0 {
		return resolved
	}

	chunks := chunkPaths(pending, r.tuning.ChunkSize())
	results := make([]map[string]*Metadata, len(chunks))

	sem := make(chan struct{}, max(1, r.tuning.ToolConcurrency()))
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = r.resolveChunk(ctx, chunk)
		}(i, chunk)
	}
	wg.Wait()

	for _, m := range results {
		for p, meta := range m {
			resolved[p] = meta
			if r.cache != nil {
				r.cache.Put(p, meta)
			}
		}
	}
	return resolved
}

// ResolveOne resolves a single path with its own tool invocation. Used
// by callers as the fallback for paths a bulk call left unresolved.
func (r *Resolver) ResolveOne(ctx context.Context, path string) (*Metadata, error) {
	if r.cache != nil {
		if hits, _ := r.cache.GetBulk([]string{path}); len(hits) == 1 {
			return hits[path], nil
		}
	}

	out, err := r.runner.Run(ctx, []string{path})
	if err != nil {
		return nil, err
	}
	parsed, err := ParseOutput(out, []string{path})
	if err != nil {
		return nil, err
	}
	meta, ok := parsed[path]
	if !ok {
		// Single-path output keyed by an absolute/relative variant of
		// the same file still maps unambiguously.
		if len(parsed) == 1 {
			for _, m := range parsed {
				meta, ok = m, true
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("mediainfo output missing entry for %s", path)
	}
	if r.cache != nil {
		r.cache.Put(path, meta)
	}
	return meta, nil
}

// resolveChunk runs one tool invocation over a chunk. Any failure drops
// the whole chunk (returns an empty map) and logs the reason; per-path
// recovery belongs to the caller.
func (r *Resolver) resolveChunk(ctx context.Context, chunk []string) map[string]*Metadata {
	out, err := r.runner.Run(ctx, chunk)
	if err != nil {
		r.logger.Warn("bulk invocation failed, chunk left to per-item fallback",
			"paths", len(chunk), "error", err)
		return nil
	}
	parsed, err := ParseOutput(out, chunk)
	if err != nil {
		r.logger.Warn("bulk output unparsable, chunk left to per-item fallback",
			"paths", len(chunk), "error", err)
		return nil
	}
	return parsed
}

func chunkPaths(paths []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var chunks [][]string
	for len(paths) > size {
		chunks = append(chunks, paths[:size])
		paths = paths[size:]
	}
	return append(chunks, paths)
}
