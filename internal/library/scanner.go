// Package library discovers video files on disk and registers them for
// analysis.
package library

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"rekoda/internal/models"
	"rekoda/internal/pipeline"
)

// Video file extensions worth registering (lowercase, with leading dot).
var videoExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".m4v":  true,
	".mov":  true,
	".wmv":  true,
	".webm": true,
	".ts":   true,
	".m2ts": true,
	".mpg":  true,
	".mpeg": true,
}

// Discover walks root, collects files with video extensions, prunes
// directories named "extras" (case-insensitive), and returns the paths
// sorted for deterministic registration order.
func Discover(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.EqualFold(d.Name(), "extras") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if videoExtensions[ext] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Scanner registers discovered files as records awaiting analysis.
type Scanner struct {
	store  pipeline.Store
	logger *slog.Logger
}

// NewScanner creates a Scanner over the video store.
func NewScanner(store pipeline.Store, logger *slog.Logger) *Scanner {
	return &Scanner{store: store, logger: logger.With("component", "scanner")}
}

// Scan walks every root and upserts unknown files in needs_analysis.
// Files already tracked keep their current state. Returns how many new
// records were registered.
func (s *Scanner) Scan(ctx context.Context, roots []string) (int, error) {
	registered := 0
	for _, root := range roots {
		paths, err := Discover(root)
		if err != nil {
			return registered, err
		}

		var fresh []*models.Video
		for _, path := range paths {
			existing, err := s.store.GetByPath(ctx, path)
			if err != nil {
				return registered, err
			}
			if existing != nil {
				continue
			}
			fresh = append(fresh, &models.Video{
				Path:       path,
				LibraryID:  root,
				SourceType: models.SourceMovies,
				State:      models.StateNeedsAnalysis,
			})
		}
		if len(fresh) == 0 {
			s.logger.Info("library scan found nothing new", "root", root, "seen", len(paths))
			continue
		}
		if err := s.store.UpsertBatch(ctx, fresh); err != nil {
			return registered, err
		}
		registered += len(fresh)
		s.logger.Info("library scan registered files",
			"root", root, "seen", len(paths), "new", len(fresh))
	}
	return registered, nil
}
