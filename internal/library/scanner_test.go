package library

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"rekoda/internal/models"
	"rekoda/internal/storage"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "two.mkv"))
	writeFile(t, filepath.Join(root, "a", "one.mp4"))
	writeFile(t, filepath.Join(root, "a", "cover.jpg"))
	writeFile(t, filepath.Join(root, "Extras", "skip.mkv"))

	files, err := Discover(root)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(root, "a", "one.mp4"),
		filepath.Join(root, "b", "two.mkv"),
	}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestScanRegistersOnlyNewFiles(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := storage.NewVideoRepository(db)
	ctx := context.Background()

	root := t.TempDir()
	known := filepath.Join(root, "known.mkv")
	fresh := filepath.Join(root, "fresh.mkv")
	writeFile(t, known)
	writeFile(t, fresh)

	// Pre-track one file in a later state; a rescan must not reset it.
	err = repo.UpsertBatch(ctx, []*models.Video{{Path: known, State: models.StateEncoded}})
	if err != nil {
		t.Fatal(err)
	}

	s := NewScanner(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := s.Scan(ctx, []string{root})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("registered = %d, want 1", n)
	}

	v, err := repo.GetByPath(ctx, known)
	if err != nil {
		t.Fatal(err)
	}
	if v.State != models.StateEncoded {
		t.Errorf("known file state = %s, want untouched encoded", v.State)
	}

	v, err = repo.GetByPath(ctx, fresh)
	if err != nil {
		t.Fatal(err)
	}
	if v == nil || v.State != models.StateNeedsAnalysis {
		t.Errorf("fresh file not registered for analysis: %+v", v)
	}

	// Second scan is a no-op.
	n, err = s.Scan(ctx, []string{root})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second scan registered %d, want 0", n)
	}
}
