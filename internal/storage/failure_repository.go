package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"rekoda/internal/models"
)

// FailureRepository is the data access layer for failure records.
type FailureRepository struct {
	db *DB
}

// NewFailureRepository creates a new FailureRepository.
func NewFailureRepository(db *DB) *FailureRepository {
	return &FailureRepository{db: db}
}

// InsertFailure appends one failure record.
func (r *FailureRepository) InsertFailure(ctx context.Context, f *models.Failure) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	f.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO failures (id, video_id, stage, category, code, message, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.VideoID, f.Stage, f.Category, f.Code, f.Message, f.Context, f.CreatedAt)
	return err
}

// ResolveFailures soft-deletes every open record owned by videoID.
func (r *FailureRepository) ResolveFailures(ctx context.Context, videoID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE failures SET resolved_at = ? WHERE video_id = ? AND resolved_at IS NULL`,
		time.Now(), videoID)
	return err
}

// ListByVideo returns all failure records for a video, newest first.
func (r *FailureRepository) ListByVideo(ctx context.Context, videoID int64) ([]*models.Failure, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, video_id, stage, category, code, message, context, resolved_at, created_at
		FROM failures WHERE video_id = ? ORDER BY created_at DESC`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFailures(rows)
}

// LatestOpenByVideo returns the newest unresolved record for a video,
// or nil. The retry surface uses its stage to pick the reset state.
func (r *FailureRepository) LatestOpenByVideo(ctx context.Context, videoID int64) (*models.Failure, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, video_id, stage, category, code, message, context, resolved_at, created_at
		FROM failures WHERE video_id = ? AND resolved_at IS NULL
		ORDER BY created_at DESC LIMIT 1`, videoID)

	f, err := scanFailure(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// Stats aggregates counts by stage and category inside the window
// (zero window means all time).
func (r *FailureRepository) Stats(ctx context.Context, window time.Duration) (*models.FailureStats, error) {
	cutoff := time.Time{}
	if window > 0 {
		cutoff = time.Now().Add(-window)
	}

	stats := &models.FailureStats{
		ByStage:    make(map[string]int64),
		ByCategory: make(map[string]int64),
	}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN resolved_at IS NULL THEN 1 ELSE 0 END), 0)
		FROM failures WHERE created_at >= ?`, cutoff).Scan(&stats.Total, &stats.Unresolved)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT stage, category, COUNT(*) FROM failures
		WHERE created_at >= ? GROUP BY stage, category`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var stage, category string
		var n int64
		if err := rows.Scan(&stage, &category, &n); err != nil {
			return nil, err
		}
		stats.ByStage[stage] += n
		stats.ByCategory[category] += n
	}
	return stats, rows.Err()
}

// CommonPatterns returns the most frequent (category, code) pairs.
func (r *FailureRepository) CommonPatterns(ctx context.Context, limit int) ([]models.FailurePattern, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, code, COUNT(*) AS n FROM failures
		GROUP BY category, code ORDER BY n DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []models.FailurePattern
	for rows.Next() {
		var p models.FailurePattern
		if err := rows.Scan(&p.Category, &p.Code, &p.Count); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func scanFailure(row rowScanner) (*models.Failure, error) {
	var f models.Failure
	var resolved sql.NullTime
	err := row.Scan(&f.ID, &f.VideoID, &f.Stage, &f.Category, &f.Code,
		&f.Message, &f.Context, &resolved, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	if resolved.Valid {
		f.ResolvedAt = &resolved.Time
	}
	return &f, nil
}

func scanFailures(rows *sql.Rows) ([]*models.Failure, error) {
	var failures []*models.Failure
	for rows.Next() {
		f, err := scanFailure(rows)
		if err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
