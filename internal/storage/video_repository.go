package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"rekoda/internal/models"
)

// VideoRepository is the data access layer for video records.
type VideoRepository struct {
	db *DB
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(db *DB) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, path, library_id, source_type, state, size, duration, bitrate,
	width, height, video_codecs, audio_codecs, max_audio_channels, hdr, target_crf, force, created_at, updated_at`

// UpsertBatch writes all records in one transaction, keyed by path.
// Existing rows are updated, new rows inserted; applying the same
// payload twice yields the same rows (idempotent per path). On error
// the transaction rolls back, so a failed batch applies nothing.
func (r *VideoRepository) UpsertBatch(ctx context.Context, videos []*models.Video) error {
	if len(videos) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO videos (path, library_id, source_type, state, size, duration, bitrate,
			width, height, video_codecs, audio_codecs, max_audio_channels, hdr, target_crf, force, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			library_id = excluded.library_id,
			source_type = excluded.source_type,
			state = excluded.state,
			size = excluded.size,
			duration = excluded.duration,
			bitrate = excluded.bitrate,
			width = excluded.width,
			height = excluded.height,
			video_codecs = excluded.video_codecs,
			audio_codecs = excluded.audio_codecs,
			max_audio_channels = excluded.max_audio_channels,
			hdr = excluded.hdr,
			target_crf = excluded.target_crf,
			force = excluded.force,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, v := range videos {
		vc, ac := marshalCodecs(v)
		if _, err := stmt.ExecContext(ctx,
			v.Path, v.LibraryID, v.SourceType, v.State, v.Size, v.Duration, v.Bitrate,
			v.Width, v.Height, vc, ac, v.MaxAudioChannels, boolInt(v.HDR), v.TargetCRF, boolInt(v.Force), now, now,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", v.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert batch: %w", err)
	}
	return nil
}

// GetByID returns the video with the given id, or nil when absent.
func (r *VideoRepository) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	return scanVideo(row)
}

// GetByPath returns the video with the given path, or nil when absent.
func (r *VideoRepository) GetByPath(ctx context.Context, path string) (*models.Video, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE path = ?`, path)
	return scanVideo(row)
}

// ListEligible returns up to limit videos in the given state, oldest
// update first so stragglers are not starved.
func (r *VideoRepository) ListEligible(ctx context.Context, state string, limit int) ([]*models.Video, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE state = ? ORDER BY updated_at ASC LIMIT ?`,
		state, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVideos(rows)
}

// ListByState returns up to limit videos in the given state, newest
// first, for the query surface.
func (r *VideoRepository) ListByState(ctx context.Context, state string, limit int) ([]*models.Video, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE state = ? ORDER BY updated_at DESC LIMIT ?`,
		state, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVideos(rows)
}

// ListRecent returns up to limit most recently updated videos.
func (r *VideoRepository) ListRecent(ctx context.Context, limit int) ([]*models.Video, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVideos(rows)
}

// SetState advances a video to the given state.
func (r *VideoRepository) SetState(ctx context.Context, id int64, state string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE videos SET state = ?, updated_at = ? WHERE id = ?`,
		state, time.Now(), id)
	return err
}

// SetVideoState satisfies the failure recorder's store contract.
func (r *VideoRepository) SetVideoState(ctx context.Context, id int64, state string) error {
	return r.SetState(ctx, id, state)
}

// SetForce flags a video for forced reprocessing: its stages skip the
// already-at-target shortcuts until the flag clears on a completed
// encode.
func (r *VideoRepository) SetForce(ctx context.Context, id int64, force bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE videos SET force = ?, updated_at = ? WHERE id = ?`,
		boolInt(force), time.Now(), id)
	return err
}

// DeleteByPath removes a stale record whose source file disappeared.
func (r *VideoRepository) DeleteByPath(ctx context.Context, path string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM videos WHERE path = ?`, path)
	return err
}

// CountInState reports how many videos sit in the given state.
func (r *VideoRepository) CountInState(ctx context.Context, state string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM videos WHERE state = ?`, state).Scan(&n)
	return n, err
}

// CountByState returns counts for every state present in the store.
func (r *VideoRepository) CountByState(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM videos GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*models.Video, error) {
	var v models.Video
	var vc, ac string
	var hdr, force int
	err := row.Scan(&v.ID, &v.Path, &v.LibraryID, &v.SourceType, &v.State,
		&v.Size, &v.Duration, &v.Bitrate, &v.Width, &v.Height,
		&vc, &ac, &v.MaxAudioChannels, &hdr, &v.TargetCRF, &force, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.HDR = hdr != 0
	v.Force = force != 0
	_ = json.Unmarshal([]byte(vc), &v.VideoCodecs)
	_ = json.Unmarshal([]byte(ac), &v.AudioCodecs)
	return &v, nil
}

func scanVideos(rows *sql.Rows) ([]*models.Video, error) {
	var videos []*models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func marshalCodecs(v *models.Video) (string, string) {
	vc, _ := json.Marshal(emptyIfNil(v.VideoCodecs))
	ac, _ := json.Marshal(emptyIfNil(v.AudioCodecs))
	return string(vc), string(ac)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
