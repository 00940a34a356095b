package failures

import (
	"context"
	"log/slog"

	"rekoda/internal/models"
)

// Store is the slice of persistence the recorder needs.
type Store interface {
	InsertFailure(ctx context.Context, f *models.Failure) error
	ResolveFailures(ctx context.Context, videoID int64) error
	SetVideoState(ctx context.Context, videoID int64, state string) error
}

// Recorder persists failure records and flips the owning video to the
// failed state. Purely additive bookkeeping: it never retries or
// blocks on its own, and recording errors are logged, not propagated,
// so a broken reporting path cannot take a pipeline down.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder wires a recorder.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger.With("component", "failures")}
}

// Record writes one failure record for videoID at the given stage and
// marks the video failed.
func (r *Recorder) Record(ctx context.Context, videoID int64, stage string, f *Failure) {
	rec := &models.Failure{
		VideoID:  videoID,
		Stage:    stage,
		Category: f.Category,
		Code:     f.Code,
		Message:  f.Message,
		Context:  f.Context,
	}
	if err := r.store.InsertFailure(ctx, rec); err != nil {
		r.logger.Error("failed to persist failure record",
			"video_id", videoID, "stage", stage, "error", err)
	}
	if err := r.store.SetVideoState(ctx, videoID, models.StateFailed); err != nil {
		r.logger.Error("failed to mark video failed",
			"video_id", videoID, "error", err)
	}
	r.logger.Warn("recorded failure",
		"video_id", videoID,
		"stage", stage,
		"category", f.Category,
		"code", f.Code,
		"message", f.Message)
}

// Resolve soft-deletes every open failure record owned by videoID.
// Called when a retry succeeds.
func (r *Recorder) Resolve(ctx context.Context, videoID int64) {
	if err := r.store.ResolveFailures(ctx, videoID); err != nil {
		r.logger.Error("failed to resolve failure records",
			"video_id", videoID, "error", err)
	}
}
