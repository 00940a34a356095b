package pipeline

import (
	"context"
	"time"

	"rekoda/internal/models"
)

// collectBatch accumulates items from ch into one batch, flushed when
// it reaches size items or timeout elapses after the first item,
// whichever comes first. It blocks indefinitely for the first item.
// A batch is returned exactly once and never split. Returns nil when
// ctx is cancelled before any item arrives.
func collectBatch(ctx context.Context, ch <-chan models.WorkItem, size int, timeout time.Duration) []models.WorkItem {
	if size < 1 {
		size = 1
	}

	var first models.WorkItem
	select {
	case <-ctx.Done():
		return nil
	case first = <-ch:
	}

	batch := make([]models.WorkItem, 0, size)
	batch = append(batch, first)
	if size == 1 {
		return batch
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return batch
		case <-timer.C:
			return batch
		case item := <-ch:
			batch = append(batch, item)
			if len(batch) >= size {
				return batch
			}
		}
	}
}
