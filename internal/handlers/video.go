package handlers

import (
	"net/http"
	"strconv"

	"rekoda/internal/models"
	"rekoda/internal/storage"

	"github.com/labstack/echo/v4"
)

// VideoHandler serves the video catalog API.
type VideoHandler struct {
	videos   *storage.VideoRepository
	failures *storage.FailureRepository

	// notify pokes the pipeline owning a stage after a retry reset.
	notify func(stage string)
}

// NewVideoHandler creates a new VideoHandler. notify may be nil.
func NewVideoHandler(videos *storage.VideoRepository, failures *storage.FailureRepository, notify func(stage string)) *VideoHandler {
	return &VideoHandler{videos: videos, failures: failures, notify: notify}
}

// List returns videos, optionally filtered by state.
func (h *VideoHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	state := c.QueryParam("state")

	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	var videos []*models.Video
	var err error
	if state != "" {
		videos, err = h.videos.ListByState(ctx, state, limit)
	} else {
		videos, err = h.videos.ListRecent(ctx, limit)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, videos)
}

// Get returns one video by id.
func (h *VideoHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	video, err := h.videos.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if video == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "video not found"})
	}
	return c.JSON(http.StatusOK, video)
}

// Stats returns the count of videos per state.
func (h *VideoHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := h.videos.CountByState(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, counts)
}

// Failures returns one video's failure history.
func (h *VideoHandler) Failures(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	list, err := h.failures.ListByVideo(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, list)
}

// Retry resets a failed video to the entry state of the stage that
// failed it, resolves its open failures, and pokes that pipeline.
// With ?force=1 the video is additionally flagged for forced
// reprocessing, skipping the already-at-target shortcuts.
func (h *VideoHandler) Retry(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	video, err := h.videos.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if video == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "video not found"})
	}
	if video.State != models.StateFailed {
		return c.JSON(http.StatusConflict, map[string]string{"error": "video is not in failed state"})
	}

	// The latest open failure names the stage to rerun; without one,
	// start over from analysis.
	stage := models.StageAnalysis
	if f, ferr := h.failures.LatestOpenByVideo(ctx, id); ferr == nil && f != nil {
		stage = f.Stage
	}
	target := entryStateFor(stage)

	if err := h.videos.SetState(ctx, id, target); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	force := c.QueryParam("force") == "1" || c.QueryParam("force") == "true"
	if force {
		if err := h.videos.SetForce(ctx, id, true); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}
	if err := h.failures.ResolveFailures(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if h.notify != nil {
		h.notify(stage)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"state": target,
		"stage": stage,
		"force": force,
	})
}

func entryStateFor(stage string) string {
	switch stage {
	case models.StageCRFSearch:
		return models.StateAnalyzed
	case models.StageEncoding:
		return models.StateCRFSearched
	default:
		return models.StateNeedsAnalysis
	}
}
