package handlers

import (
	"net/http"
	"strconv"
	"time"

	"rekoda/internal/storage"

	"github.com/labstack/echo/v4"
)

// FailureHandler serves aggregate failure queries.
type FailureHandler struct {
	repo *storage.FailureRepository
}

// NewFailureHandler creates a new FailureHandler.
func NewFailureHandler(repo *storage.FailureRepository) *FailureHandler {
	return &FailureHandler{repo: repo}
}

// Stats returns failure counts grouped by category and stage. The
// optional window query param (a duration, e.g. 24h) limits the range;
// absent means all time.
func (h *FailureHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	var window time.Duration
	if w := c.QueryParam("window"); w != "" {
		parsed, err := time.ParseDuration(w)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid window"})
		}
		window = parsed
	}

	stats, err := h.repo.Stats(ctx, window)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

// Patterns returns the most common open failure signatures.
func (h *FailureHandler) Patterns(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	patterns, err := h.repo.CommonPatterns(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, patterns)
}
