package handlers

import (
	"net/http"

	"rekoda/internal/version"

	"github.com/labstack/echo/v4"
)

// Register wires every API route onto the echo instance.
func Register(e *echo.Echo, pipelines *PipelineHandler, videos *VideoHandler, failures *FailureHandler, events *EventsHandler) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	})

	api := e.Group("/api")

	api.GET("/pipelines", pipelines.List)
	api.POST("/pipelines/:stage/pause", pipelines.Pause)
	api.POST("/pipelines/:stage/resume", pipelines.Resume)
	api.POST("/pipelines/:stage/dispatch", pipelines.Dispatch)

	api.GET("/videos", videos.List)
	api.GET("/videos/stats", videos.Stats)
	api.GET("/videos/:id", videos.Get)
	api.GET("/videos/:id/failures", videos.Failures)
	api.POST("/videos/:id/retry", videos.Retry)

	api.GET("/failures/stats", failures.Stats)
	api.GET("/failures/patterns", failures.Patterns)

	e.GET("/ws/events", events.Stream)
}
