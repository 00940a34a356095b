// Package handlers exposes the HTTP API: pipeline control, video and
// failure queries, and the websocket event feed.
package handlers

import (
	"net/http"

	"rekoda/internal/pipeline"

	"github.com/labstack/echo/v4"
)

// PipelineHandler controls the running pipeline instances.
type PipelineHandler struct {
	pipelines map[string]*pipeline.Pipeline
	order     []string
}

// NewPipelineHandler creates a handler over the given pipelines,
// listed in the given order.
func NewPipelineHandler(pipelines []*pipeline.Pipeline) *PipelineHandler {
	h := &PipelineHandler{pipelines: make(map[string]*pipeline.Pipeline)}
	for _, p := range pipelines {
		h.pipelines[p.Stage()] = p
		h.order = append(h.order, p.Stage())
	}
	return h
}

type pipelineStatus struct {
	Stage   string `json:"stage"`
	State   string `json:"state"`
	Running bool   `json:"running"`
}

// List returns every pipeline's current state.
func (h *PipelineHandler) List(c echo.Context) error {
	out := make([]pipelineStatus, 0, len(h.order))
	for _, stage := range h.order {
		p := h.pipelines[stage]
		out = append(out, pipelineStatus{
			Stage:   stage,
			State:   string(p.State()),
			Running: p.Running(),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Resume starts a paused pipeline.
func (h *PipelineHandler) Resume(c echo.Context) error {
	p, ok := h.pipelines[c.Param("stage")]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "pipeline not found"})
	}
	p.Resume()
	return c.JSON(http.StatusOK, pipelineStatus{Stage: p.Stage(), State: string(p.State()), Running: p.Running()})
}

// Pause requests a pipeline stop. A batch in flight finishes first.
func (h *PipelineHandler) Pause(c echo.Context) error {
	p, ok := h.pipelines[c.Param("stage")]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "pipeline not found"})
	}
	p.Pause()
	return c.JSON(http.StatusOK, pipelineStatus{Stage: p.Stage(), State: string(p.State()), Running: p.Running()})
}

// Dispatch triggers an immediate eligibility check.
func (h *PipelineHandler) Dispatch(c echo.Context) error {
	p, ok := h.pipelines[c.Param("stage")]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "pipeline not found"})
	}
	p.DispatchAvailable()
	return c.NoContent(http.StatusAccepted)
}

// DispatchStage pokes one pipeline by name; used internally after a
// retry resets a record's state.
func (h *PipelineHandler) DispatchStage(stage string) {
	if p, ok := h.pipelines[stage]; ok {
		p.DispatchAvailable()
	}
}
