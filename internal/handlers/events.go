package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"rekoda/internal/events"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const wsWriteTimeout = 10 * time.Second

// EventsHandler streams pipeline telemetry over a websocket.
type EventsHandler struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(bus *events.Bus, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		logger: logger.With("component", "events_handler"),
	}
}

// Stream upgrades the connection and forwards bus events as JSON until
// the client disconnects.
func (h *EventsHandler) Stream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, cancel := h.bus.Subscribe()
	defer cancel()

	// Reader goroutine: we send only, but reading is what detects a
	// closed peer.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return nil
		case e := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(e); err != nil {
				h.logger.Debug("websocket write failed, dropping client", "error", err)
				return nil
			}
		}
	}
}
