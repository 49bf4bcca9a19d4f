package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/internal/events"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// EventsHandler streams pipeline lifecycle events to dashboard clients
// over websocket
type EventsHandler struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// wsEvent is the wire envelope for one event
type wsEvent struct {
	Kind    contracts.EventKind `json:"kind"`
	Payload contracts.Event     `json:"payload"`
	SentAt  time.Time           `json:"sent_at"`
}

// NewEventsHandler creates an events handler
func NewEventsHandler(bus *events.Bus, log *logger.Logger) *EventsHandler {
	return &EventsHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Dashboards are same-deployment collaborators
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

const writeTimeout = 10 * time.Second

// Stream upgrades the connection and forwards bus events until the
// client disconnects
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub, cancel := h.bus.Subscribe()
	defer cancel()

	h.logger.WithField("remote", r.RemoteAddr).Info("Event stream client connected")

	// Drain client control frames so close is noticed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			h.logger.WithField("remote", r.RemoteAddr).Info("Event stream client disconnected")
			return
		case event, ok := <-sub:
			if !ok {
				return
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(wsEvent{
				Kind:    event.Kind(),
				Payload: event,
				SentAt:  time.Now(),
			}); err != nil {
				h.logger.WithError(err).Debug("Event stream write failed")
				return
			}
		}
	}
}
