package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/heatline/core/internal/event"
	"github.com/heatline/core/internal/eventbus"
)

// StreamHandler upgrades GET /ingest/stream to a WebSocket and relays
// domain events to the client as they land on the bus, so an operator
// can watch a bulk-seed run's counters climb without polling.
type StreamHandler struct {
	consumer *eventbus.StreamConsumer
}

// NewStreamHandler creates a StreamHandler backed by the given consumer.
func NewStreamHandler(consumer *eventbus.StreamConsumer) *StreamHandler {
	return &StreamHandler{consumer: consumer}
}

type streamMessage struct {
	Type       string `json:"type"`
	EventType  string `json:"event_type"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Summary    string `json:"summary"`
	Category   string `json:"category"`
	Weight     string `json:"weight"`
	OccurredAt int64  `json:"occurred_at"`
}

// ServeHTTP upgrades the connection and streams until the client
// disconnects or the server shuts down.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("stream: websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	events := make(chan event.DomainEvent, 64)
	unregister := h.consumer.Register(events)
	defer unregister()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return
		case evt := <-events:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, streamMessage{
				Type:       "event",
				EventType:  evt.EventType,
				EntityType: evt.EntityType,
				EntityID:   evt.EntityID,
				Summary:    evt.Summary,
				Category:   evt.Category,
				Weight:     evt.Weight,
				OccurredAt: evt.OccurredAt.UnixMilli(),
			})
			cancel()
			if err != nil {
				if websocket.CloseStatus(err) == -1 {
					log.Printf("stream: write: %v", err)
				}
				return
			}
		}
	}
}
