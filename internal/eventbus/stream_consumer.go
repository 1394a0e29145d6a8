package eventbus

import (
	"context"
	"sync"

	"github.com/heatline/core/internal/event"
)

// StreamConsumer fans domain events out to dynamically registered
// subscriber channels — one per live websocket connection on
// /ingest/stream. Unlike the Bus's fixed subscriber list (set once at
// startup), connections come and go for the lifetime of the server, so
// this sits behind a single Bus.Subscribe registration and manages its
// own churn.
type StreamConsumer struct {
	mu      sync.Mutex
	clients map[chan event.DomainEvent]struct{}
}

// NewStreamConsumer creates an empty StreamConsumer.
func NewStreamConsumer() *StreamConsumer {
	return &StreamConsumer{clients: make(map[chan event.DomainEvent]struct{})}
}

// Register adds a new subscriber channel, returning an unregister func.
// The channel is buffered by the caller; HandleEvent drops the event for
// a client whose buffer is full rather than blocking the bus.
func (c *StreamConsumer) Register(ch chan event.DomainEvent) func() {
	c.mu.Lock()
	c.clients[ch] = struct{}{}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.clients, ch)
		c.mu.Unlock()
	}
}

// HandleEvent implements eventbus.Handler, broadcasting evt to every
// registered client.
func (c *StreamConsumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.clients {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}
