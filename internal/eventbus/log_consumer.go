package eventbus

import (
	"context"
	"log"

	"github.com/heatline/core/internal/event"
)

// LogConsumer logs every domain event for observability.
type LogConsumer struct{}

func NewLogConsumer() *LogConsumer { return &LogConsumer{} }

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	log.Printf("event: %s [%s/%s] %s:%s — %s",
		evt.EventType, evt.Category, evt.Weight, evt.EntityType, evt.EntityID, evt.Summary)
	return nil
}
