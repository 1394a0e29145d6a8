package eventbus

import (
	"context"
	"log"

	"github.com/heatline/core/internal/event"
)

// AlertConsumer logs every event weighted "critical" — a "fire" score,
// an "imminent" prediction, a severity 8+ distress signal, an ingest
// error — as worth surfacing to a human immediately, in place of a full
// notification integration. Lifecycle status changes, terminal ones
// included, are weighted "major" and are not surfaced.
type AlertConsumer struct{}

// NewAlertConsumer creates a new AlertConsumer.
func NewAlertConsumer() *AlertConsumer {
	return &AlertConsumer{}
}

func (c *AlertConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	if evt.Weight != "critical" {
		return nil
	}
	log.Printf("alert: %s on %s:%s — %s", evt.EventType, evt.EntityType, evt.EntityID, evt.Summary)
	return nil
}
