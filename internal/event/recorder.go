package event

import (
	"context"
	"encoding/json"

	"github.com/heatline/core/internal/types"
)

// LogWriter is the subset of the store used to persist append-only
// EventLog rows. Defined here, not in internal/store, so
// this package doesn't import the concrete store implementation.
type LogWriter interface {
	WriteEventLog(ctx context.Context, entry types.EventLog) error
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// Recorder writes domain events to the audit log and fans them out to
// the event bus.
type Recorder interface {
	Record(ctx context.Context, actor string, evt DomainEvent) error
}

// AuditRecorder implements Recorder: it writes one EventLog row per
// domain event, then — if a Publisher is attached — publishes it after
// the write succeeds.
type AuditRecorder struct {
	log LogWriter
	bus Publisher
}

// NewAuditRecorder creates a new AuditRecorder backed by the given log writer.
func NewAuditRecorder(log LogWriter) *AuditRecorder {
	return &AuditRecorder{log: log}
}

// SetPublisher attaches an event bus. Events are published after the log write.
func (r *AuditRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

// Record persists evt as an EventLog row and publishes it to the event bus.
func (r *AuditRecorder) Record(ctx context.Context, actor string, evt DomainEvent) error {
	if actor == "" {
		actor = types.SystemActor
	}

	// The payload's fields become the EventLog details bag directly, so
	// a lead.status_changed row reads {"from": ..., "to": ...} rather
	// than a nested blob.
	var details map[string]any
	if len(evt.Payload) > 0 {
		_ = json.Unmarshal(evt.Payload, &details)
	}

	entry := types.EventLog{
		ID:         evt.ID,
		UserID:     actor,
		Action:     evt.EventType,
		EntityType: evt.EntityType,
		EntityID:   evt.EntityID,
		Details:    details,
		CreatedAt:  evt.OccurredAt,
	}
	if err := r.log.WriteEventLog(ctx, entry); err != nil {
		return err
	}

	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}
